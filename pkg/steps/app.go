package steps

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
)

// FindApp looks up the main project app id by project name.
func FindApp() pipeline.Step {
	return pipeline.Step{
		Name: "app.find",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			id, found, err := apps(c).FindID(ctx, c.Project.Name)
			if err != nil {
				return pipeline.Halt(err)
			}
			if found {
				c.Data.AppID = id
				log.Info().Str("app", c.Project.Name).Str("id", id).Msg("found app id")
			}
			return pipeline.Continue()
		},
	}
}

// CreateApp creates the main project app when the lookup found none.
// This also creates the app directory on the server.
func CreateApp() pipeline.Step {
	return pipeline.Step{
		Name: "app.create",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if c.Data.AppID == "" && c.Data.AccountID == "" {
				return pipeline.Haltf("an account id is required to create an app")
			}
			id, err := apps(c).Create(ctx, c.Project.Name, c.Data.AccountID, c.Data.AppID)
			if err != nil {
				return pipeline.Halt(err)
			}
			c.Data.AppID = id
			return pipeline.Continue()
		},
	}
}

// FetchAppInfo polls the main app until ready (mainly for its assigned
// port) and derives the project's filesystem layout under the account.
func FetchAppInfo() pipeline.Step {
	return pipeline.Step{
		Name: "app.info",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if c.Data.AppID != "" {
				info, err := apps(c).FetchInfo(ctx, c.Data.AppID)
				if err != nil {
					return pipeline.Halt(err)
				}
				c.Data.AppInfo = info
			}

			c.Data.DerivePaths(c.Project.Account, c.Project.Name)
			return pipeline.Continue()
		},
	}
}
