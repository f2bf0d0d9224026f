package steps

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/config"
	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/provision"
)

func databases(c *pipeline.Context) provision.Databases {
	return provision.Databases{API: c.API, Poll: provision.DefaultPoller(), Kind: c.Project.Database}
}

// FindDatabase looks up the project database id by name. Unmanaged
// database kinds (none, sqlite) skip the step entirely.
func FindDatabase() pipeline.Step {
	return pipeline.Step{
		Name: "database.find",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !c.Project.Database.Managed() {
				return pipeline.Continue()
			}
			id, found, err := databases(c).FindID(ctx, c.Project.Name)
			if err != nil {
				return pipeline.Halt(err)
			}
			if found {
				c.Data.DBID = id
				log.Info().Str("database", c.Project.Name).Str("id", id).Msg("found database id")
			}
			return pipeline.Continue()
		},
	}
}

// CreateDatabase creates the project database when the lookup found
// none, then waits for the database and its generated user to be ready.
func CreateDatabase() pipeline.Step {
	return pipeline.Step{
		Name: "database.create",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			switch c.Project.Database {
			case config.DatabaseNone:
				return pipeline.Continue()
			case config.DatabaseSQLite:
				log.Info().Msg("skipping database install for sqlite")
				return pipeline.Continue()
			}

			info, err := databases(c).Create(ctx, c.Project.Name, c.Data.ServerID, c.Data.DBID)
			if err != nil {
				return pipeline.Halt(err)
			}
			c.Data.DBID = info.ID
			c.Data.DBInfo = info
			return pipeline.Continue()
		},
	}
}
