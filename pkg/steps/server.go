package steps

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
)

// ResolveServer looks up the target server's id by hostname. A missing
// server is only a warning here; the create steps that need the id halt
// with a precise error instead.
func ResolveServer() pipeline.Step {
	return pipeline.Step{
		Name: "server.resolve",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			id, found, err := servers(c).FindID(ctx, c.Project.Server)
			if err != nil {
				return pipeline.Halt(err)
			}
			if !found {
				return pipeline.Continue()
			}
			c.Data.ServerID = id
			log.Info().Str("server", c.Project.Server).Str("id", id).Msg("found server id")
			return pipeline.Continue()
		},
	}
}
