package steps

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/opalapi"
	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
)

// Login attaches an authenticated control API client to the context,
// using a configured token or a username/password exchange.
func Login() pipeline.Step {
	return pipeline.Step{
		Name: "control.login",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			ctl := c.Control

			if ctl.Token != "" {
				log.Info().Msg("using provided API token")
				c.API = opalapi.New(ctl.URL, ctl.Token)
				return pipeline.Continue()
			}

			log.Info().Str("username", ctl.Username).Msg("logging in with username and password")
			client, err := opalapi.Login(ctx, ctl.URL, ctl.Username, ctl.Password)
			if err != nil {
				return pipeline.Halt(err)
			}
			c.API = client
			return pipeline.Continue()
		},
	}
}
