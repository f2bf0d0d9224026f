package steps

import (
	"context"
	"fmt"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
)

// ListEnv lists the project's .env configuration on the remote host.
// Read-only; get/set/unset are managed in the project repository.
func ListEnv() pipeline.Step {
	return pipeline.Step{
		Name: "env.list",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			dotenvPath := c.Data.SrcPath + "/.env"
			if _, err := c.Exec.Run(ctx, "touch "+dotenvPath); err != nil {
				return pipeline.Halt(err)
			}
			if _, err := venvRun(ctx, c, fmt.Sprintf("dotenv -f %s list", dotenvPath)); err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Continue()
		},
	}
}
