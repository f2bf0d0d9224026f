package steps

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

// CreateVirtualenv creates the project virtualenv unless one already
// exists at the env path.
func CreateVirtualenv() pipeline.Step {
	return pipeline.Step{
		Name: "venv.create",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			res, err := c.Exec.Run(ctx, "stat "+c.Data.EnvPath, transports.Warn())
			if err != nil {
				return pipeline.Halt(err)
			}
			if res.ExitOK {
				log.Info().Str("path", c.Data.EnvPath).Msg("virtualenv exists, skipping create")
				return pipeline.Continue()
			}

			python := c.Data.PythonBin
			if python == "" {
				python = "python3"
			}
			log.Info().Str("path", c.Data.EnvPath).Msg("creating virtualenv")
			if _, err := c.Exec.Run(ctx, fmt.Sprintf("%s -m venv %s", python, c.Data.EnvPath)); err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Continue()
		},
	}
}

// venvRun executes a command inside the project virtualenv.
func venvRun(ctx context.Context, c *pipeline.Context, command string, opts ...transports.RunOption) (transports.Result, error) {
	full := fmt.Sprintf("source %s/bin/activate && %s", c.Data.EnvPath, command)
	if len(opts) == 0 {
		opts = []transports.RunOption{transports.Echo()}
	}
	return c.Exec.Run(ctx, full, opts...)
}

// pip installs packages into the virtualenv.
func pip(ctx context.Context, c *pipeline.Context, packages string, opts ...transports.RunOption) error {
	_, err := venvRun(ctx, c, "pip install "+packages, opts...)
	return err
}

// manage runs a Django management command from the source directory.
func manage(ctx context.Context, c *pipeline.Context, command string, opts ...transports.RunOption) error {
	_, err := venvRun(ctx, c, fmt.Sprintf("cd %s && ./manage.py %s", c.Data.SrcPath, command), opts...)
	return err
}
