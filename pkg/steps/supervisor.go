package steps

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/supervisor"
	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

func supervisorConfigured(c *pipeline.Context) bool {
	return c.Project.Supervisor != nil
}

func supervisorAppName(c *pipeline.Context) string {
	return c.Project.Account + "_supervisor"
}

// InstallSupervisor installs supervisor through the account-wide pip,
// outside the project virtualenv, and symlinks its binaries into ~/bin.
func InstallSupervisor() pipeline.Step {
	return pipeline.Step{
		Name: "supervisor.install",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !supervisorConfigured(c) {
				return pipeline.Continue()
			}

			found, err := findExecutable(ctx, c.Exec, "supervisord")
			if err != nil {
				return pipeline.Halt(err)
			}
			if found != "" {
				log.Info().Msg("supervisor found, skipping install")
				return pipeline.Continue()
			}

			log.Info().Msg("installing supervisor")
			if _, err := c.Exec.Run(ctx, c.Data.PipBin+" install -U supervisor", transports.Echo()); err != nil {
				return pipeline.Halt(err)
			}

			installPath := "$HOME/opt/python-" + c.Project.Dependencies.Python
			for _, name := range []string{"supervisorctl", "supervisord"} {
				link := fmt.Sprintf("ln -sf %s/bin/%s ~/bin/%s", installPath, name, name)
				if _, err := c.Exec.Run(ctx, link); err != nil {
					return pipeline.Halt(err)
				}
			}

			log.Info().Msg("successfully installed supervisor")
			return pipeline.Continue()
		},
	}
}

// FindSupervisorApp looks up the supervisor app slot by name.
func FindSupervisorApp() pipeline.Step {
	return pipeline.Step{
		Name: "supervisor.find-app",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !supervisorConfigured(c) {
				return pipeline.Continue()
			}
			id, found, err := apps(c).FindID(ctx, supervisorAppName(c))
			if err != nil {
				return pipeline.Halt(err)
			}
			if found {
				c.Data.SupervisorAppID = id
				log.Info().Str("app", supervisorAppName(c)).Str("id", id).Msg("found supervisor app id")
			}
			return pipeline.Continue()
		},
	}
}

// CreateSupervisorApp creates the supervisor app slot when absent.
func CreateSupervisorApp() pipeline.Step {
	return pipeline.Step{
		Name: "supervisor.create-app",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !supervisorConfigured(c) {
				return pipeline.Continue()
			}
			if c.Data.SupervisorAppID == "" && c.Data.AccountID == "" {
				return pipeline.Haltf("an account id is required to create the supervisor app")
			}
			id, err := apps(c).Create(ctx, supervisorAppName(c), c.Data.AccountID, c.Data.SupervisorAppID)
			if err != nil {
				return pipeline.Halt(err)
			}
			c.Data.SupervisorAppID = id
			return pipeline.Continue()
		},
	}
}

// WriteConfigs generates and uploads both supervisor config documents
// unconditionally. Used on first-time install.
func WriteConfigs() pipeline.Step {
	return pipeline.Step{
		Name: "supervisor.write-configs",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			return syncConfigs(ctx, c, true)
		},
	}
}

// SyncConfigs generates both config documents and uploads only those
// that differ from what is deployed.
func SyncConfigs() pipeline.Step {
	return pipeline.Step{
		Name: "supervisor.sync-configs",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			return syncConfigs(ctx, c, false)
		},
	}
}

func syncConfigs(ctx context.Context, c *pipeline.Context, force bool) pipeline.Result {
	if !supervisorConfigured(c) {
		return pipeline.Continue()
	}

	if _, err := c.Exec.Run(ctx, "mkdir -p ~/etc/supervisor.d"); err != nil {
		return pipeline.Halt(err)
	}

	content, remotePath, err := supervisor.BuildMainConfig(c.Project)
	if err != nil {
		return pipeline.Halt(err)
	}
	if err := supervisor.UploadIfChanged(ctx, c.Exec, content, remotePath, force); err != nil {
		return pipeline.Halt(err)
	}

	content, remotePath, err = supervisor.BuildProgramConfig(c.Project, c.Data)
	if err != nil {
		return pipeline.Halt(err)
	}
	if err := supervisor.UploadIfChanged(ctx, c.Exec, content, remotePath, force); err != nil {
		return pipeline.Halt(err)
	}
	return pipeline.Continue()
}

// StartSupervisor starts supervisord, or tells a running instance to
// pick up the new configuration.
func StartSupervisor() pipeline.Step {
	return pipeline.Step{
		Name: "supervisor.start",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !supervisorConfigured(c) {
				return pipeline.Continue()
			}

			log.Info().Msg("starting supervisord")
			res, err := c.Exec.Run(ctx, "~/bin/supervisord -c ~/etc/supervisord.conf", transports.Warn())
			if err != nil {
				return pipeline.Halt(err)
			}
			if !res.ExitOK {
				log.Info().Msg("supervisord is already running, attempting config update")
				if _, err := c.Exec.Run(ctx, "supervisorctl update"); err != nil {
					return pipeline.Halt(err)
				}
			}
			return pipeline.Continue()
		},
	}
}

// RestartSupervised reloads the supervisor configuration and restarts
// all supervised programs.
func RestartSupervised() pipeline.Step {
	return pipeline.Step{
		Name: "supervisor.restart",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !supervisorConfigured(c) {
				return pipeline.Continue()
			}

			log.Info().Str("project", c.Project.Name).Msg("restarting project")
			for _, cmd := range []string{"supervisorctl reread", "supervisorctl update", "supervisorctl restart all"} {
				if _, err := c.Exec.Run(ctx, cmd, transports.Echo()); err != nil {
					return pipeline.Halt(err)
				}
			}
			return pipeline.Continue()
		},
	}
}
