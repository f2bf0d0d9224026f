package steps

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/config"
	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

func excludeArgs(excludes []string) string {
	parts := make([]string, 0, len(excludes))
	for _, e := range excludes {
		parts = append(parts, fmt.Sprintf("--exclude='%s'", e))
	}
	return strings.Join(parts, " ")
}

// Upload archives the local source tree, pushes it to the app directory
// and unpacks it into a fresh source path.
func Upload() pipeline.Step {
	return pipeline.Step{
		Name: "project.upload",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			log.Info().Str("project", c.Project.Name).Msg("uploading project")

			fileName := c.Project.Name + ".tar.gz"
			tarCmd := fmt.Sprintf("cd %s && tar -czf /tmp/%s %s %s",
				c.ConfigDir, fileName, excludeArgs(c.Project.ArchiveExcludes), c.Project.Source)
			if _, err := c.Local.Run(ctx, tarCmd, transports.WithEnv(baseEnv)); err != nil {
				return pipeline.Halt(err)
			}

			scpCmd := fmt.Sprintf("scp /tmp/%s %s:%s", fileName, c.Project.Account, c.Data.AppPath)
			if _, err := c.Local.Run(ctx, scpCmd, transports.WithEnv(baseEnv), transports.Echo(), transports.Interactive()); err != nil {
				return pipeline.Halt(err)
			}
			if _, err := c.Local.Run(ctx, "rm /tmp/"+fileName, transports.WithEnv(baseEnv)); err != nil {
				return pipeline.Halt(err)
			}

			srcDir := path.Base(c.Data.SrcPath)
			extract := fmt.Sprintf("cd %s && rm -rf %s && tar -zxf %s && rm %s",
				c.Data.AppPath, srcDir, fileName, fileName)
			if _, err := c.Exec.Run(ctx, extract); err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Continue()
		},
	}
}

// InstallRequirements installs the project's python requirements into
// the virtualenv.
func InstallRequirements() pipeline.Step {
	return pipeline.Step{
		Name: "project.requirements",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			log.Info().Msg("installing project requirements")
			if err := pip(ctx, c, "--upgrade pip"); err != nil {
				return pipeline.Halt(err)
			}
			if err := pip(ctx, c, fmt.Sprintf("-r %s/requirements.txt", c.Data.SrcPath)); err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Continue()
		},
	}
}

// CollectStatic collects and compresses static files. The compress
// command comes from whitenoise and is ignored by projects not using it.
func CollectStatic() pipeline.Step {
	return pipeline.Step{
		Name: "project.static",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			log.Info().Msg("processing static files")
			if err := manage(ctx, c, "collectstatic --noinput --verbosity 0", transports.Warn()); err != nil {
				return pipeline.Halt(err)
			}
			if err := manage(ctx, c, "compress --force", transports.Warn()); err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Continue()
		},
	}
}

// MigrateDB applies pending database migrations.
func MigrateDB() pipeline.Step {
	return pipeline.Step{
		Name: "project.migrate",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if c.Project.Database == config.DatabaseNone {
				return pipeline.Continue()
			}
			log.Info().Msg("migrating database")
			if err := manage(ctx, c, "migrate --noinput"); err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Continue()
		},
	}
}

// BackupDB dumps the remote database into the backup directory.
func BackupDB() pipeline.Step {
	return pipeline.Step{
		Name: "project.backup-db",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !c.Project.Database.Managed() {
				return pipeline.Continue()
			}
			log.Info().Msg("creating backup of remote database")

			if _, err := c.Exec.Run(ctx, "mkdir -p "+c.Data.BackupPath); err != nil {
				return pipeline.Halt(err)
			}

			fileName := fmt.Sprintf("%s/%s.last.db", c.Data.BackupPath, c.Project.Name)
			var dump string
			if c.Project.Database == config.DatabaseMariaDB {
				dump = fmt.Sprintf("mysqldump %s > %s", c.Project.Name, fileName)
			} else {
				dump = fmt.Sprintf("pg_dump -U %s -Fc %s > %s", c.Project.Account, c.Project.Name, fileName)
			}
			if _, err := c.Exec.Run(ctx, dump, transports.Echo()); err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Continue()
		},
	}
}

// RestoreDB restores the last database backup.
func RestoreDB() pipeline.Step {
	return pipeline.Step{
		Name: "project.restore-db",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !c.Project.Database.Managed() {
				return pipeline.Continue()
			}

			fileName := fmt.Sprintf("%s/%s.last.db", c.Data.BackupPath, c.Project.Name)
			res, err := c.Exec.Run(ctx, "stat "+fileName, transports.Warn())
			if err != nil {
				return pipeline.Halt(err)
			}
			if !res.ExitOK {
				return pipeline.Haltf("could not find database backup: %s", fileName)
			}

			var restore string
			if c.Project.Database == config.DatabaseMariaDB {
				restore = fmt.Sprintf("mysql %s < %s", c.Project.Name, fileName)
			} else {
				restore = fmt.Sprintf("pg_restore -U %s -c --if-exists -d %s %s", c.Project.Account, c.Project.Name, fileName)
			}
			if _, err := c.Exec.Run(ctx, restore, transports.Echo()); err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Continue()
		},
	}
}

// BackupProject archives the remote source tree into the backup
// directory.
func BackupProject() pipeline.Step {
	return pipeline.Step{
		Name: "project.backup-files",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			log.Info().Msg("creating backup of remote project")

			if _, err := c.Exec.Run(ctx, "mkdir -p "+c.Data.BackupPath); err != nil {
				return pipeline.Halt(err)
			}

			fileName := fmt.Sprintf("%s/%s.last.tar.gz", c.Data.BackupPath, c.Project.Name)
			srcDir := path.Base(c.Data.SrcPath)
			cmd := fmt.Sprintf("cd %s && tar -czf %s %s %s",
				c.Data.AppPath, fileName, excludeArgs(c.Project.ArchiveExcludes), srcDir)
			if _, err := c.Exec.Run(ctx, cmd, transports.Echo()); err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Continue()
		},
	}
}

// RestoreProject unpacks the last project backup over the source path.
func RestoreProject() pipeline.Step {
	return pipeline.Step{
		Name: "project.restore-files",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			fileName := fmt.Sprintf("%s/%s.last.tar.gz", c.Data.BackupPath, c.Project.Name)
			res, err := c.Exec.Run(ctx, "stat "+fileName, transports.Warn())
			if err != nil {
				return pipeline.Halt(err)
			}
			if !res.ExitOK {
				return pipeline.Haltf("could not find project backup: %s", fileName)
			}

			srcDir := path.Base(c.Data.SrcPath)
			cmd := fmt.Sprintf("cd %s && tar -zxf %s %s", c.Data.AppPath, fileName, srcDir)
			if _, err := c.Exec.Run(ctx, cmd, transports.Echo()); err != nil {
				return pipeline.Halt(err)
			}
			return pipeline.Continue()
		},
	}
}
