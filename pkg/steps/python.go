package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/mod/semver"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
)

// pythonMajorMinor returns "3.9" for "3.9.7".
func pythonMajorMinor(version string) string {
	return strings.TrimPrefix(semver.MajorMinor("v"+version), "v")
}

// InstallPython builds the requested python version from source under
// the account's home when it is not already present, and symlinks the
// interpreter and pip into ~/bin.
func InstallPython() pipeline.Step {
	return pipeline.Step{
		Name: "python.install",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			version := c.Project.Dependencies.Python
			mm := pythonMajorMinor(version)

			proceed, err := preInstall(ctx, c, "python"+mm, version)
			if err != nil {
				return pipeline.Halt(err)
			}
			if !proceed {
				return pipeline.Continue()
			}

			baseName := "Python-" + version
			fileName := baseName + ".tgz"
			url := fmt.Sprintf("https://www.python.org/ftp/python/%s/%s", version, fileName)
			if err := download(ctx, c.Exec, fileName, url); err != nil {
				return pipeline.Halt(err)
			}

			installPath := "$HOME/opt/python-" + version
			log.Info().Str("version", version).Str("path", installPath).Msg("installing python")

			if _, err := c.Exec.Run(ctx, fmt.Sprintf("cd $HOME/src && tar zxf %s", fileName)); err != nil {
				return pipeline.Halt(err)
			}
			build := fmt.Sprintf("export TMPDIR=$HOME/tmp && cd $HOME/src/%s && ./configure --prefix=%s && make && make install",
				baseName, installPath)
			if _, err := c.Exec.Run(ctx, build); err != nil {
				return pipeline.Halt(err)
			}
			if _, err := c.Exec.Run(ctx, "rm $HOME/src/"+fileName); err != nil {
				return pipeline.Halt(err)
			}

			major := strings.SplitN(mm, ".", 2)[0]
			for _, name := range []string{"python" + mm, "python" + major, "pip" + mm, "pip" + major} {
				link := fmt.Sprintf("ln -sf %s/bin/%s ~/bin/%s", installPath, name, name)
				if _, err := c.Exec.Run(ctx, link); err != nil {
					return pipeline.Halt(err)
				}
			}

			log.Info().Str("version", version).Msg("successfully installed python")
			return pipeline.Continue()
		},
	}
}

// FindPython resolves the requested python and pip binaries and records
// their paths for later steps.
func FindPython() pipeline.Step {
	return pipeline.Step{
		Name: "python.find",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			mm := pythonMajorMinor(c.Project.Dependencies.Python)

			python, err := findExecutable(ctx, c.Exec, "python"+mm)
			if err != nil {
				return pipeline.Halt(err)
			}
			if python == "" {
				return pipeline.Haltf("python%s not found on server", mm)
			}

			pip, err := findExecutable(ctx, c.Exec, "pip"+mm)
			if err != nil {
				return pipeline.Halt(err)
			}
			if pip == "" {
				return pipeline.Haltf("pip%s not found on server", mm)
			}

			c.Data.PythonBin = python
			c.Data.PipBin = pip
			return pipeline.Continue()
		},
	}
}
