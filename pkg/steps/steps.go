// Package steps contains the named pipeline steps the top-level commands
// are assembled from. Each step is thin glue over the provisioners, the
// transport and the supervisor synthesizer; all state flows through the
// pipeline context.
package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/mod/semver"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/provision"
	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

// baseEnv pins PATH for commands that must not pick up account-local
// binaries (local ssh tooling, mostly).
var baseEnv = map[string]string{"PATH": "/usr/bin:/bin"}

func accounts(c *pipeline.Context) provision.Accounts {
	return provision.Accounts{API: c.API, Poll: provision.DefaultPoller()}
}

func apps(c *pipeline.Context) provision.Apps {
	return provision.Apps{API: c.API, Poll: provision.DefaultPoller()}
}

func servers(c *pipeline.Context) provision.Servers {
	return provision.Servers{API: c.API}
}

// findExecutable resolves the full path of an executable on the bound
// target, or "" when it is not on the PATH.
func findExecutable(ctx context.Context, exec transports.Executor, name string) (string, error) {
	res, err := exec.Run(ctx, "command -v "+name, transports.Warn())
	if err != nil {
		return "", err
	}
	if !res.ExitOK || res.Stdout == "" {
		log.Warn().Str("executable", name).Msg("no path found for executable")
		return "", nil
	}
	path := strings.TrimSpace(res.Stdout)
	log.Info().Str("executable", name).Str("path", path).Msg("found executable")
	return path, nil
}

// preInstall checks whether the requested version of an executable is
// already present. It returns false when installation should be skipped.
// A version string the executable reports that does not parse is an
// error; guessing would risk a pointless source build.
func preInstall(ctx context.Context, c *pipeline.Context, executable, version string) (bool, error) {
	res, err := c.Exec.Run(ctx, executable+" --version", transports.Warn())
	if err != nil {
		return false, err
	}

	if res.ExitOK && res.Stdout != "" {
		installed, err := parseReportedVersion(res.Stdout)
		if err != nil {
			return false, fmt.Errorf("%s: %w", executable, err)
		}
		if semver.Compare("v"+version, "v"+installed) <= 0 {
			log.Info().Str("executable", executable).Str("installed", installed).Str("requested", version).
				Msg("requested version already installed")
			return false, nil
		}
		log.Info().Str("executable", executable).Str("installed", installed).Msg("older version found on server")
	}

	// layout for source builds
	if _, err := c.Exec.Run(ctx, "mkdir -p ~/bin ~/opt ~/src ~/tmp ~/etc"); err != nil {
		return false, err
	}
	return true, nil
}

// parseReportedVersion extracts the version from "--version" output of
// the form "<name> <version>".
func parseReportedVersion(out string) (string, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 {
		return "", fmt.Errorf("unparseable version output %q", out)
	}
	v := fields[len(fields)-1]
	if !semver.IsValid("v" + v) {
		return "", fmt.Errorf("unparseable version %q", v)
	}
	return v, nil
}

// download fetches an archive into ~/src on the bound target and
// verifies it landed.
func download(ctx context.Context, exec transports.Executor, fileName, url string) error {
	log.Info().Str("url", url).Msg("downloading")
	if _, err := exec.Run(ctx, fmt.Sprintf("wget -O ~/src/%s %s", fileName, url)); err != nil {
		return err
	}
	res, err := exec.Run(ctx, "stat ~/src/"+fileName, transports.Warn())
	if err != nil {
		return err
	}
	if !res.ExitOK {
		return fmt.Errorf("download of %s failed", fileName)
	}
	return nil
}
