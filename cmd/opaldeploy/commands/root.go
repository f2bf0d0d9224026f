// Package commands wires the top-level CLI commands. Each command is a
// fixed, ordered list of pipeline steps; all orchestration logic lives
// in the step and provisioner packages.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	strict     bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "opaldeploy",
		Short: "opaldeploy - provision and deploy web apps on shared hosting",
		Long: `opaldeploy installs and deploys web applications onto a shared-hosting
control panel: it creates the account, apps, databases and cache
instances through the panel API, then configures and starts a
supervisord process supervisor on the server over SSH.

Every provisioning step is find-before-create, so commands can be
re-invoked safely after an interruption.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "project config file path (default opaldeploy.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "exit non-zero when the pipeline halts")

	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newRollbackCommand())
	rootCmd.AddCommand(newTestCommand())
	rootCmd.AddCommand(newEnvCommand())

	return rootCmd
}
