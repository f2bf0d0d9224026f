package commands

import (
	"github.com/spf13/cobra"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/steps"
)

func newInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Provision the account, apps and databases, then deploy",
		Long: `Install provisions everything the project needs on the control panel
and the server: the shell account, SSH access, the Python toolchain, the
Redis cache app, the application and supervisor apps, the virtualenv,
the database, and the supervisord configuration. It finishes by starting
supervisord and printing a summary of everything it created.

Install is idempotent: resources that already exist are found and
reused, so it can be re-run after a partial failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), "install", []pipeline.Step{
				steps.Login(),
				steps.ResolveServer(),
				steps.FindAccount(),
				steps.CreateAccount(),
				steps.FetchAccountInfo(),
				steps.EstablishSSH(),
				steps.InstallPython(),
				steps.FindPython(),
				steps.InstallRedis(),
				steps.FindRedis(),
				steps.FindCacheApp(),
				steps.CreateCacheApp(),
				steps.FetchCacheAppInfo(),
				steps.FindApp(),
				steps.CreateApp(),
				steps.FetchAppInfo(),
				steps.CreateVirtualenv(),
				steps.Upload(),
				steps.InstallRequirements(),
				steps.CollectStatic(),
				steps.FindDatabase(),
				steps.CreateDatabase(),
				steps.InstallSupervisor(),
				steps.FindSupervisorApp(),
				steps.CreateSupervisorApp(),
				steps.WriteConfigs(),
				steps.StartSupervisor(),
				steps.PrintSummary(),
			})
		},
	}
}
