package commands

import (
	"github.com/spf13/cobra"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/steps"
)

func newDeployCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a new release of the project",
		Long: `Deploy backs up the current database and source tree, uploads the new
source archive, installs requirements, collects static assets, runs
database migrations, syncs the supervisord configuration and restarts
the supervised programs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), "deploy", []pipeline.Step{
				steps.Login(),
				steps.EstablishSSH(),
				steps.FindRedis(),
				steps.FindCacheApp(),
				steps.FetchCacheAppInfo(),
				steps.FindApp(),
				steps.FetchAppInfo(),
				steps.BackupDB(),
				steps.BackupProject(),
				steps.Upload(),
				steps.InstallRequirements(),
				steps.CollectStatic(),
				steps.MigrateDB(),
				steps.SyncConfigs(),
				steps.RestartSupervised(),
			})
		},
	}
}
