package commands

import (
	"github.com/spf13/cobra"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/steps"
)

func newRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Restore the backups taken by the last deploy",
		Long: `Rollback restores the database dump and source tree backup written by
the most recent deploy, then syncs the supervisord configuration and
restarts the supervised programs. It halts if no backup exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), "rollback", []pipeline.Step{
				steps.Login(),
				steps.EstablishSSH(),
				steps.FindRedis(),
				steps.FindCacheApp(),
				steps.FetchCacheAppInfo(),
				steps.FindApp(),
				steps.FetchAppInfo(),
				steps.RestoreDB(),
				steps.RestoreProject(),
				steps.SyncConfigs(),
				steps.RestartSupervised(),
			})
		},
	}
}
