package commands

import (
	"github.com/spf13/cobra"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/steps"
)

func newTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Verify connectivity to the control panel and the server",
		Long: `Test logs into the control panel API, establishes the SSH connection
to the account and checks the virtualenv, without changing any deployed
code. Use it to validate a config file before an install or deploy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), "test", []pipeline.Step{
				steps.Login(),
				steps.EstablishSSH(),
				steps.FindApp(),
				steps.FetchAppInfo(),
				steps.CreateVirtualenv(),
			})
		},
	}
}
