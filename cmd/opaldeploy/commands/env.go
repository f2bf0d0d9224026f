package commands

import (
	"github.com/spf13/cobra"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
	"github.com/opaldeploy/opaldeploy/pkg/steps"
)

func newEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the remote .env file",
		Long: `Env connects to the account and lists the variables in the deployed
.env file. It is read-only apart from touching the file into existence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), "env", []pipeline.Step{
				steps.Login(),
				steps.EstablishSSH(),
				steps.FetchAppInfo(),
				steps.ListEnv(),
			})
		},
	}
}
