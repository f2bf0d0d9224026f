package steps

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
)

// PrintSummary dumps the accumulated run data for the operator: ids,
// ports, paths and the generated account password, if any.
func PrintSummary() pipeline.Step {
	return pipeline.Step{
		Name: "report.summary",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			log.Info().Str("project", c.Project.Name).Msg("successfully installed project")
			fmt.Println("--------------------------------------------")
			fmt.Println(c.Data.Summary())
			fmt.Println("--------------------------------------------")
			return pipeline.Continue()
		},
	}
}
