package deployment

import (
	"github.com/oar-cd/launchpad/app"
	"github.com/oar-cd/launchpad/cmd/output"
	"github.com/oar-cd/launchpad/cmd/utils"
	"github.com/oar-cd/launchpad/domain"
	"github.com/spf13/cobra"
)

func NewCmdDeployAnalyze() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <deployment-id>",
		Short: "Diagnose a deployment's log",
		Long: `Classify the deployment log. Logs with a success marker are reported
without calling the inference endpoint; anything else is explained by the
configured model, or a placeholder when the endpoint is unavailable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseDeploymentID("deploy analyze", args[0])
			if err != nil {
				return err
			}

			result, err := app.GetDeploymentService().Analyze(cmd.Context(), id)
			if err != nil {
				return utils.CommandError("analyzing deployment", err, "deployment_id", id)
			}

			if result.Severity == domain.SeverityNone {
				return output.FprintSuccess(cmd, "[%s] %s", result.Severity, result.Diagnosis)
			}
			return output.FprintWarning(cmd, "[%s] %s", result.Severity, result.Diagnosis)
		},
	}
}
