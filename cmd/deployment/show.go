package deployment

import (
	"fmt"

	"github.com/oar-cd/launchpad/app"
	"github.com/oar-cd/launchpad/cmd/output"
	"github.com/oar-cd/launchpad/cmd/utils"
	"github.com/spf13/cobra"
)

func NewCmdDeployShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <deployment-id>",
		Short: "Show deployment details",
		Long:  "Display a deployment's repository, platform, status, masked credentials and analysis.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return cmd.Help()
			}

			id, err := utils.ParseDeploymentID("deploy show", args[0])
			if err != nil {
				return err
			}

			d, err := app.GetDeploymentService().Get(id)
			if err != nil {
				return utils.CommandError("retrieving deployment", err, "deployment_id", id)
			}

			out, err := output.PrintDeploymentDetails(d)
			if err != nil {
				return fmt.Errorf("failed to format deployment details: %w", err)
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				return fmt.Errorf("failed to print deployment details: %w", err)
			}
			return nil
		},
	}
}
