package deployment

import (
	"github.com/oar-cd/launchpad/app"
	"github.com/oar-cd/launchpad/cmd/output"
	"github.com/oar-cd/launchpad/cmd/utils"
	"github.com/spf13/cobra"
)

func NewCmdDeployRemove() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <deployment-id>",
		Short: "Remove a deployment",
		Long:  "Delete a deployment, its log and, once it has finished, its build directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseDeploymentID("deploy remove", args[0])
			if err != nil {
				return err
			}

			if err := app.GetDeploymentService().Delete(id); err != nil {
				return utils.CommandError("removing deployment", err, "deployment_id", id)
			}

			return output.FprintSuccess(cmd, "Deployment %s removed", id)
		},
	}
}
