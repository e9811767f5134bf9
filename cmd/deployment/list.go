package deployment

import (
	"fmt"

	"github.com/oar-cd/launchpad/app"
	"github.com/oar-cd/launchpad/cmd/output"
	"github.com/oar-cd/launchpad/cmd/utils"
	"github.com/spf13/cobra"
)

func NewCmdDeployList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List deployments",
		Long:  "Display all deployments, newest first, with their platform and status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			deployments, err := app.GetDeploymentService().List()
			if err != nil {
				return utils.CommandError("listing deployments", err)
			}

			out, err := output.PrintDeploymentList(deployments)
			if err != nil {
				return fmt.Errorf("failed to format deployments: %w", err)
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				return fmt.Errorf("failed to print deployments: %w", err)
			}
			return nil
		},
	}
}
