package deployment

import (
	"fmt"

	"github.com/oar-cd/launchpad/app"
	"github.com/oar-cd/launchpad/cmd/output"
	"github.com/oar-cd/launchpad/cmd/utils"
	"github.com/oar-cd/launchpad/deploy"
	"github.com/oar-cd/launchpad/domain"
	"github.com/spf13/cobra"
)

func NewCmdDeployLogs() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <deployment-id>",
		Short: "Show a deployment's log",
		Long: `Print the deployment log in order.

With --follow, keep printing new lines until the deployment is terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: runDeployLogs,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow the log until the deployment finishes")
	return cmd
}

func runDeployLogs(cmd *cobra.Command, args []string) error {
	id, err := utils.ParseDeploymentID("deploy logs", args[0])
	if err != nil {
		return err
	}
	follow, _ := cmd.Flags().GetBool("follow")

	printLine := func(line domain.LogLine) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), output.FormatLogLine(line))
		return err
	}

	service := app.GetDeploymentService()
	if follow {
		if err := service.FollowLogs(cmd.Context(), id, 0, deploy.DefaultPollInterval, printLine); err != nil {
			return utils.CommandError("following deployment log", err, "deployment_id", id)
		}
		return nil
	}

	d, err := service.Get(id)
	if err != nil {
		return utils.CommandError("retrieving deployment", err, "deployment_id", id)
	}
	for _, line := range d.Logs {
		if err := printLine(line); err != nil {
			return err
		}
	}
	return nil
}
