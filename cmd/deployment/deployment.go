// Package deployment provides commands for submitting and inspecting deployments.
package deployment

import "github.com/spf13/cobra"

func NewCmdDeploy() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Submit and inspect deployments",
	}

	cmd.AddCommand(NewCmdDeploySubmit())
	cmd.AddCommand(NewCmdDeployList())
	cmd.AddCommand(NewCmdDeployShow())
	cmd.AddCommand(NewCmdDeployLogs())
	cmd.AddCommand(NewCmdDeployAnalyze())
	cmd.AddCommand(NewCmdDeployRemove())
	return cmd
}
