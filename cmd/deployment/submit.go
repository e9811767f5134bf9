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

func NewCmdDeploySubmit() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <repository-url>",
		Short: "Deploy a repository",
		Long: `Clone a repository and deploy it to the selected platform.

The deployment runs inside this process, so the command follows its log
until it reaches DEPLOYED or FAILED.

Platforms:
- Docker: build an image and run it locally
- Vercel: deploy through the Vercel CLI (requires --credential "Vercel Token=<token>")
- Simulated (default): exercise the pipeline without side effects`,
		Args: cobra.ExactArgs(1),
		RunE: runDeploySubmit,
	}

	cmd.Flags().StringP("platform", "p", "Simulated", "Target platform: Docker, Vercel or Simulated")
	cmd.Flags().StringArrayP("credential", "C", nil, `Platform credential as key=value, e.g. "Username=acme" (repeatable)`)
	return cmd
}

func runDeploySubmit(cmd *cobra.Command, args []string) error {
	platform, _ := cmd.Flags().GetString("platform")
	pairs, _ := cmd.Flags().GetStringArray("credential")

	credentials, err := utils.ParseCredentials(pairs)
	if err != nil {
		return err
	}

	service := app.GetDeploymentService()
	d, err := service.Submit(args[0], platform, credentials)
	if err != nil {
		return utils.CommandError("submitting deployment", err, "repository_url", args[0])
	}

	if err := output.FprintPlain(cmd, "Deployment %s queued (%s)\n", d.ID, d.Platform); err != nil {
		return err
	}

	err = service.FollowLogs(cmd.Context(), d.ID, 0, deploy.DefaultPollInterval, func(line domain.LogLine) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), output.FormatLogLine(line))
		return err
	})
	if err != nil {
		return utils.CommandError("following deployment log", err, "deployment_id", d.ID)
	}

	final, err := service.Get(d.ID)
	if err != nil {
		return utils.CommandError("retrieving deployment", err, "deployment_id", d.ID)
	}

	if final.Status == domain.DeploymentStatusDeployed {
		return output.FprintSuccess(cmd, "\nDeployment %s finished: %s", d.ID, final.Status)
	}
	return fmt.Errorf("deployment %s finished: %s", d.ID, final.Status)
}
