// Package root implements the command line interface for Launchpad.
package root

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oar-cd/launchpad/app"
	"github.com/oar-cd/launchpad/cmd/deployment"
	"github.com/oar-cd/launchpad/cmd/keygen"
	"github.com/oar-cd/launchpad/cmd/output"
	"github.com/oar-cd/launchpad/cmd/server"
	"github.com/oar-cd/launchpad/cmd/version"
	"github.com/oar-cd/launchpad/config"
	"github.com/oar-cd/launchpad/logging"
	"github.com/spf13/cobra"
)

// SkipInitAnnotation marks commands that run without the application core
const SkipInitAnnotation = "launchpad/skip-init"

// ShutdownTimeout bounds how long the CLI waits for deployments on exit
const ShutdownTimeout = 30 * time.Second

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := NewCmdRoot(config.GetDefaultDataDir()).ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func NewCmdRoot(defaultDataDir string) *cobra.Command {
	var (
		dataDir    string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "launchpad",
		Short: "Deployment orchestration for Git repositories",
		Long: `Launchpad clones Git repositories and deploys them to a container runtime,
a managed hosting platform or a simulated target. It tracks every deployment
through a persisted log and can diagnose failed builds.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipInit(cmd) {
				output.InitColors(output.NoColor.IsSet())
				return nil
			}

			// The data dir flag only overrides config when given explicitly
			cliDataDir := ""
			if cmd.Flags().Changed("data-dir") {
				cliDataDir = dataDir
			}

			cfg, err := config.NewConfigForCLI(configPath, cliDataDir)
			if err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			// CLI flags override config
			output.InitColors(!cfg.ColorEnabled || output.NoColor.IsSet())
			logging.InitLogging(logging.LogLevel.Resolve(cfg.LogLevel), cfg.LogFormat)

			if err := app.InitializeWithConfig(cfg); err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if skipInit(cmd) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			defer cancel()
			return app.Shutdown(ctx)
		},
	}

	cmd.PersistentFlags().
		StringVarP(&dataDir, "data-dir", "d", defaultDataDir, "Data directory for the database and build directories")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	cmd.PersistentFlags().VarP(logging.LogLevel, "log-level", "l", "Set log verbosity level")
	cmd.PersistentFlags().VarP(output.NoColor, "no-color", "c", "Disable colored terminal output")

	cmd.AddCommand(deployment.NewCmdDeploy())
	cmd.AddCommand(server.NewCmdServer())
	cmd.AddCommand(withoutInit(keygen.NewCmdKeygen()))
	cmd.AddCommand(withoutInit(version.NewCmdVersion()))
	return cmd
}

func withoutInit(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[SkipInitAnnotation] = "true"
	return cmd
}

func skipInit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[SkipInitAnnotation] == "true" {
			return true
		}
	}
	return false
}
