package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"campaignsim/internal/platform/config"
)

// NewRootCmd builds the simctl command tree.
func NewRootCmd() *cobra.Command {
	var (
		scenarioPath string
		envFile      string
	)
	root := &cobra.Command{
		Use:   "simctl",
		Short: "simctl estimates campaign launch readiness",
		Long: `simctl runs deterministic Monte Carlo simulations of a campaign workflow
against a workspace's budget, approval policy and connectors, and reports
readiness, policy, cost and risk summaries with a launch recommendation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
	}
	root.PersistentFlags().StringVarP(&scenarioPath, "file", "f", "", "Path to the scenario file (YAML or JSON)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file with CAMPAIGNSIM_* defaults")

	root.AddCommand(
		newSimulateCmd(&scenarioPath),
		newValidateCmd(&scenarioPath),
		newSampleCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "simctl:", err)
		os.Exit(1)
	}
}
