package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"campaignsim/internal/orchestrator"
	"campaignsim/internal/platform/config"
)

func newValidateCmd(scenarioPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a scenario without running trials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(*scenarioPath)
			if err != nil {
				return err
			}
			cfg, err := config.SimulationDefaults()
			if err != nil {
				return err
			}
			engine, err := orchestrator.NewEngine(cfg)
			if err != nil {
				return err
			}
			order, err := engine.Validate(sc.Workspace, sc.Nodes(), sc.Request)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprintf(out, "scenario %s is valid\n", sc.Workspace.WorkspaceID)
			fmt.Fprintf(out, "execution order: %s\n", strings.Join(order, " -> "))
			return nil
		},
	}
}
