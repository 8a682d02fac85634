package commands

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"campaignsim/internal/orchestrator"
	"campaignsim/internal/platform/config"
	"campaignsim/internal/scenario"
	"campaignsim/internal/types"
)

type simulateOutput struct {
	Result   types.RunResult `json:"result"`
	Analysis types.Analysis  `json:"analysis"`
}

func loadScenario(path string) (types.Scenario, error) {
	if path == "" {
		return types.Scenario{}, errors.New("a scenario file must be given with -f or --file")
	}
	return scenario.Load(path)
}

func newSimulateCmd(scenarioPath *string) *cobra.Command {
	var (
		seed       uint64
		iterations uint32
		batches    uint32
		timeout    uint32
		asJSON     bool
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a readiness simulation for a scenario",
		Long: `Loads the scenario, runs the Monte Carlo simulation and prints metric
summaries with a launch decision. Engine defaults come from CAMPAIGNSIM_*
variables; the scenario's request block and the flags below override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScenario(*scenarioPath)
			if err != nil {
				return err
			}
			cfg, err := config.SimulationDefaults()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("batches") {
				cfg.ParallelBatches = batches
			}
			if flags.Changed("seed") {
				sc.Request.RandomSeed = &seed
			}
			if flags.Changed("iterations") {
				sc.Request.Iterations = &iterations
			}
			if flags.Changed("timeout") {
				sc.Request.TimeoutSeconds = &timeout
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			engine, err := orchestrator.NewEngine(cfg, orchestrator.WithLogger(logger))
			if err != nil {
				return err
			}
			run, err := engine.RunSimulation(cmd.Context(), sc.Workspace, sc.Nodes(), sc.Request)
			if err != nil {
				return err
			}
			analysis := orchestrator.Analyze(sc.Workspace, run)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(simulateOutput{Result: run, Analysis: analysis})
			}
			printRun(out, sc.Workspace, run, analysis)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed override")
	cmd.Flags().Uint32Var(&iterations, "iterations", 0, "Iteration override")
	cmd.Flags().Uint32Var(&batches, "batches", 0, "Parallel batch count")
	cmd.Flags().Uint32Var(&timeout, "timeout", 0, "Wall-clock budget in seconds (0 = none)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log convergence checks to stderr")
	return cmd
}
