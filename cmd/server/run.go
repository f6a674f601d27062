package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/evolve/internal/assignment"
)

var (
	events   int
	slots    int
	capacity int
	density  float64
	problem  uint64
	adaptive bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single evolution and print the best schedule",
	Long: `Generates a random assignment instance, evolves it until the generation
cap or a conflict-free schedule is reached, and prints the best individual as
JSON. Population size, rates, workers and seed come from the EVO_* environment.`,
	RunE: runEvolution,
}

func init() {
	runCmd.Flags().IntVar(&events, "events", 60, "Number of events")
	runCmd.Flags().IntVar(&slots, "slots", 10, "Number of timeslots")
	runCmd.Flags().IntVar(&capacity, "capacity", 0, "Events per slot without penalty (0 = unlimited)")
	runCmd.Flags().Float64Var(&density, "density", 0.15, "Probability that two events conflict")
	runCmd.Flags().Uint64Var(&problem, "problem-seed", 1, "Seed of the generated instance")
	runCmd.Flags().BoolVar(&adaptive, "adaptive", false, "Enable the regime and success-rate controllers")
}

func runEvolution(cmd *cobra.Command, _ []string) error {
	evo := cfg.Evolution
	solverCfg := assignment.SolverConfig{
		Problem: assignment.RandomConfig{
			Events:   events,
			Slots:    slots,
			Capacity: capacity,
			Density:  density,
			Seed:     problem,
		},
		PopulationSize: evo.PopulationSize,
		Generations:    evo.MaxGenerations,
		MutationRate:   evo.MutationRate,
		CrossoverRate:  &evo.CrossoverRate,
		Workers:        evo.Workers,
		Seed:           evo.Seed,
		Adaptive:       adaptive,
	}

	engine, err := assignment.NewSolver(solverCfg, logger.Zap(), nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	pop, err := engine.Run(ctx)
	if err != nil && len(pop) == 0 {
		return fmt.Errorf("evolution failed: %w", err)
	}

	rd := engine.RuntimeData()
	logger.Info("Evolution finished", map[string]interface{}{
		"generations":  rd.Generation,
		"best":         float64(rd.Best),
		"mean":         float64(rd.Mean),
		"success_rate": rd.SuccessRate,
		"elapsed":      time.Since(start).String(),
		"interrupted":  err != nil,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(assignment.NewSolution(pop.Best()))
}
