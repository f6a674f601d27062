package assignment

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/copyleftdev/evolve/internal/optimization/dynamics"
	"github.com/copyleftdev/evolve/internal/optimization/genetic"
	"github.com/copyleftdev/evolve/internal/optimization/strategy"
)

// Engine is the evolution engine specialised to schedules.
type Engine = genetic.Engine[Schedule, *Context]

// SolverConfig describes one run against a generated instance.
type SolverConfig struct {
	Problem        RandomConfig `json:"problem"`
	PopulationSize int          `json:"population_size"`
	Generations    int          `json:"generations"`
	MutationRate   float64      `json:"mutation_rate"`
	// CrossoverRate is the recombination probability; nil means always.
	CrossoverRate *float64 `json:"crossover_rate,omitempty"`
	Workers       int      `json:"workers"`
	Seed          uint64   `json:"seed"`
	// Adaptive enables the regime and success-rate controllers.
	Adaptive bool `json:"adaptive"`
}

// Validate checks the fields the builder does not see.
func (c SolverConfig) Validate() error {
	if c.Generations <= 0 {
		return fmt.Errorf("assignment: generations must be positive, got %d", c.Generations)
	}
	if c.Workers < 0 {
		return fmt.Errorf("assignment: workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// NewSolver builds an engine for cfg. Snapshots may be nil.
func NewSolver(cfg SolverConfig, logger *zap.Logger, snapshots chan<- genetic.Snapshot) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	problem, err := RandomProblem(cfg.Problem)
	if err != nil {
		return nil, err
	}

	b := genetic.NewBuilder().
		PopulationSize(cfg.PopulationSize).
		MutationRate(cfg.MutationRate).
		Selection(strategy.Tournament(3)).
		Crossover(strategy.Uniform()).
		Mutation(strategy.UniformReplace()).
		Rejection(strategy.BetterThanWorseParent()).
		Replacement(strategy.Elite(0.1)).
		Termination(strategy.Any(strategy.ObjectiveReached(0), strategy.Generations(cfg.Generations)))
	if cfg.CrossoverRate != nil {
		b = b.CrossoverRate(*cfg.CrossoverRate)
	}
	params, err := b.Build()
	if err != nil {
		return nil, err
	}

	var controllers []genetic.Controller
	if cfg.Adaptive {
		regime := dynamics.DefaultRegime()
		regime.Logger = logger
		controllers = append(controllers,
			dynamics.Regime(regime),
			dynamics.SuccessStdDev(0.2, 0.5),
		)
	}

	return genetic.NewEngine(genetic.Config[Schedule, *Context]{
		Encoding:   Encoding(),
		Context:    NewContext(problem),
		Parameters: params,
		Dynamics:   controllers,
		Workers:    cfg.Workers,
		Seed:       cfg.Seed,
		Logger:     logger,
		Snapshots:  snapshots,
	})
}
