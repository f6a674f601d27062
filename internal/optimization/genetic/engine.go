package genetic

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/evolve/internal/optimization"
	"github.com/copyleftdev/evolve/internal/optimization/strategy"
)

// Controller adapts parameters and context tunables from observed progress.
// Setup runs once before the first generation, Exec after every generation.
// Both run on the loop goroutine while no parallel work is in flight. The
// parameters are validated after every round of controller calls, and a
// controller with a Validate() error method is checked by NewEngine.
type Controller interface {
	Setup(rd *RuntimeData, params *Parameters, t *optimization.Tunables)
	Exec(rd *RuntimeData, params *Parameters, t *optimization.Tunables)
}

// State is the phase the engine is in.
type State int

const (
	StateInitializing State = iota
	StateEvaluating
	StateSelecting
	StateReproducing
	StateReplacing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateEvaluating:
		return "evaluating"
	case StateSelecting:
		return "selecting"
	case StateReproducing:
		return "reproducing"
	case StateReplacing:
		return "replacing"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config contains everything needed to construct an engine.
type Config[G any, C optimization.Context] struct {
	// Encoding generates and evaluates genotypes.
	Encoding optimization.Encoding[G, C]

	// Context is the problem state shared by every individual.
	Context C

	// Parameters are the initial run parameters. The engine works on its
	// own copy.
	Parameters *Parameters

	// Dynamics are invoked in order after every generation.
	Dynamics []Controller

	// Workers bounds the parallel evaluation; 0 means GOMAXPROCS.
	Workers int

	// Seed for the master random number generator; 0 picks a time-based seed.
	Seed uint64

	// Logger receives run progress; nil disables logging.
	Logger *zap.Logger

	// Snapshots, if set, receives one snapshot per generation. Sends never
	// block; snapshots are dropped while the reader is behind.
	Snapshots chan<- Snapshot
}

// Engine runs the generational loop.
type Engine[G optimization.Genotype[G, C], C optimization.Context] struct {
	cfg    Config[G, C]
	params *Parameters
	rd     *RuntimeData
	pop    optimization.Population[G]
	index  optimization.CostIndex
	rng    *rand.Rand
	pool   workerPool
	logger *zap.Logger
	state  State
}

// NewEngine validates cfg and creates an engine ready to Run.
func NewEngine[G optimization.Genotype[G, C], C optimization.Context](cfg Config[G, C]) (*Engine[G, C], error) {
	if cfg.Encoding.Generator == nil || cfg.Encoding.Phenotype == nil {
		return nil, optimization.Violation("engine", "new", "encoding needs a generator and a phenotype")
	}
	if cfg.Parameters == nil {
		return nil, optimization.Violation("engine", "new", "parameters are required")
	}
	if err := cfg.Parameters.Validate(); err != nil {
		return nil, err
	}
	if cfg.Context.Tunables() == nil {
		return nil, optimization.Violation("engine", "new", "context has no tunables")
	}
	for _, d := range cfg.Dynamics {
		if v, ok := d.(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				return nil, err
			}
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine[G, C]{
		cfg:    cfg,
		params: cfg.Parameters.Clone(),
		rd:     NewRuntimeData(),
		rng:    optimization.NewRand(seed),
		pool:   newWorkerPool(cfg.Workers),
		logger: logger.With(zap.Uint64("seed", seed)),
		state:  StateInitializing,
	}, nil
}

// State returns the current phase.
func (e *Engine[G, C]) State() State {
	return e.state
}

// Parameters returns the live parameters. Only read them between runs or
// from a controller.
func (e *Engine[G, C]) Parameters() *Parameters {
	return e.params
}

// RuntimeData returns a copy of the latest statistics.
func (e *Engine[G, C]) RuntimeData() RuntimeData {
	return e.rd.Copy()
}

// Run evolves the population until the termination strategy holds and
// returns it sorted. Cancellation of ctx is honoured between generations; the
// current population is returned together with the context error. Contract
// violations abort the run immediately.
func (e *Engine[G, C]) Run(ctx context.Context) (optimization.Population[G], error) {
	if e.state != StateInitializing {
		return nil, optimization.Violation("engine", "run", "engine is %s, runs are single-use", e.state)
	}

	if err := e.initialize(); err != nil {
		e.state = StateTerminated
		e.logger.Error("evolution aborted during initialization", zap.Error(err))
		return nil, err
	}
	e.logger.Info("evolution started",
		zap.Int("population_size", e.params.PopulationSize),
		zap.Int("workers", e.pool.workers),
		zap.Stringer("parameters", e.params),
		zap.Float64("best", float64(e.rd.Best)),
	)

	for {
		if err := ctx.Err(); err != nil {
			e.state = StateTerminated
			e.logger.Info("evolution cancelled", zap.Int("generation", e.rd.Generation), zap.Error(err))
			return e.pop, err
		}

		if err := e.generation(); err != nil {
			e.state = StateTerminated
			e.logger.Error("evolution aborted", zap.Int("generation", e.rd.Generation), zap.Error(err))
			return nil, optimization.WrapError(err, fmt.Sprintf("generation %d", e.rd.Generation))
		}

		if e.params.Termination.Check(e.rd.Generation, e.rd) {
			e.state = StateTerminated
			e.logger.Info("evolution terminated",
				zap.Int("generation", e.rd.Generation),
				zap.Float64("best", float64(e.rd.Best)),
				zap.Float64("mean", float64(e.rd.Mean)),
			)
			return e.pop, nil
		}
	}
}

// initialize generates, evaluates and sorts the first population and sets
// up the controllers.
func (e *Engine[G, C]) initialize() error {
	size := e.params.PopulationSize
	genotypes := e.cfg.Encoding.Generator.Generate(size, e.cfg.Context, e.rng)
	if len(genotypes) != size {
		return optimization.Violation("engine", "initialize", "generator returned %d genotypes, want %d", len(genotypes), size)
	}

	e.state = StateEvaluating
	e.pop = make(optimization.Population[G], size)
	err := e.pool.forEach(size, func(i int) error {
		e.pop[i] = optimization.Individual[G]{
			Genotype: genotypes[i],
			Cost:     e.cfg.Encoding.Evaluate(genotypes[i], e.cfg.Context),
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := sortPopulation(e.pool, e.pop); err != nil {
		return err
	}

	initializeRuntimeData(e.rd, e.pop)
	e.index = optimization.NewCostIndex(e.pop)

	tunables := e.cfg.Context.Tunables()
	for _, d := range e.cfg.Dynamics {
		d.Setup(e.rd, e.params, tunables)
	}
	if err := e.params.Validate(); err != nil {
		return optimization.WrapError(err, "parameters invalid after dynamics setup")
	}
	e.emit()
	return nil
}

// family is the output of one parent pair.
type family[G any] struct {
	survivors [2]optimization.Individual[G]
	hits      int
	elapsed   time.Duration
}

// generation advances the population by one generation.
func (e *Engine[G, C]) generation() error {
	size := e.params.PopulationSize
	if len(e.pop) != size {
		return optimization.Violation("engine", "generation", "population size changed from %d to %d", len(e.pop), size)
	}
	e.rd.Generation++

	// Parallel tasks only see this copy; controllers write e.params after
	// the barrier.
	params := e.params.Clone()
	replacement := params.Replacement

	e.state = StateSelecting
	eliteSize := replacement.EliteSize(size)
	selectionSize := replacement.SelectionSize(size)
	if selectionSize%2 == 1 {
		selectionSize++
	}

	parents, distinct, err := strategy.Select(params.Selection, selectionSize, e.pop, e.rng)
	if err != nil {
		return err
	}
	if len(parents) != selectionSize {
		return optimization.Violation("engine", "select", "%s returned %d parents, want %d", params.Selection, len(parents), selectionSize)
	}

	e.state = StateReproducing
	pairs := selectionSize / 2
	seeds := make([][2]uint64, pairs)
	for i := range seeds {
		seeds[i] = [2]uint64{e.rng.Uint64(), e.rng.Uint64()}
	}

	families := make([]family[G], pairs)
	err = e.pool.forEach(pairs, func(i int) error {
		f, err := e.reproduce(params, parents[2*i], parents[2*i+1], seeds[i])
		if err != nil {
			return err
		}
		families[i] = f
		return nil
	})
	if err != nil {
		return err
	}

	offspring := make([]optimization.Individual[G], 0, selectionSize)
	hits := 0
	times := make([]time.Duration, pairs)
	for i, f := range families {
		offspring = append(offspring, f.survivors[0], f.survivors[1])
		hits += f.hits
		times[i] = f.elapsed
	}
	if slots := replacement.OffspringSlots(size); len(offspring) > slots {
		offspring = offspring[:slots]
	}
	offspringMean := optimization.AverageCost(optimization.Population[G](offspring).Costs())

	e.state = StateReplacing
	if err := strategy.Replace(replacement, e.pop, offspring); err != nil {
		return err
	}
	if err := sortPopulation(e.pool, e.pop); err != nil {
		return err
	}
	if err := e.pop.Validate(size); err != nil {
		return err
	}

	updateRuntimeData(e.rd, e.pop, generationStats{
		offspringMean:    offspringMean,
		eliteCount:       eliteSize,
		selectedCount:    selectionSize,
		distinctSelected: distinct,
		cacheHits:        hits,
		executionTimes:   times,
	})

	tunables := e.cfg.Context.Tunables()
	for _, d := range e.cfg.Dynamics {
		d.Exec(e.rd, e.params, tunables)
	}
	if err := e.params.Validate(); err != nil {
		return optimization.WrapError(err, "parameters invalid after dynamics")
	}
	e.index = optimization.NewCostIndex(e.pop)

	e.logger.Debug("generation complete",
		zap.Int("generation", e.rd.Generation),
		zap.Float64("best", float64(e.rd.Best)),
		zap.Float64("worst", float64(e.rd.Worst)),
		zap.Float64("mean", float64(e.rd.Mean)),
		zap.Bool("improved", e.rd.Improved),
		zap.Float64("success_rate", e.rd.SuccessRate),
		zap.Int("distinct_selected", distinct),
		zap.Int("cache_hits", hits),
	)
	e.emit()
	e.state = StateEvaluating
	return nil
}

// reproduce recombines, mutates, evaluates and filters one parent pair. It
// runs on a worker and must not touch shared mutable state.
func (e *Engine[G, C]) reproduce(params *Parameters, a, b optimization.Individual[G], seed [2]uint64) (family[G], error) {
	start := time.Now()
	rng := rand.New(rand.NewPCG(seed[0], seed[1]))

	genA, genB := strategy.Recombine(params.Crossover, a.Genotype, b.Genotype, params.CrossoverRate, rng)
	if _, err := strategy.Mutate(params.Mutation, genA, params.MutationRate, rng, e.cfg.Context); err != nil {
		return family[G]{}, err
	}
	if _, err := strategy.Mutate(params.Mutation, genB, params.MutationRate, rng, e.cfg.Context); err != nil {
		return family[G]{}, err
	}

	hits := 0
	childA := optimization.Individual[G]{Genotype: genA, Cost: e.evaluate(genA, &hits)}
	childB := optimization.Individual[G]{Genotype: genB, Cost: e.evaluate(genB, &hits)}

	s0, s1 := strategy.Reject(params.Rejection, a, b, childA, childB)
	return family[G]{
		survivors: [2]optimization.Individual[G]{s0, s1},
		hits:      hits,
		elapsed:   time.Since(start),
	}, nil
}

// evaluate returns the cost of g, reusing the cost of an identical genotype
// from the previous population when there is one.
func (e *Engine[G, C]) evaluate(g G, hits *int) optimization.Cost {
	if cost, ok := e.index[optimization.Fingerprint(g)]; ok {
		*hits++
		return cost
	}
	return e.cfg.Encoding.Evaluate(g, e.cfg.Context)
}

func (e *Engine[G, C]) emit() {
	if e.cfg.Snapshots == nil {
		return
	}
	s := newSnapshot(e.rd, e.pop, e.params, e.cfg.Context.Tunables())
	if !publish(e.cfg.Snapshots, s) {
		e.logger.Debug("snapshot dropped", zap.Int("generation", s.Generation))
	}
}
