package genetic

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/copyleftdev/evolve/internal/optimization"
	"github.com/copyleftdev/evolve/internal/optimization/optimizationtest"
	"github.com/copyleftdev/evolve/internal/optimization/strategy"
)

func testParameters(t *testing.T, size int, term strategy.Termination) *Parameters {
	t.Helper()
	params, err := NewBuilder().
		PopulationSize(size).
		CrossoverRate(0.9).
		MutationRate(0.05).
		Selection(strategy.Tournament(3)).
		Crossover(strategy.Uniform()).
		Mutation(strategy.UniformReplace()).
		Rejection(strategy.BetterThanWorseParent()).
		Replacement(strategy.EliteAbsolute(2)).
		Termination(term).
		Build()
	require.NoError(t, err)
	return params
}

func testConfig(t *testing.T, params *Parameters) Config[optimizationtest.Vector, *optimizationtest.Context] {
	t.Helper()
	return Config[optimizationtest.Vector, *optimizationtest.Context]{
		Encoding:   optimizationtest.Encoding(),
		Context:    optimizationtest.NewContext([]int{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8}, 10),
		Parameters: params,
		Workers:    4,
		Seed:       2024,
		Logger:     zaptest.NewLogger(t),
	}
}

func TestEngineInvariantsEveryGeneration(t *testing.T) {
	const (
		size        = 30
		generations = 60
	)
	snapshots := make(chan Snapshot, generations+1)
	cfg := testConfig(t, testParameters(t, size, strategy.Generations(generations)))
	cfg.Snapshots = snapshots

	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	pop, err := engine.Run(context.Background())
	require.NoError(t, err)
	close(snapshots)

	require.NoError(t, pop.Validate(size))
	assert.Equal(t, StateTerminated, engine.State())
	assert.Equal(t, generations, engine.RuntimeData().Generation)

	expected := 0
	var prevBest optimization.Cost
	for s := range snapshots {
		assert.Equal(t, expected, s.Generation)
		total := 0
		for _, n := range s.Diversity {
			total += n
		}
		assert.Equal(t, size, total, "generation %d", s.Generation)
		assert.LessOrEqual(t, s.Best, s.Worst)
		assert.LessOrEqual(t, s.Best, s.Mean)
		if s.Generation > 0 {
			// Elitism never loses the best individual.
			assert.LessOrEqual(t, s.Best, prevBest)
		}
		prevBest = s.Best
		expected++
	}
	assert.Equal(t, generations+1, expected)
}

func TestEngineGenerationCap(t *testing.T) {
	for _, n := range []int{1, 2, 17} {
		engine, err := NewEngine(testConfig(t, testParameters(t, 10, strategy.Generations(n))))
		require.NoError(t, err)

		_, err = engine.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, n, engine.RuntimeData().Generation)
	}
}

func TestEngineObjectiveReached(t *testing.T) {
	term := strategy.Any(strategy.ObjectiveReached(0), strategy.Generations(2000))
	engine, err := NewEngine(testConfig(t, testParameters(t, 40, term)))
	require.NoError(t, err)

	pop, err := engine.Run(context.Background())
	require.NoError(t, err)

	rd := engine.RuntimeData()
	if rd.Generation < 2000 {
		assert.Equal(t, optimization.Cost(0), pop.Best().Cost)
	}
	assert.Equal(t, pop.Best().Cost, rd.Best)
}

func TestEngineIsDeterministicForSeed(t *testing.T) {
	run := func(workers int) optimization.Population[optimizationtest.Vector] {
		cfg := testConfig(t, testParameters(t, 24, strategy.Generations(25)))
		cfg.Workers = workers
		engine, err := NewEngine(cfg)
		require.NoError(t, err)
		pop, err := engine.Run(context.Background())
		require.NoError(t, err)
		return pop
	}

	assert.Equal(t, run(1), run(8))
}

func TestEngineOddSelectionRoundsUp(t *testing.T) {
	params := testParameters(t, 5, strategy.Generations(3))
	params.Replacement = strategy.Full()

	engine, err := NewEngine(testConfig(t, params))
	require.NoError(t, err)
	pop, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, pop, 5)
	rd := engine.RuntimeData()
	assert.Equal(t, 6, rd.SelectedCount)
	assert.Equal(t, 0, rd.EliteCount)
	// One timing per parent pair.
	assert.Len(t, rd.ExecutionTimes, 3)
}

// scenarioGenerator yields genotypes whose single unit equals their cost
// against a zero target.
type scenarioGenerator struct {
	values []int
}

func (g scenarioGenerator) Generate(amount int, _ *optimizationtest.Context, _ *rand.Rand) []optimizationtest.Vector {
	out := make([]optimizationtest.Vector, amount)
	for i := range out {
		out[i] = optimizationtest.Vector{g.values[i]}
	}
	return out
}

func TestEngineEliteSurvivesScenario(t *testing.T) {
	params, err := NewBuilder().
		PopulationSize(4).
		MutationRate(1).
		Selection(strategy.Tournament(1)).
		Crossover(strategy.SinglePoint()).
		Mutation(strategy.UniformReplace()).
		Replacement(strategy.EliteAbsolute(1)).
		Termination(strategy.Generations(1)).
		Build()
	require.NoError(t, err)

	for seed := uint64(1); seed <= 20; seed++ {
		cfg := Config[optimizationtest.Vector, *optimizationtest.Context]{
			Encoding: optimization.Encoding[optimizationtest.Vector, *optimizationtest.Context]{
				Generator: scenarioGenerator{values: []int{5, 3, 8, 1}},
				Phenotype: optimizationtest.Distance{},
			},
			Context:    optimizationtest.NewContext([]int{0}, 10),
			Parameters: params,
			Workers:    2,
			Seed:       seed,
		}
		engine, err := NewEngine(cfg)
		require.NoError(t, err)

		pop, err := engine.Run(context.Background())
		require.NoError(t, err)
		require.NoError(t, pop.Validate(4))
		assert.Equal(t, 4, engine.RuntimeData().SelectedCount)
		assert.Contains(t, pop, optimization.Individual[optimizationtest.Vector]{Genotype: optimizationtest.Vector{1}, Cost: 1}, "seed %d", seed)
	}
}

type recordingController struct {
	name  string
	calls *[]string
}

func (c recordingController) Setup(*RuntimeData, *Parameters, *optimization.Tunables) {
	*c.calls = append(*c.calls, "setup:"+c.name)
}

func (c recordingController) Exec(*RuntimeData, *Parameters, *optimization.Tunables) {
	*c.calls = append(*c.calls, "exec:"+c.name)
}

func TestEngineRunsDynamicsInOrder(t *testing.T) {
	var calls []string
	cfg := testConfig(t, testParameters(t, 8, strategy.Generations(2)))
	cfg.Dynamics = []Controller{
		recordingController{name: "a", calls: &calls},
		recordingController{name: "b", calls: &calls},
	}

	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	_, err = engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"setup:a", "setup:b", "exec:a", "exec:b", "exec:a", "exec:b"}, calls)
}

type resizingController struct{}

func (resizingController) Setup(*RuntimeData, *Parameters, *optimization.Tunables) {}

func (resizingController) Exec(_ *RuntimeData, p *Parameters, _ *optimization.Tunables) {
	p.PopulationSize++
}

func TestEngineFailsFastOnSizeDrift(t *testing.T) {
	cfg := testConfig(t, testParameters(t, 8, strategy.Generations(5)))
	cfg.Dynamics = []Controller{resizingController{}}

	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	pop, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, pop)
	assert.True(t, optimization.IsContractViolation(err))
}

// corruptingController breaks a parameter once the given generation is
// reached; generation 0 corrupts during Setup.
type corruptingController struct {
	at      int
	corrupt func(*Parameters)
}

func (c corruptingController) Setup(rd *RuntimeData, p *Parameters, _ *optimization.Tunables) {
	if c.at == 0 {
		c.corrupt(p)
	}
}

func (c corruptingController) Exec(rd *RuntimeData, p *Parameters, _ *optimization.Tunables) {
	if c.at > 0 && rd.Generation >= c.at {
		c.corrupt(p)
	}
}

func TestEngineFailsFastOnInvalidParameters(t *testing.T) {
	tests := []struct {
		name    string
		at      int
		corrupt func(*Parameters)
	}{
		{
			name:    "mutation rate above one",
			at:      3,
			corrupt: func(p *Parameters) { p.MutationRate = 2.3 },
		},
		{
			name:    "negative crossover rate",
			at:      1,
			corrupt: func(p *Parameters) { p.CrossoverRate = Rate(-0.5) },
		},
		{
			name:    "unknown selection kind",
			at:      2,
			corrupt: func(p *Parameters) { p.Selection = strategy.Selection{Kind: strategy.SelectionKind(42)} },
		},
		{
			name:    "corrupted during setup",
			at:      0,
			corrupt: func(p *Parameters) { p.Mutation = strategy.Mutation{Kind: strategy.MutationKind(42)} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, testParameters(t, 8, strategy.Generations(10)))
			cfg.Dynamics = []Controller{corruptingController{at: tt.at, corrupt: tt.corrupt}}

			engine, err := NewEngine(cfg)
			require.NoError(t, err)
			pop, err := engine.Run(context.Background())
			require.Error(t, err)
			assert.Nil(t, pop)
			assert.True(t, optimization.IsContractViolation(err))
			assert.Equal(t, tt.at, engine.RuntimeData().Generation)
			assert.Equal(t, StateTerminated, engine.State())
		})
	}
}

func TestEngineFailsFastOnShortGenerator(t *testing.T) {
	cfg := testConfig(t, testParameters(t, 8, strategy.Generations(5)))
	cfg.Encoding.Generator = shortGenerator{}

	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	_, err = engine.Run(context.Background())
	require.Error(t, err)
	assert.True(t, optimization.IsContractViolation(err))
}

type shortGenerator struct{}

func (shortGenerator) Generate(amount int, ctx *optimizationtest.Context, rng *rand.Rand) []optimizationtest.Vector {
	return optimizationtest.Generator{}.Generate(amount-1, ctx, rng)
}

func TestEngineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine, err := NewEngine(testConfig(t, testParameters(t, 8, strategy.Generations(100))))
	require.NoError(t, err)

	pop, err := engine.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, pop.Validate(8))
	assert.Equal(t, 0, engine.RuntimeData().Generation)

	_, err = engine.Run(context.Background())
	assert.True(t, optimization.IsContractViolation(err))
}

func TestEngineCountsCacheHits(t *testing.T) {
	params := testParameters(t, 16, strategy.Generations(10))
	params.MutationRate = 0
	params.Crossover = strategy.NoCrossover()

	engine, err := NewEngine(testConfig(t, params))
	require.NoError(t, err)
	_, err = engine.Run(context.Background())
	require.NoError(t, err)

	// Without recombination or mutation every child is a parent copy.
	rd := engine.RuntimeData()
	assert.Equal(t, rd.SelectedCount, rd.CacheHits)
}

func TestNewEngineRejectsIncompleteConfig(t *testing.T) {
	cfg := testConfig(t, testParameters(t, 8, strategy.Generations(1)))

	noParams := cfg
	noParams.Parameters = nil
	_, err := NewEngine(noParams)
	assert.True(t, optimization.IsContractViolation(err))

	noEncoding := cfg
	noEncoding.Encoding.Phenotype = nil
	_, err = NewEngine(noEncoding)
	assert.True(t, optimization.IsContractViolation(err))
}
