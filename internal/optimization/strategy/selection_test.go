package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/evolve/internal/optimization"
	"github.com/copyleftdev/evolve/internal/optimization/optimizationtest"
)

func TestCumulative(t *testing.T) {
	cumulative, err := Cumulative([]float64{10, 20, 30, 40})
	require.NoError(t, err)

	optimizationtest.AssertFloat64SlicesEqual(t, cumulative, []float64{0.10, 0.30, 0.60, 1.00}, 1e-12)
	assert.Equal(t, 1.0, cumulative[len(cumulative)-1])
}

func TestCumulativeLastEntryIsExact(t *testing.T) {
	inputs := [][]float64{
		{0.1, 0.2, 0.7},
		{1e-9, 3, 1e9},
		{0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3},
		{5},
	}
	for _, in := range inputs {
		cumulative, err := Cumulative(in)
		require.NoError(t, err)
		assert.Equal(t, 1.0, cumulative[len(cumulative)-1], "input %v", in)
	}
}

func TestCumulativeDegenerate(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
	}{
		{name: "empty", weights: nil},
		{name: "zero total", weights: []float64{0, 0, 0}},
		{name: "negative weight", weights: []float64{1, -1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Cumulative(tt.weights)
			require.Error(t, err)
			assert.True(t, optimization.IsContractViolation(err))
		})
	}
}

func TestRankProbabilitiesSumToOne(t *testing.T) {
	for p := 1; p <= 64; p++ {
		probs := RankProbabilities(p)
		require.Len(t, probs, p)
		assert.InDelta(t, 1.0, floats.Sum(probs), 1e-12, "population size %d", p)
		for r := 1; r < p; r++ {
			assert.Less(t, probs[r], probs[r-1], "rank %d of %d", r, p)
		}
	}
}

func TestSelectReturnsRequestedCount(t *testing.T) {
	pop := optimizationtest.Population(1, 2, 3, 4, 5, 6)
	rng := optimizationtest.Rand(1)

	selections := []Selection{
		RouletteWheel(WeightCost),
		RouletteWheel(WeightInverse),
		LinearRank(),
		Tournament(1),
		Tournament(3),
	}
	for _, s := range selections {
		t.Run(s.String(), func(t *testing.T) {
			for _, count := range []int{0, 2, 6, 10} {
				selected, distinct, err := Select(s, count, pop, rng)
				require.NoError(t, err)
				assert.Len(t, selected, count)
				assert.LessOrEqual(t, distinct, count)
				if count > 0 {
					assert.GreaterOrEqual(t, distinct, 1)
				}
			}
		})
	}
}

func TestSelectEmptyPopulation(t *testing.T) {
	_, _, err := Select(Tournament(2), 2, optimizationtest.Population(), optimizationtest.Rand(1))
	require.Error(t, err)
	assert.True(t, optimization.IsContractViolation(err))
}

func TestRouletteZeroTotalCost(t *testing.T) {
	_, _, err := Select(RouletteWheel(WeightCost), 2, optimizationtest.Population(0, 0, 0), optimizationtest.Rand(1))
	require.Error(t, err)
	assert.True(t, optimization.IsContractViolation(err))
}

func TestRouletteWeightingDirection(t *testing.T) {
	pop := optimizationtest.Population(1, 9)
	const draws = 4000

	count := func(s Selection) int {
		selected, _, err := Select(s, draws, pop, optimizationtest.Rand(7))
		require.NoError(t, err)
		best := 0
		for _, ind := range selected {
			if ind.Cost == 1 {
				best++
			}
		}
		return best
	}

	// Raw cost weights favour the expensive individual 9:1.
	assert.Less(t, count(RouletteWheel(WeightCost)), draws/4)
	// Mirrored weights favour the cheap one 9:1.
	assert.Greater(t, count(RouletteWheel(WeightInverse)), 3*draws/4)
}

func TestTournamentOfOneIsUniform(t *testing.T) {
	const (
		size  = 10
		draws = 20000
	)
	costs := make([]float64, size)
	for i := range costs {
		costs[i] = float64(i)
	}
	pop := optimizationtest.Population(costs...)

	selected, _, err := Select(Tournament(1), draws, pop, optimizationtest.Rand(42))
	require.NoError(t, err)

	observed := make([]float64, size)
	for _, ind := range selected {
		observed[ind.Genotype[0]]++
	}
	expected := make([]float64, size)
	for i := range expected {
		expected[i] = float64(draws) / size
	}

	chi2 := stat.ChiSquare(observed, expected)
	p := distuv.ChiSquared{K: size - 1}.Survival(chi2)
	assert.Greater(t, p, 0.001, "chi2=%v observed=%v", chi2, observed)
}

func TestLinearRankDrawFrequencies(t *testing.T) {
	const (
		size  = 5
		draws = 30000
	)
	// Raw costs are far apart; only the rank may matter.
	pop := optimizationtest.Population(1, 2, 50, 400, 10000)

	selected, _, err := Select(LinearRank(), draws, pop, optimizationtest.Rand(11))
	require.NoError(t, err)

	observed := make([]float64, size)
	for _, ind := range selected {
		observed[ind.Genotype[0]]++
	}
	expected := RankProbabilities(size)
	for i := range expected {
		expected[i] *= draws
	}

	chi2 := stat.ChiSquare(observed, expected)
	p := distuv.ChiSquared{K: size - 1}.Survival(chi2)
	assert.Greater(t, p, 0.001, "chi2=%v observed=%v", chi2, observed)

	// The best rank is drawn about P times as often as the worst.
	ratio := observed[0] / observed[size-1]
	assert.InDelta(t, float64(size), ratio, 1.0, "observed=%v", observed)
	for r := 1; r < size; r++ {
		assert.Greater(t, observed[r-1], observed[r], "rank %d drawn more often than rank %d", r, r-1)
	}
}

func TestTournamentPrefersLowCost(t *testing.T) {
	pop := optimizationtest.Population(1, 2, 3, 4, 5, 6, 7, 8)
	selected, _, err := Select(Tournament(8), 2000, pop, optimizationtest.Rand(3))
	require.NoError(t, err)

	mean := optimization.AverageCost(optimization.Population[optimizationtest.Vector](selected).Costs())
	assert.Less(t, float64(mean), 2.5)
}

func TestSelectionValidate(t *testing.T) {
	assert.NoError(t, Tournament(2).Validate())
	assert.NoError(t, LinearRank().Validate())
	assert.Error(t, Tournament(0).Validate())
	assert.Error(t, Selection{Kind: SelectionKind(99)}.Validate())
	assert.Error(t, RouletteWheel(Weighting(5)).Validate())
}
