package optimization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/evolve/internal/optimization"
	"github.com/copyleftdev/evolve/internal/optimization/optimizationtest"
)

func TestAverageCost(t *testing.T) {
	tests := []struct {
		name   string
		values []optimization.Cost
		want   optimization.Cost
	}{
		{name: "empty", values: nil, want: 0},
		{name: "single", values: []optimization.Cost{4}, want: 4},
		{name: "several", values: []optimization.Cost{1, 2, 3, 6}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, float64(tt.want), float64(optimization.AverageCost(tt.values)), 1e-12)
		})
	}
}

func TestCostDistribution(t *testing.T) {
	got := optimization.CostDistribution([]optimization.Cost{3.7, 1.2, 3.1, 1.9, 0.5})

	assert.Equal(t, []optimization.Bucket{
		{Value: 0, Count: 1},
		{Value: 1, Count: 2},
		{Value: 3, Count: 2},
	}, got)
}

func TestCostDistributionTruncatesTowardZero(t *testing.T) {
	got := optimization.CostDistribution([]optimization.Cost{-2.5, -0.5, 0.5, -1, -1.9})

	assert.Equal(t, []optimization.Bucket{
		{Value: -2, Count: 1},
		{Value: -1, Count: 2},
		{Value: 0, Count: 2},
	}, got)
}

func TestPopulationValidate(t *testing.T) {
	tests := []struct {
		name    string
		pop     optimization.Population[optimizationtest.Vector]
		size    int
		wantErr bool
	}{
		{name: "valid", pop: optimizationtest.Population(1, 2, 3), size: 3},
		{name: "empty", pop: optimizationtest.Population(), size: 3, wantErr: true},
		{name: "wrong size", pop: optimizationtest.Population(1, 2), size: 3, wantErr: true},
		{name: "unsorted", pop: optimizationtest.Population(2, 1, 3), size: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pop.Validate(tt.size)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, optimization.IsContractViolation(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDiversity(t *testing.T) {
	v := func(x int) optimizationtest.Vector { return optimizationtest.Vector{x} }
	pop := optimization.Population[optimizationtest.Vector]{
		{Genotype: v(7), Cost: 1},
		{Genotype: v(7), Cost: 1},
		{Genotype: v(3), Cost: 2},
		{Genotype: v(5), Cost: 2},
		{Genotype: v(3), Cost: 2},
		{Genotype: v(7), Cost: 1},
	}

	assert.Equal(t, []int{3, 2, 1}, optimization.Diversity(pop))
	assert.Equal(t, 3, optimization.DistinctCount(pop))
}

func TestCostIndex(t *testing.T) {
	pop := optimizationtest.Population(4, 8)
	idx := optimization.NewCostIndex(pop)

	cost, ok := idx[optimization.Fingerprint(optimizationtest.Vector{1})]
	require.True(t, ok)
	assert.Equal(t, optimization.Cost(8), cost)

	_, ok = idx[optimization.Fingerprint(optimizationtest.Vector{2})]
	assert.False(t, ok)
}

func TestErrorFormatting(t *testing.T) {
	err := optimization.Violation("selection", "roulette", "total cost is %d", 0)

	assert.Equal(t, "selection: roulette: total cost is 0: contract violation", err.Error())
	e, ok := optimization.AsError(optimization.WrapError(err, "generation 3"))
	require.True(t, ok)
	assert.Equal(t, "generation 3", e.Message)
	assert.True(t, optimization.IsContractViolation(e))
}
