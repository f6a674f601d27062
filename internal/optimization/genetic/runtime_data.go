package genetic

import (
	"time"

	"github.com/copyleftdev/evolve/internal/optimization"
)

const (
	// SuccessRateTau is the time constant of the success-rate low-pass filter.
	SuccessRateTau = 100.0
	// SuccessRateWindow is the length of the success-rate moving average.
	SuccessRateWindow = 100
)

// RuntimeData holds the statistics derived from the population after every
// generation. It is never persisted beyond a run.
type RuntimeData struct {
	Generation int

	Best          optimization.Cost
	Worst         optimization.Cost
	Mean          optimization.Cost
	OffspringMean optimization.Cost

	// Improved reports whether this generation lowered the best cost.
	Improved bool
	// SuccessRate is the low-pass filtered fraction of improving generations.
	SuccessRate float64
	// SuccessRateAverage is the same fraction over a fixed window.
	SuccessRateAverage float64

	EliteCount       int
	SelectedCount    int
	DistinctSelected int
	CacheHits        int
	ExecutionTimes   []time.Duration

	pt1    LowPass
	window *MovingAverage
}

// NewRuntimeData creates empty statistics.
func NewRuntimeData() *RuntimeData {
	return &RuntimeData{
		pt1:    LowPass{Tau: SuccessRateTau},
		window: NewMovingAverage(SuccessRateWindow),
	}
}

// CurrentBest implements strategy.Progress.
func (rd *RuntimeData) CurrentBest() optimization.Cost {
	return rd.Best
}

// SeedSuccessRate sets the starting value of the low-pass success rate.
func (rd *RuntimeData) SeedSuccessRate(rate float64) {
	rd.pt1.Value = rate
	rd.SuccessRate = rate
}

// Copy returns a snapshot that shares no memory with rd.
func (rd *RuntimeData) Copy() RuntimeData {
	c := *rd
	c.ExecutionTimes = append([]time.Duration(nil), rd.ExecutionTimes...)
	c.window = nil
	return c
}

// generationStats are the per-generation observations that are not
// derivable from the population alone.
type generationStats struct {
	offspringMean    optimization.Cost
	eliteCount       int
	selectedCount    int
	distinctSelected int
	cacheHits        int
	executionTimes   []time.Duration
}

// initialize records the freshly evaluated initial population.
func initializeRuntimeData[G any](rd *RuntimeData, pop optimization.Population[G]) {
	rd.Generation = 0
	rd.Best = pop.Best().Cost
	rd.Worst = pop.Worst().Cost
	rd.Mean = optimization.AverageCost(pop.Costs())
	rd.OffspringMean = rd.Mean
	rd.Improved = false
}

// updateRuntimeData recomputes the statistics from the sorted population and
// the previous values.
func updateRuntimeData[G any](rd *RuntimeData, pop optimization.Population[G], stats generationStats) {
	best := pop.Best().Cost
	rd.Improved = best.Less(rd.Best)

	rd.Best = best
	rd.Worst = pop.Worst().Cost
	rd.Mean = optimization.AverageCost(pop.Costs())
	rd.OffspringMean = stats.offspringMean

	sample := 0.0
	if rd.Improved {
		sample = 1.0
	}
	rd.SuccessRate = rd.pt1.Update(sample)
	rd.SuccessRateAverage = rd.window.Update(sample)

	rd.EliteCount = stats.eliteCount
	rd.SelectedCount = stats.selectedCount
	rd.DistinctSelected = stats.distinctSelected
	rd.CacheHits = stats.cacheHits
	rd.ExecutionTimes = stats.executionTimes
}
