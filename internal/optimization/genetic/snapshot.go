package genetic

import (
	"time"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// Snapshot is the per-generation record published to telemetry readers.
type Snapshot struct {
	Generation     int                   `json:"generation"`
	Best           optimization.Cost     `json:"best"`
	Worst          optimization.Cost     `json:"worst"`
	Mean           optimization.Cost     `json:"mean"`
	SuccessRate    float64               `json:"success_rate"`
	Diversity      []int                 `json:"diversity"`
	Distribution   []optimization.Bucket `json:"distribution"`
	CacheHits      int                   `json:"cache_hits"`
	ExecutionTimes []time.Duration       `json:"execution_times"`
	MutationRate   float64               `json:"mutation_rate"`
	MutationStdDev float64               `json:"mutation_std_dev"`
}

func newSnapshot[G optimization.Fingerprinter](rd *RuntimeData, pop optimization.Population[G], params *Parameters, t *optimization.Tunables) Snapshot {
	return Snapshot{
		Generation:     rd.Generation,
		Best:           rd.Best,
		Worst:          rd.Worst,
		Mean:           rd.Mean,
		SuccessRate:    rd.SuccessRate,
		Diversity:      optimization.Diversity(pop),
		Distribution:   optimization.CostDistribution(pop.Costs()),
		CacheHits:      rd.CacheHits,
		ExecutionTimes: append([]time.Duration(nil), rd.ExecutionTimes...),
		MutationRate:   params.MutationRate,
		MutationStdDev: t.MutationStdDev,
	}
}

// publish hands s to the reader without ever blocking the loop. Snapshots
// are dropped while the reader is behind.
func publish(ch chan<- Snapshot, s Snapshot) bool {
	select {
	case ch <- s:
		return true
	default:
		return false
	}
}
