package optimization

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Cost is the objective value of an individual. Lower is better.
type Cost float64

// Less reports whether c is strictly fitter than other.
func (c Cost) Less(other Cost) bool {
	return c < other
}

// Rank converts the cost to the scalar used by weight-based selection.
func (c Cost) Rank() float64 {
	return float64(c)
}

// Bucket is one entry of a cost distribution.
type Bucket struct {
	Value int `json:"value"`
	Count int `json:"count"`
}

// AverageCost returns the arithmetic mean of values, or 0 for an empty slice.
func AverageCost(values []Cost) Cost {
	if len(values) == 0 {
		return 0
	}
	xs := make([]float64, len(values))
	for i, v := range values {
		xs[i] = float64(v)
	}
	return Cost(stat.Mean(xs, nil))
}

// CostDistribution counts values per integer bucket, ordered by bucket value.
// A value falls into the bucket of its integer conversion, which truncates
// toward zero: -0.5 and 0.5 share bucket 0.
func CostDistribution(values []Cost) []Bucket {
	counts := make(map[int]int)
	for _, v := range values {
		counts[int(v)]++
	}

	buckets := make([]Bucket, 0, len(counts))
	for value, count := range counts {
		buckets = append(buckets, Bucket{Value: value, Count: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Value < buckets[j].Value
	})
	return buckets
}
