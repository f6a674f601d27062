package optimization

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Individual pairs a genotype with its cost.
type Individual[G any] struct {
	Genotype G
	Cost     Cost
}

// Population is an ordered sequence of individuals. After every generation it
// is sorted ascending by cost, so index 0 is the current best.
type Population[G any] []Individual[G]

// Best returns the fittest individual of a sorted population.
func (p Population[G]) Best() Individual[G] {
	return p[0]
}

// Worst returns the least fit individual of a sorted population.
func (p Population[G]) Worst() Individual[G] {
	return p[len(p)-1]
}

// Costs returns the costs in population order.
func (p Population[G]) Costs() []Cost {
	costs := make([]Cost, len(p))
	for i, ind := range p {
		costs[i] = ind.Cost
	}
	return costs
}

// IsSorted reports whether the population is ordered ascending by cost.
func (p Population[G]) IsSorted() bool {
	for i := 1; i < len(p); i++ {
		if p[i].Cost < p[i-1].Cost {
			return false
		}
	}
	return true
}

// Validate checks the structural invariants of a population after a
// generation: it has exactly size elements and is sorted.
func (p Population[G]) Validate(size int) error {
	if len(p) == 0 {
		return Violation("population", "validate", "population is empty")
	}
	if len(p) != size {
		return Violation("population", "validate", "population has %d individuals, want %d", len(p), size)
	}
	if !p.IsSorted() {
		return Violation("population", "validate", "population is not sorted by cost")
	}
	return nil
}

// Fingerprint hashes the identity of a genotype.
func Fingerprint(g Fingerprinter) uint64 {
	return xxhash.Sum64(g.AppendFingerprint(nil))
}

// DistinctCount returns the number of distinct genotypes among individuals.
func DistinctCount[G Fingerprinter](individuals []Individual[G]) int {
	seen := make(map[uint64]struct{}, len(individuals))
	for _, ind := range individuals {
		seen[Fingerprint(ind.Genotype)] = struct{}{}
	}
	return len(seen)
}

// Diversity returns the frequency of every distinct (genotype, cost) pair,
// ordered by cost.
func Diversity[G Fingerprinter](p Population[G]) []int {
	type key struct {
		fp   uint64
		cost Cost
	}

	index := make(map[key]int, len(p))
	keys := make([]key, 0, len(p))
	counts := make([]int, 0, len(p))
	for _, ind := range p {
		k := key{fp: Fingerprint(ind.Genotype), cost: ind.Cost}
		if i, ok := index[k]; ok {
			counts[i]++
			continue
		}
		index[k] = len(counts)
		keys = append(keys, k)
		counts = append(counts, 1)
	}

	order := make([]int, len(counts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return keys[order[a]].cost < keys[order[b]].cost
	})

	out := make([]int, len(order))
	for i, j := range order {
		out[i] = counts[j]
	}
	return out
}

// CostIndex maps genotype fingerprints to known costs. It is built
// single-threaded and only read during parallel evaluation.
type CostIndex map[uint64]Cost

// NewCostIndex indexes the costs of a population.
func NewCostIndex[G Fingerprinter](p Population[G]) CostIndex {
	idx := make(CostIndex, len(p))
	for _, ind := range p {
		idx[Fingerprint(ind.Genotype)] = ind.Cost
	}
	return idx
}
