package genetic

import (
	"cmp"
	"runtime"
	"slices"

	"github.com/sourcegraph/conc/pool"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// minParallelSort is the population size below which sorting stays on the
// calling goroutine.
const minParallelSort = 256

// workerPool runs data-parallel maps with a bounded number of goroutines.
type workerPool struct {
	workers int
}

func newWorkerPool(workers int) workerPool {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return workerPool{workers: workers}
}

// forEach calls fn for every index in [0, n) and waits for all of them.
// Each call must only write to memory owned by its index.
func (wp workerPool) forEach(n int, fn func(i int) error) error {
	p := pool.New().WithErrors().WithMaxGoroutines(wp.workers)
	for i := 0; i < n; i++ {
		p.Go(func() error {
			return fn(i)
		})
	}
	return p.Wait()
}

func compareCost[G any](a, b optimization.Individual[G]) int {
	return cmp.Compare(a.Cost, b.Cost)
}

// sortPopulation sorts ascending by cost. Chunks are sorted in parallel and
// merged; ties keep their relative order.
func sortPopulation[G any](wp workerPool, pop optimization.Population[G]) error {
	if len(pop) == 0 {
		return optimization.Violation("population", "sort", "population is empty")
	}
	if len(pop) < minParallelSort || wp.workers == 1 {
		slices.SortStableFunc(pop, compareCost[G])
		return nil
	}

	chunk := (len(pop) + wp.workers - 1) / wp.workers
	var bounds [][2]int
	for lo := 0; lo < len(pop); lo += chunk {
		bounds = append(bounds, [2]int{lo, min(lo+chunk, len(pop))})
	}

	err := wp.forEach(len(bounds), func(i int) error {
		slices.SortStableFunc(pop[bounds[i][0]:bounds[i][1]], compareCost[G])
		return nil
	})
	if err != nil {
		return err
	}

	buf := make(optimization.Population[G], len(pop))
	for len(bounds) > 1 {
		merged := make([][2]int, 0, (len(bounds)+1)/2)
		for i := 0; i < len(bounds); i += 2 {
			if i+1 == len(bounds) {
				merged = append(merged, bounds[i])
				continue
			}
			lo, mid, hi := bounds[i][0], bounds[i][1], bounds[i+1][1]
			mergeRuns(pop[lo:mid], pop[mid:hi], buf[lo:hi])
			copy(pop[lo:hi], buf[lo:hi])
			merged = append(merged, [2]int{lo, hi})
		}
		bounds = merged
	}
	return nil
}

// mergeRuns merges two sorted runs into dst, preferring a on ties.
func mergeRuns[G any](a, b, dst []optimization.Individual[G]) {
	i, j, k := 0, 0, 0
	for i < len(a) && j < len(b) {
		if b[j].Cost < a[i].Cost {
			dst[k] = b[j]
			j++
		} else {
			dst[k] = a[i]
			i++
		}
		k++
	}
	k += copy(dst[k:], a[i:])
	copy(dst[k:], b[j:])
}
