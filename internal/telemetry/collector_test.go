package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/evolve/internal/optimization"
	"github.com/copyleftdev/evolve/internal/optimization/genetic"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := NewCollector("evolve", reg)
	require.NoError(t, err)
	return c, reg
}

func TestCollectorObserve(t *testing.T) {
	c, _ := newTestCollector(t)

	c.Observe("a", genetic.Snapshot{
		Generation:     0,
		Best:           4,
		Worst:          9,
		Mean:           6.5,
		SuccessRate:    0.2,
		Diversity:      []int{2, 1, 1},
		MutationRate:   0.05,
		MutationStdDev: 1.5,
	})
	c.Observe("a", genetic.Snapshot{
		Generation:     1,
		Best:           3,
		Worst:          8,
		Mean:           5,
		SuccessRate:    0.21,
		Diversity:      []int{4},
		CacheHits:      3,
		ExecutionTimes: []time.Duration{time.Millisecond, 2 * time.Millisecond},
		MutationRate:   0.06,
		MutationStdDev: 1.0,
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(c.best.WithLabelValues("a")))
	assert.Equal(t, 8.0, testutil.ToFloat64(c.worst.WithLabelValues("a")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.mean.WithLabelValues("a")))
	assert.Equal(t, 0.21, testutil.ToFloat64(c.successRate.WithLabelValues("a")))
	assert.Equal(t, 0.06, testutil.ToFloat64(c.mutationRate.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.mutationStdDev.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.distinct.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.generations.WithLabelValues("a")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("a")))
}

func TestCollectorFinishDropsRunSeries(t *testing.T) {
	c, _ := newTestCollector(t)

	c.Observe("a", genetic.Snapshot{Generation: 1, Best: 1})
	c.Observe("b", genetic.Snapshot{Generation: 1, Best: 2})
	assert.Equal(t, 2, testutil.CollectAndCount(c.best))

	c.Finish("a", "completed")
	assert.Equal(t, 1, testutil.CollectAndCount(c.best))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.finished.WithLabelValues("completed")))
}

func TestCollectorConsume(t *testing.T) {
	c, _ := newTestCollector(t)
	ch := make(chan genetic.Snapshot, 3)
	for g := 0; g < 3; g++ {
		ch <- genetic.Snapshot{Generation: g, Best: optimization.Cost(10 - g)}
	}
	close(ch)

	var seen []int
	c.Consume(context.Background(), "run", ch, func(s genetic.Snapshot) {
		seen = append(seen, s.Generation)
	})

	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, 8.0, testutil.ToFloat64(c.best.WithLabelValues("run")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.generations.WithLabelValues("run")))
}

func TestCollectorConsumeStopsOnCancel(t *testing.T) {
	c, _ := newTestCollector(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		c.Consume(ctx, "run", make(chan genetic.Snapshot), nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Consume did not return after cancellation")
	}
}

func TestNewCollectorRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector("evolve", reg)
	require.NoError(t, err)

	_, err = NewCollector("evolve", reg)
	assert.Error(t, err)
}
