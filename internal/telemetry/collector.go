// Package telemetry exports evolution progress as Prometheus metrics.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/evolve/internal/optimization/genetic"
)

const runLabel = "run"

// Collector turns generation snapshots into per-run metrics.
type Collector struct {
	best           *prometheus.GaugeVec
	worst          *prometheus.GaugeVec
	mean           *prometheus.GaugeVec
	successRate    *prometheus.GaugeVec
	mutationRate   *prometheus.GaugeVec
	mutationStdDev *prometheus.GaugeVec
	distinct       *prometheus.GaugeVec
	generations    *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	reproduction   prometheus.Histogram
	finished       *prometheus.CounterVec
}

// NewCollector creates the metrics under namespace and registers them with
// reg.
func NewCollector(namespace string, reg prometheus.Registerer) (*Collector, error) {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{runLabel})
	}
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{runLabel})
	}

	c := &Collector{
		best:           gauge("best_cost", "Lowest cost in the current population."),
		worst:          gauge("worst_cost", "Highest cost in the current population."),
		mean:           gauge("mean_cost", "Mean cost of the current population."),
		successRate:    gauge("success_rate", "Low-pass filtered fraction of improving generations."),
		mutationRate:   gauge("mutation_rate", "Per-unit mutation probability."),
		mutationStdDev: gauge("mutation_std_dev", "Standard deviation of Gaussian unit shifts."),
		distinct:       gauge("distinct_individuals", "Distinct genotype and cost pairs in the population."),
		generations:    counter("generations_total", "Completed generations."),
		cacheHits:      counter("cache_hits_total", "Offspring costs reused from the previous population."),
		reproduction: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reproduction_seconds",
			Help:      "Time to recombine, mutate, evaluate and filter one parent pair.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Finished runs by outcome.",
		}, []string{"status"}),
	}

	for _, m := range []prometheus.Collector{
		c.best, c.worst, c.mean, c.successRate, c.mutationRate, c.mutationStdDev,
		c.distinct, c.generations, c.cacheHits, c.reproduction, c.finished,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe records one snapshot of run.
func (c *Collector) Observe(run string, s genetic.Snapshot) {
	c.best.WithLabelValues(run).Set(float64(s.Best))
	c.worst.WithLabelValues(run).Set(float64(s.Worst))
	c.mean.WithLabelValues(run).Set(float64(s.Mean))
	c.successRate.WithLabelValues(run).Set(s.SuccessRate)
	c.mutationRate.WithLabelValues(run).Set(s.MutationRate)
	c.mutationStdDev.WithLabelValues(run).Set(s.MutationStdDev)
	c.distinct.WithLabelValues(run).Set(float64(len(s.Diversity)))

	// Generation zero is the initial population.
	if s.Generation > 0 {
		c.generations.WithLabelValues(run).Inc()
	}
	c.cacheHits.WithLabelValues(run).Add(float64(s.CacheHits))
	for _, d := range s.ExecutionTimes {
		c.reproduction.Observe(d.Seconds())
	}
}

// Consume observes snapshots until ch is closed or ctx is done. The
// callback, if set, sees every snapshot after it is recorded.
func (c *Collector) Consume(ctx context.Context, run string, ch <-chan genetic.Snapshot, fn func(genetic.Snapshot)) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			c.Observe(run, s)
			if fn != nil {
				fn(s)
			}
		}
	}
}

// Finish counts the outcome of run and drops its per-run series.
func (c *Collector) Finish(run, status string) {
	c.finished.WithLabelValues(status).Inc()
	for _, v := range []*prometheus.GaugeVec{
		c.best, c.worst, c.mean, c.successRate, c.mutationRate, c.mutationStdDev, c.distinct,
	} {
		v.DeleteLabelValues(run)
	}
	c.generations.DeleteLabelValues(run)
	c.cacheHits.DeleteLabelValues(run)
}
