package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "evolve", cfg.Metrics.Namespace)
	assert.Equal(t, 100, cfg.Evolution.PopulationSize)
	assert.Equal(t, 500, cfg.Evolution.MaxGenerations)
	assert.Equal(t, 0.05, cfg.Evolution.MutationRate)
	assert.Equal(t, 0.9, cfg.Evolution.CrossoverRate)
	assert.Equal(t, uint64(0), cfg.Evolution.Seed)
	assert.Equal(t, 16, cfg.Evolution.SnapshotBuffer)
	assert.Equal(t, 2000, cfg.Evolution.MaxEvents)
	assert.Equal(t, 10000, cfg.Evolution.MaxPopulation)
	assert.Equal(t, int64(1<<20), cfg.Evolution.MaxRequestBytes)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("EVO_WORKERS", "3")
	t.Setenv("EVO_POPULATION_SIZE", "64")
	t.Setenv("EVO_MUTATION_RATE", "0.2")
	t.Setenv("EVO_SEED", "42")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Evolution.Workers)
	assert.Equal(t, 64, cfg.Evolution.PopulationSize)
	assert.Equal(t, 0.2, cfg.Evolution.MutationRate)
	assert.Equal(t, uint64(42), cfg.Evolution.Seed)
}

func TestLoadRejectsInvalidEvolution(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "EVO_WORKERS", value: "-1"},
		{key: "EVO_POPULATION_SIZE", value: "1"},
		{key: "EVO_MAX_GENERATIONS", value: "0"},
		{key: "EVO_MUTATION_RATE", value: "1.5"},
		{key: "EVO_CROSSOVER_RATE", value: "-0.1"},
		{key: "EVO_MAX_RUNS", value: "0"},
		{key: "EVO_MAX_EVENTS", value: "0"},
		{key: "EVO_MAX_POPULATION", value: "50"},
		{key: "EVO_MAX_REQUEST_BYTES", value: "0"},
		{key: "EVO_SEED", value: "not-a-number"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
