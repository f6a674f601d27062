package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Metrics struct {
		Namespace string `env:"METRICS_NAMESPACE" envDefault:"evolve"`
	}
	Evolution Evolution
}

// Evolution holds the defaults for runs that do not override them.
type Evolution struct {
	// Workers bounds each run's worker pool; 0 means GOMAXPROCS.
	Workers        int     `env:"EVO_WORKERS" envDefault:"0"`
	PopulationSize int     `env:"EVO_POPULATION_SIZE" envDefault:"100"`
	MaxGenerations int     `env:"EVO_MAX_GENERATIONS" envDefault:"500"`
	MutationRate   float64 `env:"EVO_MUTATION_RATE" envDefault:"0.05"`
	CrossoverRate  float64 `env:"EVO_CROSSOVER_RATE" envDefault:"0.9"`
	// Seed 0 picks a time-based seed per run.
	Seed           uint64 `env:"EVO_SEED" envDefault:"0"`
	SnapshotBuffer int    `env:"EVO_SNAPSHOT_BUFFER" envDefault:"16"`
	// MaxRuns caps concurrently running evolutions.
	MaxRuns int `env:"EVO_MAX_RUNS" envDefault:"4"`
	// MaxEvents bounds the events and slots of a requested instance; the
	// conflict matrix grows with the square of the event count.
	MaxEvents     int `env:"EVO_MAX_EVENTS" envDefault:"2000"`
	MaxPopulation int `env:"EVO_MAX_POPULATION" envDefault:"10000"`
	// MaxRequestBytes bounds request bodies of the run endpoints.
	MaxRequestBytes int64 `env:"EVO_MAX_REQUEST_BYTES" envDefault:"1048576"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Evolution.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no run could start with.
func (e Evolution) Validate() error {
	switch {
	case e.Workers < 0:
		return fmt.Errorf("config: EVO_WORKERS must not be negative, got %d", e.Workers)
	case e.PopulationSize < 2:
		return fmt.Errorf("config: EVO_POPULATION_SIZE must be at least 2, got %d", e.PopulationSize)
	case e.MaxGenerations < 1:
		return fmt.Errorf("config: EVO_MAX_GENERATIONS must be positive, got %d", e.MaxGenerations)
	case e.MutationRate < 0 || e.MutationRate > 1:
		return fmt.Errorf("config: EVO_MUTATION_RATE must be in [0, 1], got %g", e.MutationRate)
	case e.CrossoverRate < 0 || e.CrossoverRate > 1:
		return fmt.Errorf("config: EVO_CROSSOVER_RATE must be in [0, 1], got %g", e.CrossoverRate)
	case e.SnapshotBuffer < 0:
		return fmt.Errorf("config: EVO_SNAPSHOT_BUFFER must not be negative, got %d", e.SnapshotBuffer)
	case e.MaxRuns < 1:
		return fmt.Errorf("config: EVO_MAX_RUNS must be positive, got %d", e.MaxRuns)
	case e.MaxEvents < 1:
		return fmt.Errorf("config: EVO_MAX_EVENTS must be positive, got %d", e.MaxEvents)
	case e.MaxPopulation < e.PopulationSize:
		return fmt.Errorf("config: EVO_MAX_POPULATION must be at least EVO_POPULATION_SIZE (%d), got %d", e.PopulationSize, e.MaxPopulation)
	case e.MaxRequestBytes < 1:
		return fmt.Errorf("config: EVO_MAX_REQUEST_BYTES must be positive, got %d", e.MaxRequestBytes)
	}
	return nil
}
