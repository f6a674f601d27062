package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/evolve/internal/assignment"
	"github.com/copyleftdev/evolve/internal/config"
	"github.com/copyleftdev/evolve/internal/logging"
	"github.com/copyleftdev/evolve/internal/server"
	"github.com/copyleftdev/evolve/internal/telemetry"
)

func TestRunCommandPrintsSolution(t *testing.T) {
	t.Setenv("EVO_POPULATION_SIZE", "16")
	t.Setenv("EVO_MAX_GENERATIONS", "5")
	t.Setenv("EVO_SEED", "3")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--events", "9", "--slots", "3", "--density", "0.4"})
	require.NoError(t, rootCmd.Execute())

	var sol assignment.Solution
	require.NoError(t, json.Unmarshal(out.Bytes(), &sol))
	assert.Len(t, sol.Placements, 9)
	for _, p := range sol.Placements {
		assert.GreaterOrEqual(t, p.Slot, 0)
		assert.Less(t, p.Slot, 3)
	}
	assert.GreaterOrEqual(t, sol.Cost, 0.0)
}

func TestRunCommandRejectsBadConfig(t *testing.T) {
	t.Setenv("EVO_POPULATION_SIZE", "1")
	rootCmd.SetArgs([]string{"run"})
	assert.Error(t, rootCmd.Execute())
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	logger = logging.New(logging.ErrorLevel, &bytes.Buffer{})
	cfg = &config.Config{}
	cfg.Evolution.MaxRuns = 1

	reg := prometheus.NewRegistry()
	collector, err := telemetry.NewCollector("evolve", reg)
	require.NoError(t, err)
	srv := server.NewServer(cfg, logger, collector)
	defer srv.Close()

	// Seed one series so the registry has output.
	collector.Finish("warmup", "completed")
	r := newRouter(srv, reg)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "evolve_runs_finished_total")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
