package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/evolve/internal/assignment"
	"github.com/copyleftdev/evolve/internal/config"
	apperrors "github.com/copyleftdev/evolve/internal/errors"
	"github.com/copyleftdev/evolve/internal/logging"
	"github.com/copyleftdev/evolve/internal/optimization"
	"github.com/copyleftdev/evolve/internal/optimization/genetic"
	"github.com/copyleftdev/evolve/internal/telemetry"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
	Zap() *zap.Logger
}

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the run has finished.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrRunNotFound = apperrors.New("run not found")
	ErrRunFinished = apperrors.New("run already finished")
	ErrTooManyRuns = apperrors.New("too many active runs")
	ErrBadRequest  = apperrors.New("invalid request")
)

// StartRequest describes a run. Zero fields fall back to the configured
// evolution defaults.
type StartRequest struct {
	Problem        assignment.RandomConfig `json:"problem"`
	PopulationSize int                     `json:"population_size,omitempty"`
	Generations    int                     `json:"generations,omitempty"`
	MutationRate   *float64                `json:"mutation_rate,omitempty"`
	CrossoverRate  *float64                `json:"crossover_rate,omitempty"`
	Seed           uint64                  `json:"seed,omitempty"`
	Adaptive       bool                    `json:"adaptive,omitempty"`
}

func (r StartRequest) solverConfig(defaults config.Evolution) assignment.SolverConfig {
	cfg := assignment.SolverConfig{
		Problem:        r.Problem,
		PopulationSize: r.PopulationSize,
		Generations:    r.Generations,
		MutationRate:   defaults.MutationRate,
		CrossoverRate:  genetic.Rate(defaults.CrossoverRate),
		Workers:        defaults.Workers,
		Seed:           r.Seed,
		Adaptive:       r.Adaptive,
	}
	if cfg.PopulationSize == 0 {
		cfg.PopulationSize = defaults.PopulationSize
	}
	if cfg.Generations == 0 {
		cfg.Generations = defaults.MaxGenerations
	}
	if r.MutationRate != nil {
		cfg.MutationRate = *r.MutationRate
	}
	if r.CrossoverRate != nil {
		cfg.CrossoverRate = genetic.Rate(*r.CrossoverRate)
	}
	if cfg.Seed == 0 {
		cfg.Seed = defaults.Seed
	}
	return cfg
}

// run is the server-side state of one evolution. Fields are guarded by
// Server.mu.
type run struct {
	id        string
	status    Status
	config    assignment.SolverConfig
	startTime time.Time
	endTime   *time.Time
	latest    *genetic.Snapshot
	solution  *assignment.Solution
	err       string
	cancel    context.CancelFunc
}

// RunView is the JSON representation of a run.
type RunView struct {
	ID        string                  `json:"run_id"`
	Status    Status                  `json:"status"`
	Progress  float64                 `json:"progress"`
	StartTime time.Time               `json:"start_time"`
	EndTime   *time.Time              `json:"end_time,omitempty"`
	Config    assignment.SolverConfig `json:"config"`
	Latest    *genetic.Snapshot       `json:"latest,omitempty"`
	Solution  *assignment.Solution    `json:"solution,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

func (r *run) view() RunView {
	v := RunView{
		ID:        r.id,
		Status:    r.status,
		StartTime: r.startTime,
		EndTime:   r.endTime,
		Config:    r.config,
		Latest:    r.latest,
		Solution:  r.solution,
		Error:     r.err,
	}
	if r.latest != nil && r.config.Generations > 0 {
		v.Progress = min(1, float64(r.latest.Generation)/float64(r.config.Generations))
	}
	if r.status == StatusCompleted {
		v.Progress = 1
	}
	return v
}

// Server implements the HTTP and JSON-RPC server for the evolution service.
// It manages runs and provides endpoints to start, monitor, and cancel them.
type Server struct {
	cfg       *config.Config
	logger    Logger
	collector *telemetry.Collector

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	runs   map[string]*run
	active int
}

// NewServer creates a new server instance with the given config, logger and
// metrics collector.
func NewServer(cfg *config.Config, logger Logger, collector *telemetry.Collector) *Server {
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		ctx:       ctx,
		stop:      stop,
		runs:      make(map[string]*run),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleStart)
		r.Get("/runs", s.handleList)
		r.Get("/runs/{id}", s.handleStatus)
		r.Delete("/runs/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Start validates req and launches a run in the background.
func (s *Server) Start(req StartRequest) (RunView, error) {
	cfg := req.solverConfig(s.cfg.Evolution)
	if err := cfg.Validate(); err != nil {
		return RunView{}, apperrors.Wrap(ErrBadRequest, err.Error())
	}
	if err := s.checkLimits(cfg); err != nil {
		return RunView{}, err
	}

	id := uuid.NewString()
	snapshots := make(chan genetic.Snapshot, s.cfg.Evolution.SnapshotBuffer)
	engine, err := assignment.NewSolver(cfg, s.logger.Zap().With(zap.String("run_id", id)), snapshots)
	if err != nil {
		return RunView{}, apperrors.Wrap(ErrBadRequest, err.Error())
	}

	s.mu.Lock()
	if s.active >= s.cfg.Evolution.MaxRuns {
		s.mu.Unlock()
		return RunView{}, apperrors.Wrapf(ErrTooManyRuns, "%d runs active", s.cfg.Evolution.MaxRuns)
	}
	ctx, cancel := context.WithCancel(s.ctx)
	r := &run{
		id:        id,
		status:    StatusPending,
		config:    cfg,
		startTime: time.Now(),
		cancel:    cancel,
	}
	s.runs[id] = r
	s.active++
	view := r.view()
	s.mu.Unlock()

	s.logger.Info("Run started", map[string]interface{}{
		"run_id":          id,
		"events":          cfg.Problem.Events,
		"slots":           cfg.Problem.Slots,
		"population_size": cfg.PopulationSize,
		"generations":     cfg.Generations,
	})

	s.wg.Add(1)
	go s.execute(ctx, r, engine, snapshots)
	return view, nil
}

// execute drives one run to completion. Panics inside the engine fail the
// run instead of the process.
func (s *Server) execute(ctx context.Context, r *run, engine *assignment.Engine, snapshots chan genetic.Snapshot) {
	defer s.wg.Done()

	s.mu.Lock()
	r.status = StatusRunning
	s.mu.Unlock()

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		s.collector.Consume(context.Background(), r.id, snapshots, func(snap genetic.Snapshot) {
			s.mu.Lock()
			r.latest = &snap
			s.mu.Unlock()
		})
	}()

	var pop optimization.Population[assignment.Schedule]
	err := apperrors.Guard(func() error {
		var err error
		pop, err = engine.Run(ctx)
		return err
	})
	close(snapshots)
	<-consumed

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	r.endTime = &now
	s.active--
	if len(pop) > 0 {
		sol := assignment.NewSolution(pop.Best())
		r.solution = &sol
	}

	fields := map[string]interface{}{"run_id": r.id}
	switch {
	case err == nil:
		r.status = StatusCompleted
		fields["best"] = r.solution.Cost
		s.logger.Info("Run completed", fields)
	case apperrors.Is(err, context.Canceled):
		r.status = StatusCancelled
		s.logger.Info("Run cancelled", fields)
	default:
		r.status = StatusFailed
		r.err = err.Error()
		fields["error"] = err
		s.logger.Error("Run failed", fields)
	}
	s.collector.Finish(r.id, string(r.status))
}

// Status returns the current view of a run.
func (s *Server) Status(id string) (RunView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return RunView{}, apperrors.Wrapf(ErrRunNotFound, "run %s", id)
	}
	return r.view(), nil
}

// List returns every known run, oldest first.
func (s *Server) List() []RunView {
	s.mu.RLock()
	views := make([]RunView, 0, len(s.runs))
	for _, r := range s.runs {
		views = append(views, r.view())
	}
	s.mu.RUnlock()

	slices.SortFunc(views, func(a, b RunView) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return views
}

// Cancel requests cancellation of a run. The run stops at the next
// generation boundary.
func (s *Server) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return apperrors.Wrapf(ErrRunNotFound, "run %s", id)
	}
	if r.status.Terminal() {
		return apperrors.Wrapf(ErrRunFinished, "run %s is %s", id, r.status)
	}
	r.cancel()

	s.logger.Info("Run cancellation requested", map[string]interface{}{
		"run_id": id,
	})
	return nil
}

// Close cancels all runs and waits for them to finish.
func (s *Server) Close() error {
	s.stop()
	s.wg.Wait()
	return nil
}

// httpStatus maps a run manager error onto an HTTP status code.
func httpStatus(err error) int {
	switch {
	case apperrors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, ErrRunFinished):
		return http.StatusConflict
	case apperrors.Is(err, ErrTooManyRuns):
		return http.StatusTooManyRequests
	case apperrors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Failed to write response", map[string]interface{}{"error": err})
	}
}

func (s *Server) respondHTTPError(w http.ResponseWriter, err error) {
	s.respondJSON(w, httpStatus(err), map[string]interface{}{
		"error": err.Error(),
	})
}

// checkLimits rejects instances too large to allocate before anything is
// built for them.
func (s *Server) checkLimits(cfg assignment.SolverConfig) error {
	evo := s.cfg.Evolution
	switch {
	case cfg.Problem.Events > evo.MaxEvents:
		return apperrors.Wrapf(ErrBadRequest, "events must be at most %d, got %d", evo.MaxEvents, cfg.Problem.Events)
	case cfg.Problem.Slots > evo.MaxEvents:
		return apperrors.Wrapf(ErrBadRequest, "slots must be at most %d, got %d", evo.MaxEvents, cfg.Problem.Slots)
	case cfg.PopulationSize > evo.MaxPopulation:
		return apperrors.Wrapf(ErrBadRequest, "population size must be at most %d, got %d", evo.MaxPopulation, cfg.PopulationSize)
	}
	return nil
}

// handleStart handles POST /api/v1/runs
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Evolution.MaxRequestBytes)
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondHTTPError(w, apperrors.Wrapf(ErrBadRequest, "invalid request body: %v", err))
		return
	}

	view, err := s.Start(req)
	if err != nil {
		s.respondHTTPError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, view)
}

// handleList handles GET /api/v1/runs
func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.List())
}

// handleStatus handles GET /api/v1/runs/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.Status(chi.URLParam(r, "id"))
	if err != nil {
		s.respondHTTPError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

// handleCancel handles DELETE /api/v1/runs/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.Cancel(chi.URLParam(r, "id")); err != nil {
		s.respondHTTPError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "cancellation requested",
	})
}

// JSON-RPC 2.0 error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
	rpcServerError    = -32000
	rpcNotFound       = -32001
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

type runRef struct {
	RunID string `json:"run_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Evolution.MaxRequestBytes)
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "evolution.start":
		var req StartRequest
		if err := decodeParams(request.Params, &req); err != nil {
			s.respondWithError(w, rpcInvalidParams, err.Error(), request.ID)
			return
		}
		result, err = s.Start(req)
	case "evolution.status":
		var ref runRef
		if err := decodeParams(request.Params, &ref); err != nil {
			s.respondWithError(w, rpcInvalidParams, err.Error(), request.ID)
			return
		}
		result, err = s.Status(ref.RunID)
	case "evolution.cancel":
		var ref runRef
		if err := decodeParams(request.Params, &ref); err != nil {
			s.respondWithError(w, rpcInvalidParams, err.Error(), request.ID)
			return
		}
		err = s.Cancel(ref.RunID)
		result = map[string]string{"status": "cancellation requested"}
	default:
		s.respondWithError(w, rpcMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		code := rpcServerError
		switch {
		case apperrors.Is(err, ErrRunNotFound):
			code = rpcNotFound
		case apperrors.Is(err, ErrBadRequest):
			code = rpcInvalidParams
		}
		s.respondWithError(w, code, err.Error(), request.ID)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParams decodes the first positional parameter into v.
func decodeParams(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing required parameters")
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return fmt.Errorf("invalid parameter format: %v", err)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}
