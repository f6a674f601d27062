package dynamics

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/copyleftdev/evolve/internal/optimization"
	"github.com/copyleftdev/evolve/internal/optimization/genetic"
	"github.com/copyleftdev/evolve/internal/optimization/strategy"
)

// Phase is a state of the regime controller.
type Phase int

const (
	PhaseBroad Phase = iota
	PhaseFocus
	PhaseFinish
)

func (p Phase) String() string {
	switch p {
	case PhaseBroad:
		return "broad"
	case PhaseFocus:
		return "focus"
	case PhaseFinish:
		return "finish"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Preset is the parameter bundle applied on entering a phase.
type Preset struct {
	Selection     strategy.Selection
	Crossover     strategy.Crossover
	CrossoverRate *float64
	Mutation      strategy.Mutation
	MutationRate  float64
	Replacement   strategy.Replacement
	// Dwell is the number of generations spent in the phase.
	Dwell int
}

func (p Preset) apply(params *genetic.Parameters) {
	params.Selection = p.Selection
	params.Crossover = p.Crossover
	params.CrossoverRate = p.CrossoverRate
	params.Mutation = p.Mutation
	params.MutationRate = p.MutationRate
	params.Replacement = p.Replacement
}

func (p Preset) validate(phase Phase) error {
	if p.Dwell < 1 {
		return optimization.Violation("regime", "validate", "%s dwell must be at least 1, got %d", phase, p.Dwell)
	}
	if p.CrossoverRate != nil && (*p.CrossoverRate < 0 || *p.CrossoverRate > 1) {
		return optimization.Violation("regime", "validate", "%s crossover rate must be within [0, 1], got %v", phase, *p.CrossoverRate)
	}
	if p.MutationRate < 0 || p.MutationRate > 1 {
		return optimization.Violation("regime", "validate", "%s mutation rate must be within [0, 1], got %v", phase, p.MutationRate)
	}
	for _, validate := range []func() error{p.Selection.Validate, p.Crossover.Validate, p.Mutation.Validate, p.Replacement.Validate} {
		if err := validate(); err != nil {
			return optimization.WrapError(err, phase.String()+" preset")
		}
	}
	return nil
}

// RegimeConfig configures the regime controller.
type RegimeConfig struct {
	Broad  Preset
	Focus  Preset
	Finish Preset

	// MaxFailures is the number of consecutive focus phases without
	// improvement after which the next broad phase replaces the whole
	// population. Zero disables escalation.
	MaxFailures int

	Logger *zap.Logger
}

// DefaultRegime returns the stock presets.
func DefaultRegime() RegimeConfig {
	return RegimeConfig{
		Broad: Preset{
			Selection:    strategy.Tournament(2),
			Crossover:    strategy.Uniform(),
			Mutation:     strategy.UniformReplace(),
			MutationRate: 0.05,
			Replacement:  strategy.Elite(0.1),
			Dwell:        50,
		},
		Focus: Preset{
			Selection:     strategy.Tournament(4),
			Crossover:     strategy.SinglePoint(),
			CrossoverRate: genetic.Rate(0.8),
			Mutation:      strategy.Gaussian(),
			MutationRate:  0.02,
			Replacement:   strategy.EliteAbsolute(2),
			Dwell:         100,
		},
		Finish: Preset{
			Selection:     strategy.LinearRank(),
			Crossover:     strategy.SinglePoint(),
			CrossoverRate: genetic.Rate(0.6),
			Mutation:      strategy.Gaussian(),
			MutationRate:  0.01,
			Replacement:   strategy.EliteAbsolute(1),
			Dwell:         50,
		},
		MaxFailures: 3,
	}
}

type regime struct {
	cfg      RegimeConfig
	phase    Phase
	timer    int
	failures int
	// focusBest is the best cost when the current focus phase started.
	focusBest optimization.Cost
	logger    *zap.Logger
}

func newRegime(cfg RegimeConfig) *regime {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &regime{cfg: cfg, logger: logger}
}

// Validate checks every preset and the escalation threshold.
func (c RegimeConfig) Validate() error {
	for _, phase := range []Phase{PhaseBroad, PhaseFocus, PhaseFinish} {
		if err := c.preset(phase).validate(phase); err != nil {
			return err
		}
	}
	if c.MaxFailures < 0 {
		return optimization.Violation("regime", "validate", "max failures must not be negative, got %d", c.MaxFailures)
	}
	return nil
}

func (c RegimeConfig) preset(p Phase) Preset {
	switch p {
	case PhaseFocus:
		return c.Focus
	case PhaseFinish:
		return c.Finish
	default:
		return c.Broad
	}
}

func (r *regime) setup(rd *genetic.RuntimeData, params *genetic.Parameters) {
	r.phase = PhaseBroad
	r.timer = 0
	r.failures = 0
	r.focusBest = rd.Best
	r.cfg.Broad.apply(params)
}

func (r *regime) exec(rd *genetic.RuntimeData, params *genetic.Parameters) {
	r.timer++
	if r.timer <= r.cfg.preset(r.phase).Dwell {
		return
	}
	r.timer = 0

	switch r.phase {
	case PhaseBroad:
		r.phase = PhaseFocus
		r.focusBest = rd.Best
		r.cfg.Focus.apply(params)
	case PhaseFocus:
		r.phase = PhaseFinish
		r.cfg.Finish.apply(params)
	case PhaseFinish:
		r.phase = PhaseBroad
		if rd.Best.Less(r.focusBest) {
			r.failures = 0
		} else {
			r.failures++
		}
		r.cfg.Broad.apply(params)
		if r.cfg.MaxFailures > 0 && r.failures >= r.cfg.MaxFailures {
			params.Replacement = strategy.Full()
			r.logger.Info("regime escalated to full replacement",
				zap.Int("generation", rd.Generation),
				zap.Int("failures", r.failures),
			)
			r.failures = 0
		}
	}

	r.logger.Debug("regime transition",
		zap.Int("generation", rd.Generation),
		zap.Stringer("phase", r.phase),
		zap.Float64("best", float64(rd.Best)),
	)
}
