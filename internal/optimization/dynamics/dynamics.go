// Package dynamics implements the adaptive controllers that retune run
// parameters and context tunables between generations.
package dynamics

import (
	"fmt"
	"math"

	"github.com/copyleftdev/evolve/internal/optimization"
	"github.com/copyleftdev/evolve/internal/optimization/genetic"
)

// Kind enumerates the controller variants.
type Kind int

const (
	// KindSuccessStdDev widens the Gaussian mutation while the search stalls.
	KindSuccessStdDev Kind = iota
	// KindCosineMutationRate schedules the mutation rate on a cosine wave.
	KindCosineMutationRate
	// KindRegime cycles through broad, focus and finish parameter bundles.
	KindRegime
)

// Dynamic is one adaptive controller. It satisfies genetic.Controller. Build
// it with one of the constructors; the variant is fixed at construction.
type Dynamic struct {
	kind Kind

	// Success-driven standard deviation.
	Target float64
	Gain   float64

	// Cosine-scheduled mutation rate.
	Reference  float64
	Amplitude  float64
	Wavelength float64
	Min        float64
	Max        float64

	regime *regime
}

var _ genetic.Controller = (*Dynamic)(nil)

// SuccessStdDev raises the mutation standard deviation by
// gain * (target - rate) while the success rate is below target, and resets
// it on improvement or when it exceeds the tunables' ceiling.
func SuccessStdDev(target, gain float64) *Dynamic {
	return &Dynamic{kind: KindSuccessStdDev, Target: target, Gain: gain}
}

// CosineMutationRate sets the mutation rate to
// clamp(reference + amplitude - amplitude*cos(2*pi*gen/wavelength), lo, hi).
func CosineMutationRate(reference, amplitude, wavelength, lo, hi float64) *Dynamic {
	return &Dynamic{
		kind:       KindCosineMutationRate,
		Reference:  reference,
		Amplitude:  amplitude,
		Wavelength: wavelength,
		Min:        lo,
		Max:        hi,
	}
}

// Regime switches between parameter bundles on dwell timers.
func Regime(cfg RegimeConfig) *Dynamic {
	return &Dynamic{kind: KindRegime, regime: newRegime(cfg)}
}

func (d *Dynamic) String() string {
	switch d.kind {
	case KindSuccessStdDev:
		return fmt.Sprintf("success_std_dev(target=%g, gain=%g)", d.Target, d.Gain)
	case KindCosineMutationRate:
		return fmt.Sprintf("cosine_mutation_rate(ref=%g, amp=%g, wavelength=%g)", d.Reference, d.Amplitude, d.Wavelength)
	case KindRegime:
		return fmt.Sprintf("regime(%s)", d.Phase())
	default:
		return fmt.Sprintf("dynamic(%d)", int(d.kind))
	}
}

// Kind returns the controller variant.
func (d *Dynamic) Kind() Kind {
	return d.kind
}

// Validate checks the controller's configuration. The engine calls it
// before the first generation.
func (d *Dynamic) Validate() error {
	switch d.kind {
	case KindSuccessStdDev:
		if d.Target < 0 || d.Target > 1 {
			return optimization.Violation("dynamics", "validate", "success target must be within [0, 1], got %v", d.Target)
		}
		if d.Gain < 0 {
			return optimization.Violation("dynamics", "validate", "gain must not be negative, got %v", d.Gain)
		}
	case KindCosineMutationRate:
		if d.Wavelength <= 0 {
			return optimization.Violation("dynamics", "validate", "wavelength must be positive, got %v", d.Wavelength)
		}
		if d.Min < 0 || d.Max > 1 || d.Min > d.Max {
			return optimization.Violation("dynamics", "validate", "rate bounds [%v, %v] must lie within [0, 1]", d.Min, d.Max)
		}
	case KindRegime:
		if d.regime == nil {
			return optimization.Violation("dynamics", "validate", "regime controller was not built with Regime")
		}
		return d.regime.cfg.Validate()
	default:
		return optimization.Violation("dynamics", "validate", "unknown controller kind %d", int(d.kind))
	}
	return nil
}

// Setup implements genetic.Controller.
func (d *Dynamic) Setup(rd *genetic.RuntimeData, params *genetic.Parameters, t *optimization.Tunables) {
	switch d.kind {
	case KindSuccessStdDev:
		rd.SeedSuccessRate(d.Target)
		t.ResetStdDev()
	case KindCosineMutationRate:
		params.MutationRate = d.rate(rd.Generation)
	case KindRegime:
		d.regime.setup(rd, params)
	}
}

// Exec implements genetic.Controller.
func (d *Dynamic) Exec(rd *genetic.RuntimeData, params *genetic.Parameters, t *optimization.Tunables) {
	switch d.kind {
	case KindSuccessStdDev:
		d.adaptStdDev(rd, t)
	case KindCosineMutationRate:
		params.MutationRate = d.rate(rd.Generation)
	case KindRegime:
		d.regime.exec(rd, params)
	}
}

// Phase returns the current regime phase; it is only meaningful for
// KindRegime controllers.
func (d *Dynamic) Phase() Phase {
	if d.regime == nil {
		return PhaseBroad
	}
	return d.regime.phase
}

func (d *Dynamic) adaptStdDev(rd *genetic.RuntimeData, t *optimization.Tunables) {
	if rd.Improved {
		t.ResetStdDev()
		return
	}
	if rd.SuccessRate < d.Target {
		t.MutationStdDev += d.Gain * (d.Target - rd.SuccessRate)
	}
	if t.MaxStdDev > 0 && t.MutationStdDev > t.MaxStdDev {
		t.ResetStdDev()
	}
}

func (d *Dynamic) rate(generation int) float64 {
	r := d.Reference
	if d.Wavelength > 0 {
		r += d.Amplitude - d.Amplitude*math.Cos(2*math.Pi*float64(generation)/d.Wavelength)
	}
	return math.Max(d.Min, math.Min(d.Max, r))
}
