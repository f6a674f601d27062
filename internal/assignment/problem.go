// Package assignment is a reference encoding for the evolution engine: events
// are assigned to timeslots, and the cost counts conflicting events that share
// a slot plus slots filled beyond their capacity.
package assignment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// Problem holds the immutable facts of an instance.
type Problem struct {
	Events int
	Slots  int
	// Capacity is the number of events a slot holds without penalty; zero
	// means unlimited.
	Capacity int
	// CapacityPenalty is the cost of each event beyond Capacity.
	CapacityPenalty float64
	// Conflicts is the symmetric event-by-event conflict weight matrix.
	Conflicts *mat.SymDense
}

// NewProblem creates a problem without conflicts.
func NewProblem(events, slots int) (*Problem, error) {
	if events <= 0 {
		return nil, fmt.Errorf("assignment: events must be positive, got %d", events)
	}
	if slots <= 0 {
		return nil, fmt.Errorf("assignment: slots must be positive, got %d", slots)
	}
	return &Problem{
		Events:          events,
		Slots:           slots,
		CapacityPenalty: 1,
		Conflicts:       mat.NewSymDense(events, nil),
	}, nil
}

// AddConflict adds weight to the conflict between events a and b.
func (p *Problem) AddConflict(a, b int, weight float64) error {
	if a < 0 || a >= p.Events || b < 0 || b >= p.Events {
		return fmt.Errorf("assignment: conflict (%d, %d) out of range for %d events", a, b, p.Events)
	}
	if a == b {
		return fmt.Errorf("assignment: event %d cannot conflict with itself", a)
	}
	p.Conflicts.SetSym(a, b, p.Conflicts.At(a, b)+weight)
	return nil
}

// TotalConflict is the sum of all pairwise conflict weights, an upper bound
// for the conflict part of any schedule's cost.
func (p *Problem) TotalConflict() float64 {
	// Every pair is stored twice.
	return mat.Sum(p.Conflicts) / 2
}

// RandomConfig describes a generated instance.
type RandomConfig struct {
	Events   int     `json:"events"`
	Slots    int     `json:"slots"`
	Capacity int     `json:"capacity"`
	Density  float64 `json:"density"`
	Seed     uint64  `json:"seed"`
}

// RandomProblem generates an instance where every pair of events conflicts
// with probability Density.
func RandomProblem(cfg RandomConfig) (*Problem, error) {
	if cfg.Density < 0 || cfg.Density > 1 {
		return nil, fmt.Errorf("assignment: density must be in [0, 1], got %g", cfg.Density)
	}
	p, err := NewProblem(cfg.Events, cfg.Slots)
	if err != nil {
		return nil, err
	}
	p.Capacity = cfg.Capacity

	rng := optimization.NewRand(cfg.Seed)
	for i := 0; i < cfg.Events; i++ {
		for j := i + 1; j < cfg.Events; j++ {
			if rng.Float64() < cfg.Density {
				p.Conflicts.SetSym(i, j, 1)
			}
		}
	}
	return p, nil
}

// Context carries a problem and the tunables the controllers adapt.
type Context struct {
	Problem  *Problem
	tunables *optimization.Tunables
}

// NewContext creates a context whose Gaussian shifts start at one slot and
// are capped at half the number of slots.
func NewContext(p *Problem) *Context {
	return &Context{
		Problem:  p,
		tunables: optimization.NewTunables(1.0, max(1.0, float64(p.Slots)/2)),
	}
}

// Tunables implements optimization.Context.
func (c *Context) Tunables() *optimization.Tunables {
	return c.tunables
}
