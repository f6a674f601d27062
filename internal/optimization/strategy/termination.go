package strategy

import (
	"fmt"
	"strings"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// Progress is the view of the runtime statistics termination needs.
type Progress interface {
	CurrentBest() optimization.Cost
}

// TerminationKind enumerates the termination variants.
type TerminationKind int

const (
	// TerminateGenerations stops at a generation cap.
	TerminateGenerations TerminationKind = iota
	// TerminateObjective stops once the best cost reaches a target.
	TerminateObjective
	// TerminateAll stops when every sub-condition holds.
	TerminateAll
	// TerminateAny stops when at least one sub-condition holds.
	TerminateAny
)

// Termination decides at each generation boundary whether a run is over.
type Termination struct {
	Kind        TerminationKind
	Generations int
	Target      optimization.Cost
	Terms       []Termination
}

// Generations stops when the generation counter reaches n.
func Generations(n int) Termination {
	return Termination{Kind: TerminateGenerations, Generations: n}
}

// ObjectiveReached stops when the best cost is at most target.
func ObjectiveReached(target optimization.Cost) Termination {
	return Termination{Kind: TerminateObjective, Target: target}
}

// All combines conditions with logical AND.
func All(terms ...Termination) Termination {
	return Termination{Kind: TerminateAll, Terms: terms}
}

// Any combines conditions with logical OR.
func Any(terms ...Termination) Termination {
	return Termination{Kind: TerminateAny, Terms: terms}
}

func (t Termination) String() string {
	switch t.Kind {
	case TerminateGenerations:
		return fmt.Sprintf("generations(%d)", t.Generations)
	case TerminateObjective:
		return fmt.Sprintf("objective(%g)", float64(t.Target))
	case TerminateAll, TerminateAny:
		parts := make([]string, len(t.Terms))
		for i, term := range t.Terms {
			parts[i] = term.String()
		}
		op := "all"
		if t.Kind == TerminateAny {
			op = "any"
		}
		return op + "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("termination(%d)", int(t.Kind))
	}
}

// Validate checks the variant's configuration recursively.
func (t Termination) Validate() error {
	switch t.Kind {
	case TerminateGenerations:
		if t.Generations < 1 {
			return optimization.Violation("termination", "validate", "generation cap must be positive, got %d", t.Generations)
		}
	case TerminateObjective:
	case TerminateAll, TerminateAny:
		if len(t.Terms) == 0 {
			return optimization.Violation("termination", "validate", "%s needs at least one condition", t.String())
		}
		for _, term := range t.Terms {
			if err := term.Validate(); err != nil {
				return err
			}
		}
	default:
		return optimization.Violation("termination", "validate", "unknown termination kind %d", int(t.Kind))
	}
	return nil
}

// Check reports whether the run should stop after generation.
func (t Termination) Check(generation int, p Progress) bool {
	switch t.Kind {
	case TerminateGenerations:
		return generation >= t.Generations
	case TerminateObjective:
		return p.CurrentBest() <= t.Target
	case TerminateAll:
		for _, term := range t.Terms {
			if !term.Check(generation, p) {
				return false
			}
		}
		return true
	case TerminateAny:
		for _, term := range t.Terms {
			if term.Check(generation, p) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
