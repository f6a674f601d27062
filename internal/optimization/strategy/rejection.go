package strategy

import (
	"fmt"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// RejectionKind enumerates the rejection variants.
type RejectionKind int

const (
	// RejectNone always keeps both children.
	RejectNone RejectionKind = iota
	// RejectWorseThanParents keeps a child only if it is no worse than the
	// worse of its two parents.
	RejectWorseThanParents
)

// Rejection decides which two of a family survive into the offspring.
type Rejection struct {
	Kind RejectionKind
}

// NoRejection keeps every child.
func NoRejection() Rejection { return Rejection{Kind: RejectNone} }

// BetterThanWorseParent keeps children that beat the worse parent.
func BetterThanWorseParent() Rejection { return Rejection{Kind: RejectWorseThanParents} }

func (r Rejection) String() string {
	switch r.Kind {
	case RejectNone:
		return "none"
	case RejectWorseThanParents:
		return "better_than_worse_parent"
	default:
		return fmt.Sprintf("rejection(%d)", int(r.Kind))
	}
}

// Validate checks the variant's configuration.
func (r Rejection) Validate() error {
	switch r.Kind {
	case RejectNone, RejectWorseThanParents:
		return nil
	default:
		return optimization.Violation("rejection", "validate", "unknown rejection kind %d", int(r.Kind))
	}
}

// Reject picks the two survivors of a family. Child A competes with parent
// A, child B with parent B.
func Reject[G any](r Rejection, parentA, parentB, childA, childB optimization.Individual[G]) (optimization.Individual[G], optimization.Individual[G]) {
	if r.Kind != RejectWorseThanParents {
		return childA, childB
	}

	worse := parentA.Cost
	if parentB.Cost > worse {
		worse = parentB.Cost
	}

	first, second := parentA, parentB
	if childA.Cost <= worse {
		first = childA
	}
	if childB.Cost <= worse {
		second = childB
	}
	return first, second
}
