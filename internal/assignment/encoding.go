package assignment

import (
	"encoding/binary"
	"math"
	"math/rand/v2"

	"github.com/copyleftdev/evolve/internal/optimization"
)

// Schedule maps every event to a slot.
type Schedule []int

// Clone implements optimization.Genotype.
func (s Schedule) Clone() Schedule {
	return append(Schedule(nil), s...)
}

// Len implements optimization.Genotype.
func (s Schedule) Len() int {
	return len(s)
}

// SwapUnit implements optimization.Genotype.
func (s Schedule) SwapUnit(other Schedule, i int) {
	s[i], other[i] = other[i], s[i]
}

// RandomizeUnit implements optimization.Genotype.
func (s Schedule) RandomizeUnit(i int, rng *rand.Rand, ctx *Context) {
	s[i] = rng.IntN(ctx.Problem.Slots)
}

// ShiftUnit moves event i by the rounded offset, wrapping around the slots.
func (s Schedule) ShiftUnit(i int, offset float64, ctx *Context) {
	n := ctx.Problem.Slots
	s[i] = ((s[i]+int(math.Round(offset)))%n + n) % n
}

// AppendFingerprint implements optimization.Fingerprinter.
func (s Schedule) AppendFingerprint(b []byte) []byte {
	for _, slot := range s {
		b = binary.LittleEndian.AppendUint32(b, uint32(slot))
	}
	return b
}

// Generator draws uniformly random schedules.
type Generator struct{}

// Generate implements optimization.Generator.
func (Generator) Generate(amount int, ctx *Context, rng *rand.Rand) []Schedule {
	out := make([]Schedule, amount)
	for i := range out {
		s := make(Schedule, ctx.Problem.Events)
		for e := range s {
			s[e] = rng.IntN(ctx.Problem.Slots)
		}
		out[i] = s
	}
	return out
}

// Timetable is the phenotype of a schedule: the events grouped by slot.
type Timetable struct {
	bySlot [][]int
}

// Derive implements optimization.Phenotype.
func (Timetable) Derive(g Schedule, ctx *Context) optimization.Phenotype[Schedule, *Context] {
	bySlot := make([][]int, ctx.Problem.Slots)
	for event, slot := range g {
		bySlot[slot] = append(bySlot[slot], event)
	}
	return Timetable{bySlot: bySlot}
}

// Slot returns the events held by slot i.
func (t Timetable) Slot(i int) []int {
	return t.bySlot[i]
}

// Evaluate implements optimization.Phenotype.
func (t Timetable) Evaluate(ctx *Context) optimization.Cost {
	p := ctx.Problem
	cost := 0.0
	for _, events := range t.bySlot {
		for i, a := range events {
			for _, b := range events[i+1:] {
				cost += p.Conflicts.At(a, b)
			}
		}
		if p.Capacity > 0 && len(events) > p.Capacity {
			cost += p.CapacityPenalty * float64(len(events)-p.Capacity)
		}
	}
	return optimization.Cost(cost)
}

// Encoding returns the schedule encoding.
func Encoding() optimization.Encoding[Schedule, *Context] {
	return optimization.Encoding[Schedule, *Context]{
		Generator: Generator{},
		Phenotype: Timetable{},
	}
}

// Placement is one event's slot in a reported solution.
type Placement struct {
	Event int `json:"event"`
	Slot  int `json:"slot"`
}

// Solution is the serialisable form of an evaluated schedule.
type Solution struct {
	Cost       float64     `json:"cost"`
	Placements []Placement `json:"placements"`
}

// NewSolution describes an individual.
func NewSolution(ind optimization.Individual[Schedule]) Solution {
	placements := make([]Placement, len(ind.Genotype))
	for e, slot := range ind.Genotype {
		placements[e] = Placement{Event: e, Slot: slot}
	}
	return Solution{Cost: float64(ind.Cost), Placements: placements}
}
