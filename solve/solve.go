// Package solve searches for minimum-energy spin assignments of an
// Ising Hamiltonian. Solvers are interchangeable behind the Solver
// interface: exact ones for small spin counts, sampling ones beyond.
package solve

import (
	"cmp"
	"slices"

	"tspising"
)

// Sample is one spin assignment together with its energy (excluding
// the Hamiltonian offset) and the probability the solver assigns to it.
type Sample struct {
	Spins       []int8
	Energy      float64
	Probability float64
}

// Result holds the samples a solver returned, sorted by ascending
// energy, ties broken by descending probability.
type Result struct {
	Samples []Sample
}

// Ground returns the lowest-energy sample.
func (r *Result) Ground() Sample {
	return r.Samples[0]
}

func (r *Result) sort() {
	slices.SortFunc(r.Samples, func(a, b Sample) int {
		if c := cmp.Compare(a.Energy, b.Energy); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Probability, a.Probability); c != 0 {
			return c
		}
		return slices.Compare(a.Spins, b.Spins)
	})
}

// Solver finds low-energy assignments of an Ising Hamiltonian.
// Implementations are deterministic given their configuration,
// including any random seed.
type Solver interface {
	Name() string
	Solve(h *tspising.Ising) (*Result, error)
}

// degenerateTolerance is the energy window within which states count
// as degenerate ground states.
const degenerateTolerance = 1e-9

// states iterates over all 2^n spin assignments. The yielded slice is
// reused across iterations. Spin a corresponds to bit n-1-a of the
// state index, so spin 0 is the most significant bit, and a cleared
// bit is spin +1.
func states(n int) func(yield func(int, []int8) bool) {
	z := make([]int8, n)
	return func(yield func(int, []int8) bool) {
		numStates := 1 << n
		for i := 0; i < numStates; i++ {
			for a := 0; a < n; a++ {
				if i&(1<<(n-1-a)) == 0 {
					z[a] = 1
				} else {
					z[a] = -1
				}
			}
			if !yield(i, z) {
				return
			}
		}
	}
}
