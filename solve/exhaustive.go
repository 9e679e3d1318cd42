package solve

import (
	"github.com/pkg/errors"

	"tspising"
)

// DefaultMaxSpins bounds exhaustive enumeration. 2^20 states with a
// few hundred terms each is around a second of work.
const DefaultMaxSpins = 20

// Exhaustive enumerates every spin assignment and returns the exact
// ground states, each with equal probability. It is the reference
// solver: always correct, exponential in the spin count.
type Exhaustive struct {
	// MaxSpins caps the problem size. Zero means DefaultMaxSpins.
	MaxSpins int
}

func (s Exhaustive) Name() string { return "exhaustive" }

func (s Exhaustive) Solve(h *tspising.Ising) (*Result, error) {
	maxSpins := s.MaxSpins
	if maxSpins == 0 {
		maxSpins = DefaultMaxSpins
	}
	if h.Spins > maxSpins {
		return nil, errors.Errorf("%d spins exceed limit %d", h.Spins, maxSpins)
	}

	var ground []Sample
	best := 0.0
	states(h.Spins)(func(i int, z []int8) bool {
		e := h.Energy(z)
		switch {
		case i == 0 || e < best-degenerateTolerance:
			best = e
			ground = ground[:0]
			fallthrough
		case e <= best+degenerateTolerance:
			zc := make([]int8, len(z))
			copy(zc, z)
			ground = append(ground, Sample{Spins: zc, Energy: e})
		}
		return true
	})

	for i := range ground {
		ground[i].Probability = 1 / float64(len(ground))
	}
	res := &Result{Samples: ground}
	res.sort()
	return res, nil
}
