package solve

import (
	"math"
	"math/rand"
	"slices"

	"tspising"
)

// Annealer samples low-energy assignments by simulated annealing with
// Metropolis single-spin flips over a geometric inverse-temperature
// schedule. It is the approximate, polynomial-cost stand-in for
// variational quantum solvers: its output is an empirical distribution
// over the final state of each read, and feasibility of the best
// sample is not guaranteed.
//
// Runs are deterministic given the configuration: the same Seed always
// yields the same result.
type Annealer struct {
	// Sweeps is the number of full single-spin-flip passes per read.
	// Zero means 1000.
	Sweeps int
	// Reads is the number of independent restarts. Zero means 64.
	Reads int
	Seed  int64

	// BetaMin and BetaMax bound the inverse-temperature schedule.
	// When zero they are derived from the Hamiltonian's coefficient
	// scale: the hot end accepts almost any flip, the cold end
	// freezes the smallest coefficient.
	BetaMin float64
	BetaMax float64
}

func (s *Annealer) Name() string { return "anneal" }

// neighbor is one coupling seen from a single spin.
type neighbor struct {
	spin  int
	coeff float64
}

func (s *Annealer) Solve(h *tspising.Ising) (*Result, error) {
	sweeps := s.Sweeps
	if sweeps == 0 {
		sweeps = 1000
	}
	reads := s.Reads
	if reads == 0 {
		reads = 64
	}

	neighbors := make([][]neighbor, h.Spins)
	for ab, coeff := range h.Couplings {
		a, b := ab[0], ab[1]
		neighbors[a] = append(neighbors[a], neighbor{spin: b, coeff: coeff})
		neighbors[b] = append(neighbors[b], neighbor{spin: a, coeff: coeff})
	}
	// Map iteration order is random; keep runs reproducible.
	for _, nb := range neighbors {
		slices.SortFunc(nb, func(x, y neighbor) int { return x.spin - y.spin })
	}

	betaMin, betaMax := s.BetaMin, s.BetaMax
	if betaMin == 0 {
		betaMin = 0.01 / hotScale(h, neighbors)
	}
	if betaMax == 0 {
		betaMax = 5 / coldScale(h)
	}
	betaStep := 1.0
	if sweeps > 1 {
		betaStep = math.Pow(betaMax/betaMin, 1/float64(sweeps-1))
	}

	r := rand.New(rand.NewSource(s.Seed))
	z := make([]int8, h.Spins)
	counts := make(map[string]int, reads)
	energies := make(map[string]float64, reads)
	for read := 0; read < reads; read++ {
		for a := range z {
			if r.Intn(2) == 0 {
				z[a] = 1
			} else {
				z[a] = -1
			}
		}

		beta := betaMin
		for sweep := 0; sweep < sweeps; sweep++ {
			for a := 0; a < h.Spins; a++ {
				local := h.Fields[a]
				for _, nb := range neighbors[a] {
					local += nb.coeff * float64(z[nb.spin])
				}
				// Flipping z_a changes the energy by -2*z_a*local.
				dE := -2 * float64(z[a]) * local
				if dE <= 0 || r.Float64() < math.Exp(-beta*dE) {
					z[a] = -z[a]
				}
			}
			beta *= betaStep
		}

		key := spinKey(z)
		counts[key]++
		if _, ok := energies[key]; !ok {
			energies[key] = h.Energy(z)
		}
	}

	res := &Result{Samples: make([]Sample, 0, len(counts))}
	for key, count := range counts {
		res.Samples = append(res.Samples, Sample{
			Spins:       keySpins(key),
			Energy:      energies[key],
			Probability: float64(count) / float64(reads),
		})
	}
	res.sort()
	return res, nil
}

// hotScale is the largest local field magnitude any spin can see, a
// Gerschgorin-style bound on single-flip energy changes.
func hotScale(h *tspising.Ising, neighbors [][]neighbor) float64 {
	scale := 1.0
	for a, coeff := range h.Fields {
		local := math.Abs(coeff)
		for _, nb := range neighbors[a] {
			local += math.Abs(nb.coeff)
		}
		if local > scale {
			scale = local
		}
	}
	return scale
}

// coldScale is the smallest non-zero coefficient magnitude, the finest
// energy difference the schedule must resolve.
func coldScale(h *tspising.Ising) float64 {
	scale := math.Inf(1)
	for _, coeff := range h.Fields {
		if c := math.Abs(coeff); c > 0 && c < scale {
			scale = c
		}
	}
	for _, coeff := range h.Couplings {
		if c := math.Abs(coeff); c > 0 && c < scale {
			scale = c
		}
	}
	if math.IsInf(scale, 1) {
		return 1
	}
	return scale
}

func spinKey(z []int8) string {
	b := make([]byte, len(z))
	for a, s := range z {
		if s < 0 {
			b[a] = '1'
		} else {
			b[a] = '0'
		}
	}
	return string(b)
}

func keySpins(key string) []int8 {
	z := make([]int8, len(key))
	for a := range key {
		if key[a] == '1' {
			z[a] = -1
		} else {
			z[a] = 1
		}
	}
	return z
}
