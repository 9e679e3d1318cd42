package solve

import (
	"github.com/pkg/errors"

	"tspising"
	"tspising/mat"
)

// DefaultMaxSpectralSpins bounds the explicit operator: a dense
// eigendecomposition at 2^12 is already a 4096x4096 factorization.
const DefaultMaxSpectralSpins = 12

var identity = mat.COOIdentity(2)

// Spectral realizes the Hamiltonian as an explicit 2^n x 2^n operator
// built from Kronecker products of Pauli-Z matrices and diagonalizes
// it. The returned distribution spreads uniformly over the degenerate
// ground eigenvectors' amplitudes. Exact, and useful mainly as an
// independent cross-check of the cheaper enumeration.
type Spectral struct {
	// MaxSpins caps the problem size. Zero means DefaultMaxSpectralSpins.
	MaxSpins int
}

func (s Spectral) Name() string { return "spectral" }

func (s Spectral) Solve(h *tspising.Ising) (*Result, error) {
	maxSpins := s.MaxSpins
	if maxSpins == 0 {
		maxSpins = DefaultMaxSpectralSpins
	}
	if h.Spins > maxSpins {
		return nil, errors.Errorf("%d spins exceed limit %d", h.Spins, maxSpins)
	}

	dim := 1 << h.Spins
	hamiltonian := mat.COOZeros(dim, dim)
	system := mat.COOZeros(1, 1)
	for a, coeff := range h.Fields {
		if coeff == 0 {
			continue
		}
		field(hamiltonian, h.Spins, a, coeff, system)
	}
	for ab, coeff := range h.Couplings {
		coupling(hamiltonian, h.Spins, ab[0], ab[1], coeff, system)
	}

	vvs := hamiltonian.Eigen()
	groundVal := vvs[0].Val

	// Accumulate probabilities over the degenerate ground subspace as
	// the uniform mixture of its eigenvectors.
	prob := make([]float64, dim)
	var numGround int
	for _, vv := range vvs {
		if vv.Val > groundVal+degenerateTolerance {
			break
		}
		numGround++
		for i, amp := range vv.Vec {
			prob[i] += amp * amp
		}
	}

	res := &Result{}
	states(h.Spins)(func(i int, z []int8) bool {
		p := prob[i] / float64(numGround)
		if p < 1e-12 {
			return true
		}
		zc := make([]int8, len(z))
		copy(zc, z)
		res.Samples = append(res.Samples, Sample{Spins: zc, Energy: groundVal, Probability: p})
		return true
	})
	res.sort()
	return res, nil
}

// field adds coeff * Z_a to the Hamiltonian.
func field(hamiltonian *mat.COO, numSpins, a int, coeff float64, system *mat.COO) {
	system.Scalar(1)
	for s := 0; s < numSpins; s++ {
		switch s {
		case a:
			system.Kron(mat.M(mat.PauliZ))
		default:
			system.Kron(identity)
		}
	}
	hamiltonian.Add(coeff, system)
}

// coupling adds coeff * Z_a Z_b to the Hamiltonian.
func coupling(hamiltonian *mat.COO, numSpins, a, b int, coeff float64, system *mat.COO) {
	system.Scalar(1)
	for s := 0; s < numSpins; s++ {
		switch s {
		case a, b:
			system.Kron(mat.M(mat.PauliZ))
		default:
			system.Kron(identity)
		}
	}
	hamiltonian.Add(coeff, system)
}
