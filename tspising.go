// Package tspising encodes travelling salesman instances as Ising
// Hamiltonians whose ground states are minimum-weight tours.
//
// The pipeline is CityGraph -> QuadraticProgram -> QUBO -> Ising.
// Every stage is a deterministic, pure transformation of the previous
// one, so the same graph always yields the same Hamiltonian.
package tspising

import (
	"math"

	"github.com/pkg/errors"

	"tspising/graph"
)

// QuadraticProgram is a quadratic 0/1 program over n*n binary
// variables x[i][t], meaning city i is visited at tour position t.
// Variable i*n+t holds x[i][t]. All variables are binary with box
// bounds [0, 1]. The objective is the total tour distance
//
//	sum_t sum_{i!=j} D[i][j] x[i][t] x[j][(t+1) mod n]
//
// subject to the 2n one-hot constraints in Constraints, which force
// any feasible assignment to be a permutation matrix.
type QuadraticProgram struct {
	Cities int
	Vars   int

	// Quad maps variable pairs {a, b} with a < b to their objective
	// coefficient.
	Quad        map[[2]int]float64
	Constraints []Constraint

	safePenalty float64
}

// Constraint is a linear equality sum_{v in Vars} x[v] = RHS.
type Constraint struct {
	Vars []int
	RHS  float64
}

// BuildQuadraticProgram encodes a city graph as a quadratic program
// whose optimal feasible solution is a minimum-weight Hamiltonian
// cycle. It fails with ErrInvalidGraph when the graph does not satisfy
// the CityGraph invariants.
func BuildQuadraticProgram(g *graph.CityGraph) (*QuadraticProgram, error) {
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	n := g.N
	p := &QuadraticProgram{
		Cities: n,
		Vars:   n * n,
		Quad:   make(map[[2]int]float64),
	}

	for t := 0; t < n; t++ {
		next := (t + 1) % n
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j || g.Dist[i][j] == 0 {
					continue
				}
				p.addQuad(i*n+t, j*n+next, g.Dist[i][j])
			}
		}
	}

	// Position t hosts exactly one city.
	for t := 0; t < n; t++ {
		vars := make([]int, 0, n)
		for i := 0; i < n; i++ {
			vars = append(vars, i*n+t)
		}
		p.Constraints = append(p.Constraints, Constraint{Vars: vars, RHS: 1})
	}
	// City i occupies exactly one position.
	for i := 0; i < n; i++ {
		vars := make([]int, 0, n)
		for t := 0; t < n; t++ {
			vars = append(vars, i*n+t)
		}
		p.Constraints = append(p.Constraints, Constraint{Vars: vars, RHS: 1})
	}

	p.safePenalty = float64(n)*g.MaxEdge() + 1
	return p, nil
}

func (p *QuadraticProgram) addQuad(a, b int, coeff float64) {
	if a > b {
		a, b = b, a
	}
	p.Quad[[2]int{a, b}] += coeff
}

// Objective evaluates the distance objective at a binary assignment,
// ignoring constraints.
func (p *QuadraticProgram) Objective(x []int8) float64 {
	var obj float64
	for ab, coeff := range p.Quad {
		obj += coeff * float64(x[ab[0]]) * float64(x[ab[1]])
	}
	return obj
}

// Feasible reports whether an assignment satisfies every one-hot
// constraint exactly.
func (p *QuadraticProgram) Feasible(x []int8) bool {
	for _, c := range p.Constraints {
		var sum float64
		for _, v := range c.Vars {
			sum += float64(x[v])
		}
		if sum != c.RHS {
			return false
		}
	}
	return true
}

// SafePenalty returns a penalty coefficient that provably keeps the
// unconstrained optimum feasible: a single violated one-hot constraint
// can lower the distance objective by at most n*maxEdge, while each
// violation raises the penalty term by at least the coefficient.
func (p *QuadraticProgram) SafePenalty() float64 {
	return p.safePenalty
}

// QUBO is the unconstrained form of a QuadraticProgram, with every
// equality constraint folded into the objective as a quadratic penalty
// penalty*(sum x - rhs)^2.
type QUBO struct {
	Cities  int
	Vars    int
	Penalty float64

	Constant float64
	Linear   []float64
	// Quad maps variable pairs {a, b} with a < b to their coefficient.
	Quad map[[2]int]float64

	safePenalty float64
}

// ToQUBO folds the program's equality constraints into the objective.
// penalty must be positive. A penalty below SafePenalty is accepted
// but may make the unconstrained optimum infeasible; Underpenalized
// reports that condition.
func (p *QuadraticProgram) ToQUBO(penalty float64) (*QUBO, error) {
	if penalty <= 0 {
		return nil, errors.Errorf("penalty %f is not positive", penalty)
	}

	q := &QUBO{
		Cities:      p.Cities,
		Vars:        p.Vars,
		Penalty:     penalty,
		Linear:      make([]float64, p.Vars),
		Quad:        make(map[[2]int]float64, len(p.Quad)),
		safePenalty: p.safePenalty,
	}
	for ab, coeff := range p.Quad {
		q.Quad[ab] = coeff
	}

	// penalty*(sum_a x_a - rhs)^2 expands to penalty*(sum_{a,b} x_a x_b
	// - 2*rhs*sum_a x_a + rhs^2), with x_a^2 = x_a on binaries.
	for _, c := range p.Constraints {
		for pi, a := range c.Vars {
			for qi, b := range c.Vars {
				switch {
				case a == b:
					q.Linear[a] += penalty
				case pi < qi:
					q.addQuad(a, b, 2*penalty)
				}
			}
			q.Linear[a] += -2 * penalty * c.RHS
		}
		q.Constant += penalty * c.RHS * c.RHS
	}

	return q, nil
}

func (q *QUBO) addQuad(a, b int, coeff float64) {
	if a > b {
		a, b = b, a
	}
	q.Quad[[2]int{a, b}] += coeff
}

// Underpenalized reports whether the penalty is below the provably
// sufficient threshold. Advisory only; the caller may proceed at their
// own risk.
func (q *QUBO) Underpenalized() bool {
	return q.Penalty < q.safePenalty
}

// Energy evaluates the unconstrained objective at a binary assignment.
// On feasible assignments it equals the program objective, since all
// penalty terms vanish there.
func (q *QUBO) Energy(x []int8) float64 {
	e := q.Constant
	for a, coeff := range q.Linear {
		e += coeff * float64(x[a])
	}
	for ab, coeff := range q.Quad {
		e += coeff * float64(x[ab[0]]) * float64(x[ab[1]])
	}
	return e
}

// Ising is an energy function over spin variables z in {-1, +1},
//
//	E(z) = sum_a Fields[a] z_a + sum_{a<b} Couplings[{a,b}] z_a z_b
//
// obtained from a QUBO by the substitution x = (1 - z) / 2, so z = +1
// encodes x = 0. For every assignment, E(z) + Offset equals the QUBO
// objective at the corresponding x.
type Ising struct {
	Spins     int
	Fields    []float64
	Couplings map[[2]int]float64
	Offset    float64
}

// ToIsing rewrites the QUBO over spin variables, collecting single-spin
// field terms, two-spin coupling terms, and the scalar offset.
func (q *QUBO) ToIsing() *Ising {
	h := &Ising{
		Spins:     q.Vars,
		Fields:    make([]float64, q.Vars),
		Couplings: make(map[[2]int]float64, len(q.Quad)),
		Offset:    q.Constant,
	}

	// linear: c*x = c/2 - c/2 * z
	for a, coeff := range q.Linear {
		h.Offset += coeff / 2
		h.Fields[a] -= coeff / 2
	}
	// quadratic: c*x_a*x_b = c/4 * (1 - z_a - z_b + z_a z_b)
	for ab, coeff := range q.Quad {
		h.Offset += coeff / 4
		h.Fields[ab[0]] -= coeff / 4
		h.Fields[ab[1]] -= coeff / 4
		h.Couplings[ab] += coeff / 4
	}
	for ab, coeff := range h.Couplings {
		if coeff == 0 {
			delete(h.Couplings, ab)
		}
	}

	return h
}

// Energy evaluates the Hamiltonian at a spin assignment, excluding
// Offset.
func (h *Ising) Energy(z []int8) float64 {
	var e float64
	for a, coeff := range h.Fields {
		e += coeff * float64(z[a])
	}
	for ab, coeff := range h.Couplings {
		e += coeff * float64(z[ab[0]]) * float64(z[ab[1]])
	}
	return e
}

// SpinsToBits maps spins to binaries under the x = (1 - z) / 2
// convention used by ToIsing.
func SpinsToBits(z []int8) []int8 {
	x := make([]int8, len(z))
	for a, s := range z {
		if s < 0 {
			x[a] = 1
		}
	}
	return x
}

// Tour is a decoded solution. When Feasible is false the assignment is
// not a permutation and Order is nil and Length is NaN.
type Tour struct {
	Order    []int
	Length   float64
	Feasible bool
}

// DecodeSolution reshapes a flat bitstring of length n*n into the
// assignment matrix x[i][t], checks the one-hot invariant, and reads
// off the tour and its length. Infeasible assignments are a normal
// outcome of approximate solvers, so they are reported, not errored.
func DecodeSolution(bits []int8, g *graph.CityGraph) Tour {
	n := g.N
	if len(bits) != n*n {
		return Tour{Length: math.NaN()}
	}

	order := make([]int, n)
	for t := 0; t < n; t++ {
		order[t] = -1
	}
	for i := 0; i < n; i++ {
		var rowSum int
		for t := 0; t < n; t++ {
			if bits[i*n+t] == 0 {
				continue
			}
			rowSum++
			if order[t] != -1 {
				// Two cities at one position.
				return Tour{Length: math.NaN()}
			}
			order[t] = i
		}
		if rowSum != 1 {
			return Tour{Length: math.NaN()}
		}
	}
	for _, city := range order {
		if city == -1 {
			return Tour{Length: math.NaN()}
		}
	}

	return Tour{Order: order, Length: g.TourLength(order), Feasible: true}
}
