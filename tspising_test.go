package tspising

import (
	stderrors "errors"
	"flag"
	"fmt"
	"log"
	"math"
	"reflect"
	"testing"

	"tspising/graph"
)

// testGraph is the 3-city fixture. Every Hamiltonian cycle on 3 nodes
// is a rotation or reflection of the same tour, of length
// 48+63+91 = 202.
func testGraph(t *testing.T) *graph.CityGraph {
	g, err := graph.New([][]float64{
		{0, 48, 91},
		{48, 0, 63},
		{91, 63, 0},
	}, nil)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return g
}

// permutations returns all orderings of [0, n).
func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	perms := make([][]int, 0)
	for _, sub := range permutations(n - 1) {
		for pos := 0; pos <= len(sub); pos++ {
			perm := make([]int, 0, n)
			perm = append(perm, sub[:pos]...)
			perm = append(perm, n-1)
			perm = append(perm, sub[pos:]...)
			perms = append(perms, perm)
		}
	}
	return perms
}

// tourBits encodes a tour as the flat assignment x[i][t].
func tourBits(order []int) []int8 {
	n := len(order)
	bits := make([]int8, n*n)
	for t, city := range order {
		bits[city*n+t] = 1
	}
	return bits
}

// assignments iterates over all 2^n bitstrings of length n.
func assignments(n int) func(yield func([]int8) bool) {
	x := make([]int8, n)
	return func(yield func([]int8) bool) {
		for i := 0; i < 1<<n; i++ {
			for a := 0; a < n; a++ {
				x[a] = int8(i >> (n - 1 - a) & 1)
			}
			if !yield(x) {
				return
			}
		}
	}
}

func TestBuildQuadraticProgram(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	p, err := BuildQuadraticProgram(g)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	if p.Vars != 9 {
		t.Fatalf("%d", p.Vars)
	}
	if len(p.Constraints) != 6 {
		t.Fatalf("%d", len(p.Constraints))
	}
	for i, c := range p.Constraints {
		if len(c.Vars) != 3 || c.RHS != 1 {
			t.Fatalf("%d %#v", i, c)
		}
	}

	// The objective at a tour assignment is the tour length.
	for _, perm := range permutations(3) {
		obj := p.Objective(tourBits(perm))
		if obj != g.TourLength(perm) {
			t.Fatalf("%v %f %f", perm, obj, g.TourLength(perm))
		}
	}
}

func TestBuildQuadraticProgramInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		dist [][]float64
	}{
		{name: "tooSmall", dist: [][]float64{{0}}},
		{name: "nonSquare", dist: [][]float64{{0, 1}, {1, 0}, {2, 3}}},
		{name: "asymmetric", dist: [][]float64{{0, 1}, {2, 0}}},
		{name: "negative", dist: [][]float64{{0, -1}, {-1, 0}}},
		{name: "diagonal", dist: [][]float64{{1, 2}, {2, 0}}},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			g := &graph.CityGraph{N: len(test.dist), Dist: test.dist}
			if _, err := BuildQuadraticProgram(g); !stderrors.Is(err, graph.ErrInvalidGraph) {
				t.Fatalf("%+v", err)
			}
		})
	}
}

func TestQuboFeasibleEquivalence(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	p, err := BuildQuadraticProgram(g)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	for _, penalty := range []float64{p.SafePenalty(), 1e6} {
		penalty := penalty
		t.Run(fmt.Sprintf("%f", penalty), func(t *testing.T) {
			t.Parallel()
			q, err := p.ToQUBO(penalty)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			// Penalty terms vanish on every feasible point.
			for _, perm := range permutations(3) {
				x := tourBits(perm)
				if !p.Feasible(x) {
					t.Fatalf("%v", perm)
				}
				qe, obj := q.Energy(x), p.Objective(x)
				if math.Abs(qe-obj) > 1e-9*(1+math.Abs(obj)) {
					t.Fatalf("%v %f %f", perm, qe, obj)
				}
			}
		})
	}
}

func TestToQuboPenalty(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	p, err := BuildQuadraticProgram(g)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// A violated one-hot constraint can hide at most n*maxEdge of
	// objective.
	if p.SafePenalty() != 3*91+1 {
		t.Fatalf("%f", p.SafePenalty())
	}

	if _, err := p.ToQUBO(0); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := p.ToQUBO(-1); err == nil {
		t.Fatalf("expected error")
	}

	q, err := p.ToQUBO(p.SafePenalty() / 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !q.Underpenalized() {
		t.Fatalf("expected underpenalized")
	}
	q, err = p.ToQUBO(p.SafePenalty())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if q.Underpenalized() {
		t.Fatalf("unexpected underpenalized")
	}
}

func TestIsingEquivalence(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	p, err := BuildQuadraticProgram(g)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	q, err := p.ToQUBO(p.SafePenalty())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	h := q.ToIsing()

	// Over all 2^9 assignments, IsingEnergy(z) + offset must equal
	// QUBO(x) under x = (1-z)/2.
	z := make([]int8, q.Vars)
	assignments(q.Vars)(func(x []int8) bool {
		for a, b := range x {
			z[a] = 1 - 2*b
		}
		qe := q.Energy(x)
		ie := h.Energy(z) + h.Offset
		if math.Abs(qe-ie) > 1e-9*(1+math.Abs(qe)) {
			t.Fatalf("%v %f %f", x, qe, ie)
		}
		return true
	})
}

func TestDecodeSolution(t *testing.T) {
	t.Parallel()
	g := testGraph(t)

	tests := []struct {
		name     string
		bits     []int8
		feasible bool
		order    []int
		length   float64
	}{
		{
			name:     "identity",
			bits:     []int8{1, 0, 0, 0, 1, 0, 0, 0, 1},
			feasible: true,
			order:    []int{0, 1, 2},
			length:   202,
		},
		{
			name:     "rotated",
			bits:     tourBits([]int{1, 2, 0}),
			feasible: true,
			order:    []int{1, 2, 0},
			length:   202,
		},
		{
			name: "allZero",
			bits: make([]int8, 9),
		},
		{
			name: "doubledPosition",
			bits: []int8{1, 0, 0, 1, 0, 0, 0, 1, 1},
		},
		{
			name: "doubledCity",
			bits: []int8{1, 1, 0, 0, 0, 1, 0, 0, 0},
		},
		{
			name: "wrongLength",
			bits: make([]int8, 4),
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			tour := DecodeSolution(test.bits, g)
			if tour.Feasible != test.feasible {
				t.Fatalf("%#v", tour)
			}
			if !test.feasible {
				if tour.Order != nil || !math.IsNaN(tour.Length) {
					t.Fatalf("%#v", tour)
				}
				return
			}
			if !reflect.DeepEqual(tour.Order, test.order) {
				t.Fatalf("%v, expected %v", tour.Order, test.order)
			}
			if tour.Length != test.length {
				t.Fatalf("%f, expected %f", tour.Length, test.length)
			}
		})
	}
}

func TestMinimality(t *testing.T) {
	t.Parallel()
	g := testGraph(t)
	p, err := BuildQuadraticProgram(g)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	q, err := p.ToQUBO(p.SafePenalty())
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// Brute force over the 3! tours.
	minTour := math.Inf(1)
	for _, perm := range permutations(3) {
		if l := g.TourLength(perm); l < minTour {
			minTour = l
		}
	}
	if minTour != 202 {
		t.Fatalf("%f", minTour)
	}

	// Exhaustive search over all 2^9 bitstrings restricted to
	// feasible ones must agree.
	minFeasible := math.Inf(1)
	minOverall := math.Inf(1)
	assignments(q.Vars)(func(x []int8) bool {
		e := q.Energy(x)
		if e < minOverall {
			minOverall = e
		}
		if p.Feasible(x) && e < minFeasible {
			minFeasible = e
		}
		return true
	})
	if minFeasible != minTour {
		t.Fatalf("%f, expected %f", minFeasible, minTour)
	}
	// With a sufficient penalty the unconstrained optimum stays
	// feasible.
	if minOverall != minFeasible {
		t.Fatalf("%f %f", minOverall, minFeasible)
	}
}

func TestDeterminism(t *testing.T) {
	t.Parallel()
	g := testGraph(t)

	build := func() *Ising {
		p, err := BuildQuadraticProgram(g)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		q, err := p.ToQUBO(p.SafePenalty())
		if err != nil {
			t.Fatalf("%+v", err)
		}
		return q.ToIsing()
	}

	h1, h2 := build(), build()
	if h1.Offset != h2.Offset {
		t.Fatalf("%f %f", h1.Offset, h2.Offset)
	}
	if !reflect.DeepEqual(h1.Fields, h2.Fields) {
		t.Fatalf("%v %v", h1.Fields, h2.Fields)
	}
	if !reflect.DeepEqual(h1.Couplings, h2.Couplings) {
		t.Fatalf("%v %v", h1.Couplings, h2.Couplings)
	}
}

func TestSpinsToBits(t *testing.T) {
	t.Parallel()
	z := []int8{1, -1, -1, 1}
	x := SpinsToBits(z)
	if !reflect.DeepEqual(x, []int8{0, 1, 1, 0}) {
		t.Fatalf("%v", x)
	}
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
