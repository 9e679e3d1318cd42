// Package graph holds city graphs for travelling salesman instances.
package graph

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// ErrInvalidGraph is returned when a distance matrix is not a valid
// TSP instance: fewer than 2 cities, non-square, asymmetric, negative
// weights, or a non-zero diagonal.
var ErrInvalidGraph = errors.New("invalid city graph")

// symTolerance is the absolute tolerance for the symmetry check.
const symTolerance = 1e-9

// CityGraph is an immutable TSP instance with n cities.
// Dist is a symmetric, zero-diagonal, non-negative distance matrix.
// Pos holds 2D coordinates for display only and may be nil.
type CityGraph struct {
	N    int
	Pos  [][2]float64
	Dist [][]float64
}

func New(dist [][]float64, pos [][2]float64) (*CityGraph, error) {
	g := &CityGraph{N: len(dist), Pos: pos, Dist: dist}
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return g, nil
}

// Random returns an instance with n cities placed uniformly in
// [0,100)x[0,100), with distances rounded to the nearest integer.
// The same (n, seed) always yields the same instance.
func Random(n int, seed int64) (*CityGraph, error) {
	if n < 2 {
		return nil, errors.Wrapf(ErrInvalidGraph, "n=%d", n)
	}
	r := rand.New(rand.NewSource(seed))

	pos := make([][2]float64, n)
	for i := range pos {
		pos[i] = [2]float64{r.Float64() * 100, r.Float64() * 100}
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Round(math.Hypot(pos[i][0]-pos[j][0], pos[i][1]-pos[j][1]))
			dist[i][j], dist[j][i] = d, d
		}
	}

	return &CityGraph{N: n, Pos: pos, Dist: dist}, nil
}

func (g *CityGraph) Validate() error {
	if g.N < 2 {
		return errors.Wrapf(ErrInvalidGraph, "n=%d", g.N)
	}
	if len(g.Dist) != g.N {
		return errors.Wrapf(ErrInvalidGraph, "%d rows, n=%d", len(g.Dist), g.N)
	}
	if g.Pos != nil && len(g.Pos) != g.N {
		return errors.Wrapf(ErrInvalidGraph, "%d positions, n=%d", len(g.Pos), g.N)
	}
	for i, row := range g.Dist {
		if len(row) != g.N {
			return errors.Wrapf(ErrInvalidGraph, "row %d has %d columns", i, len(row))
		}
		if row[i] != 0 {
			return errors.Wrapf(ErrInvalidGraph, "diagonal [%d][%d]=%f", i, i, row[i])
		}
		for j, d := range row {
			if d < 0 {
				return errors.Wrapf(ErrInvalidGraph, "[%d][%d]=%f", i, j, d)
			}
			if math.Abs(d-g.Dist[j][i]) > symTolerance {
				return errors.Wrapf(ErrInvalidGraph, "[%d][%d]=%f, [%d][%d]=%f", i, j, d, j, i, g.Dist[j][i])
			}
		}
	}
	return nil
}

// MaxEdge returns the largest distance in the instance.
func (g *CityGraph) MaxEdge() float64 {
	var max float64
	for _, row := range g.Dist {
		for _, d := range row {
			if d > max {
				max = d
			}
		}
	}
	return max
}

// TourLength returns the length of the closed tour visiting cities in
// the given order, including the edge back to the start.
// order must be a permutation of [0, n).
func (g *CityGraph) TourLength(order []int) float64 {
	var length float64
	for k, city := range order {
		next := order[(k+1)%len(order)]
		length += g.Dist[city][next]
	}
	return length
}

// WriteCSV saves the instance as n rows of distances followed by n
// rows of x,y positions. Positions are omitted when nil.
func (g *CityGraph) WriteCSV(fpath string) error {
	f, err := os.Create(fpath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(f)

	row := make([]string, g.N)
	for _, drow := range g.Dist {
		for j, d := range drow {
			row[j] = strconv.FormatFloat(d, 'g', -1, 64)
		}
		if err1 := w.Write(row); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
		}
	}
	for _, p := range g.Pos {
		prow := []string{strconv.FormatFloat(p[0], 'g', -1, 64), strconv.FormatFloat(p[1], 'g', -1, 64)}
		if err1 := w.Write(prow); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
		}
	}

	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := f.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

func ReadCSV(fpath string) (*CityGraph, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(ErrInvalidGraph, "empty file %s", fpath)
	}
	n := len(records[0])
	if len(records) != n && len(records) != 2*n {
		return nil, errors.Wrapf(ErrInvalidGraph, "%d rows for %d columns", len(records), n)
	}

	dist := make([][]float64, n)
	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
		if len(records[i]) != n {
			return nil, errors.Wrapf(ErrInvalidGraph, "row %d has %d columns", i, len(records[i]))
		}
		for j, s := range records[i] {
			dist[i][j], err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%d %d %#v", i, j, s))
			}
		}
	}

	var pos [][2]float64
	if len(records) == 2*n {
		pos = make([][2]float64, n)
		for i := 0; i < n; i++ {
			rec := records[n+i]
			if len(rec) != 2 {
				return nil, errors.Wrapf(ErrInvalidGraph, "position row %d: %#v", i, rec)
			}
			for j, s := range rec {
				pos[i][j], err = strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, errors.Wrap(err, fmt.Sprintf("%d %d %#v", i, j, s))
				}
			}
		}
	}

	return New(dist, pos)
}
