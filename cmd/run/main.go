// Command run sweeps random travelling salesman instances, encodes
// each one as an Ising Hamiltonian, solves it with every applicable
// solver, and archives the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"tspising"
	"tspising/graph"
	"tspising/solve"
	"tspising/store"
)

const fnameGraph = "graph.csv"

var (
	runDir   = flag.String("d", filepath.Join("runs", "tspising"), "run directory")
	maxN     = flag.Int("n", 5, "largest instance size")
	numSeeds = flag.Int("seeds", 3, "random instances per size")
)

type config struct {
	n    int
	seed int64
}

func solveInstance(ctx context.Context, st *store.Store, c config) error {
	g, err := graph.Random(c.n, c.seed)
	if err != nil {
		return errors.Wrap(err, "")
	}

	instanceDir := filepath.Join(*runDir, fmt.Sprintf("%d-%d", c.n, c.seed))
	if err := os.MkdirAll(instanceDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}
	gPath := filepath.Join(instanceDir, fnameGraph)
	if _, err := os.Stat(gPath); err != nil {
		if err := g.WriteCSV(gPath); err != nil {
			return errors.Wrap(err, "")
		}
	}

	program, err := tspising.BuildQuadraticProgram(g)
	if err != nil {
		return errors.Wrap(err, "")
	}
	penalty := program.SafePenalty()
	qubo, err := program.ToQUBO(penalty)
	if err != nil {
		return errors.Wrap(err, "")
	}
	ising := qubo.ToIsing()

	solvers := []solve.Solver{&solve.Annealer{Seed: c.seed}}
	if ising.Spins <= solve.DefaultMaxSpins {
		solvers = append(solvers, solve.Exhaustive{})
	}
	if ising.Spins <= solve.DefaultMaxSpectralSpins {
		solvers = append(solvers, solve.Spectral{})
	}

	for _, solver := range solvers {
		done, err := st.Has(ctx, c.n, c.seed, solver.Name())
		if err != nil {
			return errors.Wrap(err, "")
		}
		if done {
			continue
		}

		res, err := solver.Solve(ising)
		if err != nil {
			return errors.Wrap(err, solver.Name())
		}
		ground := res.Ground()
		tour := tspising.DecodeSolution(tspising.SpinsToBits(ground.Spins), g)

		run := store.Run{
			Cities:    c.n,
			Seed:      c.seed,
			Solver:    solver.Name(),
			Penalty:   penalty,
			Energy:    ground.Energy + ising.Offset,
			Feasible:  tour.Feasible,
			Length:    tour.Length,
			Tour:      tour.Order,
			CreatedAt: time.Now(),
		}
		if err := st.Insert(ctx, run); err != nil {
			return errors.Wrap(err, "")
		}
		log.Printf("n=%d seed=%d %s energy=%f feasible=%t", c.n, c.seed, solver.Name(), run.Energy, run.Feasible)
	}
	return nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	ctx := context.Background()
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	st, err := store.Open(filepath.Join(*runDir, "runs.db"))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer st.Close()

	configs := make([]config, 0)
	for n := 3; n <= *maxN; n++ {
		for seed := int64(0); seed < int64(*numSeeds); seed++ {
			configs = append(configs, config{n: n, seed: seed})
		}
	}

	for _, c := range configs {
		if err := solveInstance(ctx, st, c); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d %d", c.n, c.seed))
		}
	}

	// Gather results and print them.
	runs, err := st.List(ctx)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("cities,seed,solver,penalty,energy,feasible,length,tour\n")
	for _, r := range runs {
		fmt.Printf("%d,%d,%s,%f,%f,%t,%f,%s\n", r.Cities, r.Seed, r.Solver, r.Penalty, r.Energy, r.Feasible, r.Length, fmt.Sprint(r.Tour))
	}
	return nil
}
