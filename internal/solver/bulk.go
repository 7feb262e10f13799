package solver

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/funvibe/infoflow/internal/constraints"
)

// DefaultParallelWorkers is T from spec.md §4.C.3.
const DefaultParallelWorkers = 16

// Engine ties a constraint Store to cached partial solutions, per kind and
// per sign, and exposes the bulk and combined-kind entry points of §4.C.3
// and §4.C.4. It owns the "lock the kind, solve it once, remember it"
// bookkeeping so repeated queries against the same kind never re-solve.
type Engine struct {
	store   *constraints.Store
	workers int

	mu       sync.Mutex
	rawCache map[string][]constraints.Constraint
	least    map[string]*PartialSolution
	greatest map[string]*PartialSolution
}

// NewEngine constructs an Engine over store. workers caps the bulk solver's
// concurrency (spec.md's "parallel_workers", default DefaultParallelWorkers
// when <= 0).
func NewEngine(store *constraints.Store, workers int) *Engine {
	if workers <= 0 {
		workers = DefaultParallelWorkers
	}
	return &Engine{
		store:    store,
		workers:  workers,
		rawCache: make(map[string][]constraints.Constraint),
		least:    make(map[string]*PartialSolution),
		greatest: make(map[string]*PartialSolution),
	}
}

// rawConstraints locks kind (if not already locked) exactly once and
// remembers its constraint list for both signs to share.
func (e *Engine) rawConstraints(kind string) []constraints.Constraint {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cs, ok := e.rawCache[kind]; ok {
		return cs
	}
	cs := e.store.LockAndTake(kind)
	e.rawCache[kind] = cs
	return cs
}

func (e *Engine) cache(sign Sign) map[string]*PartialSolution {
	if sign == Greatest {
		return e.greatest
	}
	return e.least
}

// PartialSolutionFor returns (building and caching if necessary) the
// unchained partial solution for kind under sign.
func (e *Engine) PartialSolutionFor(kind string, sign Sign) *PartialSolution {
	cache := e.cache(sign)

	e.mu.Lock()
	if ps, ok := cache[kind]; ok {
		e.mu.Unlock()
		return ps
	}
	e.mu.Unlock()

	cs := e.rawConstraints(kind)
	ps := BuildPartialSolution(cs, sign)

	e.mu.Lock()
	cache[kind] = ps
	e.mu.Unlock()
	return ps
}

// SolveMT computes both the least and greatest partial solutions for kind
// concurrently (one goroutine each) and then discards the kind's raw
// constraint list, per spec.md §4.C.3's solve_mt.
func (e *Engine) SolveMT(ctx context.Context, kind string) (least, greatest *PartialSolution, err error) {
	cs := e.rawConstraints(kind)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		least = BuildPartialSolution(cs, Least)
		e.mu.Lock()
		e.least[kind] = least
		e.mu.Unlock()
		return nil
	})
	g.Go(func() error {
		greatest = BuildPartialSolution(cs, Greatest)
		e.mu.Lock()
		e.greatest[kind] = greatest
		e.mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// The raw constraint list is no longer needed once both solutions are
	// built; drop our only remaining reference to it.
	e.mu.Lock()
	delete(e.rawCache, kind)
	e.mu.Unlock()

	return least, greatest, nil
}

// SolveLeastMT is solve_least_mt: it forks the "default" (and, if
// useDefaultSinks, "default-sinks") baseline partial solutions, already
// solved and cached by a prior PartialSolutionFor/SolveMT call, across one
// fresh copy per requested kind, distributed over up to e.workers
// goroutines, and returns the merged solutions in input order.
func (e *Engine) SolveLeastMT(ctx context.Context, kinds []string, useDefaultSinks bool) ([]*PartialSolution, error) {
	e.mu.Lock()
	baseline, ok := e.least[constraints.KindDefault]
	var sinksBaseline *PartialSolution
	if ok && useDefaultSinks {
		sinksBaseline, ok = e.least[constraints.KindDefaultSinks]
	}
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("solver: baseline must be solved before solve_least_mt (call PartialSolutionFor first)")
	}

	copies := make([]*PartialSolution, len(kinds))
	for i, k := range kinds {
		cs := e.rawConstraints(k)
		copies[i] = BuildPartialSolution(cs, Least)
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range copies {
		i := i
		g.Go(func() error {
			copies[i].MergeIn(baseline)
			if useDefaultSinks {
				copies[i].MergeIn(sinksBaseline)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return copies, nil
}

// LeastSolution and GreatestSolution implement spec.md §4.C.4: the combined
// solution over the union of several kinds' constraints, built by forking a
// copy of the first kind's cached partial solution and merging in the rest.
func (e *Engine) LeastSolution(kinds []string) *PartialSolution {
	return e.combined(kinds, Least)
}

func (e *Engine) GreatestSolution(kinds []string) *PartialSolution {
	return e.combined(kinds, Greatest)
}

func (e *Engine) combined(kinds []string, sign Sign) *PartialSolution {
	if len(kinds) == 0 {
		fatalf("combined solution over empty kind set")
	}
	result := e.PartialSolutionFor(kinds[0], sign).Copy()
	for _, k := range kinds[1:] {
		result.MergeIn(e.PartialSolutionFor(k, sign))
	}
	return result
}
