package impact

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"affected/internal/changes"
	"affected/internal/graph"
)

type options struct {
	workers      int
	targetOrder  []graph.TargetID
	packageOrder []graph.PackageID
}

// Option configures Compute.
type Option func(*options)

// WithWorkers runs the per-root-package passes on up to n goroutines.
// Values below 2 run sequentially.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithTargetOrder overrides the order in which reachable targets are
// linearized in sequential mode. The final tables do not depend on it.
func WithTargetOrder(order []graph.TargetID) Option {
	return func(o *options) {
		o.targetOrder = order
	}
}

// WithPackageOrder overrides the order in which root packages are visited.
func WithPackageOrder(order []graph.PackageID) Option {
	return func(o *options) {
		o.packageOrder = order
	}
}

// table is the target result table. Its only write operation is a set
// union, so concurrent passes converge to the same contents regardless of
// interleaving. mu is nil in sequential mode.
type table struct {
	mu      *sync.Mutex
	targets map[graph.TargetID]*Evidence
}

func (t *table) has(id graph.TargetID) bool {
	if t.mu != nil {
		t.mu.Lock()
		defer t.mu.Unlock()
	}
	_, ok := t.targets[id]
	return ok
}

func (t *table) union(id graph.TargetID, paths []string, deps []graph.TargetID) {
	if t.mu != nil {
		t.mu.Lock()
		defer t.mu.Unlock()
	}
	ev, ok := t.targets[id]
	if !ok {
		ev = newEvidence()
		t.targets[id] = ev
	}
	ev.merge(paths, deps)
}

// Compute determines the affected targets and root packages of g for the
// changed files. The graph must be acyclic (graph.Builder guarantees it).
// The only error returned is the context's.
func Compute(ctx context.Context, g *graph.Graph, changed changes.Set, opts ...Option) (*Result, error) {
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}

	res := newResult(g)
	tbl := &table{targets: res.Targets}

	if o.workers > 1 {
		tbl.mu = &sync.Mutex{}
		if err := computeParallel(ctx, g, changed, tbl, o.workers); err != nil {
			return nil, err
		}
	} else {
		order := o.targetOrder
		if order == nil {
			order = g.ReachableTargets()
		}
		for _, id := range order {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			propagate(g, changed, tbl, id)
		}
	}

	computePackages(g, changed, res, o.packageOrder)
	return res, nil
}

// computeParallel runs one pass per root package. Passes over packages that
// share targets repeat work but cannot disagree.
func computeParallel(ctx context.Context, g *graph.Graph, changed changes.Set, tbl *table, workers int) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, pkg := range g.RootPackages() {
		reach := g.ReachableFrom(pkg.ID)
		eg.Go(func() error {
			for _, id := range reach {
				if err := egCtx.Err(); err != nil {
					return err
				}
				propagate(g, changed, tbl, id)
			}
			return nil
		})
	}
	return eg.Wait()
}

// propagate evaluates the linearization of one target: its transitive
// dependencies with the deepest first, then the target itself. Every
// dependency a node consults has been evaluated earlier in the same
// linearization.
func propagate(g *graph.Graph, changed changes.Set, tbl *table, self graph.TargetID) {
	recursive := g.RecursiveDeps(self)
	for i := len(recursive) - 1; i >= 0; i-- {
		if recursive[i] == self {
			panic(fmt.Sprintf("impact: target %q depends on itself", g.Target(self).Name))
		}
		evaluate(g, changed, tbl, recursive[i])
	}
	evaluate(g, changed, tbl, self)
}

func evaluate(g *graph.Graph, changed changes.Set, tbl *table, id graph.TargetID) {
	t := g.Target(id)

	var paths []string
	for _, src := range t.Sources {
		if changed.Contains(src) {
			paths = append(paths, src)
		}
	}

	var deps []graph.TargetID
	for _, dep := range t.Deps {
		if tbl.has(dep) {
			deps = append(deps, dep)
		}
	}

	if len(paths) > 0 || len(deps) > 0 {
		tbl.union(id, paths, deps)
	}
}

// computePackages fills the package table. A package is affected only by
// its own path or by its own declared targets, never by another package.
func computePackages(g *graph.Graph, changed changes.Set, res *Result, order []graph.PackageID) {
	if order == nil {
		for _, p := range g.RootPackages() {
			order = append(order, p.ID)
		}
	}

	for _, id := range order {
		pkg := g.Package(id)
		if !pkg.Root {
			continue
		}

		var paths []string
		if changed.Contains(pkg.Path) {
			paths = append(paths, pkg.Path)
		}
		var deps []graph.TargetID
		for _, t := range pkg.Targets {
			if res.TargetAffected(t) {
				deps = append(deps, t)
			}
		}

		if len(paths) == 0 && len(deps) == 0 {
			continue
		}
		ev, ok := res.Packages[id]
		if !ok {
			ev = newEvidence()
			res.Packages[id] = ev
		}
		ev.merge(paths, deps)
	}
}
