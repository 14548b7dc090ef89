// Package impact computes which targets and root packages of a graph are
// affected by a set of changed files, and the direct evidence for each.
package impact

import (
	"affected/internal/graph"
)

// Evidence is the direct reason a unit is affected: the owned paths that
// changed, and the direct dependencies that are affected themselves.
// For a package, Sources holds its own path and Dependencies its declared
// targets.
type Evidence struct {
	Sources      map[string]struct{}
	Dependencies map[graph.TargetID]struct{}
}

func newEvidence() *Evidence {
	return &Evidence{
		Sources:      make(map[string]struct{}),
		Dependencies: make(map[graph.TargetID]struct{}),
	}
}

// HasSource reports whether path was recorded as touched.
func (e *Evidence) HasSource(path string) bool {
	_, ok := e.Sources[path]
	return ok
}

// HasDependency reports whether id was recorded as an affected dependency.
func (e *Evidence) HasDependency(id graph.TargetID) bool {
	_, ok := e.Dependencies[id]
	return ok
}

func (e *Evidence) merge(paths []string, deps []graph.TargetID) {
	for _, p := range paths {
		e.Sources[p] = struct{}{}
	}
	for _, d := range deps {
		e.Dependencies[d] = struct{}{}
	}
}

// UnitKind distinguishes the two kinds of unit that carry Evidence.
type UnitKind uint8

const (
	UnitTarget UnitKind = iota
	UnitPackage
)

func (k UnitKind) String() string {
	switch k {
	case UnitTarget:
		return "target"
	case UnitPackage:
		return "package"
	default:
		return "unknown"
	}
}

// Unit is either a target or a package. ID is a graph.TargetID or a
// graph.PackageID depending on Kind.
type Unit struct {
	Kind UnitKind
	ID   int
}

// Entry pairs an affected unit with its evidence.
type Entry struct {
	Unit     Unit
	Evidence *Evidence
}

// Result holds the two affected tables. A unit is present iff it is
// affected.
type Result struct {
	Targets  map[graph.TargetID]*Evidence
	Packages map[graph.PackageID]*Evidence

	graph *graph.Graph
}

func newResult(g *graph.Graph) *Result {
	return &Result{
		Targets:  make(map[graph.TargetID]*Evidence),
		Packages: make(map[graph.PackageID]*Evidence),
		graph:    g,
	}
}

// Graph returns the graph the result was computed over.
func (r *Result) Graph() *graph.Graph {
	return r.graph
}

// TargetAffected reports whether the target has an entry.
func (r *Result) TargetAffected(id graph.TargetID) bool {
	_, ok := r.Targets[id]
	return ok
}

// PackageAffected reports whether the package has an entry.
func (r *Result) PackageAffected(id graph.PackageID) bool {
	_, ok := r.Packages[id]
	return ok
}

// Len returns the number of affected units.
func (r *Result) Len() int {
	return len(r.Targets) + len(r.Packages)
}

// Empty reports whether nothing is affected.
func (r *Result) Empty() bool {
	return r.Len() == 0
}

// Entries flattens both tables: packages first, then targets, each in graph
// declaration order.
func (r *Result) Entries() []Entry {
	entries := make([]Entry, 0, r.Len())
	for _, p := range r.graph.Packages() {
		if ev, ok := r.Packages[p.ID]; ok {
			entries = append(entries, Entry{Unit: Unit{Kind: UnitPackage, ID: int(p.ID)}, Evidence: ev})
		}
	}
	for _, t := range r.graph.Targets() {
		if ev, ok := r.Targets[t.ID]; ok {
			entries = append(entries, Entry{Unit: Unit{Kind: UnitTarget, ID: int(t.ID)}, Evidence: ev})
		}
	}
	return entries
}
