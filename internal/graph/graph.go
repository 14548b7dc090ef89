package graph

import "errors"

var (
	ErrDuplicateTarget   = errors.New("duplicate target name")
	ErrDuplicatePackage  = errors.New("duplicate package name")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrInvalidKind       = errors.New("invalid target kind")
	ErrCycle             = errors.New("dependency cycle")
)

// Graph is a read-only dependency graph of packages and targets. It is built
// once by a Builder and never mutated afterwards, so it is safe for
// concurrent readers.
type Graph struct {
	targets   []Target
	packages  []Package
	byName    map[string]TargetID
	recursive [][]TargetID
	reachable []TargetID
}

// Targets returns all targets in declaration order.
func (g *Graph) Targets() []Target {
	return g.targets
}

// Target returns the target with the given ID.
func (g *Graph) Target(id TargetID) Target {
	return g.targets[id]
}

// TargetByName looks up a target by its unique name.
func (g *Graph) TargetByName(name string) (Target, bool) {
	id, ok := g.byName[name]
	if !ok {
		return Target{}, false
	}
	return g.targets[id], true
}

// Packages returns all packages in declaration order.
func (g *Graph) Packages() []Package {
	return g.packages
}

// Package returns the package with the given ID.
func (g *Graph) Package(id PackageID) Package {
	return g.packages[id]
}

// RootPackages returns the root packages in declaration order.
func (g *Graph) RootPackages() []Package {
	var roots []Package
	for _, p := range g.packages {
		if p.Root {
			roots = append(roots, p)
		}
	}
	return roots
}

// RecursiveDeps returns every transitive dependency of a target, ordered so
// that each dependent precedes its own dependencies. Reversing the slice
// gives a dependencies-first order.
func (g *Graph) RecursiveDeps(id TargetID) []TargetID {
	return g.recursive[id]
}

// ReachableTargets returns the targets declared by root packages together
// with all of their transitive dependencies, in declaration order.
func (g *Graph) ReachableTargets() []TargetID {
	return g.reachable
}

// ReachableFrom returns the targets reachable from a single package: its
// declared targets and their transitive dependencies, in declaration order.
func (g *Graph) ReachableFrom(pkg PackageID) []TargetID {
	seen := make([]bool, len(g.targets))
	for _, id := range g.packages[pkg].Targets {
		seen[id] = true
		for _, dep := range g.recursive[id] {
			seen[dep] = true
		}
	}
	var out []TargetID
	for id, ok := range seen {
		if ok {
			out = append(out, TargetID(id))
		}
	}
	return out
}

// Len returns the number of targets in the graph.
func (g *Graph) Len() int {
	return len(g.targets)
}
