package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Builder assembles a Graph. Dependencies are recorded by target name so that
// targets can be added in any order; they are resolved and validated by Build.
// Errors are collected and reported together by Build.
type Builder struct {
	targets  []Target
	packages []Package
	byName   map[string]TargetID
	pkgNames map[string]PackageID
	pending  [][]string
	errs     []error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		byName:   make(map[string]TargetID),
		pkgNames: make(map[string]PackageID),
	}
}

// AddPackage declares a package and returns its ID.
func (b *Builder) AddPackage(name, path string, root bool) PackageID {
	id := PackageID(len(b.packages))
	if _, dup := b.pkgNames[name]; dup {
		b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrDuplicatePackage, name))
	} else {
		b.pkgNames[name] = id
	}
	b.packages = append(b.packages, Package{ID: id, Name: name, Path: path, Root: root})
	return id
}

// AddTarget declares a target owned by pkg and returns its ID.
func (b *Builder) AddTarget(pkg PackageID, name string, kind TargetKind, sources []string) TargetID {
	id := TargetID(len(b.targets))
	if _, dup := b.byName[name]; dup {
		b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrDuplicateTarget, name))
	} else {
		b.byName[name] = id
	}
	k, err := ParseTargetKind(string(kind))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("target %q: %w", name, err))
		k = kind
	}
	if int(pkg) < 0 || int(pkg) >= len(b.packages) {
		b.errs = append(b.errs, fmt.Errorf("target %q: unknown package id %d", name, pkg))
	} else {
		b.packages[pkg].Targets = append(b.packages[pkg].Targets, id)
	}

	b.targets = append(b.targets, Target{
		ID:      id,
		Name:    name,
		Kind:    k,
		Package: pkg,
		Sources: append([]string(nil), sources...),
	})
	b.pending = append(b.pending, nil)
	return id
}

// AddDependency records a direct edge from a target to the target named to.
func (b *Builder) AddDependency(from TargetID, to string) {
	if int(from) < 0 || int(from) >= len(b.targets) {
		b.errs = append(b.errs, fmt.Errorf("dependency %q: unknown target id %d", to, from))
		return
	}
	b.pending[from] = append(b.pending[from], to)
}

// Build resolves dependency names, rejects malformed graphs and precomputes
// the transitive dependency lists. The Builder must not be reused afterwards.
func (b *Builder) Build() (*Graph, error) {
	errs := append([]error(nil), b.errs...)

	for i := range b.targets {
		seen := make(map[TargetID]bool)
		for _, name := range b.pending[i] {
			dep, ok := b.byName[name]
			if !ok {
				errs = append(errs, fmt.Errorf("target %q: %w %q", b.targets[i].Name, ErrUnknownDependency, name))
				continue
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			b.targets[i].Deps = append(b.targets[i].Deps, dep)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cycle := findCycle(b.targets); cycle != nil {
		names := make([]string, len(cycle))
		for i, id := range cycle {
			names[i] = b.targets[id].Name
		}
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(names, " -> "))
	}

	g := &Graph{
		targets:   b.targets,
		packages:  b.packages,
		byName:    b.byName,
		recursive: make([][]TargetID, len(b.targets)),
	}
	for i := range g.targets {
		g.recursive[i] = recursiveDeps(g.targets, TargetID(i))
	}
	g.reachable = reachable(g)
	return g, nil
}

// recursiveDeps returns the transitive dependencies of id with every
// dependent ahead of its dependencies. It is the reverse of a DFS postorder.
func recursiveDeps(targets []Target, id TargetID) []TargetID {
	visited := map[TargetID]bool{id: true}
	var post []TargetID

	var visit func(TargetID)
	visit = func(t TargetID) {
		if visited[t] {
			return
		}
		visited[t] = true
		for _, dep := range targets[t].Deps {
			visit(dep)
		}
		post = append(post, t)
	}
	for _, dep := range targets[id].Deps {
		visit(dep)
	}

	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

func reachable(g *Graph) []TargetID {
	seen := make([]bool, len(g.targets))
	for _, p := range g.packages {
		if !p.Root {
			continue
		}
		for _, id := range p.Targets {
			seen[id] = true
			for _, dep := range g.recursive[id] {
				seen[dep] = true
			}
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

// findCycle returns the first dependency cycle found, as a path that starts
// and ends with the same target, or nil if the graph is acyclic.
func findCycle(targets []Target) []TargetID {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(targets))
	var stack []TargetID

	var visit func(TargetID) []TargetID
	visit = func(t TargetID) []TargetID {
		color[t] = grey
		stack = append(stack, t)
		for _, dep := range targets[t].Deps {
			switch color[dep] {
			case grey:
				for i, s := range stack {
					if s == dep {
						cycle := append([]TargetID(nil), stack[i:]...)
						return append(cycle, dep)
					}
				}
			case white:
				if c := visit(dep); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[t] = black
		return nil
	}

	for i := range targets {
		if color[i] == white {
			if c := visit(TargetID(i)); c != nil {
				return c
			}
		}
	}
	return nil
}
