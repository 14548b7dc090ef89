// Package report projects impact results into name-addressed records and
// renders them for consumers such as build schedulers and test selectors.
package report

import (
	"fmt"

	"affected/internal/graph"
	"affected/internal/impact"
)

// RecordType is the external kind tag of a record. The string values are
// part of the output contract.
type RecordType string

const (
	TypeExecutable   RecordType = "executable"
	TypeLibrary      RecordType = "library"
	TypeSystemModule RecordType = "systemModule"
	TypeTest         RecordType = "test"
	TypePackage      RecordType = "package"
)

// Record is the serialization-ready view of one affected unit. It holds no
// references back into the graph.
type Record struct {
	Name         string     `json:"name"`
	Type         RecordType `json:"type"`
	Sources      []string   `json:"sources"`
	Dependencies []string   `json:"dependencies"`
}

// typeOf maps a validated target kind. Build rejects any other kind.
func typeOf(kind graph.TargetKind) RecordType {
	switch kind {
	case graph.KindLibrary:
		return TypeLibrary
	case graph.KindExecutable:
		return TypeExecutable
	case graph.KindSystemModule:
		return TypeSystemModule
	case graph.KindTest:
		return TypeTest
	default:
		panic(fmt.Sprintf("report: unvalidated target kind %q", kind))
	}
}

// Project flattens a result into records: packages first, then targets,
// each in graph declaration order. Sources keep the unit's own order and
// dependencies are reported by name in declaration order, so the output is
// deterministic.
func Project(r *impact.Result) []Record {
	g := r.Graph()
	records := make([]Record, 0, r.Len())

	for _, e := range r.Entries() {
		ev := e.Evidence
		switch e.Unit.Kind {
		case impact.UnitPackage:
			pkg := g.Package(graph.PackageID(e.Unit.ID))
			rec := Record{Name: pkg.Name, Type: TypePackage, Sources: []string{}, Dependencies: []string{}}
			if ev.HasSource(pkg.Path) {
				rec.Sources = append(rec.Sources, pkg.Path)
			}
			for _, id := range pkg.Targets {
				if ev.HasDependency(id) {
					rec.Dependencies = append(rec.Dependencies, g.Target(id).Name)
				}
			}
			records = append(records, rec)

		case impact.UnitTarget:
			t := g.Target(graph.TargetID(e.Unit.ID))
			rec := Record{Name: t.Name, Type: typeOf(t.Kind), Sources: []string{}, Dependencies: []string{}}
			seen := make(map[string]bool)
			for _, src := range t.Sources {
				if ev.HasSource(src) && !seen[src] {
					seen[src] = true
					rec.Sources = append(rec.Sources, src)
				}
			}
			for _, id := range t.Deps {
				if ev.HasDependency(id) {
					rec.Dependencies = append(rec.Dependencies, g.Target(id).Name)
				}
			}
			records = append(records, rec)
		}
	}
	return records
}
