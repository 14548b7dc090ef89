// Package graph provides the immutable package/target dependency graph that
// impact analysis runs over.
package graph

import (
	"fmt"
	"strings"
)

// TargetKind represents the type of a build target.
type TargetKind string

const (
	KindExecutable   TargetKind = "executable"
	KindLibrary      TargetKind = "library"
	KindSystemModule TargetKind = "systemModule"
	KindTest         TargetKind = "test"
)

// TargetKinds lists every valid target kind in display order.
var TargetKinds = []TargetKind{KindExecutable, KindLibrary, KindSystemModule, KindTest}

// ParseTargetKind parses a kind name. Matching is case-insensitive so that
// manifests may write "systemmodule" or "SystemModule".
func ParseTargetKind(s string) (TargetKind, error) {
	for _, k := range TargetKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// TargetID identifies a target within one Graph. IDs are dense indexes into
// the graph's target arena and are meaningless across graphs.
type TargetID int

// PackageID identifies a package within one Graph.
type PackageID int

// Target is a build unit.
type Target struct {
	ID      TargetID
	Name    string
	Kind    TargetKind
	Package PackageID
	// Sources are the absolute paths owned by the target, in declaration order.
	Sources []string
	// Deps are the direct dependency edges, in declaration order.
	Deps []TargetID
}

// Package groups the targets it declares.
type Package struct {
	ID   PackageID
	Name string
	// Path is the absolute location of the package (its manifest).
	Path    string
	Targets []TargetID
	// Root packages are the entry points of graph enumeration.
	Root bool
}
