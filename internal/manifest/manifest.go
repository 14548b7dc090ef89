// Package manifest reads the YAML description of packages and targets and
// resolves it into a validated build graph.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"affected/internal/graph"
)

// TargetSpec is one target as written in the manifest.
type TargetSpec struct {
	Name         string   `yaml:"name"`
	Kind         string   `yaml:"kind"`
	Sources      []string `yaml:"sources"`
	Exclude      []string `yaml:"exclude,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// PackageSpec is one package as written in the manifest.
type PackageSpec struct {
	Name string `yaml:"name"`
	// Path is the package's own manifest location, relative to the manifest
	// directory. Empty means the manifest file itself.
	Path string `yaml:"path,omitempty"`
	// Dir is the base directory for source patterns. Empty means the
	// manifest directory.
	Dir     string       `yaml:"dir,omitempty"`
	Root    *bool        `yaml:"root,omitempty"`
	Targets []TargetSpec `yaml:"targets"`
}

// IsRoot reports whether the package is a root package. Packages are roots
// unless they say otherwise.
func (p PackageSpec) IsRoot() bool {
	return p.Root == nil || *p.Root
}

// Manifest is the parsed manifest file.
type Manifest struct {
	Packages []PackageSpec `yaml:"packages"`

	// file is the absolute path the manifest was loaded from, if any.
	file string
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path: %w", err)
	}
	m.file = abs
	return m, nil
}

// Parse decodes a manifest document. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// File returns the absolute path the manifest was loaded from, or "" when it
// was parsed from memory.
func (m *Manifest) File() string {
	return m.file
}

// Resolve expands source patterns relative to baseDir and builds the graph.
// baseDir is normally the directory holding the manifest.
func (m *Manifest) Resolve(baseDir string) (*graph.Graph, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolving base dir: %w", err)
	}

	var errs []error
	b := graph.NewBuilder()
	for _, ps := range m.Packages {
		if ps.Name == "" {
			errs = append(errs, fmt.Errorf("manifest: package without a name"))
			continue
		}
		pkgPath := m.file
		if ps.Path != "" {
			pkgPath = absJoin(base, ps.Path)
		} else if pkgPath == "" {
			pkgPath = base
		}
		dir := absJoin(base, ps.Dir)

		pid := b.AddPackage(ps.Name, pkgPath, ps.IsRoot())
		for _, ts := range ps.Targets {
			if err := addTarget(b, pid, dir, ts); err != nil {
				errs = append(errs, fmt.Errorf("manifest: package %q: %w", ps.Name, err))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return g, nil
}

func addTarget(b *graph.Builder, pid graph.PackageID, dir string, ts TargetSpec) error {
	if ts.Name == "" {
		return errors.New("target without a name")
	}
	kind := graph.KindLibrary
	if ts.Kind != "" {
		k, err := graph.ParseTargetKind(ts.Kind)
		if err != nil {
			return fmt.Errorf("target %q: %w", ts.Name, err)
		}
		kind = k
	}
	sources, err := expandSources(dir, ts.Sources, ts.Exclude)
	if err != nil {
		return fmt.Errorf("target %q: %w", ts.Name, err)
	}

	tid := b.AddTarget(pid, ts.Name, kind, sources)
	for _, dep := range ts.Dependencies {
		b.AddDependency(tid, dep)
	}
	return nil
}

func absJoin(base, p string) string {
	if p == "" {
		return base
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// FromGraph writes a resolved graph back out as a manifest. Every source is an
// absolute literal path, escaped where it contains glob metacharacters, so
// resolving the result yields the same graph.
func FromGraph(g *graph.Graph) *Manifest {
	m := &Manifest{}
	for _, p := range g.Packages() {
		root := p.Root
		ps := PackageSpec{Name: p.Name, Path: p.Path, Root: &root, Targets: []TargetSpec{}}
		for _, id := range p.Targets {
			t := g.Target(id)
			ts := TargetSpec{Name: t.Name, Kind: string(t.Kind), Sources: make([]string, 0, len(t.Sources))}
			for _, src := range t.Sources {
				ts.Sources = append(ts.Sources, escapeLiteral(src))
			}
			for _, dep := range t.Deps {
				ts.Dependencies = append(ts.Dependencies, g.Target(dep).Name)
			}
			ps.Targets = append(ps.Targets, ts)
		}
		m.Packages = append(m.Packages, ps)
	}
	return m
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return buf.Bytes(), nil
}
