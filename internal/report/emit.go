package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrUnknownFormat is returned by NewEmitter for an unregistered format.
var ErrUnknownFormat = errors.New("unknown output format")

// Emitter writes records to w. Emitters never modify the records.
type Emitter interface {
	Emit(w io.Writer, records []Record) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(w io.Writer, records []Record) error

// Emit calls f(w, records).
func (f EmitterFunc) Emit(w io.Writer, records []Record) error {
	return f(w, records)
}

var emitters = map[string]Emitter{
	"json":     EmitterFunc(emitJSON),
	"text":     EmitterFunc(emitText),
	"dot":      EmitterFunc(emitDot),
	"flatlist": EmitterFunc(emitFlatList),
}

// NewEmitter returns the emitter registered for format.
func NewEmitter(format string) (Emitter, error) {
	e, ok := emitters[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
	return e, nil
}

// Formats returns the registered format names, sorted.
func Formats() []string {
	names := make([]string, 0, len(emitters))
	for name := range emitters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// emitJSON writes a pretty-printed JSON array. This is the stable contract
// consumed by CI tooling.
func emitJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	return nil
}

// emitText writes one block per record:
//
//	App (executable)
//	  dependency: Lib
func emitText(w io.Writer, records []Record) error {
	var sb strings.Builder
	for _, r := range records {
		fmt.Fprintf(&sb, "%s (%s)\n", r.Name, r.Type)
		for _, s := range r.Sources {
			fmt.Fprintf(&sb, "  source: %s\n", s)
		}
		for _, d := range r.Dependencies {
			fmt.Fprintf(&sb, "  dependency: %s\n", d)
		}
	}
	return writeString(w, sb.String())
}

// emitDot writes a Graphviz digraph with an edge from each record to each
// of its affected dependencies.
func emitDot(w io.Writer, records []Record) error {
	var sb strings.Builder
	sb.WriteString("digraph affected {\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "  %s [label=\"%s\\n%s\"];\n", dotID(r.Name), dotEscape(r.Name), dotEscape(string(r.Type)))
	}
	for _, r := range records {
		for _, d := range r.Dependencies {
			fmt.Fprintf(&sb, "  %s -> %s;\n", dotID(r.Name), dotID(d))
		}
	}
	sb.WriteString("}\n")
	return writeString(w, sb.String())
}

func dotID(s string) string {
	return `"` + dotEscape(s) + `"`
}

// dotEscape escapes s for use inside a quoted DOT string.
func dotEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func writeString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	return nil
}

// emitFlatList writes the record names, one per line, without duplicates.
func emitFlatList(w io.Writer, records []Record) error {
	var sb strings.Builder
	seen := make(map[string]bool)
	for _, r := range records {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		sb.WriteString(r.Name)
		sb.WriteByte('\n')
	}
	return writeString(w, sb.String())
}
