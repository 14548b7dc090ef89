package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affected/internal/changes"
	"affected/internal/graph"
	"affected/internal/impact"
)

// libApp builds P (/repo) declaring Lib (/repo/lib.go) and App
// (/repo/main.go, depends on Lib).
func libApp(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	p := b.AddPackage("P", "/repo", true)
	b.AddTarget(p, "Lib", graph.KindLibrary, []string{"/repo/lib.go"})
	app := b.AddTarget(p, "App", graph.KindExecutable, []string{"/repo/main.go"})
	b.AddDependency(app, "Lib")
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func project(t *testing.T, g *graph.Graph, paths ...string) []Record {
	t.Helper()
	r, err := impact.Compute(context.Background(), g, changes.NewSet(paths...))
	require.NoError(t, err)
	return Project(r)
}

func TestProject_LibApp(t *testing.T) {
	records := project(t, libApp(t), "/repo/lib.go")

	assert.Equal(t, []Record{
		{Name: "P", Type: TypePackage, Sources: []string{}, Dependencies: []string{"Lib", "App"}},
		{Name: "Lib", Type: TypeLibrary, Sources: []string{"/repo/lib.go"}, Dependencies: []string{}},
		{Name: "App", Type: TypeExecutable, Sources: []string{}, Dependencies: []string{"Lib"}},
	}, records)
}

func TestProject_KindTags(t *testing.T) {
	b := graph.NewBuilder()
	p := b.AddPackage("P", "/repo", true)
	for _, k := range graph.TargetKinds {
		b.AddTarget(p, string(k)+"Target", k, []string{"/repo/" + string(k)})
	}
	g, err := b.Build()
	require.NoError(t, err)

	var paths []string
	for _, k := range graph.TargetKinds {
		paths = append(paths, "/repo/"+string(k))
	}
	records := project(t, g, paths...)
	require.Len(t, records, 5)

	var got []RecordType
	for _, r := range records {
		got = append(got, r.Type)
	}
	assert.Equal(t, []RecordType{TypePackage, TypeExecutable, TypeLibrary, TypeSystemModule, TypeTest}, got)
}

func TestProject_MixedCaseKinds(t *testing.T) {
	b := graph.NewBuilder()
	p := b.AddPackage("P", "/repo", true)
	b.AddTarget(p, "App", graph.TargetKind("Executable"), []string{"/repo/main.go"})
	b.AddTarget(p, "Mod", graph.TargetKind("SystemModule"), []string{"/repo/mod.go"})
	b.AddTarget(p, "Tests", graph.TargetKind("TEST"), []string{"/repo/app_test.go"})
	g, err := b.Build()
	require.NoError(t, err)

	records := project(t, g, "/repo/main.go", "/repo/mod.go", "/repo/app_test.go")
	require.Len(t, records, 4)
	assert.Equal(t, TypeExecutable, records[1].Type)
	assert.Equal(t, TypeSystemModule, records[2].Type)
	assert.Equal(t, TypeTest, records[3].Type)
}

func TestEmitJSON_Contract(t *testing.T) {
	records := project(t, libApp(t), "/repo/lib.go")

	var buf bytes.Buffer
	e, err := NewEmitter("json")
	require.NoError(t, err)
	require.NoError(t, e.Emit(&buf, records))

	want := `[
  {
    "name": "P",
    "type": "package",
    "sources": [],
    "dependencies": [
      "Lib",
      "App"
    ]
  },
  {
    "name": "Lib",
    "type": "library",
    "sources": [
      "/repo/lib.go"
    ],
    "dependencies": []
  },
  {
    "name": "App",
    "type": "executable",
    "sources": [],
    "dependencies": [
      "Lib"
    ]
  }
]
`
	assert.Equal(t, want, buf.String())

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 3)
}

func TestEmitJSON_Empty(t *testing.T) {
	for _, records := range [][]Record{nil, project(t, libApp(t))} {
		var buf bytes.Buffer
		require.NoError(t, EmitterFunc(emitJSON).Emit(&buf, records))
		assert.Equal(t, "[]\n", buf.String())
	}
}

func TestEmitText(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewEmitter("text")
	require.NoError(t, err)
	require.NoError(t, e.Emit(&buf, project(t, libApp(t), "/repo/lib.go")))

	assert.Equal(t, `P (package)
  dependency: Lib
  dependency: App
Lib (library)
  source: /repo/lib.go
App (executable)
  dependency: Lib
`, buf.String())
}

func TestEmitDot(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewEmitter("DOT")
	require.NoError(t, err)
	require.NoError(t, e.Emit(&buf, project(t, libApp(t), "/repo/lib.go")))

	assert.Equal(t, `digraph affected {
  "P" [label="P\npackage"];
  "Lib" [label="Lib\nlibrary"];
  "App" [label="App\nexecutable"];
  "P" -> "Lib";
  "P" -> "App";
  "App" -> "Lib";
}
`, buf.String())
}

func TestEmitDot_EscapesNames(t *testing.T) {
	records := []Record{
		{Name: `a"b`, Type: TypeLibrary, Dependencies: []string{`c\`}},
		{Name: `c\`, Type: TypeLibrary},
	}
	var buf bytes.Buffer
	require.NoError(t, emitDot(&buf, records))

	assert.Equal(t, `digraph affected {
  "a\"b" [label="a\"b\nlibrary"];
  "c\\" [label="c\\\nlibrary"];
  "a\"b" -> "c\\";
}
`, buf.String())
}

func TestEmitFlatList(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewEmitter("flatlist")
	require.NoError(t, err)
	require.NoError(t, e.Emit(&buf, project(t, libApp(t), "/repo/lib.go")))
	assert.Equal(t, "P\nLib\nApp\n", buf.String())
}

func TestNewEmitter_Unknown(t *testing.T) {
	_, err := NewEmitter("yaml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, []string{"dot", "flatlist", "json", "text"}, Formats())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEmit_WriteErrorLeavesRecordsIntact(t *testing.T) {
	records := project(t, libApp(t), "/repo/lib.go")
	before := append([]Record(nil), records...)

	for _, format := range Formats() {
		e, err := NewEmitter(format)
		require.NoError(t, err)
		err = e.Emit(failingWriter{}, records)
		assert.ErrorContains(t, err, "writing records", format)
	}
	assert.Equal(t, before, records)
}
