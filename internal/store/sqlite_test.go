package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affected/internal/report"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var libApp = []report.Record{
	{Name: "Lib", Type: report.TypeLibrary, Sources: []string{"/repo/lib.go"}, Dependencies: []string{}},
	{Name: "App", Type: report.TypeExecutable, Sources: []string{}, Dependencies: []string{"Lib"}},
}

func TestOpen_CreatesFile(t *testing.T) {
	db := openTest(t)
	_, err := os.Stat(db.Path())
	assert.NoError(t, err)
}

func TestSaveAndGetRun(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	run, err := db.SaveRun(ctx, RunInput{Source: "list", Changed: []string{"/repo/lib.go"}, Records: libApp})
	require.NoError(t, err)
	assert.Len(t, run.ID, 64)
	assert.Equal(t, "list", run.Source)
	assert.Equal(t, 1, run.Changed)
	assert.Equal(t, 2, run.Records)
	assert.NotZero(t, run.CreatedAt)

	got, records, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, got)
	assert.Equal(t, libApp, records)

	got, _, err = db.GetRun(ctx, run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	changed, err := db.Changed(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/repo/lib.go"}, changed)
}

func TestSaveRun_Dedupes(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	a, err := db.SaveRun(ctx, RunInput{Source: "first", Changed: []string{"/repo/lib.go"}, Records: libApp})
	require.NoError(t, err)
	b, err := db.SaveRun(ctx, RunInput{Source: "second", Changed: []string{"/repo/lib.go"}, Records: libApp})
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "first", b.Source, "the first recording wins")

	runs, err := db.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSaveRun_EmptyRecords(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	run, err := db.SaveRun(ctx, RunInput{})
	require.NoError(t, err)
	_, records, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	var ids []string
	for _, path := range []string{"/a", "/b", "/c"} {
		run, err := db.SaveRun(ctx, RunInput{Changed: []string{path}})
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := db.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = db.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestGetRun_Errors(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	_, _, err := db.GetRun(ctx, "deadbeef")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, _, err = db.GetRun(ctx, "")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, _, err = db.GetRun(ctx, "%")
	assert.ErrorIs(t, err, ErrRunNotFound, "LIKE wildcards are not prefixes")

	_, err = db.Changed(ctx, "deadbeef")
	assert.ErrorIs(t, err, ErrRunNotFound)

	// Enough runs that two of them share a first hex digit.
	seen := make(map[byte]bool)
	var shared byte
	for i := 0; ; i++ {
		run, err := db.SaveRun(ctx, RunInput{Changed: []string{"/f" + string(rune('a'+i%26)) + string(rune('a'+i/26))}})
		require.NoError(t, err)
		if seen[run.ID[0]] {
			shared = run.ID[0]
			break
		}
		seen[run.ID[0]] = true
	}
	_, _, err = db.GetRun(ctx, string(shared))
	assert.ErrorIs(t, err, ErrAmbiguousPrefix)
}

func TestGetRun_UppercasePrefix(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)
	run, err := db.SaveRun(ctx, RunInput{Changed: []string{"/x"}})
	require.NoError(t, err)

	got, _, err := db.GetRun(ctx, strings.ToUpper(run.ID[:10]))
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}

func TestPayloadRoundTrip(t *testing.T) {
	blob, err := encodePayload(payload{Changed: []string{"/x"}, Records: libApp})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x28, 0xB5, 0x2F, 0xFD}, blob[:4], "zstd magic")

	p, err := decodePayload(blob)
	require.NoError(t, err)
	assert.Equal(t, []string{"/x"}, p.Changed)
	assert.Equal(t, libApp, p.Records)

	_, err = decodePayload([]byte("not zstd"))
	assert.Error(t, err)
}
