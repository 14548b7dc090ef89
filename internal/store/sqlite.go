// Package store keeps a local history of analysis runs in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"affected/internal/cas"
	"affected/internal/report"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

var (
	ErrRunNotFound     = errors.New("run not found")
	ErrAmbiguousPrefix = errors.New("ambiguous run prefix")
)

// runKind tags run IDs so they never collide with other content hashes.
const runKind = "run"

// DB wraps the run history database.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
	path string
}

// Run is the summary of one stored run.
type Run struct {
	ID        string
	CreatedAt int64
	Source    string
	Changed   int
	Records   int
}

// RunInput is what SaveRun records.
type RunInput struct {
	// Source describes where the changed set came from, e.g. "git HEAD~1..HEAD".
	Source  string
	Changed []string
	Records []report.Record
}

// Open opens or creates the database at dbPath, creating parent directories
// as needed.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveRun stores a run. Runs are content-addressed by their changed set and
// records, so saving an identical run again returns the existing entry.
func (db *DB) SaveRun(ctx context.Context, in RunInput) (*Run, error) {
	p := payload{Changed: in.Changed, Records: in.Records}
	if p.Changed == nil {
		p.Changed = []string{}
	}
	if p.Records == nil {
		p.Records = []report.Record{}
	}

	id, err := cas.ID(runKind, p)
	if err != nil {
		return nil, fmt.Errorf("computing run ID: %w", err)
	}
	blob, err := encodePayload(p)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err = db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO runs (id, created_at, source, changed_count, record_count, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, cas.NowMs(), in.Source, len(p.Changed), len(p.Records), blob)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}

	run, _, err := db.getRun(ctx, id, false)
	return run, err
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, created_at, source, changed_count, record_count
		FROM runs ORDER BY created_at DESC, seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Source, &r.Changed, &r.Records); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a run and its records by full ID or unique ID prefix.
func (db *DB) GetRun(ctx context.Context, idOrPrefix string) (*Run, []report.Record, error) {
	return db.getRun(ctx, strings.ToLower(idOrPrefix), true)
}

func (db *DB) getRun(ctx context.Context, idOrPrefix string, withRecords bool) (*Run, []report.Record, error) {
	if idOrPrefix == "" || !isHex(idOrPrefix) {
		return nil, nil, fmt.Errorf("%w: %q", ErrRunNotFound, idOrPrefix)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, created_at, source, changed_count, record_count, payload
		FROM runs WHERE id LIKE ? LIMIT 2
	`, idOrPrefix+"%")
	if err != nil {
		return nil, nil, fmt.Errorf("querying run: %w", err)
	}
	defer rows.Close()

	var (
		found []*Run
		blob  []byte
	)
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Source, &r.Changed, &r.Records, &blob); err != nil {
			return nil, nil, fmt.Errorf("scanning run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("querying run: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, nil, fmt.Errorf("%w: %q", ErrRunNotFound, idOrPrefix)
	case 1:
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrAmbiguousPrefix, idOrPrefix)
	}

	if !withRecords {
		return found[0], nil, nil
	}
	p, err := decodePayload(blob)
	if err != nil {
		return nil, nil, fmt.Errorf("run %s: %w", cas.Short(found[0].ID), err)
	}
	return found[0], p.Records, nil
}

// Changed returns the changed paths stored with a run.
func (db *DB) Changed(ctx context.Context, id string) ([]string, error) {
	var blob []byte
	err := db.conn.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	p, err := decodePayload(blob)
	if err != nil {
		return nil, err
	}
	return p.Changed, nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
