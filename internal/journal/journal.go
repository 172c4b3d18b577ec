// Package journal keeps a durable record of migration runs in a local
// SQLite file: every executed statement with its outcome, recreated tables
// and objects flagged by the round-trip check.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/Limetric/schemaferry/internal/dialect"
	"github.com/Limetric/schemaferry/internal/translate"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		dialect     TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		status      TEXT NOT NULL DEFAULT 'running',
		error       TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS statements (
		run_id      TEXT NOT NULL REFERENCES runs(id),
		seq         INTEGER NOT NULL,
		phase       TEXT NOT NULL,
		object      TEXT NOT NULL,
		description TEXT NOT NULL,
		sql         TEXT NOT NULL,
		error       TEXT,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS recreations (
		run_id     TEXT NOT NULL REFERENCES runs(id),
		table_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS flagged (
		run_id TEXT NOT NULL REFERENCES runs(id),
		kind   TEXT NOT NULL,
		name   TEXT NOT NULL,
		diff   TEXT NOT NULL
	)`,
}

// Journal is an open journal file.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			db.Close()
			return nil, fmt.Errorf("create journal schema: %w", err)
		}
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Begin records a new run and returns it.
func (j *Journal) Begin(ctx context.Context, dialectName string) (*Run, error) {
	r := &Run{j: j, ID: uuid.NewString()}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, dialect, started_at) VALUES (?, ?, ?)`,
		r.ID, dialectName, now())
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return r, nil
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// Run is one migration run. It implements orchestrate.Observer; a failed
// journal write is logged and never stops the migration.
type Run struct {
	ID string

	j   *Journal
	mu  sync.Mutex
	seq int
}

func (r *Run) Statement(ctx context.Context, s dialect.Statement, err error) {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	var msg sql.NullString
	if err != nil {
		msg = sql.NullString{String: err.Error(), Valid: true}
	}
	r.exec(ctx, "record statement",
		`INSERT INTO statements (run_id, seq, phase, object, description, sql, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, seq, s.Phase.String(), s.Object, s.Desc, s.SQL, msg)
}

func (r *Run) Recreated(ctx context.Context, table string) {
	r.exec(ctx, "record recreation",
		`INSERT INTO recreations (run_id, table_name) VALUES (?, ?)`, r.ID, table)
}

func (r *Run) Flagged(ctx context.Context, inc translate.Inconsistency) {
	r.exec(ctx, "record inconsistency",
		`INSERT INTO flagged (run_id, kind, name, diff) VALUES (?, ?, ?, ?)`,
		r.ID, inc.Kind.String(), inc.Name, inc.Diff)
}

func (r *Run) exec(ctx context.Context, desc, query string, args ...any) {
	if _, err := r.j.db.ExecContext(ctx, query, args...); err != nil {
		log.Printf("  WARN: journal: %s: %v", desc, err)
	}
}

// Finish closes the run with the migration's outcome.
func (r *Run) Finish(ctx context.Context, runErr error) error {
	status := "completed"
	var msg sql.NullString
	if runErr != nil {
		status = "failed"
		msg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := r.j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		now(), status, msg, r.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	return nil
}

// Entry is one journaled statement.
type Entry struct {
	Seq    int
	Phase  string
	Object string
	Desc   string
	SQL    string
	Error  string
}

// Statements returns the statements of a run in execution order.
func (j *Journal) Statements(ctx context.Context, runID string) ([]Entry, error) {
	return j.entries(ctx,
		`SELECT seq, phase, object, description, sql, COALESCE(error, '') FROM statements WHERE run_id = ? ORDER BY seq`, runID)
}

// Failures returns the failed statements of a run.
func (j *Journal) Failures(ctx context.Context, runID string) ([]Entry, error) {
	return j.entries(ctx,
		`SELECT seq, phase, object, description, sql, error FROM statements WHERE run_id = ? AND error IS NOT NULL ORDER BY seq`, runID)
}

func (j *Journal) entries(ctx context.Context, query, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Phase, &e.Object, &e.Desc, &e.SQL, &e.Error); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RunInfo summarises a run.
type RunInfo struct {
	ID        string
	Dialect   string
	Status    string
	Error     string
	Recreated []string
	Flagged   []string // "kind name"
}

// Lookup returns a run's summary.
func (j *Journal) Lookup(ctx context.Context, runID string) (*RunInfo, error) {
	info := &RunInfo{ID: runID}
	err := j.db.QueryRowContext(ctx,
		`SELECT dialect, status, COALESCE(error, '') FROM runs WHERE id = ?`, runID).
		Scan(&info.Dialect, &info.Status, &info.Error)
	if err != nil {
		return nil, fmt.Errorf("lookup run %s: %w", runID, err)
	}

	rows, err := j.db.QueryContext(ctx, `SELECT table_name FROM recreations WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("lookup recreations: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		info.Recreated = append(info.Recreated, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = j.db.QueryContext(ctx, `SELECT kind, name FROM flagged WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("lookup flagged objects: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, name string
		if err := rows.Scan(&kind, &name); err != nil {
			return nil, err
		}
		info.Flagged = append(info.Flagged, kind+" "+name)
	}
	return info, rows.Err()
}
