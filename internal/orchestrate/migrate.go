// Package orchestrate drives one migration: it diffs the current and
// desired models, asks the dialect planner for each phase's statements and
// runs them in order against an executor.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Limetric/schemaferry/internal/backend"
	"github.com/Limetric/schemaferry/internal/change"
	"github.com/Limetric/schemaferry/internal/dialect"
	"github.com/Limetric/schemaferry/internal/model"
	"github.com/Limetric/schemaferry/internal/translate"
)

// Script is a named list of SQL statements run between the backfill
// phases, typically loaded from a hook file.
type Script struct {
	Name       string
	Statements []string
}

// Observer is told about everything a run does. Implementations must not
// block for long; they are called on the migration goroutine.
type Observer interface {
	// Statement is called after each statement runs; err is nil on success.
	Statement(ctx context.Context, s dialect.Statement, err error)
	Recreated(ctx context.Context, table string)
	Flagged(ctx context.Context, inc translate.Inconsistency)
}

type Options struct {
	// ContinueOnError keeps running after a failed statement and reports
	// every failure at the end.
	ContinueOnError bool
	// Workers bounds the round-trip check; 0 means GOMAXPROCS.
	Workers int
	// Verify runs the round-trip check after the procedural phase.
	Verify bool

	BeforeBackfill []Script
	AfterBackfill  []Script

	Observers []Observer
}

// StatementError is a statement the backend rejected.
type StatementError struct {
	Statement dialect.Statement
	Err       error
}

func (e *StatementError) Error() string {
	desc := e.Statement.Desc
	if e.Statement.Object != "" {
		desc = e.Statement.Object + ": " + desc
	}
	return fmt.Sprintf("%s: %v\nSQL: %s", desc, e.Err, e.Statement.SQL)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Report describes a finished (or stopped) run.
type Report struct {
	Changes         []change.Change
	Statements      []dialect.Statement
	Recreated       []string
	Failures        []*StatementError
	Inconsistencies []translate.Inconsistency
	// Model is the working model after every applied change.
	Model *model.Database
}

// Migrator runs migrations for one dialect against one executor.
type Migrator struct {
	d    dialect.Dialect
	exec backend.Executor
	opts Options
}

func New(d dialect.Dialect, exec backend.Executor, opts Options) *Migrator {
	return &Migrator{d: d, exec: exec, opts: opts}
}

// Run migrates the database described by old to desired. old is not
// modified. In strict mode the first rejected statement stops the run and
// is returned; with ContinueOnError every failure is collected and the
// returned error joins them. The report is returned in both cases.
func (m *Migrator) Run(ctx context.Context, old, desired *model.Database) (*Report, error) {
	start := time.Now()
	work, err := old.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone model: %w", err)
	}
	changes := Compare(old, desired)
	tr := translate.New(desired)
	p := dialect.NewPlanner(m.d, work, changes, tr)

	r := &runner{m: m, ctx: ctx, report: &Report{Changes: changes, Model: work}}
	log.Printf("%d change(s) against %s %s", len(changes), m.d.Name(), m.d.Version())

	for _, table := range dialect.RecreatedTables(m.d, changes) {
		log.Printf("  %s will be recreated", table)
		r.report.Recreated = append(r.report.Recreated, table)
		for _, o := range m.opts.Observers {
			o.Recreated(ctx, table)
		}
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"disable", func() error { return r.phase(p.Disable) }},
		{"alter", func() error { return r.phase(p.Alter) }},
		{"keys", func() error { return r.phase(p.Keys) }},
		{"before_backfill hooks", func() error { return r.scripts("before_backfill", m.opts.BeforeBackfill) }},
		{"defaults", func() error { return r.phase(p.Defaults) }},
		{"after_backfill hooks", func() error { return r.scripts("after_backfill", m.opts.AfterBackfill) }},
		{"flush deferred", func() error { return r.run(p.FlushDeferred()) }},
		{"enable", func() error { return r.phase(p.Enable) }},
		{"procedural", func() error {
			return r.phase(func() ([]dialect.Statement, error) { return p.Procedural(ctx, desired, m.opts.Workers) })
		}},
		{"verify", func() error { return r.verify(tr, desired) }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return r.report, err
		}
		log.Printf("  %s...", step.name)
		if err := step.fn(); err != nil {
			return r.report, err
		}
	}

	if n := len(r.report.Failures); n > 0 {
		log.Printf("migration finished with %d failed statement(s) in %s", n, time.Since(start).Round(time.Millisecond))
		errs := make([]error, n)
		for i, f := range r.report.Failures {
			errs[i] = f
		}
		return r.report, errors.Join(errs...)
	}
	log.Printf("migration completed in %s", time.Since(start).Round(time.Millisecond))
	return r.report, nil
}

// Plan runs the same phases against a recorder and returns the statements
// a migration would execute. Hooks and observers are not involved.
func (m *Migrator) Plan(ctx context.Context, old, desired *model.Database) (*Report, error) {
	dry := &Migrator{d: m.d, exec: &backend.Recorder{}, opts: Options{Workers: m.opts.Workers}}
	return dry.Run(ctx, old, desired)
}

type runner struct {
	m      *Migrator
	ctx    context.Context
	report *Report
}

func (r *runner) phase(emit func() ([]dialect.Statement, error)) error {
	stmts, err := emit()
	if err != nil {
		return err
	}
	return r.run(stmts)
}

func (r *runner) run(stmts []dialect.Statement) error {
	for _, s := range stmts {
		r.report.Statements = append(r.report.Statements, s)
		err := r.m.exec.Exec(r.ctx, s.SQL)
		for _, o := range r.m.opts.Observers {
			o.Statement(r.ctx, s, err)
		}
		if err == nil {
			continue
		}
		serr := &StatementError{Statement: s, Err: err}
		if !r.m.opts.ContinueOnError {
			return serr
		}
		log.Printf("  WARN: %v", serr)
		r.report.Failures = append(r.report.Failures, serr)
	}
	return nil
}

func (r *runner) scripts(hook string, scripts []Script) error {
	for _, sc := range scripts {
		log.Printf("  executing %s hook: %s (%d statement(s))", hook, sc.Name, len(sc.Statements))
		stmts := make([]dialect.Statement, len(sc.Statements))
		for i, q := range sc.Statements {
			stmts[i] = dialect.Statement{
				Phase:  dialect.PhaseDefaults,
				Object: sc.Name,
				Desc:   fmt.Sprintf("%s hook statement %d", hook, i+1),
				SQL:    q,
			}
		}
		if err := r.run(stmts); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) verify(tr *translate.Translator, desired *model.Database) error {
	if !r.m.opts.Verify {
		return nil
	}
	if !r.m.d.Translates() {
		log.Printf("  %s stores bodies natively, round-trip check skipped", r.m.d.Name())
		return nil
	}
	incs, err := tr.Check(r.ctx, desired, translate.OracleToPostgres, r.m.opts.Workers)
	if err != nil {
		return fmt.Errorf("verify translations: %w", err)
	}
	r.report.Inconsistencies = incs
	for _, inc := range incs {
		for _, o := range r.m.opts.Observers {
			o.Flagged(r.ctx, inc)
		}
	}
	if len(incs) > 0 {
		log.Printf("  WARN: %d object(s) flagged by the round-trip check", len(incs))
	}
	return nil
}
