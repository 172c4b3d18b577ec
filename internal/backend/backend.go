// Package backend connects to the databases a migration runs against. A
// Target executes planned statements one at a time and reads the live
// schema back into a model: tables, columns, primary keys and comments.
package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Limetric/schemaferry/internal/dialect"
	"github.com/Limetric/schemaferry/internal/model"
)

// Executor runs one SQL statement.
type Executor interface {
	Exec(ctx context.Context, sql string) error
}

// Target is a live database.
type Target interface {
	Executor

	// Name returns a human-readable name ("PostgreSQL", "Oracle").
	Name() string

	// ServerVersion returns the server's major.minor version.
	ServerVersion(ctx context.Context) (dialect.Version, error)

	// ReadModel reads the current schema. Facts kept in comments are moved
	// back into the model and the result is initialised.
	ReadModel(ctx context.Context) (*model.Database, error)

	Close()
}

// Open connects to the target for a dialect name.
func Open(ctx context.Context, dialectName, dsn string) (Target, error) {
	switch strings.ToLower(dialectName) {
	case "postgres", "postgresql":
		return OpenPostgres(ctx, dsn)
	case "oracle":
		return OpenOracle(ctx, dsn)
	}
	return nil, fmt.Errorf("%w: %q", dialect.ErrUnknownDialect, dialectName)
}

// Recorder collects statements instead of running them. Fail, when set,
// decides per statement whether Exec reports an error; the statement is
// recorded either way.
type Recorder struct {
	Fail func(sql string) error

	mu         sync.Mutex
	statements []string
}

func (r *Recorder) Exec(_ context.Context, sql string) error {
	r.mu.Lock()
	r.statements = append(r.statements, sql)
	r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail(sql)
	}
	return nil
}

// Statements returns the recorded statements in order.
func (r *Recorder) Statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.statements))
	copy(out, r.statements)
	return out
}

// columnType maps a catalog data type onto the neutral type. Integer types
// become decimals of their digit width; timestamps of any precision and
// time zone become TypeTimestamp; anything unknown is kept as TypeOther
// with its native name.
func columnType(dataType string, size, scale int) (typ model.Type, native string, outSize, outScale int) {
	name := strings.ToUpper(strings.TrimSpace(dataType))
	switch {
	case name == "SMALLINT":
		return model.TypeDecimal, "", 5, 0
	case name == "INTEGER" || name == "INT":
		return model.TypeDecimal, "", 10, 0
	case name == "BIGINT":
		return model.TypeDecimal, "", 19, 0
	case strings.HasPrefix(name, "TIMESTAMP"), name == "DATE":
		return model.TypeTimestamp, "", 0, 0
	case name == "NCLOB":
		return model.TypeClob, "", 0, 0
	}
	t, err := model.ParseType(name)
	if err != nil || t == model.TypeOther {
		return model.TypeOther, strings.ToLower(dataType), 0, 0
	}
	if t.IsLOB() {
		return t, "", 0, 0
	}
	return t, "", size, scale
}

// tableBuilder assembles tables in catalog order.
type tableBuilder struct {
	db     *model.Database
	byName map[string]*model.Table
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{db: &model.Database{}, byName: make(map[string]*model.Table)}
}

func (b *tableBuilder) table(name string) *model.Table {
	if t, ok := b.byName[name]; ok {
		return t
	}
	t := &model.Table{Name: name}
	b.byName[name] = t
	b.db.Tables = append(b.db.Tables, t)
	return t
}

// finish restores comment-encoded facts and initialises the model.
func (b *tableBuilder) finish() (*model.Database, error) {
	dialect.RestoreFacts(b.db)
	if err := b.db.Initialize(); err != nil {
		return nil, fmt.Errorf("catalog model: %w", err)
	}
	return b.db, nil
}
