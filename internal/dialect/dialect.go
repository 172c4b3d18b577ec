// Package dialect turns database-neutral changes into DDL for one backend.
//
// A Dialect holds only what genuinely differs between Oracle and PostgreSQL:
// type names, quoting, the versioned allow-list of in-place changes, comment
// capacity, which facts must be kept in comments, and statement shapes. The
// Planner drives a Dialect through the migration phases, mutating the model
// as each change is applied.
package dialect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Limetric/schemaferry/internal/model"
)

// ErrUnknownDialect is returned by New for an unsupported backend name.
var ErrUnknownDialect = errors.New("unknown dialect")

// Version is a backend major/minor version.
type Version struct {
	Major, Minor int
}

// AtLeast reports whether v >= o.
func (v Version) AtLeast(o Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	return v.Minor >= o.Minor
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseVersion parses "major" or "major.minor".
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	major, minor, _ := strings.Cut(s, ".")
	var v Version
	var err error
	if v.Major, err = strconv.Atoi(major); err != nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	if minor != "" {
		minor, _, _ = strings.Cut(minor, ".")
		if v.Minor, err = strconv.Atoi(minor); err != nil {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
	}
	return v, nil
}

// Dialect is one backend's DDL vocabulary.
type Dialect interface {
	Name() string
	Version() Version
	MaxIdentifierLength() int
	// CommentCapacity is the largest native comment, in bytes.
	CommentCapacity() int
	AllowList() *AllowList

	Ident(name string) string
	Literal(s string) string
	ColumnType(c *model.Column) string
	// Cast converts expr, a value of column from, into column to's type.
	// Pairs with no conversion map to NULL.
	Cast(expr string, from, to *model.Column) string

	// EncodesNationalType reports whether national character types collapse
	// to the ordinary type and survive only as a comment fact.
	EncodesNationalType() bool
	// EncodesIndexMetadata reports whether operator classes, partial-index
	// predicates and contains flags survive only as table comment facts.
	EncodesIndexMetadata() bool

	AddColumns(table string, defs []string) string
	DropColumns(table string, columns []string) string
	ModifyType(table string, c *model.Column) string
	SetRequired(table string, c *model.Column, required bool) string
	SetDefault(table string, c *model.Column) string
	DropTable(table string) string
	DropPrimaryKey(t *model.Table) string
	CreateIndex(t *model.Table, idx *model.Index) string
	IdentityColumn() string
	ResetIdentity(table string, c *model.Column) []string
	SetTriggersEnabled(table string, enabled bool) string

	// Translates reports whether stored bodies, kept in PL/SQL form, must be
	// translated before they reach this backend.
	Translates() bool
	CreateFunction(f *model.Function, body string) []string
	DropFunction(f *model.Function) []string
	CreateTrigger(tr *model.Trigger, body string) []string
	DropTrigger(tr *model.Trigger) []string
}

// New returns the dialect for a backend name.
func New(name string, v Version) (Dialect, error) {
	switch strings.ToLower(name) {
	case "oracle":
		return NewOracle(v), nil
	case "postgres", "postgresql":
		return NewPostgreSQL(v), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
}

// Phase orders emitted statements.
type Phase int

const (
	PhaseDisable Phase = iota
	PhaseAlter
	PhaseKeys
	PhaseDefaults
	PhaseFlush
	PhaseEnable
	PhaseProcedural
)

var phaseNames = [...]string{"disable", "alter", "keys", "defaults", "flush", "enable", "procedural"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

// Statement is one emitted SQL statement.
type Statement struct {
	Phase  Phase
	Object string // table or routine the statement belongs to
	Desc   string
	SQL    string
}

func (s Statement) String() string {
	return s.SQL
}
