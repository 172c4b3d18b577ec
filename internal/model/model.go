// Package model holds the database-neutral description of a schema: tables
// with their columns, indexes and constraints, plus functions, triggers and
// views. Every other package reads and mutates this vocabulary.
package model

// Column is a single table column.
type Column struct {
	Name            string `yaml:"name"`
	Type            Type   `yaml:"type"`
	NativeType      string `yaml:"native_type,omitempty"` // only for TypeOther
	Size            int    `yaml:"size,omitempty"`        // length or precision, 0 = unbounded
	Scale           int    `yaml:"scale,omitempty"`
	Required        bool   `yaml:"required,omitempty"`
	PrimaryKey      bool   `yaml:"primary_key,omitempty"`
	AutoIncrement   bool   `yaml:"auto_increment,omitempty"`
	Default         string `yaml:"default,omitempty"`
	OnCreateDefault string `yaml:"on_create_default,omitempty"` // backfill run only when the column is added
	Comment         string `yaml:"comment,omitempty"`           // native comment text, may carry encoded facts
}

// IndexColumn is one key part of an index. Function, when set, replaces the
// plain column reference with an expression over Name.
type IndexColumn struct {
	Name          string `yaml:"name"`
	Function      string `yaml:"function,omitempty"`
	OperatorClass string `yaml:"operator_class,omitempty"`
}

// Index is a (possibly unique, possibly partial) table index.
type Index struct {
	Name           string        `yaml:"name"`
	Columns        []IndexColumn `yaml:"columns"`
	Unique         bool          `yaml:"unique,omitempty"`
	Where          string        `yaml:"where,omitempty"`
	ContainsSearch bool          `yaml:"contains_search,omitempty"`
}

// HasMetadata reports whether the index carries facts some backends can only
// keep in comments.
func (i *Index) HasMetadata() bool {
	if i.Where != "" || i.ContainsSearch {
		return true
	}
	for _, c := range i.Columns {
		if c.OperatorClass != "" {
			return true
		}
	}
	return false
}

// Unique is a named UNIQUE constraint.
type Unique struct {
	Name    string        `yaml:"name"`
	Columns []IndexColumn `yaml:"columns"`
}

// Reference pairs a local column with the referenced foreign column.
type Reference struct {
	Local   string `yaml:"local"`
	Foreign string `yaml:"foreign"`

	LocalColumn   *Column `yaml:"-"`
	ForeignColumn *Column `yaml:"-"`
}

// ForeignKey is a foreign key constraint. Target is resolved by Initialize
// and is a non-owning reference.
type ForeignKey struct {
	Name         string      `yaml:"name"`
	ForeignTable string      `yaml:"foreign_table"`
	References   []Reference `yaml:"references"`
	OnDelete     string      `yaml:"on_delete,omitempty"`
	OnUpdate     string      `yaml:"on_update,omitempty"`

	Target *Table `yaml:"-"`
}

// Check is a named CHECK constraint.
type Check struct {
	Name      string `yaml:"name"`
	Condition string `yaml:"condition"`
}

// Table exclusively owns its columns, indexes and constraints.
type Table struct {
	Catalog        string        `yaml:"catalog,omitempty"`
	Schema         string        `yaml:"schema,omitempty"`
	Name           string        `yaml:"name"`
	PrimaryKeyName string        `yaml:"primary_key_name,omitempty"`
	Columns        []*Column     `yaml:"columns"`
	ForeignKeys    []*ForeignKey `yaml:"foreign_keys,omitempty"`
	Indexes        []*Index      `yaml:"indexes,omitempty"`
	Uniques        []*Unique     `yaml:"uniques,omitempty"`
	Checks         []*Check      `yaml:"checks,omitempty"`
	Comment        string        `yaml:"comment,omitempty"`

	db *Database
}

// Param is a function or procedure parameter.
type Param struct {
	Name      string    `yaml:"name"`
	Type      Type      `yaml:"type"`
	Direction Direction `yaml:"direction,omitempty"`
	Default   string    `yaml:"default,omitempty"`
}

// IsOut reports whether the parameter is written by the callee.
func (p Param) IsOut() bool { return p.Direction == DirOut }

// Function is a stored function or, when ReturnType is TypeNone, a procedure.
// OriginalBody is the last body text known to match the other dialect.
type Function struct {
	Name         string  `yaml:"name"`
	Params       []Param `yaml:"params,omitempty"`
	ReturnType   Type    `yaml:"return_type,omitempty"`
	Body         string  `yaml:"body"`
	OriginalBody string  `yaml:"original_body,omitempty"`
}

// IsProcedure reports whether the function has no return type.
func (f *Function) IsProcedure() bool { return f.ReturnType == TypeNone }

// OutParams returns the OUT parameters in declaration order.
func (f *Function) OutParams() []Param {
	var out []Param
	for _, p := range f.Params {
		if p.IsOut() {
			out = append(out, p)
		}
	}
	return out
}

// Trigger is a row or statement trigger on a table.
type Trigger struct {
	Name         string   `yaml:"name"`
	Table        string   `yaml:"table"`
	Timing       string   `yaml:"timing"` // BEFORE or AFTER
	Events       []string `yaml:"events"` // INSERT, UPDATE, DELETE
	ForEachRow   bool     `yaml:"for_each_row,omitempty"`
	Body         string   `yaml:"body"`
	OriginalBody string   `yaml:"original_body,omitempty"`
}

// View is a plain or materialized view.
type View struct {
	Name         string `yaml:"name"`
	Definition   string `yaml:"definition"`
	Materialized bool   `yaml:"materialized,omitempty"`
	Comment      string `yaml:"comment,omitempty"`
}

// Deferred names a column whose NOT NULL constraint waits for backfill.
type Deferred struct {
	Table  string
	Column string
}

// Database is the root of the model.
type Database struct {
	Name          string      `yaml:"name"`
	CaseSensitive bool        `yaml:"case_sensitive,omitempty"`
	Tables        []*Table    `yaml:"tables"`
	Functions     []*Function `yaml:"functions,omitempty"`
	Triggers      []*Trigger  `yaml:"triggers,omitempty"`
	Views         []*View     `yaml:"views,omitempty"`

	deferred []Deferred
}
