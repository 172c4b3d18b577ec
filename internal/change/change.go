// Package change defines the closed set of schema mutations a migration is
// made of. A change names the objects it touches, knows how to apply itself
// to a model and is otherwise plain data: planners read it to decide how the
// database is altered, never whether the model changes.
package change

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Limetric/schemaferry/internal/model"
)

// ErrUnknownObject is returned by Apply when a referenced object is missing.
var ErrUnknownObject = errors.New("unknown object")

// ErrExists is returned by Apply when the object to add is already present.
var ErrExists = errors.New("object already exists")

// Change is one atomic schema mutation. The set of implementations is
// closed; Accept dispatches to the matching Visitor method.
type Change interface {
	// TableName is the owning table, empty for functions.
	TableName() string
	Apply(db *model.Database) error
	Accept(v Visitor) error
	String() string

	sealed()
}

// Visitor has one method per Change variant.
type Visitor interface {
	VisitAddTable(*AddTable) error
	VisitRemoveTable(*RemoveTable) error
	VisitAddColumn(*AddColumn) error
	VisitRemoveColumn(*RemoveColumn) error
	VisitColumnSizeChange(*ColumnSizeChange) error
	VisitColumnDataTypeChange(*ColumnDataTypeChange) error
	VisitColumnRequiredChange(*ColumnRequiredChange) error
	VisitColumnDefaultValueChange(*ColumnDefaultValueChange) error
	VisitColumnOnCreateDefaultChange(*ColumnOnCreateDefaultChange) error
	VisitAddPrimaryKey(*AddPrimaryKey) error
	VisitRemovePrimaryKeyChange(*RemovePrimaryKeyChange) error
	VisitAddIndex(*AddIndex) error
	VisitRemoveIndexChange(*RemoveIndexChange) error
	VisitAddUnique(*AddUnique) error
	VisitRemoveUnique(*RemoveUnique) error
	VisitAddCheck(*AddCheck) error
	VisitRemoveCheckChange(*RemoveCheckChange) error
	VisitAddForeignKey(*AddForeignKey) error
	VisitRemoveForeignKey(*RemoveForeignKey) error
	VisitRemoveTriggerChange(*RemoveTriggerChange) error
	VisitRemoveFunction(*RemoveFunction) error
}

func table(db *model.Database, name string) (*model.Table, error) {
	t := db.FindTable(name)
	if t == nil {
		return nil, fmt.Errorf("table %s: %w", name, ErrUnknownObject)
	}
	return t, nil
}

func column(db *model.Database, tableName, name string) (*model.Table, *model.Column, error) {
	t, err := table(db, tableName)
	if err != nil {
		return nil, nil, err
	}
	c := t.FindColumn(name)
	if c == nil {
		return nil, nil, fmt.Errorf("column %s.%s: %w", tableName, name, ErrUnknownObject)
	}
	return t, c, nil
}

// AddTable creates a table. Foreign keys are not part of the added table;
// they arrive as separate AddForeignKey changes once every table exists.
type AddTable struct {
	Table *model.Table
}

func (c *AddTable) TableName() string      { return c.Table.Name }
func (c *AddTable) String() string         { return "add table " + c.Table.Name }
func (c *AddTable) Accept(v Visitor) error { return v.VisitAddTable(c) }
func (*AddTable) sealed()                  {}

func (c *AddTable) Apply(db *model.Database) error {
	if db.FindTable(c.Table.Name) != nil {
		return fmt.Errorf("table %s: %w", c.Table.Name, ErrExists)
	}
	t := c.Table.Clone()
	t.ForeignKeys = nil
	db.AddTable(t)
	return nil
}

// RemoveTable drops a table together with its triggers.
type RemoveTable struct {
	Table string
}

func (c *RemoveTable) TableName() string      { return c.Table }
func (c *RemoveTable) String() string         { return "remove table " + c.Table }
func (c *RemoveTable) Accept(v Visitor) error { return v.VisitRemoveTable(c) }
func (*RemoveTable) sealed()                  {}

func (c *RemoveTable) Apply(db *model.Database) error {
	for _, tr := range db.TriggersOn(c.Table) {
		db.RemoveTrigger(tr.Name)
	}
	db.CancelDeferred(c.Table, "")
	if !db.RemoveTable(c.Table) {
		return fmt.Errorf("table %s: %w", c.Table, ErrUnknownObject)
	}
	return nil
}

// AddColumn appends a column to an existing table. Position is the index in
// the desired column order, -1 to append.
type AddColumn struct {
	Table    string
	Column   *model.Column
	Position int
}

func (c *AddColumn) TableName() string      { return c.Table }
func (c *AddColumn) String() string         { return "add column " + c.Table + "." + c.Column.Name }
func (c *AddColumn) Accept(v Visitor) error { return v.VisitAddColumn(c) }
func (*AddColumn) sealed()                  {}

func (c *AddColumn) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if t.FindColumn(c.Column.Name) != nil {
		return fmt.Errorf("column %s.%s: %w", c.Table, c.Column.Name, ErrExists)
	}
	col := *c.Column
	if c.Position < 0 || c.Position >= len(t.Columns) {
		t.Columns = append(t.Columns, &col)
	} else {
		t.Columns = slices.Insert(t.Columns, c.Position, &col)
	}
	return nil
}

// RemoveColumn drops a column. Key parts referring to it are dropped by the
// matching Remove*Change variants before this one is applied.
type RemoveColumn struct {
	Table  string
	Column string
}

func (c *RemoveColumn) TableName() string      { return c.Table }
func (c *RemoveColumn) String() string         { return "remove column " + c.Table + "." + c.Column }
func (c *RemoveColumn) Accept(v Visitor) error { return v.VisitRemoveColumn(c) }
func (*RemoveColumn) sealed()                  {}

func (c *RemoveColumn) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if !t.RemoveColumn(c.Column) {
		return fmt.Errorf("column %s.%s: %w", c.Table, c.Column, ErrUnknownObject)
	}
	db.CancelDeferred(c.Table, c.Column)
	return nil
}

// ColumnSizeChange changes length, or precision and scale, of a column.
type ColumnSizeChange struct {
	Table    string
	Column   string
	Type     model.Type
	OldSize  int
	OldScale int
	NewSize  int
	NewScale int
}

func (c *ColumnSizeChange) TableName() string      { return c.Table }
func (c *ColumnSizeChange) Accept(v Visitor) error { return v.VisitColumnSizeChange(c) }
func (*ColumnSizeChange) sealed()                  {}

func (c *ColumnSizeChange) String() string {
	return fmt.Sprintf("resize column %s.%s (%d,%d) -> (%d,%d)", c.Table, c.Column, c.OldSize, c.OldScale, c.NewSize, c.NewScale)
}

func (c *ColumnSizeChange) Apply(db *model.Database) error {
	_, col, err := column(db, c.Table, c.Column)
	if err != nil {
		return err
	}
	col.Size, col.Scale = c.NewSize, c.NewScale
	return nil
}

// ColumnDataTypeChange retypes a column, possibly resizing it at the same time.
type ColumnDataTypeChange struct {
	Table         string
	Column        string
	OldType       model.Type
	NewType       model.Type
	NewNativeType string
	OldSize       int
	OldScale      int
	NewSize       int
	NewScale      int
}

func (c *ColumnDataTypeChange) TableName() string      { return c.Table }
func (c *ColumnDataTypeChange) Accept(v Visitor) error { return v.VisitColumnDataTypeChange(c) }
func (*ColumnDataTypeChange) sealed()                  {}

func (c *ColumnDataTypeChange) String() string {
	return fmt.Sprintf("retype column %s.%s %s -> %s", c.Table, c.Column, c.OldType, c.NewType)
}

func (c *ColumnDataTypeChange) Apply(db *model.Database) error {
	_, col, err := column(db, c.Table, c.Column)
	if err != nil {
		return err
	}
	col.Type, col.NativeType = c.NewType, c.NewNativeType
	col.Size, col.Scale = c.NewSize, c.NewScale
	return nil
}

// ColumnRequiredChange toggles NOT NULL.
type ColumnRequiredChange struct {
	Table    string
	Column   string
	Required bool
}

func (c *ColumnRequiredChange) TableName() string      { return c.Table }
func (c *ColumnRequiredChange) Accept(v Visitor) error { return v.VisitColumnRequiredChange(c) }
func (*ColumnRequiredChange) sealed()                  {}

func (c *ColumnRequiredChange) String() string {
	if c.Required {
		return "require column " + c.Table + "." + c.Column
	}
	return "make column " + c.Table + "." + c.Column + " optional"
}

func (c *ColumnRequiredChange) Apply(db *model.Database) error {
	_, col, err := column(db, c.Table, c.Column)
	if err != nil {
		return err
	}
	col.Required = c.Required
	if !c.Required {
		db.CancelDeferred(c.Table, c.Column)
	}
	return nil
}

// ColumnDefaultValueChange sets or clears the steady-state default.
type ColumnDefaultValueChange struct {
	Table   string
	Column  string
	Default string
}

func (c *ColumnDefaultValueChange) TableName() string      { return c.Table }
func (c *ColumnDefaultValueChange) Accept(v Visitor) error { return v.VisitColumnDefaultValueChange(c) }
func (*ColumnDefaultValueChange) sealed()                  {}

func (c *ColumnDefaultValueChange) String() string {
	return "change default of " + c.Table + "." + c.Column
}

func (c *ColumnDefaultValueChange) Apply(db *model.Database) error {
	_, col, err := column(db, c.Table, c.Column)
	if err != nil {
		return err
	}
	col.Default = c.Default
	return nil
}

// ColumnOnCreateDefaultChange sets the backfill expression recorded for a
// column. It only changes the encoded comment of an existing column.
type ColumnOnCreateDefaultChange struct {
	Table           string
	Column          string
	OnCreateDefault string
}

func (c *ColumnOnCreateDefaultChange) TableName() string { return c.Table }
func (c *ColumnOnCreateDefaultChange) Accept(v Visitor) error {
	return v.VisitColumnOnCreateDefaultChange(c)
}
func (*ColumnOnCreateDefaultChange) sealed() {}

func (c *ColumnOnCreateDefaultChange) String() string {
	return "change on-create default of " + c.Table + "." + c.Column
}

func (c *ColumnOnCreateDefaultChange) Apply(db *model.Database) error {
	_, col, err := column(db, c.Table, c.Column)
	if err != nil {
		return err
	}
	col.OnCreateDefault = c.OnCreateDefault
	return nil
}

// AddPrimaryKey marks Columns as the primary key.
type AddPrimaryKey struct {
	Table   string
	Name    string
	Columns []string
}

func (c *AddPrimaryKey) TableName() string      { return c.Table }
func (c *AddPrimaryKey) String() string         { return "add primary key on " + c.Table }
func (c *AddPrimaryKey) Accept(v Visitor) error { return v.VisitAddPrimaryKey(c) }
func (*AddPrimaryKey) sealed()                  {}

func (c *AddPrimaryKey) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if len(t.PrimaryKeyColumns()) > 0 {
		return fmt.Errorf("primary key on %s: %w", c.Table, ErrExists)
	}
	for _, name := range c.Columns {
		col := t.FindColumn(name)
		if col == nil {
			return fmt.Errorf("column %s.%s: %w", c.Table, name, ErrUnknownObject)
		}
		col.PrimaryKey = true
	}
	t.PrimaryKeyName = c.Name
	return nil
}

// RemovePrimaryKeyChange drops the primary key of a table.
type RemovePrimaryKeyChange struct {
	Table string
}

func (c *RemovePrimaryKeyChange) TableName() string      { return c.Table }
func (c *RemovePrimaryKeyChange) String() string         { return "remove primary key on " + c.Table }
func (c *RemovePrimaryKeyChange) Accept(v Visitor) error { return v.VisitRemovePrimaryKeyChange(c) }
func (*RemovePrimaryKeyChange) sealed()                  {}

func (c *RemovePrimaryKeyChange) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	for _, col := range t.Columns {
		col.PrimaryKey = false
	}
	t.PrimaryKeyName = ""
	return nil
}

// AddIndex creates an index.
type AddIndex struct {
	Table string
	Index *model.Index
}

func (c *AddIndex) TableName() string      { return c.Table }
func (c *AddIndex) String() string         { return "add index " + c.Table + "." + c.Index.Name }
func (c *AddIndex) Accept(v Visitor) error { return v.VisitAddIndex(c) }
func (*AddIndex) sealed()                  {}

func (c *AddIndex) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if t.FindIndex(c.Index.Name) != nil {
		return fmt.Errorf("index %s.%s: %w", c.Table, c.Index.Name, ErrExists)
	}
	idx := *c.Index
	idx.Columns = slices.Clone(c.Index.Columns)
	t.Indexes = append(t.Indexes, &idx)
	return nil
}

// RemoveIndexChange drops an index.
type RemoveIndexChange struct {
	Table string
	Index string
}

func (c *RemoveIndexChange) TableName() string      { return c.Table }
func (c *RemoveIndexChange) String() string         { return "remove index " + c.Table + "." + c.Index }
func (c *RemoveIndexChange) Accept(v Visitor) error { return v.VisitRemoveIndexChange(c) }
func (*RemoveIndexChange) sealed()                  {}

func (c *RemoveIndexChange) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if t.RemoveIndex(c.Index) == nil {
		return fmt.Errorf("index %s.%s: %w", c.Table, c.Index, ErrUnknownObject)
	}
	return nil
}

// AddUnique creates a UNIQUE constraint.
type AddUnique struct {
	Table  string
	Unique *model.Unique
}

func (c *AddUnique) TableName() string      { return c.Table }
func (c *AddUnique) String() string         { return "add unique " + c.Table + "." + c.Unique.Name }
func (c *AddUnique) Accept(v Visitor) error { return v.VisitAddUnique(c) }
func (*AddUnique) sealed()                  {}

func (c *AddUnique) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if t.FindUnique(c.Unique.Name) != nil {
		return fmt.Errorf("unique %s.%s: %w", c.Table, c.Unique.Name, ErrExists)
	}
	u := *c.Unique
	u.Columns = slices.Clone(c.Unique.Columns)
	t.Uniques = append(t.Uniques, &u)
	return nil
}

// RemoveUnique drops a UNIQUE constraint.
type RemoveUnique struct {
	Table  string
	Unique string
}

func (c *RemoveUnique) TableName() string      { return c.Table }
func (c *RemoveUnique) String() string         { return "remove unique " + c.Table + "." + c.Unique }
func (c *RemoveUnique) Accept(v Visitor) error { return v.VisitRemoveUnique(c) }
func (*RemoveUnique) sealed()                  {}

func (c *RemoveUnique) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if !t.RemoveUnique(c.Unique) {
		return fmt.Errorf("unique %s.%s: %w", c.Table, c.Unique, ErrUnknownObject)
	}
	return nil
}

// AddCheck creates a CHECK constraint.
type AddCheck struct {
	Table string
	Check *model.Check
}

func (c *AddCheck) TableName() string      { return c.Table }
func (c *AddCheck) String() string         { return "add check " + c.Table + "." + c.Check.Name }
func (c *AddCheck) Accept(v Visitor) error { return v.VisitAddCheck(c) }
func (*AddCheck) sealed()                  {}

func (c *AddCheck) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if t.FindCheck(c.Check.Name) != nil {
		return fmt.Errorf("check %s.%s: %w", c.Table, c.Check.Name, ErrExists)
	}
	ch := *c.Check
	t.Checks = append(t.Checks, &ch)
	return nil
}

// RemoveCheckChange drops a CHECK constraint.
type RemoveCheckChange struct {
	Table string
	Check string
}

func (c *RemoveCheckChange) TableName() string      { return c.Table }
func (c *RemoveCheckChange) String() string         { return "remove check " + c.Table + "." + c.Check }
func (c *RemoveCheckChange) Accept(v Visitor) error { return v.VisitRemoveCheckChange(c) }
func (*RemoveCheckChange) sealed()                  {}

func (c *RemoveCheckChange) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if !t.RemoveCheck(c.Check) {
		return fmt.Errorf("check %s.%s: %w", c.Table, c.Check, ErrUnknownObject)
	}
	return nil
}

// AddForeignKey creates a foreign key; the target must already exist.
type AddForeignKey struct {
	Table      string
	ForeignKey *model.ForeignKey
}

func (c *AddForeignKey) TableName() string { return c.Table }
func (c *AddForeignKey) String() string {
	return "add foreign key " + c.Table + "." + c.ForeignKey.Name
}
func (c *AddForeignKey) Accept(v Visitor) error { return v.VisitAddForeignKey(c) }
func (*AddForeignKey) sealed()                  {}

func (c *AddForeignKey) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if t.FindForeignKey(c.ForeignKey.Name) != nil {
		return fmt.Errorf("foreign key %s.%s: %w", c.Table, c.ForeignKey.Name, ErrExists)
	}
	fk := *c.ForeignKey
	fk.Target = nil
	fk.References = make([]model.Reference, len(c.ForeignKey.References))
	for i, r := range c.ForeignKey.References {
		fk.References[i] = model.Reference{Local: r.Local, Foreign: r.Foreign}
	}
	if err := db.ResolveForeignKey(t, &fk); err != nil {
		return err
	}
	t.ForeignKeys = append(t.ForeignKeys, &fk)
	return nil
}

// RemoveForeignKey drops a foreign key.
type RemoveForeignKey struct {
	Table      string
	ForeignKey string
}

func (c *RemoveForeignKey) TableName() string { return c.Table }
func (c *RemoveForeignKey) String() string {
	return "remove foreign key " + c.Table + "." + c.ForeignKey
}
func (c *RemoveForeignKey) Accept(v Visitor) error { return v.VisitRemoveForeignKey(c) }
func (*RemoveForeignKey) sealed()                  {}

func (c *RemoveForeignKey) Apply(db *model.Database) error {
	t, err := table(db, c.Table)
	if err != nil {
		return err
	}
	if !t.RemoveForeignKey(c.ForeignKey) {
		return fmt.Errorf("foreign key %s.%s: %w", c.Table, c.ForeignKey, ErrUnknownObject)
	}
	return nil
}

// RemoveTriggerChange drops a trigger.
type RemoveTriggerChange struct {
	Table   string
	Trigger string
}

func (c *RemoveTriggerChange) TableName() string      { return c.Table }
func (c *RemoveTriggerChange) String() string         { return "remove trigger " + c.Trigger }
func (c *RemoveTriggerChange) Accept(v Visitor) error { return v.VisitRemoveTriggerChange(c) }
func (*RemoveTriggerChange) sealed()                  {}

func (c *RemoveTriggerChange) Apply(db *model.Database) error {
	if !db.RemoveTrigger(c.Trigger) {
		return fmt.Errorf("trigger %s: %w", c.Trigger, ErrUnknownObject)
	}
	return nil
}

// RemoveFunction drops a function or procedure with all its overloads.
type RemoveFunction struct {
	Function string
}

func (c *RemoveFunction) TableName() string      { return "" }
func (c *RemoveFunction) String() string         { return "remove function " + c.Function }
func (c *RemoveFunction) Accept(v Visitor) error { return v.VisitRemoveFunction(c) }
func (*RemoveFunction) sealed()                  {}

func (c *RemoveFunction) Apply(db *model.Database) error {
	if !db.RemoveFunction(c.Function) {
		return fmt.Errorf("function %s: %w", c.Function, ErrUnknownObject)
	}
	return nil
}

// ApplyAll applies changes in order, stopping at the first failure.
func ApplyAll(db *model.Database, changes []Change) error {
	for _, c := range changes {
		if err := c.Apply(db); err != nil {
			return fmt.Errorf("apply %s: %w", c, err)
		}
	}
	return nil
}
