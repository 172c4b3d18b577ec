package model

import (
	"slices"

	"golang.org/x/text/cases"
)

// SameName compares two identifiers, folding case unless caseSensitive.
func SameName(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return FoldName(a) == FoldName(b)
}

// FoldName case-folds an identifier. It builds a fresh Caser per call: a
// Caser is stateful and the translator reads the model from several
// goroutines.
func FoldName(s string) string {
	return cases.Fold().String(s)
}

func (db *Database) same(a, b string) bool {
	return SameName(a, b, db != nil && db.CaseSensitive)
}

func (db *Database) key(name string) string {
	if db != nil && db.CaseSensitive {
		return name
	}
	return FoldName(name)
}

// FindTable returns the named table or nil.
func (db *Database) FindTable(name string) *Table {
	for _, t := range db.Tables {
		if db.same(t.Name, name) {
			return t
		}
	}
	return nil
}

// FindFunction returns the first function with the given name or nil.
func (db *Database) FindFunction(name string) *Function {
	for _, f := range db.Functions {
		if db.same(f.Name, name) {
			return f
		}
	}
	return nil
}

// FindTrigger returns the named trigger or nil.
func (db *Database) FindTrigger(name string) *Trigger {
	for _, t := range db.Triggers {
		if db.same(t.Name, name) {
			return t
		}
	}
	return nil
}

// FindView returns the named view or nil.
func (db *Database) FindView(name string) *View {
	for _, v := range db.Views {
		if db.same(v.Name, name) {
			return v
		}
	}
	return nil
}

// TriggersOn returns the triggers defined on the named table.
func (db *Database) TriggersOn(table string) []*Trigger {
	var out []*Trigger
	for _, t := range db.Triggers {
		if db.same(t.Table, table) {
			out = append(out, t)
		}
	}
	return out
}

// ReferencingKeys returns every foreign key, on any table, that targets the
// named table, keyed by the owning table.
func (db *Database) ReferencingKeys(table string) map[*Table][]*ForeignKey {
	out := make(map[*Table][]*ForeignKey)
	for _, t := range db.Tables {
		for _, fk := range t.ForeignKeys {
			if db.same(fk.ForeignTable, table) {
				out[t] = append(out[t], fk)
			}
		}
	}
	return out
}

// AddTable appends t and attaches it to the database.
func (db *Database) AddTable(t *Table) {
	t.db = db
	db.Tables = append(db.Tables, t)
}

// RemoveTable drops the named table; it reports whether it existed.
func (db *Database) RemoveTable(name string) bool {
	n := len(db.Tables)
	db.Tables = slices.DeleteFunc(db.Tables, func(t *Table) bool { return db.same(t.Name, name) })
	return len(db.Tables) != n
}

// RemoveTrigger drops the named trigger; it reports whether it existed.
func (db *Database) RemoveTrigger(name string) bool {
	n := len(db.Triggers)
	db.Triggers = slices.DeleteFunc(db.Triggers, func(t *Trigger) bool { return db.same(t.Name, name) })
	return len(db.Triggers) != n
}

// RemoveFunction drops every overload of the named function.
func (db *Database) RemoveFunction(name string) bool {
	n := len(db.Functions)
	db.Functions = slices.DeleteFunc(db.Functions, func(f *Function) bool { return db.same(f.Name, name) })
	return len(db.Functions) != n
}

// DeferRequired registers a NOT NULL constraint to be enabled after backfill.
// Registering the same column twice is a no-op.
func (db *Database) DeferRequired(table, column string) {
	for _, d := range db.deferred {
		if db.same(d.Table, table) && db.same(d.Column, column) {
			return
		}
	}
	db.deferred = append(db.deferred, Deferred{Table: table, Column: column})
}

// CancelDeferred drops a pending registration, used when the column turns
// optional again or disappears.
func (db *Database) CancelDeferred(table, column string) {
	db.deferred = slices.DeleteFunc(db.deferred, func(d Deferred) bool {
		return db.same(d.Table, table) && (column == "" || db.same(d.Column, column))
	})
}

// IsDeferred reports whether the column has a pending NOT NULL.
func (db *Database) IsDeferred(table, column string) bool {
	for _, d := range db.deferred {
		if db.same(d.Table, table) && db.same(d.Column, column) {
			return true
		}
	}
	return false
}

// Deferred returns the pending registrations in registration order.
func (db *Database) Deferred() []Deferred {
	return slices.Clone(db.deferred)
}

// TakeDeferred returns and clears the pending registrations.
func (db *Database) TakeDeferred() []Deferred {
	out := db.deferred
	db.deferred = nil
	return out
}

// FindColumn returns the named column or nil.
func (t *Table) FindColumn(name string) *Column {
	for _, c := range t.Columns {
		if t.db.same(c.Name, name) {
			return c
		}
	}
	return nil
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if t.db.same(c.Name, name) {
			return i
		}
	}
	return -1
}

// PrimaryKeyColumns returns the primary key columns in table order.
func (t *Table) PrimaryKeyColumns() []*Column {
	var out []*Column
	for _, c := range t.Columns {
		if c.PrimaryKey {
			out = append(out, c)
		}
	}
	return out
}

// FindIndex returns the named index or nil.
func (t *Table) FindIndex(name string) *Index {
	for _, i := range t.Indexes {
		if t.db.same(i.Name, name) {
			return i
		}
	}
	return nil
}

// FindUnique returns the named unique constraint or nil.
func (t *Table) FindUnique(name string) *Unique {
	for _, u := range t.Uniques {
		if t.db.same(u.Name, name) {
			return u
		}
	}
	return nil
}

// FindCheck returns the named check constraint or nil.
func (t *Table) FindCheck(name string) *Check {
	for _, c := range t.Checks {
		if t.db.same(c.Name, name) {
			return c
		}
	}
	return nil
}

// FindForeignKey returns the named foreign key or nil.
func (t *Table) FindForeignKey(name string) *ForeignKey {
	for _, fk := range t.ForeignKeys {
		if t.db.same(fk.Name, name) {
			return fk
		}
	}
	return nil
}

// RemoveColumn drops the named column; it reports whether it existed.
func (t *Table) RemoveColumn(name string) bool {
	n := len(t.Columns)
	t.Columns = slices.DeleteFunc(t.Columns, func(c *Column) bool { return t.db.same(c.Name, name) })
	return len(t.Columns) != n
}

// RemoveIndex drops the named index and returns it.
func (t *Table) RemoveIndex(name string) *Index {
	idx := t.FindIndex(name)
	if idx != nil {
		t.Indexes = slices.DeleteFunc(t.Indexes, func(i *Index) bool { return i == idx })
	}
	return idx
}

// RemoveUnique drops the named unique constraint; it reports whether it existed.
func (t *Table) RemoveUnique(name string) bool {
	n := len(t.Uniques)
	t.Uniques = slices.DeleteFunc(t.Uniques, func(u *Unique) bool { return t.db.same(u.Name, name) })
	return len(t.Uniques) != n
}

// RemoveCheck drops the named check constraint; it reports whether it existed.
func (t *Table) RemoveCheck(name string) bool {
	n := len(t.Checks)
	t.Checks = slices.DeleteFunc(t.Checks, func(c *Check) bool { return t.db.same(c.Name, name) })
	return len(t.Checks) != n
}

// RemoveForeignKey drops the named foreign key; it reports whether it existed.
func (t *Table) RemoveForeignKey(name string) bool {
	n := len(t.ForeignKeys)
	t.ForeignKeys = slices.DeleteFunc(t.ForeignKeys, func(fk *ForeignKey) bool { return t.db.same(fk.Name, name) })
	return len(t.ForeignKeys) != n
}

// SameName compares names using the owning database's case mode.
func (t *Table) SameName(a, b string) bool {
	return t.db.same(a, b)
}
