package model

import "slices"

// Clone returns a deep copy of the database, re-initialised so foreign keys
// point into the copy. Pending deferred registrations are copied too.
func (db *Database) Clone() (*Database, error) {
	out := &Database{
		Name:          db.Name,
		CaseSensitive: db.CaseSensitive,
		deferred:      slices.Clone(db.deferred),
	}
	for _, t := range db.Tables {
		out.Tables = append(out.Tables, t.Clone())
	}
	for _, f := range db.Functions {
		cp := *f
		cp.Params = slices.Clone(f.Params)
		out.Functions = append(out.Functions, &cp)
	}
	for _, tr := range db.Triggers {
		cp := *tr
		cp.Events = slices.Clone(tr.Events)
		out.Triggers = append(out.Triggers, &cp)
	}
	for _, v := range db.Views {
		cp := *v
		out.Views = append(out.Views, &cp)
	}
	if err := out.Initialize(); err != nil {
		return nil, err
	}
	return out, nil
}

// Clone deep-copies a table. Foreign key targets are left for Initialize.
func (t *Table) Clone() *Table {
	out := &Table{
		Catalog:        t.Catalog,
		Schema:         t.Schema,
		Name:           t.Name,
		PrimaryKeyName: t.PrimaryKeyName,
		Comment:        t.Comment,
		db:             t.db,
	}
	for _, c := range t.Columns {
		cp := *c
		out.Columns = append(out.Columns, &cp)
	}
	for _, fk := range t.ForeignKeys {
		cp := *fk
		cp.Target = nil
		cp.References = make([]Reference, len(fk.References))
		for i, r := range fk.References {
			cp.References[i] = Reference{Local: r.Local, Foreign: r.Foreign}
		}
		out.ForeignKeys = append(out.ForeignKeys, &cp)
	}
	for _, idx := range t.Indexes {
		cp := *idx
		cp.Columns = slices.Clone(idx.Columns)
		out.Indexes = append(out.Indexes, &cp)
	}
	for _, u := range t.Uniques {
		cp := *u
		cp.Columns = slices.Clone(u.Columns)
		out.Uniques = append(out.Uniques, &cp)
	}
	for _, ch := range t.Checks {
		cp := *ch
		out.Checks = append(out.Checks, &cp)
	}
	return out
}
