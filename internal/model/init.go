package model

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a model error: the schema is malformed or ambiguous and no DDL
// may be emitted for it.
type Error struct {
	Object string // e.g. "table ORDERS", "column ORDERS.ID"
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("model: %s: %s", e.Object, e.Reason)
}

// IsModelError reports whether err wraps a *Error.
func IsModelError(err error) bool {
	var me *Error
	return errors.As(err, &me)
}

type nameSet struct {
	db   *Database
	seen map[string]string
}

func newNameSet(db *Database) *nameSet {
	return &nameSet{db: db, seen: make(map[string]string)}
}

// add returns the previous spelling when the name is already taken.
func (s *nameSet) add(name string) (string, bool) {
	k := s.db.key(name)
	if prev, ok := s.seen[k]; ok {
		return prev, true
	}
	s.seen[k] = name
	return "", false
}

// Initialize resolves foreign key targets and validates the model. It fails
// fast on the first duplicate name, dangling reference or unknown type.
func (db *Database) Initialize() error {
	tables := newNameSet(db)
	for _, t := range db.Tables {
		t.db = db
		if strings.TrimSpace(t.Name) == "" {
			return &Error{Object: "table", Reason: "empty name"}
		}
		if prev, dup := tables.add(t.Name); dup {
			return &Error{Object: "table " + t.Name, Reason: fmt.Sprintf("duplicate of %s", prev)}
		}
		if err := t.validate(); err != nil {
			return err
		}
	}

	for _, t := range db.Tables {
		for _, fk := range t.ForeignKeys {
			if err := db.ResolveForeignKey(t, fk); err != nil {
				return err
			}
		}
	}

	funcs := newNameSet(db)
	for _, f := range db.Functions {
		// overloads share a name; only identical signatures collide
		if prev, dup := funcs.add(f.Name + "/" + signature(f)); dup {
			return &Error{Object: "function " + f.Name, Reason: fmt.Sprintf("duplicate of %s", prev)}
		}
		for _, p := range f.Params {
			if p.Type == TypeNone {
				return &Error{Object: "function " + f.Name, Reason: fmt.Sprintf("parameter %s has unknown type", p.Name)}
			}
			if p.Direction != "" && p.Direction != DirIn && p.Direction != DirOut {
				return &Error{Object: "function " + f.Name, Reason: fmt.Sprintf("parameter %s has invalid direction %q", p.Name, p.Direction)}
			}
		}
	}

	triggers := newNameSet(db)
	for _, tr := range db.Triggers {
		if prev, dup := triggers.add(tr.Name); dup {
			return &Error{Object: "trigger " + tr.Name, Reason: fmt.Sprintf("duplicate of %s", prev)}
		}
		if db.FindTable(tr.Table) == nil {
			return &Error{Object: "trigger " + tr.Name, Reason: fmt.Sprintf("unknown table %s", tr.Table)}
		}
	}

	views := newNameSet(db)
	for _, v := range db.Views {
		if prev, dup := views.add(v.Name); dup {
			return &Error{Object: "view " + v.Name, Reason: fmt.Sprintf("duplicate of %s", prev)}
		}
		if _, clash := tables.add(v.Name); clash {
			return &Error{Object: "view " + v.Name, Reason: "name collides with a table"}
		}
	}
	return nil
}

func signature(f *Function) string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.Type.String()
	}
	return strings.Join(parts, ",")
}

func (t *Table) validate() error {
	if len(t.Columns) == 0 {
		return &Error{Object: "table " + t.Name, Reason: "no columns"}
	}
	cols := newNameSet(t.db)
	for _, c := range t.Columns {
		obj := "column " + t.Name + "." + c.Name
		if prev, dup := cols.add(c.Name); dup {
			return &Error{Object: obj, Reason: fmt.Sprintf("duplicate of %s", prev)}
		}
		if c.Type == TypeNone {
			return &Error{Object: obj, Reason: "unknown type"}
		}
		if c.Type == TypeOther && c.NativeType == "" {
			return &Error{Object: obj, Reason: "type OTHER requires native_type"}
		}
		if c.Size < 0 || c.Scale < 0 {
			return &Error{Object: obj, Reason: "negative size or scale"}
		}
		if c.Type == TypeDecimal && c.Size > 0 && c.Scale > c.Size {
			return &Error{Object: obj, Reason: fmt.Sprintf("scale %d exceeds precision %d", c.Scale, c.Size)}
		}
	}

	// Indexes, uniques, checks and foreign keys share one constraint namespace.
	constraints := newNameSet(t.db)
	if t.PrimaryKeyName != "" {
		constraints.add(t.PrimaryKeyName)
	}
	for _, idx := range t.Indexes {
		if err := t.validateKeyParts("index "+idx.Name, idx.Columns); err != nil {
			return err
		}
		if prev, dup := constraints.add(idx.Name); dup {
			return &Error{Object: "index " + t.Name + "." + idx.Name, Reason: fmt.Sprintf("duplicate of %s", prev)}
		}
	}
	for _, u := range t.Uniques {
		if err := t.validateKeyParts("unique "+u.Name, u.Columns); err != nil {
			return err
		}
		if prev, dup := constraints.add(u.Name); dup {
			return &Error{Object: "unique " + t.Name + "." + u.Name, Reason: fmt.Sprintf("duplicate of %s", prev)}
		}
	}
	for _, ch := range t.Checks {
		if prev, dup := constraints.add(ch.Name); dup {
			return &Error{Object: "check " + t.Name + "." + ch.Name, Reason: fmt.Sprintf("duplicate of %s", prev)}
		}
	}
	for _, fk := range t.ForeignKeys {
		if prev, dup := constraints.add(fk.Name); dup {
			return &Error{Object: "foreign key " + t.Name + "." + fk.Name, Reason: fmt.Sprintf("duplicate of %s", prev)}
		}
	}
	return nil
}

func (t *Table) validateKeyParts(obj string, parts []IndexColumn) error {
	if len(parts) == 0 {
		return &Error{Object: obj + " on " + t.Name, Reason: "no columns"}
	}
	for _, p := range parts {
		if t.FindColumn(p.Name) == nil {
			return &Error{Object: obj + " on " + t.Name, Reason: fmt.Sprintf("unknown column %s", p.Name)}
		}
	}
	return nil
}

// ResolveForeignKey points fk at its target table and columns in db.
func (db *Database) ResolveForeignKey(t *Table, fk *ForeignKey) error {
	obj := "foreign key " + t.Name + "." + fk.Name
	target := db.FindTable(fk.ForeignTable)
	if target == nil {
		return &Error{Object: obj, Reason: fmt.Sprintf("unknown table %s", fk.ForeignTable)}
	}
	if len(fk.References) == 0 {
		return &Error{Object: obj, Reason: "no column references"}
	}
	fk.Target = target
	for i := range fk.References {
		ref := &fk.References[i]
		ref.LocalColumn = t.FindColumn(ref.Local)
		if ref.LocalColumn == nil {
			return &Error{Object: obj, Reason: fmt.Sprintf("unknown local column %s", ref.Local)}
		}
		ref.ForeignColumn = target.FindColumn(ref.Foreign)
		if ref.ForeignColumn == nil {
			return &Error{Object: obj, Reason: fmt.Sprintf("unknown column %s.%s", target.Name, ref.Foreign)}
		}
	}
	return nil
}
