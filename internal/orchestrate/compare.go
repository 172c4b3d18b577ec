package orchestrate

import (
	"slices"

	"github.com/Limetric/schemaferry/internal/change"
	"github.com/Limetric/schemaferry/internal/model"
)

// Compare diffs two initialised models into the changes that turn old into
// desired. The order is stable and safe to apply: foreign key, trigger and
// function removals first, then per table (in old's order) key removals,
// column removals, column alterations, column additions and key additions,
// then removed and added tables, and finally added foreign keys.
//
// Routine bodies are not compared here: changed and added functions and
// triggers are brought up to date by the planner's procedural phase.
func Compare(old, desired *model.Database) []change.Change {
	c := &comparer{old: old, desired: desired}
	c.foreignKeyRemovals()
	c.routineRemovals()
	for _, ot := range old.Tables {
		if nt := desired.FindTable(ot.Name); nt != nil {
			c.table(ot, nt)
		}
	}
	for _, ot := range old.Tables {
		if desired.FindTable(ot.Name) == nil {
			c.add(&change.RemoveTable{Table: ot.Name})
		}
	}
	for _, nt := range desired.Tables {
		if old.FindTable(nt.Name) == nil {
			c.add(&change.AddTable{Table: nt})
		}
	}
	c.foreignKeyAdditions()
	return c.out
}

type comparer struct {
	old, desired *model.Database
	out          []change.Change
}

func (c *comparer) add(ch change.Change) {
	c.out = append(c.out, ch)
}

func (c *comparer) same(a, b string) bool {
	return model.SameName(a, b, c.desired.CaseSensitive)
}

func (c *comparer) foreignKeyRemovals() {
	for _, ot := range c.old.Tables {
		nt := c.desired.FindTable(ot.Name)
		if nt == nil {
			// dropped with the table
			continue
		}
		for _, fk := range ot.ForeignKeys {
			if nfk := nt.FindForeignKey(fk.Name); nfk == nil || !c.sameForeignKey(fk, nfk) {
				c.add(&change.RemoveForeignKey{Table: ot.Name, ForeignKey: fk.Name})
			}
		}
	}
}

func (c *comparer) foreignKeyAdditions() {
	for _, nt := range c.desired.Tables {
		ot := c.old.FindTable(nt.Name)
		for _, fk := range nt.ForeignKeys {
			if ot != nil {
				if ofk := ot.FindForeignKey(fk.Name); ofk != nil && c.sameForeignKey(ofk, fk) {
					continue
				}
			}
			c.add(&change.AddForeignKey{Table: nt.Name, ForeignKey: fk})
		}
	}
}

// routineRemovals drops triggers that disappear while their table stays and
// functions whose name no longer exists at all. Signature changes are left
// to the procedural phase.
func (c *comparer) routineRemovals() {
	for _, tr := range c.old.Triggers {
		if c.desired.FindTable(tr.Table) == nil {
			continue
		}
		if c.desired.FindTrigger(tr.Name) == nil {
			c.add(&change.RemoveTriggerChange{Table: tr.Table, Trigger: tr.Name})
		}
	}
	seen := make(map[string]bool)
	for _, f := range c.old.Functions {
		key := model.FoldName(f.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		if c.desired.FindFunction(f.Name) == nil {
			c.add(&change.RemoveFunction{Function: f.Name})
		}
	}
}

func (c *comparer) table(ot, nt *model.Table) {
	name := ot.Name

	pkChanged := !c.samePrimaryKey(ot, nt)
	if pkChanged && len(ot.PrimaryKeyColumns()) > 0 {
		c.add(&change.RemovePrimaryKeyChange{Table: name})
	}
	for _, idx := range ot.Indexes {
		if ni := nt.FindIndex(idx.Name); ni == nil || !sameIndex(idx, ni) {
			c.add(&change.RemoveIndexChange{Table: name, Index: idx.Name})
		}
	}
	for _, u := range ot.Uniques {
		if nu := nt.FindUnique(u.Name); nu == nil || !slices.Equal(u.Columns, nu.Columns) {
			c.add(&change.RemoveUnique{Table: name, Unique: u.Name})
		}
	}
	for _, ck := range ot.Checks {
		if nc := nt.FindCheck(ck.Name); nc == nil || nc.Condition != ck.Condition {
			c.add(&change.RemoveCheckChange{Table: name, Check: ck.Name})
		}
	}

	for _, col := range ot.Columns {
		if nt.FindColumn(col.Name) == nil {
			c.add(&change.RemoveColumn{Table: name, Column: col.Name})
		}
	}
	for _, col := range ot.Columns {
		if ncol := nt.FindColumn(col.Name); ncol != nil {
			c.column(name, col, ncol)
		}
	}
	for i, col := range nt.Columns {
		if ot.FindColumn(col.Name) == nil {
			cp := *col
			cp.PrimaryKey = false
			c.add(&change.AddColumn{Table: name, Column: &cp, Position: i})
		}
	}

	if pkChanged && len(nt.PrimaryKeyColumns()) > 0 {
		var cols []string
		for _, col := range nt.PrimaryKeyColumns() {
			cols = append(cols, col.Name)
		}
		c.add(&change.AddPrimaryKey{Table: name, Name: nt.PrimaryKeyName, Columns: cols})
	}
	for _, idx := range nt.Indexes {
		if oi := ot.FindIndex(idx.Name); oi == nil || !sameIndex(oi, idx) {
			c.add(&change.AddIndex{Table: name, Index: idx})
		}
	}
	for _, u := range nt.Uniques {
		if ou := ot.FindUnique(u.Name); ou == nil || !slices.Equal(ou.Columns, u.Columns) {
			c.add(&change.AddUnique{Table: name, Unique: u})
		}
	}
	for _, ck := range nt.Checks {
		if oc := ot.FindCheck(ck.Name); oc == nil || oc.Condition != ck.Condition {
			c.add(&change.AddCheck{Table: name, Check: ck})
		}
	}
}

// column emits at most one type change, then default, on-create default
// and required changes.
func (c *comparer) column(table string, oc, nc *model.Column) {
	switch {
	case oc.Type != nc.Type || oc.Type == model.TypeOther && oc.NativeType != nc.NativeType:
		c.add(&change.ColumnDataTypeChange{
			Table: table, Column: oc.Name,
			OldType: oc.Type, NewType: nc.Type, NewNativeType: nc.NativeType,
			OldSize: oc.Size, OldScale: oc.Scale, NewSize: nc.Size, NewScale: nc.Scale,
		})
	case oc.Size != nc.Size || oc.Scale != nc.Scale:
		c.add(&change.ColumnSizeChange{
			Table: table, Column: oc.Name, Type: nc.Type,
			OldSize: oc.Size, OldScale: oc.Scale, NewSize: nc.Size, NewScale: nc.Scale,
		})
	}
	if oc.Default != nc.Default {
		c.add(&change.ColumnDefaultValueChange{Table: table, Column: oc.Name, Default: nc.Default})
	}
	if oc.OnCreateDefault != nc.OnCreateDefault {
		c.add(&change.ColumnOnCreateDefaultChange{Table: table, Column: oc.Name, OnCreateDefault: nc.OnCreateDefault})
	}
	if oc.Required != nc.Required {
		c.add(&change.ColumnRequiredChange{Table: table, Column: oc.Name, Required: nc.Required})
	}
}

func (c *comparer) samePrimaryKey(a, b *model.Table) bool {
	ac, bc := a.PrimaryKeyColumns(), b.PrimaryKeyColumns()
	if len(ac) != len(bc) || !c.same(a.PrimaryKeyName, b.PrimaryKeyName) {
		return false
	}
	for i := range ac {
		if !c.same(ac[i].Name, bc[i].Name) {
			return false
		}
	}
	return true
}

func sameIndex(a, b *model.Index) bool {
	return a.Unique == b.Unique &&
		a.Where == b.Where &&
		a.ContainsSearch == b.ContainsSearch &&
		slices.Equal(a.Columns, b.Columns)
}

func (c *comparer) sameForeignKey(a, b *model.ForeignKey) bool {
	if !c.same(a.ForeignTable, b.ForeignTable) || a.OnDelete != b.OnDelete || a.OnUpdate != b.OnUpdate {
		return false
	}
	if len(a.References) != len(b.References) {
		return false
	}
	for i := range a.References {
		if !c.same(a.References[i].Local, b.References[i].Local) ||
			!c.same(a.References[i].Foreign, b.References[i].Foreign) {
			return false
		}
	}
	return true
}
