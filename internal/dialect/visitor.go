package dialect

import (
	"fmt"

	"github.com/Limetric/schemaferry/internal/change"
	"github.com/Limetric/schemaferry/internal/model"
)

// planVisitor applies one change to the model and records the statements
// it needs. Changes on added or recreated tables only touch the model: their
// DDL is rendered from the final table.
type planVisitor struct {
	p *Planner
}

var _ change.Visitor = (*planVisitor)(nil)

func (v *planVisitor) VisitAddTable(c *change.AddTable) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	t := p.db.FindTable(c.Table.Name)
	p.added[model.FoldName(t.Name)] = true
	p.stmt(&p.creates, PhaseAlter, t.Name, "create table",
		createTable(p.d, t.Name, t, func(c *model.Column) bool { return c.Required }))
	return nil
}

func (v *planVisitor) VisitRemoveTable(c *change.RemoveTable) error {
	p := v.p
	t := p.db.FindTable(c.Table)
	if t == nil {
		return fmt.Errorf("table %s: %w", c.Table, change.ErrUnknownObject)
	}
	for _, tr := range p.db.TriggersOn(t.Name) {
		p.stmts(&p.removals, PhaseAlter, t.Name, "drop trigger "+tr.Name, p.d.DropTrigger(tr))
	}
	p.stmt(&p.dropTables, PhaseAlter, t.Name, "drop table", p.d.DropTable(t.Name))
	return c.Apply(p.db)
}

func (v *planVisitor) VisitAddColumn(c *change.AddColumn) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	if p.isAdded(c.Table) {
		return nil
	}
	t := p.db.FindTable(c.Table)
	col := t.FindColumn(c.Column.Name)
	if col.Required {
		p.db.DeferRequired(t.Name, col.Name)
	}
	if col.OnCreateDefault != "" || col.Default != "" {
		p.backfills = append(p.backfills, tableObject{Table: t.Name, Name: col.Name})
	}
	if p.isRecreated(t.Name) {
		return nil
	}
	p.addCols.add(t.Name, col.Name, columnDef(p.d, col, false))
	if p.needsColumnComment(col) {
		p.markColumnComment(t.Name, col.Name)
	}
	return nil
}

func (v *planVisitor) VisitRemoveColumn(c *change.RemoveColumn) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	if p.rebuilt(c.Table) {
		return nil
	}
	// a column added earlier in the same run is simply never added
	if p.addCols.cancel(c.Table, c.Column) {
		return nil
	}
	p.dropCols.add(p.db.FindTable(c.Table).Name, c.Column, c.Column)
	return nil
}

func (v *planVisitor) VisitColumnSizeChange(c *change.ColumnSizeChange) error {
	return v.p.modifyType(c.Table, c.Column, c)
}

func (v *planVisitor) VisitColumnDataTypeChange(c *change.ColumnDataTypeChange) error {
	return v.p.modifyType(c.Table, c.Column, c)
}

// modifyType applies a size or type change and, for in-place changes, emits
// the modification when the rendered type differs.
func (p *Planner) modifyType(table, column string, c change.Change) error {
	t := p.db.FindTable(table)
	if t == nil {
		return fmt.Errorf("table %s: %w", table, change.ErrUnknownObject)
	}
	col := t.FindColumn(column)
	if col == nil {
		return fmt.Errorf("column %s.%s: %w", table, column, change.ErrUnknownObject)
	}
	before := *col
	if err := c.Apply(p.db); err != nil {
		return err
	}
	if p.rebuilt(t.Name) {
		return nil
	}
	pending := p.addCols.replace(t.Name, col.Name, columnDef(p.d, col, false))
	if !pending && p.d.ColumnType(&before) != p.d.ColumnType(col) {
		p.stmt(&p.modifies, PhaseAlter, t.Name, "modify "+col.Name, p.d.ModifyType(t.Name, col))
	}
	if p.d.EncodesNationalType() && before.Type.IsNational() != col.Type.IsNational() {
		p.markColumnComment(t.Name, col.Name)
	}
	return nil
}

func (v *planVisitor) VisitColumnRequiredChange(c *change.ColumnRequiredChange) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	if p.isAdded(c.Table) {
		return nil
	}
	t := p.db.FindTable(c.Table)
	col := t.FindColumn(c.Column)
	if c.Required {
		p.db.DeferRequired(t.Name, col.Name)
		p.backfills = append(p.backfills, tableObject{Table: t.Name, Name: col.Name})
		return nil
	}
	if !p.isRecreated(t.Name) {
		p.stmt(&p.modifies, PhaseAlter, t.Name, "optional "+col.Name, p.d.SetRequired(t.Name, col, false))
	}
	return nil
}

func (v *planVisitor) VisitColumnDefaultValueChange(c *change.ColumnDefaultValueChange) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	if p.rebuilt(c.Table) {
		return nil
	}
	t := p.db.FindTable(c.Table)
	col := t.FindColumn(c.Column)
	p.stmt(&p.modifies, PhaseAlter, t.Name, "default "+col.Name, p.d.SetDefault(t.Name, col))
	return nil
}

func (v *planVisitor) VisitColumnOnCreateDefaultChange(c *change.ColumnOnCreateDefaultChange) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	if !p.rebuilt(c.Table) {
		p.markColumnComment(c.Table, c.Column)
	}
	return nil
}

func (v *planVisitor) VisitAddPrimaryKey(c *change.AddPrimaryKey) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	if !p.rebuilt(c.Table) {
		t := p.db.FindTable(c.Table)
		p.stmt(&p.keys, PhaseKeys, t.Name, "primary key", addPrimaryKey(p.d, t))
	}
	return nil
}

func (v *planVisitor) VisitRemovePrimaryKeyChange(c *change.RemovePrimaryKeyChange) error {
	p := v.p
	if t := p.db.FindTable(c.Table); t != nil && !p.rebuilt(t.Name) && len(t.PrimaryKeyColumns()) > 0 {
		p.stmt(&p.removals, PhaseAlter, t.Name, "drop primary key", p.d.DropPrimaryKey(t))
	}
	return c.Apply(p.db)
}

func (v *planVisitor) VisitAddIndex(c *change.AddIndex) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	if p.rebuilt(c.Table) {
		return nil
	}
	t := p.db.FindTable(c.Table)
	idx := t.FindIndex(c.Index.Name)
	p.stmt(&p.keys, PhaseKeys, t.Name, "index "+idx.Name, p.d.CreateIndex(t, idx))
	if p.d.EncodesIndexMetadata() && idx.HasMetadata() {
		p.markTableComment(t.Name)
	}
	return nil
}

// VisitRemoveIndexChange drops the index and, when the index carried
// comment-encoded metadata, schedules the removal-side comment update.
func (v *planVisitor) VisitRemoveIndexChange(c *change.RemoveIndexChange) error {
	p := v.p
	t := p.db.FindTable(c.Table)
	if t == nil {
		return fmt.Errorf("table %s: %w", c.Table, change.ErrUnknownObject)
	}
	idx := t.FindIndex(c.Index)
	if idx == nil {
		return fmt.Errorf("index %s.%s: %w", c.Table, c.Index, change.ErrUnknownObject)
	}
	if !p.rebuilt(t.Name) {
		p.stmt(&p.removals, PhaseAlter, t.Name, "drop index "+idx.Name, dropIndex(p.d, idx.Name))
	}
	if p.d.EncodesIndexMetadata() && idx.HasMetadata() {
		key := model.FoldName(t.Name)
		p.removedIdx[key] = append(p.removedIdx[key], idx.Name)
		p.markTableComment(t.Name)
	}
	return c.Apply(p.db)
}

func (v *planVisitor) VisitAddUnique(c *change.AddUnique) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	if !p.rebuilt(c.Table) {
		t := p.db.FindTable(c.Table)
		p.stmt(&p.keys, PhaseKeys, t.Name, "unique "+c.Unique.Name, addUnique(p.d, t.Name, c.Unique))
	}
	return nil
}

func (v *planVisitor) VisitRemoveUnique(c *change.RemoveUnique) error {
	p := v.p
	if !p.rebuilt(c.Table) {
		p.stmt(&p.removals, PhaseAlter, c.Table, "drop unique "+c.Unique, dropConstraint(p.d, c.Table, c.Unique))
	}
	return c.Apply(p.db)
}

func (v *planVisitor) VisitAddCheck(c *change.AddCheck) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	if !p.rebuilt(c.Table) {
		t := p.db.FindTable(c.Table)
		p.stmt(&p.keys, PhaseKeys, t.Name, "check "+c.Check.Name, addCheck(p.d, t.Name, c.Check))
	}
	return nil
}

func (v *planVisitor) VisitRemoveCheckChange(c *change.RemoveCheckChange) error {
	p := v.p
	if !p.rebuilt(c.Table) {
		p.stmt(&p.removals, PhaseAlter, c.Table, "drop check "+c.Check, dropConstraint(p.d, c.Table, c.Check))
	}
	return c.Apply(p.db)
}

func (v *planVisitor) VisitAddForeignKey(c *change.AddForeignKey) error {
	p := v.p
	if err := c.Apply(p.db); err != nil {
		return err
	}
	t := p.db.FindTable(c.Table)
	fk := t.FindForeignKey(c.ForeignKey.Name)
	p.stmt(&p.enable, PhaseEnable, t.Name, "add foreign key "+fk.Name, addForeignKey(p.d, t.Name, fk))
	return nil
}

func (v *planVisitor) VisitRemoveForeignKey(c *change.RemoveForeignKey) error {
	p := v.p
	if !p.wasDropped(c.Table, c.ForeignKey) {
		p.stmt(&p.disable, PhaseDisable, c.Table, "drop foreign key "+c.ForeignKey, dropConstraint(p.d, c.Table, c.ForeignKey))
	}
	return c.Apply(p.db)
}

func (v *planVisitor) VisitRemoveTriggerChange(c *change.RemoveTriggerChange) error {
	p := v.p
	tr := p.db.FindTrigger(c.Trigger)
	if tr == nil {
		return fmt.Errorf("trigger %s: %w", c.Trigger, change.ErrUnknownObject)
	}
	p.stmts(&p.removals, PhaseAlter, tr.Table, "drop trigger "+tr.Name, p.d.DropTrigger(tr))
	return c.Apply(p.db)
}

func (v *planVisitor) VisitRemoveFunction(c *change.RemoveFunction) error {
	p := v.p
	for _, f := range p.db.Functions {
		if !model.SameName(f.Name, c.Function, p.db.CaseSensitive) {
			continue
		}
		p.stmts(&p.routines, PhaseProcedural, f.Name, "drop "+f.Name, p.dropRoutine(f))
	}
	return c.Apply(p.db)
}
