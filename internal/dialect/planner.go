package dialect

import (
	"fmt"

	"github.com/Limetric/schemaferry/internal/change"
	"github.com/Limetric/schemaferry/internal/model"
	"github.com/Limetric/schemaferry/internal/translate"
)

// Planner turns one migration's changes into statements, phase by phase.
// It owns the model for the duration of the run and is not safe for
// concurrent use.
type Planner struct {
	d          Dialect
	db         *model.Database
	changes    []change.Change
	translator *translate.Translator

	planned bool
	err     error

	recreated map[string]*model.Table // folded name -> table before any change
	rebuildOf []string                // recreated tables in first-seen order
	added     map[string]bool
	droppedFK []tableObject

	disable    []Statement
	removals   []Statement
	dropTables []Statement
	creates    []Statement
	modifies   []Statement
	rebuilds   []Statement
	comments   []Statement
	keys       []Statement
	defaults   []Statement
	enable     []Statement
	routines   []Statement

	dropCols   *tableBatch
	addCols    *tableBatch
	backfills  []tableObject
	triggersOf []string
	dirtyCols  []tableObject
	dirtyTabs  []string
	removedIdx map[string][]string // folded table -> index names dropped
}

type tableObject struct {
	Table, Name string
}

// tableBatch collects per-table items in first-seen table order. Items are
// keyed by column so a later change can rewrite or withdraw them.
type tableBatch struct {
	order []string
	items map[string][]batchItem
	names map[string]string
}

type batchItem struct {
	key, text string
}

func newTableBatch() *tableBatch {
	return &tableBatch{items: make(map[string][]batchItem), names: make(map[string]string)}
}

func (b *tableBatch) add(table, key, item string) {
	k := model.FoldName(table)
	if _, ok := b.items[k]; !ok {
		b.order = append(b.order, k)
		b.names[k] = table
	}
	b.items[k] = append(b.items[k], batchItem{key: key, text: item})
}

func (b *tableBatch) find(table, key string) int {
	for i, it := range b.items[model.FoldName(table)] {
		if model.SameName(it.key, key, false) {
			return i
		}
	}
	return -1
}

// replace rewrites the item under key and reports whether there was one.
func (b *tableBatch) replace(table, key, item string) bool {
	i := b.find(table, key)
	if i < 0 {
		return false
	}
	b.items[model.FoldName(table)][i].text = item
	return true
}

// cancel withdraws the item under key and reports whether there was one.
func (b *tableBatch) cancel(table, key string) bool {
	i := b.find(table, key)
	if i < 0 {
		return false
	}
	k := model.FoldName(table)
	b.items[k] = append(b.items[k][:i], b.items[k][i+1:]...)
	return true
}

// each visits the tables that still have items.
func (b *tableBatch) each(fn func(table string, items []string)) {
	for _, k := range b.order {
		if len(b.items[k]) == 0 {
			continue
		}
		texts := make([]string, len(b.items[k]))
		for i, it := range b.items[k] {
			texts[i] = it.text
		}
		fn(b.names[k], texts)
	}
}

// NewPlanner returns a planner that applies changes to db. The translator
// is required for dialects whose Translates reports true.
func NewPlanner(d Dialect, db *model.Database, changes []change.Change, tr *translate.Translator) *Planner {
	return &Planner{
		d:          d,
		db:         db,
		changes:    changes,
		translator: tr,
		recreated:  make(map[string]*model.Table),
		added:      make(map[string]bool),
		dropCols:   newTableBatch(),
		addCols:    newTableBatch(),
		removedIdx: make(map[string][]string),
	}
}

// Model returns the model in its current, partially migrated state.
func (p *Planner) Model() *model.Database { return p.db }

// Recreated reports whether the named table is rebuilt in this run.
func (p *Planner) Recreated(table string) bool {
	p.plan()
	_, ok := p.recreated[model.FoldName(table)]
	return ok
}

func (p *Planner) isRecreated(table string) bool {
	_, ok := p.recreated[model.FoldName(table)]
	return ok
}

func (p *Planner) isAdded(table string) bool {
	return p.added[model.FoldName(table)]
}

// rebuilt reports whether the table's DDL is rendered from the final model
// rather than change by change.
func (p *Planner) rebuilt(table string) bool {
	return p.isAdded(table) || p.isRecreated(table)
}

func (p *Planner) stmt(list *[]Statement, phase Phase, object, desc, sql string) {
	*list = append(*list, Statement{Phase: phase, Object: object, Desc: desc, SQL: sql})
}

func (p *Planner) stmts(list *[]Statement, phase Phase, object, desc string, sqls []string) {
	for _, s := range sqls {
		p.stmt(list, phase, object, desc, s)
	}
}

// Disable returns the statements that drop foreign keys of and into
// recreated tables, drop removed foreign keys and disable triggers on tables
// about to be backfilled.
func (p *Planner) Disable() ([]Statement, error) {
	p.plan()
	return p.disable, p.err
}

// Alter returns the structural statements: removals, batched column drops,
// table drops and creates, in-place modifications, batched column adds,
// table recreations and comment updates.
func (p *Planner) Alter() ([]Statement, error) {
	p.plan()
	if p.err != nil {
		return nil, p.err
	}
	var out []Statement
	out = append(out, p.removals...)
	p.dropCols.each(func(table string, cols []string) {
		p.stmt(&out, PhaseAlter, table, "drop columns", p.d.DropColumns(table, cols))
	})
	out = append(out, p.dropTables...)
	out = append(out, p.creates...)
	out = append(out, p.modifies...)
	p.addCols.each(func(table string, defs []string) {
		p.stmt(&out, PhaseAlter, table, "add columns", p.d.AddColumns(table, defs))
	})
	out = append(out, p.rebuilds...)
	out = append(out, p.comments...)
	return out, nil
}

// Keys returns primary keys, unique and check constraints, indexes and
// comments of added and recreated tables, plus added keys elsewhere.
func (p *Planner) Keys() ([]Statement, error) {
	p.plan()
	return p.keys, p.err
}

// Defaults returns the backfill updates that must run before any deferred
// NOT NULL is enabled.
func (p *Planner) Defaults() ([]Statement, error) {
	p.plan()
	return p.defaults, p.err
}

// FlushDeferred returns NOT NULL statements for every deferred column and
// clears the register. Columns dropped or made optional since registration
// are skipped.
func (p *Planner) FlushDeferred() []Statement {
	p.plan()
	var out []Statement
	for _, def := range p.db.TakeDeferred() {
		t := p.db.FindTable(def.Table)
		if t == nil {
			continue
		}
		c := t.FindColumn(def.Column)
		if c == nil || !c.Required {
			continue
		}
		p.stmt(&out, PhaseFlush, t.Name, "require "+c.Name, p.d.SetRequired(t.Name, c, true))
	}
	return out
}

// Enable returns the statements re-adding foreign keys dropped for
// recreation, adding new foreign keys and re-enabling triggers.
func (p *Planner) Enable() ([]Statement, error) {
	p.plan()
	return p.enable, p.err
}

// plan applies every change to the model once, filling the phase buckets.
func (p *Planner) plan() {
	if p.planned {
		return
	}
	p.planned = true
	p.err = p.run()
}

func (p *Planner) run() error {
	for _, name := range RecreatedTables(p.d, p.changes) {
		t := p.db.FindTable(name)
		if t == nil {
			return fmt.Errorf("recreate %s: %w", name, change.ErrUnknownObject)
		}
		p.recreated[model.FoldName(t.Name)] = t.Clone()
		p.rebuildOf = append(p.rebuildOf, model.FoldName(t.Name))
	}
	p.disableForRecreation()

	v := &planVisitor{p: p}
	for _, c := range p.changes {
		if err := c.Accept(v); err != nil {
			return fmt.Errorf("plan %s: %w", c, err)
		}
	}

	for _, name := range p.rebuildOf {
		if err := p.recreate(p.recreated[name]); err != nil {
			return err
		}
	}
	if err := p.flushComments(); err != nil {
		return err
	}
	for _, t := range p.db.Tables {
		if p.rebuilt(t.Name) {
			if err := p.finishTable(t); err != nil {
				return err
			}
		}
	}
	p.planBackfills()
	p.reenableForeignKeys()
	return nil
}

// disableForRecreation drops every foreign key that would block dropping a
// recreated table, remembering them for Enable.
func (p *Planner) disableForRecreation() {
	seen := make(map[string]bool)
	drop := func(table string, fk *model.ForeignKey) {
		key := model.FoldName(table) + "." + model.FoldName(fk.Name)
		if seen[key] {
			return
		}
		seen[key] = true
		p.droppedFK = append(p.droppedFK, tableObject{Table: table, Name: fk.Name})
		p.stmt(&p.disable, PhaseDisable, table, "drop foreign key "+fk.Name, dropConstraint(p.d, table, fk.Name))
	}
	for _, name := range p.rebuildOf {
		t := p.recreated[name]
		for _, fk := range t.ForeignKeys {
			drop(t.Name, fk)
		}
		for _, owner := range p.db.Tables {
			for _, fk := range owner.ForeignKeys {
				if owner.SameName(fk.ForeignTable, t.Name) {
					drop(owner.Name, fk)
				}
			}
		}
	}
}

func (p *Planner) wasDropped(table, fk string) bool {
	for _, d := range p.droppedFK {
		if model.FoldName(d.Table) == model.FoldName(table) && model.FoldName(d.Name) == model.FoldName(fk) {
			return true
		}
	}
	return false
}

func (p *Planner) reenableForeignKeys() {
	var readd []Statement
	for _, d := range p.droppedFK {
		t := p.db.FindTable(d.Table)
		if t == nil {
			continue
		}
		fk := t.FindForeignKey(d.Name)
		if fk == nil {
			continue
		}
		p.stmt(&readd, PhaseEnable, t.Name, "add foreign key "+fk.Name, addForeignKey(p.d, t.Name, fk))
	}
	p.enable = append(readd, p.enable...)
	for _, table := range p.triggersOf {
		p.stmt(&p.enable, PhaseEnable, table, "enable triggers", p.d.SetTriggersEnabled(table, true))
	}
}

// planBackfills emits the default updates and disables triggers on the
// affected tables for their duration.
func (p *Planner) planBackfills() {
	seen := make(map[string]bool)
	for _, b := range p.backfills {
		t := p.db.FindTable(b.Table)
		if t == nil || p.isAdded(t.Name) {
			continue
		}
		c := t.FindColumn(b.Name)
		if c == nil {
			continue
		}
		expr := c.OnCreateDefault
		if expr == "" {
			expr = c.Default
		}
		if expr == "" {
			continue
		}
		key := model.FoldName(t.Name)
		if !seen[key] && len(p.db.TriggersOn(t.Name)) > 0 && !p.isRecreated(t.Name) {
			seen[key] = true
			p.triggersOf = append(p.triggersOf, t.Name)
			p.stmt(&p.disable, PhaseDisable, t.Name, "disable triggers", p.d.SetTriggersEnabled(t.Name, false))
		}
		p.stmt(&p.defaults, PhaseDefaults, t.Name, "backfill "+c.Name, backfill(p.d, t.Name, c.Name, expr))
	}
}

func (p *Planner) markColumnComment(table, column string) {
	for _, d := range p.dirtyCols {
		if model.FoldName(d.Table) == model.FoldName(table) && model.FoldName(d.Name) == model.FoldName(column) {
			return
		}
	}
	p.dirtyCols = append(p.dirtyCols, tableObject{Table: table, Name: column})
}

func (p *Planner) markTableComment(table string) {
	for _, t := range p.dirtyTabs {
		if model.FoldName(t) == model.FoldName(table) {
			return
		}
	}
	p.dirtyTabs = append(p.dirtyTabs, table)
}

// flushComments rewrites the comments touched by in-place changes.
func (p *Planner) flushComments() error {
	for _, name := range p.dirtyTabs {
		t := p.db.FindTable(name)
		if t == nil || p.rebuilt(t.Name) {
			continue
		}
		text, err := p.tableComment(t)
		if err != nil {
			return err
		}
		p.stmt(&p.comments, PhaseAlter, t.Name, "comment", commentOnTable(p.d, t.Name, text))
	}
	for _, d := range p.dirtyCols {
		t := p.db.FindTable(d.Table)
		if t == nil || p.rebuilt(t.Name) {
			continue
		}
		c := t.FindColumn(d.Name)
		if c == nil {
			continue
		}
		text, err := p.columnComment(t, c)
		if err != nil {
			return err
		}
		p.stmt(&p.comments, PhaseAlter, t.Name, "comment "+c.Name, commentOnColumn(p.d, t.Name, c.Name, text))
	}
	return nil
}

// finishTable emits keys, indexes and comments of a table whose DDL was
// rendered from the final model.
func (p *Planner) finishTable(t *model.Table) error {
	if len(t.PrimaryKeyColumns()) > 0 {
		p.stmt(&p.keys, PhaseKeys, t.Name, "primary key", addPrimaryKey(p.d, t))
	}
	for _, u := range t.Uniques {
		p.stmt(&p.keys, PhaseKeys, t.Name, "unique "+u.Name, addUnique(p.d, t.Name, u))
	}
	for _, c := range t.Checks {
		p.stmt(&p.keys, PhaseKeys, t.Name, "check "+c.Name, addCheck(p.d, t.Name, c))
	}
	for _, idx := range t.Indexes {
		p.stmt(&p.keys, PhaseKeys, t.Name, "index "+idx.Name, p.d.CreateIndex(t, idx))
	}
	text, err := p.tableComment(t)
	if err != nil {
		return err
	}
	if text != "" {
		p.stmt(&p.keys, PhaseKeys, t.Name, "comment", commentOnTable(p.d, t.Name, text))
	}
	for _, c := range t.Columns {
		text, err := p.columnComment(t, c)
		if err != nil {
			return err
		}
		if text != "" {
			p.stmt(&p.keys, PhaseKeys, t.Name, "comment "+c.Name, commentOnColumn(p.d, t.Name, c.Name, text))
		}
	}
	return nil
}
