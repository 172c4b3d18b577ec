package dialect

import (
	"fmt"
	"strings"

	"github.com/Limetric/schemaferry/internal/model"
)

// recreate rebuilds a table whose changes cannot be made in place: create
// <table>_NEW from the final model, copy rows through per-column casts, drop
// the old table and rename the new one into place. Keys, indexes and
// comments follow in the keys phase.
func (p *Planner) recreate(old *model.Table) error {
	t := p.db.FindTable(old.Name)
	if t == nil {
		// removed later in the same run
		return nil
	}
	tmp := truncateIdent(t.Name, "_NEW", p.d.MaxIdentifierLength())

	var targets, exprs []string
	notNull := make(map[*model.Column]bool)
	for _, c := range t.Columns {
		prev := old.FindColumn(c.Name)
		if prev == nil {
			expr := c.OnCreateDefault
			if expr == "" {
				expr = c.Default
			}
			if expr != "" {
				targets = append(targets, c.Name)
				exprs = append(exprs, expr)
			}
			if c.Required {
				p.db.DeferRequired(t.Name, c.Name)
			}
			continue
		}
		kind := classifyCast(prev, c)
		targets = append(targets, c.Name)
		exprs = append(exprs, p.d.Cast(p.d.Ident(prev.Name), prev, c))
		switch {
		case !c.Required:
		case prev.Required && kind.lossless() && !p.db.IsDeferred(t.Name, c.Name):
			notNull[c] = true
		default:
			p.db.DeferRequired(t.Name, c.Name)
		}
	}

	desc := "recreate " + t.Name
	p.stmt(&p.rebuilds, PhaseAlter, t.Name, desc,
		createTable(p.d, tmp, t, func(c *model.Column) bool { return notNull[c] }))
	if len(targets) > 0 {
		p.stmt(&p.rebuilds, PhaseAlter, t.Name, desc, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			p.d.Ident(tmp), identList(p.d, targets), strings.Join(exprs, ", "), p.d.Ident(old.Name)))
	}
	p.stmt(&p.rebuilds, PhaseAlter, t.Name, desc, p.d.DropTable(old.Name))
	p.stmt(&p.rebuilds, PhaseAlter, t.Name, desc, renameTable(p.d, tmp, t.Name))
	for _, c := range t.Columns {
		if c.AutoIncrement {
			p.stmts(&p.rebuilds, PhaseAlter, t.Name, desc, p.d.ResetIdentity(t.Name, c))
		}
	}
	return nil
}
