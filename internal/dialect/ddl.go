package dialect

import (
	"fmt"
	"strings"

	"github.com/Limetric/schemaferry/internal/model"
)

// columnDef renders "NAME TYPE [identity] [DEFAULT x] [NOT NULL]".
func columnDef(d Dialect, c *model.Column, notNull bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", d.Ident(c.Name), d.ColumnType(c))
	if c.AutoIncrement {
		if id := d.IdentityColumn(); id != "" {
			b.WriteString(" " + id)
		}
	}
	if c.Default != "" && !c.AutoIncrement {
		b.WriteString(" DEFAULT " + c.Default)
	}
	if notNull {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// createTable renders a CREATE TABLE without keys, indexes or constraints
// other than NOT NULL; those follow in the keys phase.
func createTable(d Dialect, name string, t *model.Table, notNull func(*model.Column) bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", d.Ident(name))
	for i, c := range t.Columns {
		b.WriteString("  " + columnDef(d, c, notNull(c)))
		if i < len(t.Columns)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")
	return b.String()
}

func columnNames(cols []*model.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func keyPartNames(parts []model.IndexColumn) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.Name
	}
	return out
}

// keyPart renders an index key part, wrapping the column in its function.
func keyPart(d Dialect, p model.IndexColumn) string {
	if p.Function != "" {
		return fmt.Sprintf("%s(%s)", p.Function, d.Ident(p.Name))
	}
	return d.Ident(p.Name)
}

func addPrimaryKey(d Dialect, t *model.Table) string {
	cols := identList(d, columnNames(t.PrimaryKeyColumns()))
	if t.PrimaryKeyName == "" {
		return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", d.Ident(t.Name), cols)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		d.Ident(t.Name), d.Ident(t.PrimaryKeyName), cols)
}

func addUnique(d Dialect, table string, u *model.Unique) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
		d.Ident(table), d.Ident(u.Name), identList(d, keyPartNames(u.Columns)))
}

func addCheck(d Dialect, table string, c *model.Check) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)",
		d.Ident(table), d.Ident(c.Name), c.Condition)
}

func addForeignKey(d Dialect, table string, fk *model.ForeignKey) string {
	local := make([]string, len(fk.References))
	foreign := make([]string, len(fk.References))
	for i, r := range fk.References {
		local[i], foreign[i] = r.Local, r.Foreign
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.Ident(table), d.Ident(fk.Name), identList(d, local),
		d.Ident(fk.ForeignTable), identList(d, foreign))
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE " + fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE " + fk.OnUpdate)
	}
	return b.String()
}

func dropConstraint(d Dialect, table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.Ident(table), d.Ident(name))
}

func dropIndex(d Dialect, name string) string {
	return "DROP INDEX " + d.Ident(name)
}

func renameTable(d Dialect, from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.Ident(from), d.Ident(to))
}

func commentOnTable(d Dialect, table, text string) string {
	return fmt.Sprintf("COMMENT ON TABLE %s IS %s", d.Ident(table), d.Literal(text))
}

func commentOnColumn(d Dialect, table, column, text string) string {
	return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", d.Ident(table), d.Ident(column), d.Literal(text))
}

// CommentOnView renders a view comment; materialized views use their own
// object keyword on both backends.
func CommentOnView(d Dialect, v *model.View) string {
	kind := "VIEW"
	if v.Materialized {
		kind = "MATERIALIZED VIEW"
	}
	if _, ok := d.(*Oracle); ok && !v.Materialized {
		kind = "TABLE"
	}
	return fmt.Sprintf("COMMENT ON %s %s IS %s", kind, d.Ident(v.Name), d.Literal(v.Comment))
}

func backfill(d Dialect, table, column, expr string) string {
	return fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL",
		d.Ident(table), d.Ident(column), expr, d.Ident(column))
}

func triggerEvents(tr *model.Trigger) string {
	events := make([]string, len(tr.Events))
	for i, e := range tr.Events {
		events[i] = strings.ToUpper(e)
	}
	return strings.Join(events, " OR ")
}

// inParams returns the parameters a caller passes in.
func inParams(f *model.Function) []model.Param {
	var out []model.Param
	for _, p := range f.Params {
		if !p.IsOut() {
			out = append(out, p)
		}
	}
	return out
}
