package dialect

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/Limetric/schemaferry/internal/model"
)

// PostgreSQL is the PostgreSQL dialect.
type PostgreSQL struct {
	version   Version
	allowList *AllowList
}

// NewPostgreSQL returns the PostgreSQL dialect; a zero version means 16.
func NewPostgreSQL(v Version) *PostgreSQL {
	if v == (Version{}) {
		v = Version{Major: 16}
	}
	return &PostgreSQL{version: v, allowList: postgresAllowList()}
}

func (p *PostgreSQL) Name() string               { return "postgresql" }
func (p *PostgreSQL) Version() Version           { return p.version }
func (p *PostgreSQL) AllowList() *AllowList      { return p.allowList }
func (p *PostgreSQL) MaxIdentifierLength() int   { return 63 }
func (p *PostgreSQL) CommentCapacity() int       { return 65535 }
func (p *PostgreSQL) Ident(name string) string   { return pgIdent(name) }
func (p *PostgreSQL) Literal(s string) string    { return pq.QuoteLiteral(s) }
func (p *PostgreSQL) EncodesNationalType() bool  { return true }
func (p *PostgreSQL) EncodesIndexMetadata() bool { return false }
func (p *PostgreSQL) Translates() bool           { return true }

func (p *PostgreSQL) typeName(t model.Type) string {
	switch t {
	case model.TypeChar, model.TypeNChar:
		return "CHAR"
	case model.TypeVarchar, model.TypeNVarchar:
		return "VARCHAR"
	case model.TypeDecimal:
		return "NUMERIC"
	case model.TypeBinary, model.TypeBlob:
		return "BYTEA"
	case model.TypeTimestamp:
		return "TIMESTAMP"
	case model.TypeClob:
		return "TEXT"
	}
	return t.String()
}

// ColumnType collapses national character types onto the ordinary ones;
// the national flag is carried by the column comment.
func (p *PostgreSQL) ColumnType(c *model.Column) string {
	name := p.typeName(c.Type)
	switch c.Type {
	case model.TypeChar, model.TypeNChar, model.TypeVarchar, model.TypeNVarchar:
		if c.Size > 0 {
			return fmt.Sprintf("%s(%d)", name, c.Size)
		}
		return name
	case model.TypeDecimal:
		if c.AutoIncrement && !p.version.AtLeast(Version{Major: 10}) {
			return "BIGSERIAL"
		}
		return decimalType(name, c)
	case model.TypeOther:
		return c.NativeType
	}
	return name
}

func (p *PostgreSQL) Cast(expr string, from, to *model.Column) string {
	switch classifyCast(from, to) {
	case castSame, castBinaryToLob, castLobToBinary:
		return expr
	case castConvert, castTextToLob:
		return fmt.Sprintf("CAST(%s AS %s)", expr, p.ColumnType(to))
	case castTruncate:
		if to.Type == model.TypeBinary {
			return expr
		}
		return fmt.Sprintf("SUBSTR(%s, 1, %d)", expr, to.Size)
	case castNumberRange:
		return numberRange(p, expr, to)
	case castTextToNumber:
		return fmt.Sprintf("CASE WHEN TRIM(%s) ~ %s THEN CAST(TRIM(%s) AS %s) ELSE NULL END",
			expr, p.Literal(numberPattern), expr, p.ColumnType(to))
	case castNumberToText:
		return fmt.Sprintf("CAST(%s AS %s)", expr, p.ColumnType(to))
	case castTemporalToText:
		return p.fitText(fmt.Sprintf("TO_CHAR(%s, %s)", expr, timestampFormat), to)
	case castTextToTemporal:
		return fmt.Sprintf("CASE WHEN TRIM(%s) ~ %s THEN CAST(TRIM(%s) AS TIMESTAMP) ELSE NULL END",
			expr, p.Literal(timestampPattern), expr)
	case castLobToText:
		return p.fitText(expr, to)
	}
	return "NULL"
}

func (p *PostgreSQL) fitText(expr string, to *model.Column) string {
	if to.Size > 0 {
		return fmt.Sprintf("SUBSTR(%s, 1, %d)", expr, to.Size)
	}
	return expr
}

// AddColumns renders one ALTER TABLE with an ADD COLUMN clause per def.
func (p *PostgreSQL) AddColumns(table string, defs []string) string {
	clauses := make([]string, len(defs))
	for i, d := range defs {
		clauses[i] = "ADD COLUMN " + d
	}
	return fmt.Sprintf("ALTER TABLE %s %s", p.Ident(table), strings.Join(clauses, ", "))
}

// DropColumns renders one ALTER TABLE with a DROP COLUMN clause per column.
func (p *PostgreSQL) DropColumns(table string, columns []string) string {
	clauses := make([]string, len(columns))
	for i, c := range columns {
		clauses[i] = "DROP COLUMN " + p.Ident(c)
	}
	return fmt.Sprintf("ALTER TABLE %s %s", p.Ident(table), strings.Join(clauses, ", "))
}

func (p *PostgreSQL) ModifyType(table string, c *model.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", p.Ident(table), p.Ident(c.Name), p.ColumnType(c))
}

func (p *PostgreSQL) SetRequired(table string, c *model.Column, required bool) string {
	action := "DROP NOT NULL"
	if required {
		action = "SET NOT NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", p.Ident(table), p.Ident(c.Name), action)
}

func (p *PostgreSQL) SetDefault(table string, c *model.Column) string {
	if c.Default == "" {
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", p.Ident(table), p.Ident(c.Name))
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", p.Ident(table), p.Ident(c.Name), c.Default)
}

func (p *PostgreSQL) DropTable(table string) string {
	return fmt.Sprintf("DROP TABLE %s CASCADE", p.Ident(table))
}

// DropPrimaryKey falls back to the server's default "<table>_pkey" name.
func (p *PostgreSQL) DropPrimaryKey(t *model.Table) string {
	name := t.PrimaryKeyName
	if name == "" {
		name = truncateIdent(strings.ToLower(t.Name), "_pkey", p.MaxIdentifierLength())
	}
	return dropConstraint(p, t.Name, name)
}

func (p *PostgreSQL) CreateIndex(t *model.Table, idx *model.Index) string {
	var b strings.Builder
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	fmt.Fprintf(&b, "CREATE %sINDEX %s ON %s", unique, p.Ident(idx.Name), p.Ident(t.Name))
	parts := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		part := keyPart(p, c)
		if idx.ContainsSearch {
			part = fmt.Sprintf("to_tsvector('simple', %s)", part)
		}
		if c.OperatorClass != "" {
			part += " " + c.OperatorClass
		}
		parts[i] = part
	}
	if idx.ContainsSearch {
		b.WriteString(" USING gin")
	}
	fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	if idx.Where != "" {
		b.WriteString(" WHERE " + idx.Where)
	}
	return b.String()
}

func (p *PostgreSQL) IdentityColumn() string {
	if p.version.AtLeast(Version{Major: 10}) {
		return "GENERATED BY DEFAULT AS IDENTITY"
	}
	return ""
}

func (p *PostgreSQL) ResetIdentity(table string, c *model.Column) []string {
	return []string{fmt.Sprintf("SELECT setval(pg_get_serial_sequence(%s, %s), COALESCE((SELECT MAX(%s) FROM %s), 0) + 1, false)",
		p.Literal(p.Ident(table)), p.Literal(strings.ToLower(c.Name)), p.Ident(c.Name), p.Ident(table))}
}

func (p *PostgreSQL) SetTriggersEnabled(table string, enabled bool) string {
	action := "DISABLE"
	if enabled {
		action = "ENABLE"
	}
	return fmt.Sprintf("ALTER TABLE %s %s TRIGGER USER", p.Ident(table), action)
}

// params renders the parameter list. Defaults are left out: calls that omit
// trailing arguments resolve to the generated forwarding overloads.
func (p *PostgreSQL) params(f *model.Function, withOut bool) string {
	var parts []string
	for _, prm := range f.Params {
		switch {
		case prm.IsOut() && withOut:
			parts = append(parts, fmt.Sprintf("OUT %s %s", p.Ident(prm.Name), p.typeName(prm.Type)))
		case !prm.IsOut():
			parts = append(parts, fmt.Sprintf("%s %s", p.Ident(prm.Name), p.typeName(prm.Type)))
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (p *PostgreSQL) returns(f *model.Function) string {
	switch {
	case !f.IsProcedure():
		return " RETURNS " + p.typeName(f.ReturnType)
	case len(f.OutParams()) > 0:
		return ""
	}
	return " RETURNS void"
}

func (p *PostgreSQL) CreateFunction(f *model.Function, body string) []string {
	return []string{fmt.Sprintf("CREATE OR REPLACE FUNCTION %s%s%s AS $body$\n%s\n$body$ LANGUAGE plpgsql",
		p.Ident(f.Name), p.params(f, true), p.returns(f), body)}
}

func (p *PostgreSQL) DropFunction(f *model.Function) []string {
	return []string{fmt.Sprintf("DROP FUNCTION IF EXISTS %s%s", p.Ident(f.Name), p.params(f, false))}
}

// triggerFunction names the function backing a trigger.
func (p *PostgreSQL) triggerFunction(tr *model.Trigger) string {
	return truncateIdent(tr.Name, "_FN", p.MaxIdentifierLength())
}

func (p *PostgreSQL) CreateTrigger(tr *model.Trigger, body string) []string {
	fn := p.triggerFunction(tr)
	stmts := []string{fmt.Sprintf("CREATE OR REPLACE FUNCTION %s() RETURNS trigger AS $body$\n%s\n$body$ LANGUAGE plpgsql",
		p.Ident(fn), body)}

	create := "CREATE OR REPLACE TRIGGER"
	if !p.version.AtLeast(Version{Major: 14}) {
		create = "CREATE TRIGGER"
		stmts = append(stmts, fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", p.Ident(tr.Name), p.Ident(tr.Table)))
	}
	execute := "EXECUTE FUNCTION"
	if !p.version.AtLeast(Version{Major: 11}) {
		execute = "EXECUTE PROCEDURE"
	}
	level := "STATEMENT"
	if tr.ForEachRow {
		level = "ROW"
	}
	stmts = append(stmts, fmt.Sprintf("%s %s %s %s ON %s FOR EACH %s %s %s()",
		create, p.Ident(tr.Name), strings.ToUpper(tr.Timing), triggerEvents(tr), p.Ident(tr.Table),
		level, execute, p.Ident(fn)))
	return stmts
}

func (p *PostgreSQL) DropTrigger(tr *model.Trigger) []string {
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", p.Ident(tr.Name), p.Ident(tr.Table)),
		fmt.Sprintf("DROP FUNCTION IF EXISTS %s()", p.Ident(p.triggerFunction(tr))),
	}
}
