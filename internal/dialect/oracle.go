package dialect

import (
	"fmt"
	"strings"

	"github.com/Limetric/schemaferry/internal/model"
)

// Oracle is the Oracle Database dialect.
type Oracle struct {
	version   Version
	allowList *AllowList
}

// NewOracle returns the Oracle dialect; a zero version means 19c.
func NewOracle(v Version) *Oracle {
	if v == (Version{}) {
		v = Version{Major: 19}
	}
	return &Oracle{version: v, allowList: oracleAllowList()}
}

func (o *Oracle) Name() string               { return "oracle" }
func (o *Oracle) Version() Version           { return o.version }
func (o *Oracle) AllowList() *AllowList      { return o.allowList }
func (o *Oracle) CommentCapacity() int       { return 4000 }
func (o *Oracle) Ident(name string) string   { return oracleIdent(name) }
func (o *Oracle) Literal(s string) string    { return oracleLiteral(s) }
func (o *Oracle) EncodesNationalType() bool  { return false }
func (o *Oracle) EncodesIndexMetadata() bool { return true }
func (o *Oracle) Translates() bool           { return false }

// MaxIdentifierLength is 128 bytes from 12.2 on, 30 before.
func (o *Oracle) MaxIdentifierLength() int {
	if o.version.AtLeast(Version{Major: 12, Minor: 2}) {
		return 128
	}
	return 30
}

func (o *Oracle) typeName(t model.Type) string {
	switch t {
	case model.TypeChar:
		return "CHAR"
	case model.TypeVarchar:
		return "VARCHAR2"
	case model.TypeNChar:
		return "NCHAR"
	case model.TypeNVarchar:
		return "NVARCHAR2"
	case model.TypeDecimal:
		return "NUMBER"
	case model.TypeBinary:
		return "RAW"
	case model.TypeTimestamp:
		return "TIMESTAMP"
	case model.TypeClob:
		return "CLOB"
	case model.TypeBlob:
		return "BLOB"
	}
	return t.String()
}

func (o *Oracle) ColumnType(c *model.Column) string {
	name := o.typeName(c.Type)
	switch c.Type {
	case model.TypeChar, model.TypeNChar:
		if c.Size > 0 {
			return fmt.Sprintf("%s(%d)", name, c.Size)
		}
		return name
	case model.TypeVarchar:
		return fmt.Sprintf("%s(%d)", name, sizeOr(c.Size, 4000))
	case model.TypeNVarchar, model.TypeBinary:
		return fmt.Sprintf("%s(%d)", name, sizeOr(c.Size, 2000))
	case model.TypeDecimal:
		return decimalType(name, c)
	case model.TypeOther:
		return c.NativeType
	}
	return name
}

func sizeOr(size, def int) int {
	if size > 0 {
		return size
	}
	return def
}

func decimalType(name string, c *model.Column) string {
	switch {
	case c.Size > 0 && c.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", name, c.Size, c.Scale)
	case c.Size > 0:
		return fmt.Sprintf("%s(%d)", name, c.Size)
	}
	return name
}

func (o *Oracle) conversionDefault() bool {
	return o.version.AtLeast(Version{Major: 12, Minor: 2})
}

func (o *Oracle) Cast(expr string, from, to *model.Column) string {
	switch classifyCast(from, to) {
	case castSame:
		return expr
	case castConvert:
		return fmt.Sprintf("CAST(%s AS %s)", expr, o.ColumnType(to))
	case castTruncate:
		if to.Type == model.TypeBinary {
			return fmt.Sprintf("UTL_RAW.SUBSTR(%s, 1, %d)", expr, to.Size)
		}
		return fmt.Sprintf("SUBSTR(%s, 1, %d)", expr, to.Size)
	case castNumberRange:
		return numberRange(o, expr, to)
	case castTextToNumber:
		if o.conversionDefault() {
			return fmt.Sprintf("CAST(TO_NUMBER(TRIM(%s) DEFAULT NULL ON CONVERSION ERROR) AS %s)", expr, o.ColumnType(to))
		}
		return fmt.Sprintf("CASE WHEN REGEXP_LIKE(TRIM(%s), %s) THEN CAST(TO_NUMBER(TRIM(%s)) AS %s) ELSE NULL END",
			expr, o.Literal(numberPattern), expr, o.ColumnType(to))
	case castNumberToText:
		return o.fitText(fmt.Sprintf("TO_CHAR(%s)", expr), to)
	case castTemporalToText:
		return o.fitText(fmt.Sprintf("TO_CHAR(%s, %s)", expr, timestampFormat), to)
	case castTextToTemporal:
		if o.conversionDefault() {
			return fmt.Sprintf("TO_TIMESTAMP(TRIM(%s) DEFAULT NULL ON CONVERSION ERROR, %s)", expr, timestampFormat)
		}
		return fmt.Sprintf("CASE WHEN REGEXP_LIKE(TRIM(%s), %s) THEN TO_TIMESTAMP(TRIM(%s), %s) ELSE NULL END",
			expr, o.Literal(timestampPattern), expr, timestampFormat)
	case castLobToText:
		return fmt.Sprintf("DBMS_LOB.SUBSTR(%s, %d, 1)", expr, sizeOr(to.Size, 4000))
	case castTextToLob:
		return fmt.Sprintf("TO_CLOB(%s)", expr)
	case castBinaryToLob:
		return fmt.Sprintf("TO_BLOB(%s)", expr)
	case castLobToBinary:
		return fmt.Sprintf("DBMS_LOB.SUBSTR(%s, %d, 1)", expr, sizeOr(to.Size, 2000))
	}
	return "NULL"
}

func (o *Oracle) fitText(expr string, to *model.Column) string {
	if to.Size > 0 {
		return fmt.Sprintf("SUBSTR(%s, 1, %d)", expr, to.Size)
	}
	return expr
}

// AddColumns renders one ALTER TABLE ... ADD (...) for all defs.
func (o *Oracle) AddColumns(table string, defs []string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD (%s)", o.Ident(table), strings.Join(defs, ", "))
}

// DropColumns renders one ALTER TABLE ... DROP (...) for all columns.
func (o *Oracle) DropColumns(table string, columns []string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP (%s)", o.Ident(table), identList(o, columns))
}

func (o *Oracle) ModifyType(table string, c *model.Column) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY %s %s", o.Ident(table), o.Ident(c.Name), o.ColumnType(c))
}

func (o *Oracle) SetRequired(table string, c *model.Column, required bool) string {
	null := "NULL"
	if required {
		null = "NOT NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s MODIFY %s %s", o.Ident(table), o.Ident(c.Name), null)
}

func (o *Oracle) SetDefault(table string, c *model.Column) string {
	def := c.Default
	if def == "" {
		def = "NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s MODIFY %s DEFAULT %s", o.Ident(table), o.Ident(c.Name), def)
}

func (o *Oracle) DropTable(table string) string {
	return fmt.Sprintf("DROP TABLE %s CASCADE CONSTRAINTS", o.Ident(table))
}

func (o *Oracle) DropPrimaryKey(t *model.Table) string {
	return fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", o.Ident(t.Name))
}

// CreateIndex ignores operator classes and partial predicates, which Oracle
// cannot express; they are kept as table comment facts instead.
func (o *Oracle) CreateIndex(t *model.Table, idx *model.Index) string {
	parts := make([]string, len(idx.Columns))
	for i, p := range idx.Columns {
		parts[i] = keyPart(o, p)
	}
	if idx.ContainsSearch {
		return fmt.Sprintf("CREATE INDEX %s ON %s (%s) INDEXTYPE IS CTXSYS.CONTEXT",
			o.Ident(idx.Name), o.Ident(t.Name), strings.Join(parts, ", "))
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, o.Ident(idx.Name), o.Ident(t.Name), strings.Join(parts, ", "))
}

func (o *Oracle) IdentityColumn() string {
	return "GENERATED BY DEFAULT ON NULL AS IDENTITY"
}

func (o *Oracle) ResetIdentity(table string, c *model.Column) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s MODIFY %s GENERATED BY DEFAULT ON NULL AS IDENTITY (START WITH LIMIT VALUE)",
		o.Ident(table), o.Ident(c.Name))}
}

func (o *Oracle) SetTriggersEnabled(table string, enabled bool) string {
	action := "DISABLE"
	if enabled {
		action = "ENABLE"
	}
	return fmt.Sprintf("ALTER TABLE %s %s ALL TRIGGERS", o.Ident(table), action)
}

func (o *Oracle) params(f *model.Function) string {
	if len(f.Params) == 0 {
		return ""
	}
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		dir := "IN"
		if p.IsOut() {
			dir = "OUT"
		}
		s := fmt.Sprintf("%s %s %s", o.Ident(p.Name), dir, o.typeName(p.Type))
		if p.Default != "" && !p.IsOut() {
			s += " DEFAULT " + p.Default
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (o *Oracle) CreateFunction(f *model.Function, body string) []string {
	if f.IsProcedure() {
		return []string{fmt.Sprintf("CREATE OR REPLACE PROCEDURE %s%s IS\n%s", o.Ident(f.Name), o.params(f), body)}
	}
	return []string{fmt.Sprintf("CREATE OR REPLACE FUNCTION %s%s RETURN %s IS\n%s",
		o.Ident(f.Name), o.params(f), o.typeName(f.ReturnType), body)}
}

func (o *Oracle) DropFunction(f *model.Function) []string {
	if f.IsProcedure() {
		return []string{"DROP PROCEDURE " + o.Ident(f.Name)}
	}
	return []string{"DROP FUNCTION " + o.Ident(f.Name)}
}

func (o *Oracle) CreateTrigger(tr *model.Trigger, body string) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE TRIGGER %s %s %s ON %s",
		o.Ident(tr.Name), strings.ToUpper(tr.Timing), triggerEvents(tr), o.Ident(tr.Table))
	if tr.ForEachRow {
		b.WriteString(" FOR EACH ROW")
	}
	b.WriteString("\n" + body)
	return []string{b.String()}
}

func (o *Oracle) DropTrigger(tr *model.Trigger) []string {
	return []string{"DROP TRIGGER " + o.Ident(tr.Name)}
}
