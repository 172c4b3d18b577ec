package dialect

import (
	"strings"

	"github.com/lib/pq"
)

// pgReservedWords are PostgreSQL reserved words that must be quoted as identifiers.
var pgReservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "authorization": true, "between": true,
	"binary": true, "both": true, "case": true, "cast": true, "check": true,
	"collate": true, "column": true, "constraint": true, "create": true, "cross": true,
	"current_date": true, "current_role": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "default": true, "deferrable": true,
	"desc": true, "distinct": true, "do": true, "else": true, "end": true, "except": true,
	"false": true, "fetch": true, "for": true, "foreign": true, "freeze": true,
	"from": true, "full": true, "grant": true, "group": true, "having": true,
	"ilike": true, "in": true, "initially": true, "inner": true, "intersect": true,
	"into": true, "is": true, "isnull": true, "join": true, "lateral": true,
	"leading": true, "left": true, "like": true, "limit": true, "localtime": true,
	"localtimestamp": true, "natural": true, "not": true, "notnull": true, "null": true,
	"offset": true, "on": true, "only": true, "or": true, "order": true, "outer": true,
	"overlaps": true, "placing": true, "primary": true, "references": true,
	"returning": true, "right": true, "select": true, "session_user": true,
	"similar": true, "some": true, "symmetric": true, "table": true, "then": true,
	"to": true, "trailing": true, "true": true, "union": true, "unique": true,
	"user": true, "using": true, "variadic": true, "verbose": true, "when": true,
	"where": true, "window": true, "with": true,
}

// oracleReservedWords are Oracle reserved words (V$RESERVED_WORDS, reserved = 'Y').
var oracleReservedWords = map[string]bool{
	"access": true, "add": true, "all": true, "alter": true, "and": true, "any": true,
	"as": true, "asc": true, "audit": true, "between": true, "by": true, "char": true,
	"check": true, "cluster": true, "column": true, "comment": true, "compress": true,
	"connect": true, "create": true, "current": true, "date": true, "decimal": true,
	"default": true, "delete": true, "desc": true, "distinct": true, "drop": true,
	"else": true, "exclusive": true, "exists": true, "file": true, "float": true,
	"for": true, "from": true, "grant": true, "group": true, "having": true,
	"identified": true, "immediate": true, "in": true, "increment": true, "index": true,
	"initial": true, "insert": true, "integer": true, "intersect": true, "into": true,
	"is": true, "level": true, "like": true, "lock": true, "long": true,
	"maxextents": true, "minus": true, "mlslabel": true, "mode": true, "modify": true,
	"noaudit": true, "nocompress": true, "not": true, "nowait": true, "null": true,
	"number": true, "of": true, "offline": true, "on": true, "online": true,
	"option": true, "or": true, "order": true, "pctfree": true, "prior": true,
	"public": true, "raw": true, "rename": true, "resource": true, "revoke": true,
	"row": true, "rowid": true, "rownum": true, "rows": true, "select": true,
	"session": true, "set": true, "share": true, "size": true, "smallint": true,
	"start": true, "successful": true, "synonym": true, "sysdate": true, "table": true,
	"then": true, "to": true, "trigger": true, "uid": true, "union": true,
	"unique": true, "update": true, "user": true, "validate": true, "values": true,
	"varchar": true, "varchar2": true, "view": true, "whenever": true, "where": true,
	"with": true,
}

// needsQuoting reports whether an identifier contains characters invalid in
// unquoted identifiers. Case is left alone: unquoted names fold on both
// backends, matching the model's case-insensitive lookups.
func needsQuoting(name string) bool {
	if name == "" {
		return true
	}
	for i, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '$') {
			continue
		}
		return true
	}
	return false
}

// pgIdent returns a PG-safe identifier, quoting reserved words and names
// that contain characters invalid in unquoted identifiers.
func pgIdent(name string) string {
	if pgReservedWords[strings.ToLower(name)] || needsQuoting(name) {
		return pq.QuoteIdentifier(name)
	}
	return name
}

func oracleIdent(name string) string {
	if oracleReservedWords[strings.ToLower(name)] || needsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

func oracleLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// identList joins identifiers quoted by d.
func identList(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.Ident(n)
	}
	return strings.Join(quoted, ", ")
}

// truncateIdent shortens name so that name+suffix fits max bytes.
func truncateIdent(name, suffix string, max int) string {
	if len(name)+len(suffix) <= max {
		return name + suffix
	}
	return name[:max-len(suffix)] + suffix
}
