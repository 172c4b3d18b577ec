package translate

import (
	"regexp"
	"strings"

	"github.com/Limetric/schemaferry/internal/model"
)

const routineName = `[A-Za-z_][\w$#]*(?:\.[A-Za-z_][\w$#]*)?`

var (
	// A call statement follows the body start, a semicolon or a keyword that
	// opens a statement list, with only blanks and comments in between. The
	// closing semicolon is checked by the caller.
	callStatement = regexp.MustCompile(`(?i)(^|;|\b(?:BEGIN|THEN|ELSE|LOOP|DECLARE|EXCEPTION)\b)((?:\s|` + commentToken + `)*)(` + routineName + `)[ \t]*\(([^;\n]*)\)`)
	statementEnd  = regexp.MustCompile(`^[ \t]*;`)
	performCall   = regexp.MustCompile(`(?im)\bPERFORM[ \t]+(` + routineName + `)[ \t]*\(([^;\n]*)\)[ \t]*;`)
	selectIntoOut = regexp.MustCompile(`(?im)\bSELECT[ \t]+\*[ \t]+INTO[ \t]+([^;\n]+?)[ \t]+FROM[ \t]+(` + routineName + `)[ \t]*\(([^;\n]*)\)[ \t]*;`)
)

// statementWords can precede a parenthesis at the start of a statement
// without being a call.
var statementWords = map[string]bool{
	"IF": true, "ELSIF": true, "WHILE": true, "RETURN": true, "WHEN": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "FOR": true,
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "VALUES": true,
	"CASE": true, "EXIT": true, "RAISE": true, "PERFORM": true, "OPEN": true,
	"FETCH": true, "CLOSE": true, "EXECUTE": true, "CALL": true, "TABLE": true,
	"USING": true, "INTO": true, "FROM": true, "WHERE": true, "SET": true,
	"MERGE": true, "WITH": true, "NULL": true, "ROLLBACK": true, "COMMIT": true,

	// built-in functions
	"NVL": true, "NVL2": true, "DECODE": true, "COALESCE": true, "NULLIF": true,
	"GREATEST": true, "LEAST": true, "SUBSTR": true, "INSTR": true, "TRIM": true,
	"UPPER": true, "LOWER": true, "LENGTH": true, "TO_CHAR": true, "TO_DATE": true,
	"TO_NUMBER": true, "ROUND": true, "TRUNC": true,
}

// splitArgs splits an argument list on top-level commas.
func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var args []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}

func lookupRoutine(ctx *Context, name string) *model.Function {
	if ctx.Resolver == nil {
		return nil
	}
	return ctx.Resolver.FindFunction(name)
}

// callsToPostgres turns procedure call statements into PERFORM, or into
// SELECT * INTO when the procedure has output parameters.
func callsToPostgres(src string, ctx *Context) string {
	return rewriteMatchesBefore(callStatement, src, func(m []string, after string) (string, bool) {
		prefix, name, args := m[1]+m[2], m[3], splitArgs(m[4])
		if statementWords[strings.ToUpper(name)] || !statementEnd.MatchString(after) {
			return "", false
		}
		f := lookupRoutine(ctx, name)
		if f == nil || len(f.OutParams()) == 0 {
			return prefix + "PERFORM " + name + "(" + strings.Join(args, ", ") + ")", true
		}
		var ins, outs []string
		for i, a := range args {
			if i < len(f.Params) && f.Params[i].IsOut() {
				outs = append(outs, a)
			} else {
				ins = append(ins, a)
			}
		}
		return prefix + "SELECT * INTO " + strings.Join(outs, ", ") + " FROM " + name + "(" + strings.Join(ins, ", ") + ")", true
	})
}

// callsToOracle restores plain call statements, putting output variables
// back at their parameter positions.
func callsToOracle(src string, ctx *Context) string {
	src = performCall.ReplaceAllString(src, "${1}(${2});")
	return rewriteMatches(selectIntoOut, src, func(m []string) (string, bool) {
		outs, name, ins := splitArgs(m[1]), m[2], splitArgs(m[3])
		if statementWords[strings.ToUpper(name)] {
			return "", false
		}
		f := lookupRoutine(ctx, name)
		if ctx.Resolver != nil && (f == nil || len(f.OutParams()) == 0) {
			return "", false
		}
		return name + "(" + strings.Join(interleave(f, ins, outs), ", ") + ");", true
	})
}

// interleave places input and output arguments at their declared
// positions. Without a declaration outputs follow inputs.
func interleave(f *model.Function, ins, outs []string) []string {
	if f == nil {
		return append(append([]string(nil), ins...), outs...)
	}
	var args []string
	for _, p := range f.Params {
		switch {
		case p.IsOut() && len(outs) > 0:
			args = append(args, outs[0])
			outs = outs[1:]
		case !p.IsOut() && len(ins) > 0:
			args = append(args, ins[0])
			ins = ins[1:]
		}
	}
	args = append(args, ins...)
	return append(args, outs...)
}
