package translate

import (
	"regexp"
	"strings"
)

// Context is what a rule may consult besides the text it rewrites.
type Context struct {
	Mask     *Mask
	Name     string
	Kind     Kind
	Resolver Resolver
}

// Rule is one pure text rewrite. Rules only ever see masked text.
type Rule struct {
	Name    string
	Rewrite func(src string, ctx *Context) string
}

// Pipeline is an immutable, ordered list of rules.
type Pipeline struct {
	dir   Direction
	kind  Kind
	rules []Rule
}

// Rules returns the rule names in application order.
func (p *Pipeline) Rules() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Name
	}
	return names
}

// Run applies every rule in order.
func (p *Pipeline) Run(src string, ctx *Context) string {
	for _, r := range p.rules {
		src = r.Rewrite(src, ctx)
	}
	return src
}

// rulePair is one rule in both directions. The reverse may be nil for
// rewrites that have nothing to undo.
type rulePair struct {
	name    string
	forward func(string, *Context) string
	reverse func(string, *Context) string
}

// buildPipeline orders the rules for dir and kind. PL/SQL -> PL/pgSQL runs
// the shared rules, then the kind-specific ones; the reverse runs the
// inverses in the opposite order.
func buildPipeline(dir Direction, kind Kind, resolver Resolver) *Pipeline {
	pairs := append([]rulePair(nil), sharedRules...)
	if kind == KindTrigger {
		pairs = append(pairs, triggerRules...)
	} else {
		pairs = append(pairs, functionRules...)
	}
	p := &Pipeline{dir: dir, kind: kind}
	if dir == OracleToPostgres {
		for _, rp := range pairs {
			if rp.forward != nil {
				p.rules = append(p.rules, Rule{Name: rp.name, Rewrite: rp.forward})
			}
		}
		return p
	}
	for i := len(pairs) - 1; i >= 0; i-- {
		if pairs[i].reverse != nil {
			p.rules = append(p.rules, Rule{Name: pairs[i].name, Rewrite: pairs[i].reverse})
		}
	}
	return p
}

var sharedRules = []rulePair{
	{"standardise", standardise, standardise},
	{"types", keepSwaps(typesKept, typesToPostgres), restoreSwaps(typesKept, typesToOracle)},
	{"sysdate", swaps(datesToPostgres), swaps(datesToOracle)},
	{"exceptions", swaps(exceptionsToPostgres), swaps(exceptionsToOracle)},
	{"sqlcode", swaps([]swap{{`\bSQLCODE\b`, "SQLSTATE"}}), swaps([]swap{{`\bSQLSTATE\b`, "SQLCODE"}})},
	{"raise_application_error", raiseToPostgres, raiseToOracle},
	{"put_line", putLineToPostgres, putLineToOracle},
	{"execute_immediate", swaps([]swap{{`\bEXECUTE\s+IMMEDIATE\b`, "EXECUTE"}}), executeToOracle},
	{"row_count", rowCountToPostgres, restoreSwaps(cursorAttributes, rowCountToOracle)},
	{"cursors", swaps(cursorToPostgres), swaps(cursorToOracle)},
	{"savepoints", savepointToPostgres, swaps([]swap{{`\bROLLBACK\s+TO\s+SAVEPOINT\s+(\w+)`, "ROLLBACK TO ${1}"}})},
	{"ref_cursor", refCursorToPostgres, refCursorToOracle},
	{"sequences", nextvalToPostgres, nextvalToOracle},
	{"procedure_calls", callsToPostgres, callsToOracle},
	{"block_label", blockLabelToPostgres, blockLabelToOracle},
}

var functionRules = []rulePair{
	{"declare", declareToPostgres, declareToOracle},
}

var triggerRules = []rulePair{
	{"bind_variables", swaps([]swap{{`:\s*(NEW|OLD)\s*\.`, "${1}."}}), bindToOracle},
	{"trigger_predicates", swaps(predicatesToPostgres), predicatesToOracle},
	{"early_return", swaps([]swap{{`\bRETURN\s*;`, rowDisposition}}), swaps([]swap{{dispositionPattern, "RETURN;"}})},
	{"row_disposition", addDisposition, removeDisposition},
}

// swap is a case-insensitive pattern and its replacement.
type swap struct {
	pattern, repl string
}

func swaps(list []swap) func(string, *Context) string {
	res := make([]*regexp.Regexp, len(list))
	for i, s := range list {
		res[i] = regexp.MustCompile(`(?i)` + s.pattern)
	}
	return func(src string, _ *Context) string {
		for i, re := range res {
			src = re.ReplaceAllString(src, list[i].repl)
		}
		return src
	}
}

// rewriteMatches replaces each match of re with fn's result; matches fn
// declines are left untouched.
func rewriteMatches(re *regexp.Regexp, src string, fn func(m []string) (string, bool)) string {
	return rewriteMatchesBefore(re, src, func(m []string, _ string) (string, bool) { return fn(m) })
}

// rewriteMatchesBefore is rewriteMatches with the text following each match
// passed to fn.
func rewriteMatchesBefore(re *regexp.Regexp, src string, fn func(m []string, after string) (string, bool)) string {
	locs := re.FindAllStringSubmatchIndex(src, -1)
	if len(locs) == 0 {
		return src
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		groups := make([]string, len(loc)/2)
		for g := range groups {
			if loc[2*g] >= 0 {
				groups[g] = src[loc[2*g]:loc[2*g+1]]
			}
		}
		repl, ok := fn(groups, src[loc[1]:])
		if !ok {
			continue
		}
		b.WriteString(src[last:loc[0]])
		b.WriteString(repl)
		last = loc[1]
	}
	b.WriteString(src[last:])
	return b.String()
}

const (
	literalToken = `\x{E000}L\d+\x{E001}`
	commentToken = `\x{E000}C\d+\x{E001}`
	anyToken     = `\x{E000}[LCQ]\d+\x{E001}`
)

var (
	crlf          = regexp.MustCompile(`\r\n?`)
	trailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)
)

func standardise(src string, _ *Context) string {
	src = crlf.ReplaceAllString(src, "\n")
	return trailingSpace.ReplaceAllString(src, "")
}

// typesKept lists Oracle types that share a PostgreSQL type with another.
var typesKept = []kept{
	{`\bNVARCHAR2\b`, "VARCHAR", `\bVARCHAR`},
	{`\bNCLOB\b`, "TEXT", `\bTEXT`},
	{`\bRAW\b(?:\s*\(\s*\d+\s*\))?`, "BYTEA", `\bBYTEA`},
	{`\bPLS_INTEGER\b`, "INTEGER", `\bINTEGER`},
	{`\bBINARY_INTEGER\b`, "INTEGER", `\bINTEGER`},
}

var typesToPostgres = []swap{
	{`\bNUMBER\b`, "NUMERIC"},
	{`\bVARCHAR2\b`, "VARCHAR"},
	{`\bCLOB\b`, "TEXT"},
	{`\bBLOB\b`, "BYTEA"},
	{`\bDATE\b`, "TIMESTAMP(0)"},
	{`\bSYS_REFCURSOR\b`, "REFCURSOR"},
}

var typesToOracle = []swap{
	{`\bNUMERIC\b`, "NUMBER"},
	{`\bVARCHAR\b`, "VARCHAR2"},
	{`\bTEXT\b`, "CLOB"},
	{`\bBYTEA\b`, "BLOB"},
	{`\bTIMESTAMP\s*\(\s*0\s*\)`, "DATE"},
	{`\bREFCURSOR\b`, "SYS_REFCURSOR"},
}

var datesToPostgres = []swap{
	{`\bSYSDATE\b`, "LOCALTIMESTAMP(0)"},
	{`\bSYSTIMESTAMP\b`, "CURRENT_TIMESTAMP"},
}

var datesToOracle = []swap{
	{`\bLOCALTIMESTAMP\s*\(\s*0\s*\)`, "SYSDATE"},
	{`\bCURRENT_TIMESTAMP\b`, "SYSTIMESTAMP"},
}

var exceptionsToPostgres = []swap{
	{`\bDUP_VAL_ON_INDEX\b`, "UNIQUE_VIOLATION"},
	{`\bZERO_DIVIDE\b`, "DIVISION_BY_ZERO"},
	{`\bINVALID_NUMBER\b`, "INVALID_TEXT_REPRESENTATION"},
	{`\bTIMEOUT_ON_RESOURCE\b`, "LOCK_NOT_AVAILABLE"},
	{`\bVALUE_ERROR\b`, "DATA_EXCEPTION"},
}

var exceptionsToOracle = []swap{
	{`\bUNIQUE_VIOLATION\b`, "DUP_VAL_ON_INDEX"},
	{`\bDIVISION_BY_ZERO\b`, "ZERO_DIVIDE"},
	{`\bINVALID_TEXT_REPRESENTATION\b`, "INVALID_NUMBER"},
	{`\bLOCK_NOT_AVAILABLE\b`, "TIMEOUT_ON_RESOURCE"},
	{`\bDATA_EXCEPTION\b`, "VALUE_ERROR"},
}

var (
	raiseAppError = regexp.MustCompile(`(?is)\bRAISE_APPLICATION_ERROR\s*\(\s*-\s*(\d{5})\s*,\s*(.+?)\s*\)\s*;`)
	raiseErrcode  = regexp.MustCompile(`(?is)\bRAISE\s+EXCEPTION\s+(` + literalToken + `)\s*,\s*(.+?)\s+USING\s+ERRCODE\s*=\s*(` + literalToken + `)\s*;`)
	putLine       = regexp.MustCompile(`(?is)\bDBMS_OUTPUT\s*\.\s*PUT_LINE\s*\(\s*(.+?)\s*\)\s*;`)
	raiseNotice   = regexp.MustCompile(`(?is)\bRAISE\s+NOTICE\s+(` + literalToken + `)\s*,\s*(.+?)\s*;`)
	executeWord   = regexp.MustCompile(`(?i)\bEXECUTE\b(\s+)(\w*)`)
	rollbackTo    = regexp.MustCompile(`(?i)\bROLLBACK\s+TO\s+(\w+)`)
	fiveDigits    = regexp.MustCompile(`^\d{5}$`)
)

// raiseToPostgres keeps the Oracle error number as the SQLSTATE.
func raiseToPostgres(src string, _ *Context) string {
	return raiseAppError.ReplaceAllString(src, "RAISE EXCEPTION '%', ${2} USING ERRCODE = '${1}';")
}

func raiseToOracle(src string, ctx *Context) string {
	return rewriteMatches(raiseErrcode, src, func(m []string) (string, bool) {
		format, ok := ctx.Mask.LiteralValue(m[1])
		if !ok || format != "%" {
			return "", false
		}
		code, ok := ctx.Mask.LiteralValue(m[3])
		if !ok || !fiveDigits.MatchString(code) {
			return "", false
		}
		return "RAISE_APPLICATION_ERROR(-" + code + ", " + m[2] + ");", true
	})
}

func putLineToPostgres(src string, _ *Context) string {
	return putLine.ReplaceAllString(src, "RAISE NOTICE '%', ${1};")
}

func putLineToOracle(src string, ctx *Context) string {
	return rewriteMatches(raiseNotice, src, func(m []string) (string, bool) {
		if format, ok := ctx.Mask.LiteralValue(m[1]); !ok || format != "%" {
			return "", false
		}
		return "DBMS_OUTPUT.PUT_LINE(" + m[2] + ");", true
	})
}

func executeToOracle(src string, _ *Context) string {
	return rewriteMatches(executeWord, src, func(m []string) (string, bool) {
		if strings.EqualFold(m[2], "IMMEDIATE") {
			return "", false
		}
		return "EXECUTE IMMEDIATE" + m[1] + m[2], true
	})
}

var sqlAttributes = []swap{
	{`\b(\w+)\s*:=\s*SQL\s*%\s*ROWCOUNT\s*;`, "GET DIAGNOSTICS ${1} = ROW_COUNT;"},
	{`\bSQL\s*%\s*NOTFOUND\b`, "NOT FOUND"},
	{`\bSQL\s*%\s*FOUND\b`, "FOUND"},
}

// cursorAttributes read FOUND, which FETCH sets for the cursor just fetched.
var cursorAttributes = []kept{
	{`\b\w+\s*%\s*NOTFOUND\b`, "NOT FOUND", `\bNOT\s+FOUND`},
	{`\b\w+\s*%\s*FOUND\b`, "FOUND", `\bFOUND`},
}

var (
	sqlAttributesToPostgres    = swaps(sqlAttributes)
	cursorAttributesToPostgres = keepSwaps(cursorAttributes, nil)
)

func rowCountToPostgres(src string, ctx *Context) string {
	return cursorAttributesToPostgres(sqlAttributesToPostgres(src, ctx), ctx)
}

// rowCountToOracle leaves attributes of other cursors alone: FOUND right
// after a % is not the PL/pgSQL variable.
var rowCountToOracle = []swap{
	{`\bGET\s+DIAGNOSTICS\s+(\w+)\s*=\s*ROW_COUNT\s*;`, "${1} := SQL%ROWCOUNT;"},
	{`(^|[^%\s])(\s*)\bNOT\s+FOUND\b`, "${1}${2}SQL%NOTFOUND"},
	{`(^|[^%\s])(\s*)\bFOUND\b`, "${1}${2}SQL%FOUND"},
}

var cursorToPostgres = []swap{
	{`\bCURSOR\s+(\w+)\s*(\([^)]*\))?\s+IS\b`, "${1} CURSOR${2} FOR"},
}

var cursorToOracle = []swap{
	{`\b(\w+)\s+CURSOR\s*(\([^)]*\))?\s+FOR\b`, "CURSOR ${1}${2} IS"},
}

func savepointToPostgres(src string, _ *Context) string {
	return rewriteMatches(rollbackTo, src, func(m []string) (string, bool) {
		if strings.EqualFold(m[1], "SAVEPOINT") {
			return "", false
		}
		return "ROLLBACK TO SAVEPOINT " + m[1], true
	})
}

const refCursorPattern = `\bTYPE\s+(\w+)\s+IS\s+REF\s+CURSOR(\s+RETURN\s+[\w.%]+)?\s*;`

var (
	refCursorType   = regexp.MustCompile(`(?i)` + refCursorPattern)
	refCursorDecl   = regexp.MustCompile(`(?is)^` + refCursorPattern + `$`)
	refCursorMarker = regexp.MustCompile(`(` + commentToken + `)`)
	refCursorUse    = regexp.MustCompile(`(?i)\bREFCURSOR[ \t]*(` + commentToken + `)`)
	identifier      = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// refCursorToPostgres replaces REF CURSOR type declarations by markers and
// declares the variables of those types as REFCURSOR.
func refCursorToPostgres(src string, ctx *Context) string {
	var names []string
	src = rewriteMatches(refCursorType, src, func(m []string) (string, bool) {
		names = append(names, m[1])
		return markOriginal(ctx, "", m[0]), true
	})
	for _, name := range names {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		src = rewriteMatches(re, src, func(m []string) (string, bool) {
			return markOriginal(ctx, "REFCURSOR", m[0]), true
		})
	}
	return src
}

func refCursorToOracle(src string, ctx *Context) string {
	src = restoreMarked(refCursorUse, identifier, src, ctx)
	return restoreMarked(refCursorMarker, refCursorDecl, src, ctx)
}

const sequencePattern = `\b(\w+)\s*\.\s*(NEXTVAL|CURRVAL)\b`

var (
	sequenceValue = regexp.MustCompile(`(?i)` + sequencePattern)
	sequenceExact = regexp.MustCompile(`(?is)^` + sequencePattern + `$`)
	sequenceCall  = regexp.MustCompile(`(?i)\b(nextval|currval)\s*\(\s*(` + literalToken + `)\s*\)((?:[ \t]*` + commentToken + `)?)`)
	plainName     = regexp.MustCompile(`^[A-Za-z_][\w$#]*$`)
)

// nextvalToPostgres marks every spelling but seq.NEXTVAL, the one the
// reverse produces.
func nextvalToPostgres(src string, ctx *Context) string {
	return rewriteMatches(sequenceValue, src, func(m []string) (string, bool) {
		call := strings.ToLower(m[2]) + "('" + m[1] + "')"
		if m[0] == m[1]+"."+strings.ToUpper(m[2]) {
			return call, true
		}
		return markOriginal(ctx, call, m[0]), true
	})
}

func nextvalToOracle(src string, ctx *Context) string {
	return rewriteMatches(sequenceCall, src, func(m []string) (string, bool) {
		if orig, ok := markedText(ctx, strings.TrimLeft(m[3], " \t")); ok && sequenceExact.MatchString(orig) {
			return orig, true
		}
		seq, ok := ctx.Mask.LiteralValue(m[2])
		if !ok || !plainName.MatchString(seq) {
			return "", false
		}
		return seq + "." + strings.ToUpper(m[1]) + m[3], true
	})
}

var (
	blockLabel       = regexp.MustCompile(`(?is)\bEND\s+(\w+)\s*;((?:\s|` + anyToken + `)*)$`)
	blockLabelMarked = regexp.MustCompile(`(?i)\bEND[ \t]*;[ \t]*(` + commentToken + `)`)
	blockLabelEnd    = regexp.MustCompile(`(?is)^END\s+\w+\s*;$`)
)

// blockLabelToPostgres drops the routine name repeated after the final END,
// keeping it in a marker.
func blockLabelToPostgres(src string, ctx *Context) string {
	return rewriteMatches(blockLabel, src, func(m []string) (string, bool) {
		if ctx.Name == "" || !strings.EqualFold(m[1], ctx.Name) {
			return "", false
		}
		return markOriginal(ctx, "END;", m[0][:len(m[0])-len(m[2])]) + m[2], true
	})
}

func blockLabelToOracle(src string, ctx *Context) string {
	return restoreMarked(blockLabelMarked, blockLabelEnd, src, ctx)
}

var (
	leadingSection = regexp.MustCompile(`(?is)^(?:\s|` + commentToken + `)*(DECLARE\b|BEGIN\b|<<)`)
	leadingDeclare = regexp.MustCompile(`(?is)^((?:\s|` + commentToken + `)*)DECLARE\b\s*`)
)

// declareToPostgres opens the declaration section PL/SQL routines leave
// implicit after IS.
func declareToPostgres(src string, _ *Context) string {
	if leadingSection.MatchString(src) {
		return src
	}
	return "DECLARE\n" + src
}

func declareToOracle(src string, _ *Context) string {
	return leadingDeclare.ReplaceAllString(src, "${1}")
}

var (
	bindVariable    = regexp.MustCompile(`(?i)(^|[^:\w.])(NEW|OLD)\s*\.`)
	triggerOperator = regexp.MustCompile(`(?i)\bTG_OP\s*=\s*(` + literalToken + `)`)
)

func bindToOracle(src string, _ *Context) string {
	return bindVariable.ReplaceAllString(src, "${1}:${2}.")
}

var predicatesToPostgres = []swap{
	{`\bINSERTING\b`, "TG_OP = 'INSERT'"},
	{`\bUPDATING\b`, "TG_OP = 'UPDATE'"},
	{`\bDELETING\b`, "TG_OP = 'DELETE'"},
}

func predicatesToOracle(src string, ctx *Context) string {
	return rewriteMatches(triggerOperator, src, func(m []string) (string, bool) {
		op, ok := ctx.Mask.LiteralValue(m[1])
		switch strings.ToUpper(op) {
		case "INSERT", "UPDATE", "DELETE":
			if ok {
				return strings.ToUpper(op) + "ING", true
			}
		}
		return "", false
	})
}

// rowDisposition keeps the row for every event: NEW for inserts and
// updates, OLD for deletes.
const (
	rowDisposition     = "RETURN COALESCE(NEW, OLD);"
	dispositionPattern = `\bRETURN\s+COALESCE\s*\(\s*NEW\s*,\s*OLD\s*\)\s*;`
)

var (
	blockWord       = regexp.MustCompile(`(?i)\b(BEGIN|END|CASE|EXCEPTION|RAISE|IF|LOOP)\b`)
	dispositionTail = regexp.MustCompile(`(?i)` + dispositionPattern + `\s*$`)
)

// outerBlock finds the outermost block's EXCEPTION keyword and its closing
// END. Either offset is -1 when absent.
func outerBlock(src string) (exc, end int) {
	exc, end = -1, -1
	locs := blockWord.FindAllStringIndex(src, -1)
	word := func(i int) string { return strings.ToUpper(src[locs[i][0]:locs[i][1]]) }
	adjacent := func(i int) string {
		if i+1 < len(locs) && strings.TrimSpace(src[locs[i][1]:locs[i+1][0]]) == "" {
			return word(i + 1)
		}
		return ""
	}
	depth := 0
	for i := 0; i < len(locs); i++ {
		switch word(i) {
		case "BEGIN", "CASE":
			depth++
		case "RAISE":
			if adjacent(i) == "EXCEPTION" {
				i++
			}
		case "EXCEPTION":
			if depth == 1 {
				exc = locs[i][0]
			}
		case "END":
			start := locs[i][0]
			switch adjacent(i) {
			case "IF", "LOOP":
				i++
				continue
			case "CASE":
				i++
			}
			depth--
			if depth == 0 {
				end = start
			}
		}
	}
	if end < exc {
		exc = -1
	}
	return exc, end
}

// addDisposition returns the row at the end of the outermost block and of
// its exception handlers, where PL/SQL triggers fall through implicitly.
func addDisposition(src string, _ *Context) string {
	exc, end := outerBlock(src)
	if end < 0 {
		return src
	}
	src = src[:end] + rowDisposition + "\n" + src[end:]
	if exc >= 0 {
		src = src[:exc] + rowDisposition + "\n" + src[exc:]
	}
	return src
}

func removeDisposition(src string, _ *Context) string {
	exc, end := outerBlock(src)
	for _, pos := range []int{end, exc} {
		if pos < 0 {
			continue
		}
		if loc := dispositionTail.FindStringIndex(src[:pos]); loc != nil {
			src = src[:loc[0]] + src[pos:]
		}
	}
	return src
}
