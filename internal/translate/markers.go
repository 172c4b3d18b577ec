package translate

import (
	"regexp"
	"strings"
)

// Rewrites that lose information keep the replaced Oracle text in a marker
// comment right after the replacement. The reverse rewrite restores the
// marked text instead of guessing.
const (
	markerOpen  = "/*ora:"
	markerClose = "*/"
)

// markOriginal returns repl followed by a masked marker holding orig. Text
// that cannot sit inside a block comment is not marked.
func markOriginal(ctx *Context, repl, orig string) string {
	if ctx == nil || ctx.Mask == nil || strings.Contains(orig, markerClose) || strings.ContainsRune(orig, tokenOpen) {
		return repl
	}
	return repl + ctx.Mask.add(MaskComment, markerOpen+orig+markerClose)
}

// markedText returns the text kept in the marker behind tok.
func markedText(ctx *Context, tok string) (string, bool) {
	text, kind, ok := ctx.Mask.Lookup(tok)
	if !ok || kind != MaskComment || !strings.HasPrefix(text, markerOpen) || !strings.HasSuffix(text, markerClose) {
		return "", false
	}
	return text[len(markerOpen) : len(text)-len(markerClose)], true
}

// kept is a lossy swap. back matches repl in the other direction.
type kept struct {
	pattern, repl, back string
}

type compiledKept struct {
	kept
	forward *regexp.Regexp
	reverse *regexp.Regexp
	accept  *regexp.Regexp
}

func compileKept(list []kept) []compiledKept {
	out := make([]compiledKept, len(list))
	for i, k := range list {
		out[i] = compiledKept{
			kept:    k,
			forward: regexp.MustCompile(`(?i)` + k.pattern),
			reverse: regexp.MustCompile(`(?i)` + k.back + `[ \t]*(` + commentToken + `)`),
			accept:  regexp.MustCompile(`(?is)^(?:` + k.pattern + `)$`),
		}
	}
	return out
}

// keepSwaps applies list forward, marking every replaced text, then the
// plain swaps.
func keepSwaps(list []kept, plain []swap) func(string, *Context) string {
	compiled := compileKept(list)
	rest := swaps(plain)
	return func(src string, ctx *Context) string {
		for _, k := range compiled {
			src = rewriteMatches(k.forward, src, func(m []string) (string, bool) {
				return markOriginal(ctx, k.forward.ReplaceAllString(m[0], k.repl), m[0]), true
			})
		}
		return rest(src, ctx)
	}
}

// restoreSwaps puts marked texts back, then applies the plain swaps to
// what was never marked.
func restoreSwaps(list []kept, plain []swap) func(string, *Context) string {
	compiled := compileKept(list)
	rest := swaps(plain)
	return func(src string, ctx *Context) string {
		for _, k := range compiled {
			src = restoreMarked(k.reverse, k.accept, src, ctx)
		}
		return rest(src, ctx)
	}
}

// restoreMarked replaces each match of re whose trailing marker holds text
// accept matches with that text. The marker is the last group of re.
func restoreMarked(re, accept *regexp.Regexp, src string, ctx *Context) string {
	return rewriteMatches(re, src, func(m []string) (string, bool) {
		orig, ok := markedText(ctx, m[len(m)-1])
		if !ok || !accept.MatchString(orig) {
			return "", false
		}
		return orig, true
	})
}
