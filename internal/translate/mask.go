package translate

import (
	"strconv"
	"strings"
)

// MaskKind tells what a placeholder stands for.
type MaskKind byte

const (
	MaskLiteral MaskKind = 'L'
	MaskComment MaskKind = 'C'
	MaskQuoted  MaskKind = 'Q'
)

// Placeholders are delimited by private-use runes so no rule pattern built
// from word characters or punctuation can match inside one.
const (
	tokenOpen  = '\uE000'
	tokenClose = '\uE001'
)

type masked struct {
	kind MaskKind
	text string
}

// Mask holds the string literals, quoted identifiers and comments cut out of
// a body so that rewrite rules never see them.
type Mask struct {
	items []masked
}

func token(kind MaskKind, i int) string {
	return string(tokenOpen) + string(rune(kind)) + strconv.Itoa(i) + string(tokenClose)
}

func (m *Mask) add(kind MaskKind, text string) string {
	m.items = append(m.items, masked{kind: kind, text: text})
	return token(kind, len(m.items)-1)
}

// Len returns the number of masked items.
func (m *Mask) Len() int { return len(m.items) }

// Lookup returns the original text behind a placeholder.
func (m *Mask) Lookup(tok string) (string, MaskKind, bool) {
	r := []rune(tok)
	if len(r) < 4 || r[0] != tokenOpen || r[len(r)-1] != tokenClose {
		return "", 0, false
	}
	i, err := strconv.Atoi(string(r[2 : len(r)-1]))
	if err != nil || i < 0 || i >= len(m.items) || m.items[i].kind != MaskKind(r[1]) {
		return "", 0, false
	}
	return m.items[i].text, m.items[i].kind, true
}

// LiteralValue returns the unquoted content of a masked plain string
// literal.
func (m *Mask) LiteralValue(tok string) (string, bool) {
	text, kind, ok := m.Lookup(tok)
	if !ok || kind != MaskLiteral || len(text) < 2 || text[0] != '\'' || text[len(text)-1] != '\'' {
		return "", false
	}
	return strings.ReplaceAll(text[1:len(text)-1], "''", "'"), true
}

// Unmask restores every placeholder in s, most recent first.
func (m *Mask) Unmask(s string) string {
	for i := len(m.items) - 1; i >= 0; i-- {
		s = strings.ReplaceAll(s, token(m.items[i].kind, i), m.items[i].text)
	}
	return s
}

// NewMask replaces string literals (plain, E-prefixed, Oracle q-quoted and
// dollar-quoted), quoted identifiers and comments in src with placeholders.
// Unterminated constructs are masked to the end of the input.
func NewMask(src string) (*Mask, string) {
	m := &Mask{}
	var b strings.Builder
	n := len(src)
	for i := 0; i < n; {
		c := src[i]
		switch {
		case c == '-' && i+1 < n && src[i+1] == '-':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = n - i
			}
			b.WriteString(m.add(MaskComment, src[i:i+end]))
			i += end

		case c == '/' && i+1 < n && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				end = n - i
			} else {
				end += 4
			}
			b.WriteString(m.add(MaskComment, src[i:i+end]))
			i += end

		case (c == 'q' || c == 'Q') && i+2 < n && src[i+1] == '\'' && !wordBefore(src, i):
			end := qQuoteEnd(src, i+2)
			b.WriteString(m.add(MaskLiteral, src[i:end]))
			i = end

		case c == '\'':
			escapes := i > 0 && (src[i-1] == 'E' || src[i-1] == 'e') && !wordBefore(src, i-1)
			end := quoteEnd(src, i+1, '\'', escapes)
			b.WriteString(m.add(MaskLiteral, src[i:end]))
			i = end

		case c == '"':
			end := quoteEnd(src, i+1, '"', false)
			b.WriteString(m.add(MaskQuoted, src[i:end]))
			i = end

		case c == '$' && !wordBefore(src, i):
			tag, ok := dollarTag(src[i:])
			if !ok {
				b.WriteByte(c)
				i++
				continue
			}
			end := strings.Index(src[i+len(tag):], tag)
			if end < 0 {
				end = n
			} else {
				end = i + len(tag) + end + len(tag)
			}
			b.WriteString(m.add(MaskLiteral, src[i:end]))
			i = end

		default:
			b.WriteByte(c)
			i++
		}
	}
	return m, b.String()
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func wordBefore(src string, i int) bool {
	return i > 0 && isWordByte(src[i-1])
}

// quoteEnd returns the index just past the closing quote, honouring doubled
// quotes and, for E'' strings, backslash escapes.
func quoteEnd(src string, i int, q byte, backslash bool) int {
	for i < len(src) {
		switch {
		case backslash && src[i] == '\\':
			i += 2
		case src[i] == q && i+1 < len(src) && src[i+1] == q:
			i += 2
		case src[i] == q:
			return i + 1
		default:
			i++
		}
	}
	return len(src)
}

// qQuoteEnd scans an Oracle q'<d>...<d>' literal whose delimiter is at i.
func qQuoteEnd(src string, i int) int {
	closing := src[i]
	switch closing {
	case '[':
		closing = ']'
	case '{':
		closing = '}'
	case '(':
		closing = ')'
	case '<':
		closing = '>'
	}
	for j := i + 1; j+1 < len(src); j++ {
		if src[j] == closing && src[j+1] == '\'' {
			return j + 2
		}
	}
	return len(src)
}

// dollarTag returns the opening $tag$ at the start of s.
func dollarTag(s string) (string, bool) {
	for j := 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '$':
			return s[:j+1], true
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && j > 1:
		default:
			return "", false
		}
	}
	return "", false
}
