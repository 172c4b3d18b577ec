package dialect

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCommentCapacity is returned when an encoded comment does not fit the
// backend's native comment. Encoded facts are never truncated.
var ErrCommentCapacity = errors.New("comment exceeds backend capacity")

// FactKind names a schema fact stored in a native comment.
type FactKind string

const (
	FactNationalType    FactKind = "ntype"
	FactOnCreateDefault FactKind = "ocdefault"
	FactOperatorClass   FactKind = "opclass"
	FactWhere           FactKind = "where"
	FactContains        FactKind = "contains"
)

var factKinds = map[FactKind]bool{
	FactNationalType: true, FactOnCreateDefault: true, FactOperatorClass: true,
	FactWhere: true, FactContains: true,
}

// Fact is one encoded record. Object is the index a fact belongs to, empty
// for column facts; Column is the column it describes, if any.
type Fact struct {
	Kind   FactKind
	Object string
	Column string
	Value  string
}

func (f Fact) sameKey(o Fact) bool {
	return f.Kind == o.Kind && strings.EqualFold(f.Object, o.Object) && strings.EqualFold(f.Column, o.Column)
}

// Comment is a decoded native comment: free text plus encoded facts.
//
// Wire format: text$kind:object:column:value$kind:object:column:value
// Every field, text included, is escaped so that neither '$', ':' nor a
// quote appears inside it: ~ becomes ~~, $ becomes ~d, : becomes ~c and a
// single quote becomes ~q.
// A comment without facts is stored as plain, unescaped text.
type Comment struct {
	Text  string
	Facts []Fact
}

var (
	escaper   = strings.NewReplacer("~", "~~", "$", "~d", ":", "~c", "'", "~q")
	unescaper = strings.NewReplacer("~~", "~", "~d", "$", "~c", ":", "~q", "'")
)

// DecodeComment parses a native comment. It never fails: segments that do
// not parse as records are kept as part of the free text.
func DecodeComment(s string) Comment {
	if !strings.Contains(s, "$") {
		return Comment{Text: s}
	}
	parts := strings.Split(s, "$")
	var c Comment
	var text []string
	text = append(text, parts[0])
	for _, p := range parts[1:] {
		f, ok := decodeFact(p)
		if !ok {
			text = append(text, p)
			continue
		}
		c.Upsert(f)
	}
	if len(c.Facts) == 0 {
		return Comment{Text: s}
	}
	if len(text) == 1 {
		c.Text = unescaper.Replace(text[0])
	} else {
		c.Text = strings.Join(text, "$")
	}
	return c
}

func decodeFact(s string) (Fact, bool) {
	fields := strings.Split(s, ":")
	if len(fields) != 4 {
		return Fact{}, false
	}
	kind := FactKind(fields[0])
	if !factKinds[kind] {
		return Fact{}, false
	}
	return Fact{
		Kind:   kind,
		Object: unescaper.Replace(fields[1]),
		Column: unescaper.Replace(fields[2]),
		Value:  unescaper.Replace(fields[3]),
	}, true
}

// Encode renders the comment in wire format.
func (c Comment) Encode() string {
	if len(c.Facts) == 0 {
		return c.Text
	}
	var b strings.Builder
	b.WriteString(escaper.Replace(c.Text))
	for _, f := range c.Facts {
		fmt.Fprintf(&b, "$%s:%s:%s:%s", f.Kind, escaper.Replace(f.Object), escaper.Replace(f.Column), escaper.Replace(f.Value))
	}
	return b.String()
}

// EncodeWithin renders the comment and checks it against a byte capacity.
func (c Comment) EncodeWithin(capacity int) (string, error) {
	s := c.Encode()
	if capacity > 0 && len(s) > capacity {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrCommentCapacity, len(s), capacity)
	}
	return s, nil
}

// Upsert adds f or replaces the fact with the same kind, object and column.
// Other facts are preserved.
func (c *Comment) Upsert(f Fact) {
	for i := range c.Facts {
		if c.Facts[i].sameKey(f) {
			c.Facts[i] = f
			return
		}
	}
	c.Facts = append(c.Facts, f)
}

// Remove drops the fact with the given key; it reports whether one existed.
func (c *Comment) Remove(kind FactKind, object, column string) bool {
	n := len(c.Facts)
	key := Fact{Kind: kind, Object: object, Column: column}
	c.Facts = slices.DeleteFunc(c.Facts, func(f Fact) bool { return f.sameKey(key) })
	return len(c.Facts) != n
}

// RemoveObject drops every fact belonging to object.
func (c *Comment) RemoveObject(object string) bool {
	n := len(c.Facts)
	c.Facts = slices.DeleteFunc(c.Facts, func(f Fact) bool { return strings.EqualFold(f.Object, object) })
	return len(c.Facts) != n
}

// Lookup returns the value of the fact with the given key.
func (c Comment) Lookup(kind FactKind, object, column string) (string, bool) {
	key := Fact{Kind: kind, Object: object, Column: column}
	for _, f := range c.Facts {
		if f.sameKey(key) {
			return f.Value, true
		}
	}
	return "", false
}

// ObjectFacts returns the facts of one object in stored order.
func (c Comment) ObjectFacts(object string) []Fact {
	var out []Fact
	for _, f := range c.Facts {
		if strings.EqualFold(f.Object, object) {
			out = append(out, f)
		}
	}
	return out
}
