package translate

import (
	"regexp"
	"strings"
	"testing"
)

var placeholder = regexp.MustCompile(anyToken)

func TestMaskRestoresVerbatim(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		items int
	}{
		{"plain literal", "x := 'NUMBER';", 1},
		{"doubled quote", "x := 'it''s';", 1},
		{"escape string", `x := E'a\'b';`, 1},
		{"q quote", "x := q'[it's]' || q'{x}';", 2},
		{"dollar quote", "EXECUTE $q$SELECT 'a'$q$;", 1},
		{"line comment", "x := 1; -- NUMBER\ny := 2;", 1},
		{"block comment", "/* SYSDATE */ x := 1;", 1},
		{"quoted identifier", `SELECT "NUMBER" FROM t;`, 1},
		{"unterminated", "x := 'open", 1},
		{"positional param", "x := $1;", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, masked := NewMask(tt.src)
			if m.Len() != tt.items {
				t.Errorf("NewMask(%q) masked %d items, want %d", tt.src, m.Len(), tt.items)
			}
			if got := m.Unmask(masked); got != tt.src {
				t.Errorf("Unmask(NewMask(%q)) = %q", tt.src, got)
			}
		})
	}
}

func TestMaskHidesKeywords(t *testing.T) {
	_, masked := NewMask("v := 'NUMBER'; -- SYSDATE\n/* DATE */")
	for _, word := range []string{"NUMBER", "SYSDATE", "DATE"} {
		if strings.Contains(masked, word) {
			t.Errorf("masked text %q still contains %q", masked, word)
		}
	}
}

func TestLiteralValue(t *testing.T) {
	m, masked := NewMask("x := 'it''s' || \"id\";")
	toks := placeholder.FindAllString(masked, -1)
	if len(toks) != 2 {
		t.Fatalf("placeholders = %q, want 2", toks)
	}
	if v, ok := m.LiteralValue(toks[0]); !ok || v != "it's" {
		t.Errorf("LiteralValue(%q) = %q, %v, want %q", toks[0], v, ok, "it's")
	}
	if _, ok := m.LiteralValue(toks[1]); ok {
		t.Errorf("LiteralValue of a quoted identifier should fail")
	}
	if _, _, ok := m.Lookup("nope"); ok {
		t.Errorf("Lookup(%q) should fail", "nope")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"BEGIN\n  x := f( a , b );\nEND;", "BEGIN x := f(a,b); END;", true},
		{"x := 'a  b';", "x := 'a b';", false},
		{"RETURN x;", "RETURN  y;", false},
	}
	for _, tt := range tests {
		if got := Equivalent(tt.a, tt.b); got != tt.same {
			t.Errorf("Equivalent(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}
