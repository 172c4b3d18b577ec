package dialect

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Limetric/schemaferry/internal/change"
	"github.com/Limetric/schemaferry/internal/model"
)

func TestRequiresRecreation(t *testing.T) {
	ora := NewOracle(Version{})
	pg := NewPostgreSQL(Version{})
	pg91 := NewPostgreSQL(Version{Major: 9, Minor: 1})

	resize := func(typ model.Type, oldSize, oldScale, newSize, newScale int) change.Change {
		return &change.ColumnSizeChange{Table: "T", Column: "C", Type: typ,
			OldSize: oldSize, OldScale: oldScale, NewSize: newSize, NewScale: newScale}
	}
	retype := func(from, to model.Type, oldSize, newSize int) change.Change {
		return &change.ColumnDataTypeChange{Table: "T", Column: "C",
			OldType: from, NewType: to, OldSize: oldSize, NewSize: newSize}
	}

	tests := []struct {
		name string
		d    Dialect
		c    change.Change
		want bool
	}{
		{"oracle varchar widen", ora, resize(model.TypeVarchar, 60, 0, 70, 0), false},
		{"oracle varchar narrow", ora, resize(model.TypeVarchar, 70, 0, 60, 0), true},
		{"oracle varchar to unbounded", ora, resize(model.TypeVarchar, 70, 0, 0, 0), false},
		{"oracle decimal widen", ora, resize(model.TypeDecimal, 10, 2, 12, 2), false},
		{"oracle decimal scale up", ora, resize(model.TypeDecimal, 10, 2, 12, 4), false},
		{"oracle decimal scale down", ora, resize(model.TypeDecimal, 10, 2, 12, 1), true},
		{"oracle clob", ora, resize(model.TypeClob, 100, 0, 10, 0), false},
		{"postgres decimal widen", pg, resize(model.TypeDecimal, 10, 2, 12, 2), false},
		{"postgres decimal scale up", pg, resize(model.TypeDecimal, 10, 2, 12, 4), true},
		{"postgres 9.1 decimal widen", pg91, resize(model.TypeDecimal, 10, 2, 12, 2), true},
		{"postgres binary narrow", pg, resize(model.TypeBinary, 16, 0, 8, 0), false},
		{"oracle binary narrow", ora, resize(model.TypeBinary, 16, 0, 8, 0), true},
		{"oracle national", ora, retype(model.TypeVarchar, model.TypeNVarchar, 60, 60), false},
		{"oracle national narrow", ora, retype(model.TypeVarchar, model.TypeNVarchar, 60, 50), true},
		{"postgres national", pg, retype(model.TypeChar, model.TypeNChar, 2, 2), false},
		{"text to number", pg, retype(model.TypeVarchar, model.TypeDecimal, 20, 10), true},
		{"same type widen", ora, retype(model.TypeVarchar, model.TypeVarchar, 60, 70), false},
		{"add column", ora, &change.AddColumn{Table: "T", Column: &model.Column{Name: "C", Type: model.TypeVarchar}}, false},
		{"remove column", pg, &change.RemoveColumn{Table: "T", Column: "C"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequiresRecreation(tt.d, tt.c); got != tt.want {
				t.Errorf("RequiresRecreation(%s, %s) = %v, want %v", tt.d.Name(), tt.c, got, tt.want)
			}
		})
	}
}

func TestRecreatedTables(t *testing.T) {
	changes := []change.Change{
		&change.ColumnSizeChange{Table: "orders", Column: "A", Type: model.TypeVarchar, OldSize: 10, NewSize: 5},
		&change.ColumnSizeChange{Table: "ITEMS", Column: "A", Type: model.TypeVarchar, OldSize: 10, NewSize: 20},
		&change.ColumnDataTypeChange{Table: "ORDERS", Column: "B", OldType: model.TypeTimestamp, NewType: model.TypeDecimal},
		&change.ColumnDataTypeChange{Table: "LINES", Column: "B", OldType: model.TypeClob, NewType: model.TypeVarchar},
	}
	got := RecreatedTables(NewOracle(Version{}), changes)
	if diff := cmp.Diff([]string{"orders", "LINES"}, got); diff != "" {
		t.Errorf("RecreatedTables() (-want +got):\n%s", diff)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"19", Version{Major: 19}, false},
		{"12.2", Version{Major: 12, Minor: 2}, false},
		{"16.4.1", Version{Major: 16, Minor: 4}, false},
		{"", Version{}, true},
		{"x.1", Version{}, true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"oracle", "Postgres", "postgresql"} {
		if _, err := New(name, Version{}); err != nil {
			t.Errorf("New(%q) error: %v", name, err)
		}
	}
	if _, err := New("mysql", Version{}); err == nil {
		t.Errorf("New(%q) should fail", "mysql")
	}
}

func TestIdent(t *testing.T) {
	tests := []struct {
		d    Dialect
		in   string
		want string
	}{
		{NewOracle(Version{}), "ORDERS", "ORDERS"},
		{NewOracle(Version{}), "COMMENT", `"COMMENT"`},
		{NewOracle(Version{}), "my col", `"my col"`},
		{NewPostgreSQL(Version{}), "orders", "orders"},
		{NewPostgreSQL(Version{}), "user", `"user"`},
		{NewPostgreSQL(Version{}), "COMMENT", "COMMENT"},
	}
	for _, tt := range tests {
		if got := tt.d.Ident(tt.in); got != tt.want {
			t.Errorf("%s.Ident(%q) = %q, want %q", tt.d.Name(), tt.in, got, tt.want)
		}
	}
}
