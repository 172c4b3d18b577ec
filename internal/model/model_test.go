package model

import (
	"strings"
	"testing"
)

const ordersYAML = `
name: shop
tables:
  - name: CUSTOMER
    columns:
      - {name: ID, type: DECIMAL, size: 10, required: true, primary_key: true}
      - {name: NAME, type: VARCHAR2, size: 60}
  - name: ORDERS
    columns:
      - {name: ID, type: NUMBER, size: 10, required: true, primary_key: true}
      - {name: CUSTOMER_ID, type: DECIMAL, size: 10}
      - {name: NOTE, type: text}
    foreign_keys:
      - name: FK_ORDERS_CUSTOMER
        foreign_table: customer
        references:
          - {local: customer_id, foreign: id}
    indexes:
      - name: IX_ORDERS_NOTE
        columns:
          - {name: NOTE, operator_class: text_pattern_ops}
functions:
  - name: ORDER_COUNT
    params:
      - {name: P_CUSTOMER, type: DECIMAL}
      - {name: P_TOTAL, type: DECIMAL, direction: OUT}
    body: "BEGIN NULL; END;"
triggers:
  - name: TR_ORDERS
    table: ORDERS
    timing: BEFORE
    events: [INSERT]
    for_each_row: true
    body: "BEGIN NULL; END;"
`

func TestParseResolvesForeignKeys(t *testing.T) {
	db, err := Parse([]byte(ordersYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	orders := db.FindTable("orders")
	if orders == nil {
		t.Fatal("FindTable(orders) = nil")
	}
	fk := orders.FindForeignKey("fk_orders_customer")
	if fk == nil {
		t.Fatal("FindForeignKey() = nil")
	}
	if fk.Target != db.FindTable("CUSTOMER") {
		t.Errorf("fk.Target = %v, want CUSTOMER", fk.Target)
	}
	if got := fk.References[0].ForeignColumn; got == nil || got.Name != "ID" {
		t.Errorf("ForeignColumn = %v, want ID", got)
	}
	if got := orders.FindColumn("note").Type; got != TypeClob {
		t.Errorf("NOTE type = %v, want CLOB", got)
	}
	if !orders.FindIndex("IX_ORDERS_NOTE").HasMetadata() {
		t.Error("HasMetadata() = false for index with operator class")
	}
	if f := db.FindFunction("order_count"); f == nil || !f.IsProcedure() || len(f.OutParams()) != 1 {
		t.Errorf("ORDER_COUNT = %+v, want procedure with one OUT param", f)
	}
}

func TestInitializeErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"duplicate table",
			"tables:\n  - {name: A, columns: [{name: X, type: CHAR}]}\n  - {name: a, columns: [{name: X, type: CHAR}]}\n",
			"duplicate of A",
		},
		{
			"duplicate column",
			"tables:\n  - {name: A, columns: [{name: X, type: CHAR}, {name: x, type: CHAR}]}\n",
			"column A.x",
		},
		{
			"dangling foreign table",
			"tables:\n  - name: A\n    columns: [{name: X, type: CHAR}]\n    foreign_keys: [{name: FK, foreign_table: B, references: [{local: X, foreign: Y}]}]\n",
			"unknown table B",
		},
		{
			"dangling foreign column",
			"tables:\n  - name: A\n    columns: [{name: X, type: CHAR}]\n    foreign_keys: [{name: FK, foreign_table: A, references: [{local: X, foreign: Y}]}]\n",
			"unknown column A.Y",
		},
		{
			"other without native type",
			"tables:\n  - {name: A, columns: [{name: X, type: OTHER}]}\n",
			"requires native_type",
		},
		{
			"trigger on unknown table",
			"tables:\n  - {name: A, columns: [{name: X, type: CHAR}]}\ntriggers:\n  - {name: T, table: B, body: x}\n",
			"unknown table B",
		},
		{
			"index on unknown column",
			"tables:\n  - name: A\n    columns: [{name: X, type: CHAR}]\n    indexes: [{name: I, columns: [{name: Y}]}]\n",
			"unknown column Y",
		},
		{
			"scale exceeds precision",
			"tables:\n  - {name: A, columns: [{name: X, type: DECIMAL, size: 2, scale: 4}]}\n",
			"exceeds precision",
		},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.yaml))
		if err == nil {
			t.Errorf("%s: Parse() expected error", tt.name)
			continue
		}
		if !IsModelError(err) {
			t.Errorf("%s: error %v is not a model error", tt.name, err)
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q does not contain %q", tt.name, err, tt.want)
		}
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse([]byte("tables:\n  - {name: A, columns: [{name: X, type: GEOMETRY}]}\n"))
	if err == nil || !strings.Contains(err.Error(), `unknown type "GEOMETRY"`) {
		t.Errorf("Parse() error = %v, want unknown type", err)
	}
}

func TestCaseSensitiveLookup(t *testing.T) {
	db, err := Parse([]byte("case_sensitive: true\ntables:\n  - {name: A, columns: [{name: X, type: CHAR}]}\n  - {name: a, columns: [{name: X, type: CHAR}]}\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if db.FindTable("a") == db.FindTable("A") {
		t.Error("case-sensitive lookup folded names")
	}
	if !SameName("ÄRGER", "ärger", false) {
		t.Error("SameName did not fold Unicode case")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	db, err := Parse([]byte(ordersYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	db.DeferRequired("ORDERS", "NOTE")
	cp, err := db.Clone()
	if err != nil {
		t.Fatalf("Clone() error: %v", err)
	}
	cp.FindTable("ORDERS").FindColumn("NOTE").Size = 99
	cp.FindTable("ORDERS").RemoveIndex("IX_ORDERS_NOTE")
	if got := db.FindTable("ORDERS").FindColumn("NOTE").Size; got != 0 {
		t.Errorf("original NOTE size = %d, want 0", got)
	}
	if db.FindTable("ORDERS").FindIndex("IX_ORDERS_NOTE") == nil {
		t.Error("removing an index on the clone removed it from the original")
	}
	fk := cp.FindTable("ORDERS").ForeignKeys[0]
	if fk.Target != cp.FindTable("CUSTOMER") {
		t.Error("clone foreign key points outside the clone")
	}
	if !cp.IsDeferred("orders", "note") {
		t.Error("clone lost deferred registration")
	}
}

func TestDeferredRegister(t *testing.T) {
	db := &Database{}
	db.DeferRequired("T", "A")
	db.DeferRequired("t", "a")
	db.DeferRequired("T", "B")
	if got := len(db.Deferred()); got != 2 {
		t.Fatalf("len(Deferred()) = %d, want 2", got)
	}
	db.CancelDeferred("T", "B")
	if db.IsDeferred("T", "B") {
		t.Error("IsDeferred(T, B) after cancel")
	}
	got := db.TakeDeferred()
	if len(got) != 1 || got[0] != (Deferred{Table: "T", Column: "A"}) {
		t.Errorf("TakeDeferred() = %v", got)
	}
	if len(db.Deferred()) != 0 {
		t.Error("register not empty after TakeDeferred")
	}
}

func TestParseTypeAliases(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"varchar2(60)", TypeVarchar},
		{"NUMBER(10,2)", TypeDecimal},
		{"character varying", TypeVarchar},
		{"bytea", TypeBinary},
		{" date ", TypeTimestamp},
		{"NVARCHAR2", TypeNVarchar},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if err != nil {
			t.Errorf("ParseType(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	db, err := Parse([]byte(ordersYAML))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	out, err := Marshal(db)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error: %v\n%s", err, out)
	}
	if got := again.FindTable("ORDERS").FindColumn("NOTE").Type; got != TypeClob {
		t.Errorf("NOTE type after round trip = %v, want CLOB", got)
	}
}
