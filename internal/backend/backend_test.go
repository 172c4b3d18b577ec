package backend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Limetric/schemaferry/internal/dialect"
	"github.com/Limetric/schemaferry/internal/model"
)

func TestColumnType(t *testing.T) {
	tests := []struct {
		dataType    string
		size, scale int
		wantType    model.Type
		wantNative  string
		wantSize    int
		wantScale   int
	}{
		{"character varying", 60, 0, model.TypeVarchar, "", 60, 0},
		{"text", 0, 0, model.TypeClob, "", 0, 0},
		{"boolean", 0, 0, model.TypeOther, "boolean", 0, 0},
		{"VARCHAR2", 60, 0, model.TypeVarchar, "", 60, 0},
		{"NVARCHAR2", 30, 0, model.TypeNVarchar, "", 30, 0},
		{"NUMBER", 10, 2, model.TypeDecimal, "", 10, 2},
		{"numeric", 12, 0, model.TypeDecimal, "", 12, 0},
		{"integer", 32, 0, model.TypeDecimal, "", 10, 0},
		{"bigint", 64, 0, model.TypeDecimal, "", 19, 0},
		{"smallint", 16, 0, model.TypeDecimal, "", 5, 0},
		{"DATE", 7, 0, model.TypeTimestamp, "", 0, 0},
		{"TIMESTAMP(6) WITH TIME ZONE", 0, 6, model.TypeTimestamp, "", 0, 0},
		{"timestamp without time zone", 0, 0, model.TypeTimestamp, "", 0, 0},
		{"CLOB", 4000, 0, model.TypeClob, "", 0, 0},
		{"NCLOB", 4000, 0, model.TypeClob, "", 0, 0},
		{"bytea", 0, 0, model.TypeBinary, "", 0, 0},
		{"RAW", 16, 0, model.TypeBinary, "", 16, 0},
		{"jsonb", 0, 0, model.TypeOther, "jsonb", 0, 0},
		{"SDO_GEOMETRY", 0, 0, model.TypeOther, "sdo_geometry", 0, 0},
	}
	for _, tt := range tests {
		typ, native, size, scale := columnType(tt.dataType, tt.size, tt.scale)
		if typ != tt.wantType || native != tt.wantNative || size != tt.wantSize || scale != tt.wantScale {
			t.Errorf("columnType(%q, %d, %d) = (%s, %q, %d, %d), want (%s, %q, %d, %d)",
				tt.dataType, tt.size, tt.scale, typ, native, size, scale,
				tt.wantType, tt.wantNative, tt.wantSize, tt.wantScale)
		}
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{Fail: func(sql string) error {
		if strings.HasPrefix(sql, "DROP") {
			return errors.New("denied")
		}
		return nil
	}}
	ctx := context.Background()
	if err := rec.Exec(ctx, "CREATE TABLE T (ID NUMBER)"); err != nil {
		t.Errorf("Exec(CREATE) error: %v", err)
	}
	if err := rec.Exec(ctx, "DROP TABLE T"); err == nil {
		t.Error("Exec(DROP) error = nil, want denied")
	}
	want := []string{"CREATE TABLE T (ID NUMBER)", "DROP TABLE T"}
	if diff := cmp.Diff(want, rec.Statements()); diff != "" {
		t.Errorf("Statements() (-want +got):\n%s", diff)
	}
}

func TestOpenUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "root@/db")
	if !errors.Is(err, dialect.ErrUnknownDialect) {
		t.Errorf("Open(mysql) error = %v, want ErrUnknownDialect", err)
	}
}

func TestTableBuilderRestoresFacts(t *testing.T) {
	b := newTableBuilder()
	orders := b.table("ORDERS")
	orders.Columns = append(orders.Columns, &model.Column{
		Name: "NAME", Type: model.TypeVarchar, Size: 40,
		Comment: "customer name$ntype::NAME:NVARCHAR",
	})
	if b.table("ORDERS") != orders {
		t.Fatal("table() returned a second ORDERS")
	}
	b.db.Views = append(b.db.Views, &model.View{Name: "OPEN_ORDERS", Comment: "orders not yet shipped$ntype::X:NVARCHAR"})
	db, err := b.finish()
	if err != nil {
		t.Fatalf("finish() error: %v", err)
	}
	col := db.FindTable("orders").FindColumn("name")
	if col.Type != model.TypeNVarchar {
		t.Errorf("NAME type = %s, want NVARCHAR restored from the comment", col.Type)
	}
	if v := db.FindView("open_orders"); v == nil || v.Comment != "orders not yet shipped" {
		t.Errorf("view = %+v, want the comment text without facts", v)
	}
}
