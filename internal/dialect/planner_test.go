package dialect

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Limetric/schemaferry/internal/change"
	"github.com/Limetric/schemaferry/internal/model"
)

func parseModel(t *testing.T, src string) *model.Database {
	t.Helper()
	db, err := model.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return db
}

const ordersModel = `
tables:
  - name: T
    columns:
      - {name: ID, type: DECIMAL, size: 10, required: true, primary_key: true}
      - {name: COL1, type: VARCHAR, size: 60}
      - {name: X, type: VARCHAR, size: 10}
      - {name: Y, type: VARCHAR, size: 10}
`

func sqlOf(stmts []Statement) []string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.SQL
	}
	return out
}

func mustAlter(t *testing.T, p *Planner) []string {
	t.Helper()
	stmts, err := p.Alter()
	if err != nil {
		t.Fatalf("Alter() error: %v", err)
	}
	return sqlOf(stmts)
}

func TestResizeInPlace(t *testing.T) {
	tests := []struct {
		d    Dialect
		want string
	}{
		{NewOracle(Version{}), "ALTER TABLE T MODIFY COL1 VARCHAR2(70)"},
		{NewPostgreSQL(Version{}), "ALTER TABLE T ALTER COLUMN COL1 TYPE VARCHAR(70)"},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			db := parseModel(t, ordersModel)
			changes := []change.Change{
				&change.ColumnSizeChange{Table: "T", Column: "COL1", Type: model.TypeVarchar, OldSize: 60, NewSize: 70},
			}
			p := NewPlanner(tt.d, db, changes, nil)
			if p.Recreated("T") {
				t.Fatalf("T is recreated, want an in-place change")
			}
			if diff := cmp.Diff([]string{tt.want}, mustAlter(t, p)); diff != "" {
				t.Errorf("Alter() (-want +got):\n%s", diff)
			}
			if got := db.FindTable("T").FindColumn("COL1").Size; got != 70 {
				t.Errorf("model size = %d, want 70", got)
			}
		})
	}
}

func TestColumnBatching(t *testing.T) {
	changes := func() []change.Change {
		return []change.Change{
			&change.AddColumn{Table: "T", Column: &model.Column{Name: "A", Type: model.TypeVarchar, Size: 10}, Position: -1},
			&change.RemoveColumn{Table: "T", Column: "X"},
			&change.AddColumn{Table: "T", Column: &model.Column{Name: "B", Type: model.TypeDecimal, Size: 5}, Position: -1},
			&change.RemoveColumn{Table: "T", Column: "Y"},
		}
	}
	tests := []struct {
		d    Dialect
		want []string
	}{
		{NewOracle(Version{}), []string{
			"ALTER TABLE T DROP (X, Y)",
			"ALTER TABLE T ADD (A VARCHAR2(10), B NUMBER(5))",
		}},
		{NewPostgreSQL(Version{}), []string{
			"ALTER TABLE T DROP COLUMN X, DROP COLUMN Y",
			"ALTER TABLE T ADD COLUMN A VARCHAR(10), ADD COLUMN B NUMERIC(5)",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			p := NewPlanner(tt.d, parseModel(t, ordersModel), changes(), nil)
			if diff := cmp.Diff(tt.want, mustAlter(t, p)); diff != "" {
				t.Errorf("Alter() (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeferredNotNull(t *testing.T) {
	db := parseModel(t, ordersModel+`
triggers:
  - {name: TR_T, table: T, timing: BEFORE, events: [INSERT], for_each_row: true, body: "BEGIN NULL; END;"}
`)
	changes := []change.Change{
		&change.AddColumn{Table: "T", Column: &model.Column{Name: "STATUS", Type: model.TypeVarchar, Size: 10, Required: true, Default: "'new'"}, Position: -1},
		&change.ColumnRequiredChange{Table: "T", Column: "COL1", Required: true},
	}
	p := NewPlanner(NewOracle(Version{}), db, changes, nil)

	disable, err := p.Disable()
	if err != nil {
		t.Fatalf("Disable() error: %v", err)
	}
	alter := mustAlter(t, p)
	defaults, err := p.Defaults()
	if err != nil {
		t.Fatalf("Defaults() error: %v", err)
	}
	for _, s := range append(sqlOf(disable), alter...) {
		if strings.Contains(s, "NOT NULL") {
			t.Errorf("%q enables NOT NULL before the backfill", s)
		}
	}
	if diff := cmp.Diff([]string{"ALTER TABLE T DISABLE ALL TRIGGERS"}, sqlOf(disable)); diff != "" {
		t.Errorf("Disable() (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ALTER TABLE T ADD (STATUS VARCHAR2(10) DEFAULT 'new')"}, alter); diff != "" {
		t.Errorf("Alter() (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"UPDATE T SET STATUS = 'new' WHERE STATUS IS NULL"}, sqlOf(defaults)); diff != "" {
		t.Errorf("Defaults() (-want +got):\n%s", diff)
	}

	flush := []string{
		"ALTER TABLE T MODIFY STATUS NOT NULL",
		"ALTER TABLE T MODIFY COL1 NOT NULL",
	}
	if diff := cmp.Diff(flush, sqlOf(p.FlushDeferred())); diff != "" {
		t.Errorf("FlushDeferred() (-want +got):\n%s", diff)
	}
	if got := p.FlushDeferred(); len(got) != 0 {
		t.Errorf("second FlushDeferred() = %q, want nothing", sqlOf(got))
	}

	enable, err := p.Enable()
	if err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	if diff := cmp.Diff([]string{"ALTER TABLE T ENABLE ALL TRIGGERS"}, sqlOf(enable)); diff != "" {
		t.Errorf("Enable() (-want +got):\n%s", diff)
	}
}

func TestDeferredColumnDroppedLater(t *testing.T) {
	for _, d := range []Dialect{NewOracle(Version{}), NewPostgreSQL(Version{})} {
		t.Run(d.Name(), func(t *testing.T) {
			changes := []change.Change{
				&change.AddColumn{Table: "T", Column: &model.Column{Name: "S", Type: model.TypeVarchar, Size: 1, Required: true}, Position: -1},
				&change.RemoveColumn{Table: "T", Column: "S"},
			}
			p := NewPlanner(d, parseModel(t, ordersModel), changes, nil)
			if got := mustAlter(t, p); len(got) != 0 {
				t.Errorf("Alter() = %q, want nothing for a column added and dropped", got)
			}
			if got := p.FlushDeferred(); len(got) != 0 {
				t.Errorf("FlushDeferred() = %q, want nothing for a dropped column", sqlOf(got))
			}
		})
	}
}

func TestAddedColumnChangedLater(t *testing.T) {
	changes := []change.Change{
		&change.AddColumn{Table: "T", Column: &model.Column{Name: "S", Type: model.TypeVarchar, Size: 10}, Position: -1},
		&change.AddColumn{Table: "T", Column: &model.Column{Name: "GONE", Type: model.TypeVarchar, Size: 10}, Position: -1},
		&change.ColumnSizeChange{Table: "T", Column: "S", Type: model.TypeVarchar, OldSize: 10, NewSize: 20},
		&change.RemoveColumn{Table: "T", Column: "GONE"},
		&change.RemoveColumn{Table: "T", Column: "X"},
	}
	p := NewPlanner(NewOracle(Version{}), parseModel(t, ordersModel), changes, nil)
	want := []string{
		"ALTER TABLE T DROP (X)",
		"ALTER TABLE T ADD (S VARCHAR2(20))",
	}
	if diff := cmp.Diff(want, mustAlter(t, p)); diff != "" {
		t.Errorf("Alter() (-want +got):\n%s", diff)
	}
}

func TestRecreation(t *testing.T) {
	db := parseModel(t, `
tables:
  - name: T
    columns:
      - {name: ID, type: DECIMAL, size: 10, required: true, primary_key: true}
      - {name: COL1, type: VARCHAR, size: 60}
      - {name: AMOUNT, type: VARCHAR, size: 20, required: true}
      - {name: CREATED, type: TIMESTAMP}
  - name: CHILD
    columns:
      - {name: T_ID, type: DECIMAL, size: 10}
    foreign_keys:
      - name: FK_CHILD_T
        foreign_table: T
        references: [{local: T_ID, foreign: ID}]
triggers:
  - {name: TR_T, table: T, timing: BEFORE, events: [INSERT], for_each_row: true, body: "BEGIN NULL; END;"}
`)
	desired, err := db.Clone()
	if err != nil {
		t.Fatalf("Clone() error: %v", err)
	}
	changes := []change.Change{
		&change.ColumnDataTypeChange{Table: "T", Column: "AMOUNT", OldType: model.TypeVarchar, NewType: model.TypeDecimal, OldSize: 20, NewSize: 10, NewScale: 2},
		&change.ColumnDataTypeChange{Table: "T", Column: "CREATED", OldType: model.TypeTimestamp, NewType: model.TypeDecimal, NewSize: 12},
	}
	p := NewPlanner(NewOracle(Version{}), db, changes, nil)
	if !p.Recreated("T") {
		t.Fatalf("T is not recreated")
	}

	disable, err := p.Disable()
	if err != nil {
		t.Fatalf("Disable() error: %v", err)
	}
	if diff := cmp.Diff([]string{"ALTER TABLE CHILD DROP CONSTRAINT FK_CHILD_T"}, sqlOf(disable)); diff != "" {
		t.Errorf("Disable() (-want +got):\n%s", diff)
	}

	want := []string{
		"CREATE TABLE T_NEW (\n  ID NUMBER(10) NOT NULL,\n  COL1 VARCHAR2(60),\n  AMOUNT NUMBER(10,2),\n  CREATED NUMBER(12)\n)",
		"INSERT INTO T_NEW (ID, COL1, AMOUNT, CREATED) SELECT ID, COL1, " +
			"CAST(TO_NUMBER(TRIM(AMOUNT) DEFAULT NULL ON CONVERSION ERROR) AS NUMBER(10,2)), NULL FROM T",
		"DROP TABLE T CASCADE CONSTRAINTS",
		"ALTER TABLE T_NEW RENAME TO T",
	}
	if diff := cmp.Diff(want, mustAlter(t, p)); diff != "" {
		t.Errorf("Alter() (-want +got):\n%s", diff)
	}

	keys, err := p.Keys()
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if diff := cmp.Diff([]string{"ALTER TABLE T ADD PRIMARY KEY (ID)"}, sqlOf(keys)); diff != "" {
		t.Errorf("Keys() (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ALTER TABLE T MODIFY AMOUNT NOT NULL"}, sqlOf(p.FlushDeferred())); diff != "" {
		t.Errorf("FlushDeferred() (-want +got):\n%s", diff)
	}

	enable, err := p.Enable()
	if err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	wantEnable := []string{"ALTER TABLE CHILD ADD CONSTRAINT FK_CHILD_T FOREIGN KEY (T_ID) REFERENCES T (ID)"}
	if diff := cmp.Diff(wantEnable, sqlOf(enable)); diff != "" {
		t.Errorf("Enable() (-want +got):\n%s", diff)
	}

	procedural, err := p.Procedural(context.Background(), desired, 2)
	if err != nil {
		t.Fatalf("Procedural() error: %v", err)
	}
	wantTrigger := []string{"CREATE OR REPLACE TRIGGER TR_T BEFORE INSERT ON T FOR EACH ROW\nBEGIN NULL; END;"}
	if diff := cmp.Diff(wantTrigger, sqlOf(procedural)); diff != "" {
		t.Errorf("Procedural() (-want +got):\n%s", diff)
	}
}

func TestCast(t *testing.T) {
	ora := NewOracle(Version{})
	ora121 := NewOracle(Version{Major: 12, Minor: 1})
	pg := NewPostgreSQL(Version{})
	col := func(typ model.Type, size, scale int) *model.Column {
		return &model.Column{Name: "C", Type: typ, Size: size, Scale: scale}
	}

	tests := []struct {
		name     string
		d        Dialect
		from, to *model.Column
		want     string
	}{
		{"same", ora, col(model.TypeVarchar, 10, 0), col(model.TypeVarchar, 20, 0), "C"},
		{"truncate", ora, col(model.TypeVarchar, 60, 0), col(model.TypeVarchar, 30, 0), "SUBSTR(C, 1, 30)"},
		{"number range", ora, col(model.TypeDecimal, 10, 2), col(model.TypeDecimal, 5, 2),
			"CASE WHEN ABS(C) < 1E3 THEN CAST(C AS NUMBER(5,2)) ELSE NULL END"},
		{"number to text", ora, col(model.TypeDecimal, 10, 0), col(model.TypeVarchar, 20, 0), "SUBSTR(TO_CHAR(C), 1, 20)"},
		{"number to text", pg, col(model.TypeDecimal, 10, 0), col(model.TypeVarchar, 20, 0), "CAST(C AS VARCHAR(20))"},
		{"text to number before 12.2", ora121, col(model.TypeVarchar, 20, 0), col(model.TypeDecimal, 10, 0),
			`CASE WHEN REGEXP_LIKE(TRIM(C), '^[-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?$') THEN CAST(TO_NUMBER(TRIM(C)) AS NUMBER(10)) ELSE NULL END`},
		{"clob to text", pg, col(model.TypeClob, 0, 0), col(model.TypeVarchar, 100, 0), "SUBSTR(C, 1, 100)"},
		{"clob to text", ora, col(model.TypeClob, 0, 0), col(model.TypeVarchar, 100, 0), "DBMS_LOB.SUBSTR(C, 100, 1)"},
		{"text to clob", ora, col(model.TypeVarchar, 10, 0), col(model.TypeClob, 0, 0), "TO_CLOB(C)"},
		{"timestamp to number", ora, col(model.TypeTimestamp, 0, 0), col(model.TypeDecimal, 12, 0), "NULL"},
		{"timestamp to number", pg, col(model.TypeTimestamp, 0, 0), col(model.TypeDecimal, 12, 0), "NULL"},
		{"blob to timestamp", pg, col(model.TypeBlob, 0, 0), col(model.TypeTimestamp, 0, 0), "NULL"},
		{"other types", ora,
			&model.Column{Name: "C", Type: model.TypeOther, NativeType: "XMLTYPE"},
			&model.Column{Name: "C", Type: model.TypeOther, NativeType: "SDO_GEOMETRY"}, "NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name()+" "+tt.name, func(t *testing.T) {
			if got := tt.d.Cast("C", tt.from, tt.to); got != tt.want {
				t.Errorf("Cast(%s -> %s) = %q, want %q", tt.from.Type, tt.to.Type, got, tt.want)
			}
		})
	}
}

func TestCommentFacts(t *testing.T) {
	db := parseModel(t, ordersModel)
	changes := []change.Change{
		&change.AddColumn{Table: "T", Column: &model.Column{
			Name: "NAME", Type: model.TypeNVarchar, Size: 40, OnCreateDefault: "'n/a'",
		}, Position: -1},
	}
	p := NewPlanner(NewPostgreSQL(Version{}), db, changes, nil)
	want := []string{
		"ALTER TABLE T ADD COLUMN NAME VARCHAR(40)",
		"COMMENT ON COLUMN T.NAME IS '$ntype::NAME:NVARCHAR$ocdefault::NAME:~qn/a~q'",
	}
	if diff := cmp.Diff(want, mustAlter(t, p)); diff != "" {
		t.Errorf("Alter() (-want +got):\n%s", diff)
	}
	defaults, err := p.Defaults()
	if err != nil {
		t.Fatalf("Defaults() error: %v", err)
	}
	if diff := cmp.Diff([]string{"UPDATE T SET NAME = 'n/a' WHERE NAME IS NULL"}, sqlOf(defaults)); diff != "" {
		t.Errorf("Defaults() (-want +got):\n%s", diff)
	}

	// what a catalog read of the migrated table returns
	read, err := p.Model().Clone()
	if err != nil {
		t.Fatalf("Clone() error: %v", err)
	}
	c := read.FindTable("T").FindColumn("NAME")
	c.Type, c.OnCreateDefault = model.TypeVarchar, ""
	RestoreFacts(read)
	if c.Type != model.TypeNVarchar || c.OnCreateDefault != "'n/a'" || c.Comment != "" {
		t.Errorf("restored column = %+v, want NVARCHAR with on-create default and no comment", c)
	}
}

func TestIndexFacts(t *testing.T) {
	db := parseModel(t, `
tables:
  - name: T
    comment: orders
    columns:
      - {name: STATUS, type: VARCHAR, size: 10}
`)
	ora := NewOracle(Version{})
	add := []change.Change{
		&change.AddIndex{Table: "T", Index: &model.Index{
			Name: "IX_T_STATUS", Columns: []model.IndexColumn{{Name: "STATUS"}}, Where: "STATUS = 'open'",
		}},
	}
	p := NewPlanner(ora, db, add, nil)
	wantAlter := []string{"COMMENT ON TABLE T IS 'orders$where:IX_T_STATUS::STATUS = ~qopen~q'"}
	if diff := cmp.Diff(wantAlter, mustAlter(t, p)); diff != "" {
		t.Errorf("Alter() (-want +got):\n%s", diff)
	}
	keys, err := p.Keys()
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if diff := cmp.Diff([]string{"CREATE INDEX IX_T_STATUS ON T (STATUS)"}, sqlOf(keys)); diff != "" {
		t.Errorf("Keys() (-want +got):\n%s", diff)
	}

	read, err := db.Clone()
	if err != nil {
		t.Fatalf("Clone() error: %v", err)
	}
	read.FindTable("T").FindIndex("IX_T_STATUS").Where = ""
	RestoreFacts(read)
	if got := read.FindTable("T"); got.Comment != "orders" || got.FindIndex("IX_T_STATUS").Where != "STATUS = 'open'" {
		t.Errorf("restored table comment %q, where %q", got.Comment, got.FindIndex("IX_T_STATUS").Where)
	}

	remove := []change.Change{&change.RemoveIndexChange{Table: "T", Index: "IX_T_STATUS"}}
	p = NewPlanner(ora, db, remove, nil)
	want := []string{
		"DROP INDEX IX_T_STATUS",
		"COMMENT ON TABLE T IS 'orders'",
	}
	if diff := cmp.Diff(want, mustAlter(t, p)); diff != "" {
		t.Errorf("Alter() after removal (-want +got):\n%s", diff)
	}
}
