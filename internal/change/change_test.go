package change

import (
	"errors"
	"testing"

	"github.com/Limetric/schemaferry/internal/model"
)

func testDB(t *testing.T) *model.Database {
	t.Helper()
	db, err := model.Parse([]byte(`
tables:
  - name: PARENT
    columns:
      - {name: ID, type: DECIMAL, size: 10, required: true, primary_key: true}
  - name: T
    columns:
      - {name: ID, type: DECIMAL, size: 10, required: true, primary_key: true}
      - {name: COL1, type: VARCHAR, size: 60}
      - {name: PARENT_ID, type: DECIMAL, size: 10}
    indexes:
      - {name: IX_T_COL1, columns: [{name: COL1}]}
    checks:
      - {name: CK_T_ID, condition: "ID > 0"}
triggers:
  - {name: TR_T, table: T, body: "BEGIN NULL; END;"}
functions:
  - {name: F, body: "BEGIN NULL; END;"}
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return db
}

func TestApplyMutatesModel(t *testing.T) {
	db := testDB(t)
	changes := []Change{
		&AddColumn{Table: "T", Column: &model.Column{Name: "NOTE", Type: model.TypeVarchar, Size: 20}, Position: 1},
		&ColumnSizeChange{Table: "T", Column: "COL1", OldSize: 60, NewSize: 70},
		&ColumnDataTypeChange{Table: "T", Column: "NOTE", OldType: model.TypeVarchar, NewType: model.TypeNVarchar, OldSize: 20, NewSize: 20},
		&ColumnRequiredChange{Table: "T", Column: "COL1", Required: true},
		&ColumnDefaultValueChange{Table: "T", Column: "COL1", Default: "'x'"},
		&ColumnOnCreateDefaultChange{Table: "T", Column: "NOTE", OnCreateDefault: "'n/a'"},
		&RemoveIndexChange{Table: "T", Index: "IX_T_COL1"},
		&RemoveCheckChange{Table: "T", Check: "CK_T_ID"},
		&AddForeignKey{Table: "T", ForeignKey: &model.ForeignKey{
			Name: "FK_T_PARENT", ForeignTable: "PARENT",
			References: []model.Reference{{Local: "PARENT_ID", Foreign: "ID"}},
		}},
		&RemoveTriggerChange{Table: "T", Trigger: "TR_T"},
		&RemoveFunction{Function: "F"},
	}
	if err := ApplyAll(db, changes); err != nil {
		t.Fatalf("ApplyAll() error: %v", err)
	}

	tbl := db.FindTable("T")
	if got := tbl.Columns[1].Name; got != "NOTE" {
		t.Errorf("column 1 = %q, want NOTE", got)
	}
	note := tbl.FindColumn("NOTE")
	if note.Type != model.TypeNVarchar || note.OnCreateDefault != "'n/a'" {
		t.Errorf("NOTE = %+v", note)
	}
	col1 := tbl.FindColumn("COL1")
	if col1.Size != 70 || !col1.Required || col1.Default != "'x'" {
		t.Errorf("COL1 = %+v", col1)
	}
	if tbl.FindIndex("IX_T_COL1") != nil || tbl.FindCheck("CK_T_ID") != nil {
		t.Error("removed index or check still present")
	}
	if fk := tbl.FindForeignKey("FK_T_PARENT"); fk == nil || fk.Target != db.FindTable("PARENT") {
		t.Errorf("foreign key not resolved: %+v", fk)
	}
	if db.FindTrigger("TR_T") != nil || db.FindFunction("F") != nil {
		t.Error("removed trigger or function still present")
	}
}

func TestApplyUnknownObject(t *testing.T) {
	tests := []Change{
		&RemoveColumn{Table: "T", Column: "NOPE"},
		&ColumnSizeChange{Table: "NOPE", Column: "ID"},
		&RemoveIndexChange{Table: "T", Index: "NOPE"},
		&RemoveTriggerChange{Table: "T", Trigger: "NOPE"},
		&RemoveFunction{Function: "NOPE"},
		&RemoveTable{Table: "NOPE"},
	}
	for _, c := range tests {
		err := c.Apply(testDB(t))
		if !errors.Is(err, ErrUnknownObject) {
			t.Errorf("%s: Apply() error = %v, want ErrUnknownObject", c, err)
		}
	}
}

func TestApplyRejectsDuplicates(t *testing.T) {
	db := testDB(t)
	err := (&AddColumn{Table: "T", Column: &model.Column{Name: "col1", Type: model.TypeChar}, Position: -1}).Apply(db)
	if !errors.Is(err, ErrExists) {
		t.Errorf("AddColumn(col1) error = %v, want ErrExists", err)
	}
	err = (&AddPrimaryKey{Table: "T", Columns: []string{"COL1"}}).Apply(db)
	if !errors.Is(err, ErrExists) {
		t.Errorf("AddPrimaryKey() error = %v, want ErrExists", err)
	}
}

func TestAddTableDropsForeignKeys(t *testing.T) {
	db := testDB(t)
	tbl := &model.Table{
		Name:    "CHILD",
		Columns: []*model.Column{{Name: "PARENT_ID", Type: model.TypeDecimal}},
		ForeignKeys: []*model.ForeignKey{{
			Name: "FK_CHILD", ForeignTable: "PARENT",
			References: []model.Reference{{Local: "PARENT_ID", Foreign: "ID"}},
		}},
	}
	if err := (&AddTable{Table: tbl}).Apply(db); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	got := db.FindTable("child")
	if got == nil || len(got.ForeignKeys) != 0 {
		t.Errorf("added table = %+v, want no foreign keys", got)
	}
	if len(tbl.ForeignKeys) != 1 {
		t.Error("Apply mutated the desired table")
	}
}

func TestRemoveTableClearsTriggersAndDeferred(t *testing.T) {
	db := testDB(t)
	db.DeferRequired("T", "COL1")
	if err := (&RemoveTable{Table: "t"}).Apply(db); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if db.FindTrigger("TR_T") != nil {
		t.Error("trigger survived table removal")
	}
	if len(db.Deferred()) != 0 {
		t.Errorf("Deferred() = %v, want empty", db.Deferred())
	}
}

func TestOptionalCancelsDeferred(t *testing.T) {
	db := testDB(t)
	db.DeferRequired("T", "COL1")
	if err := (&ColumnRequiredChange{Table: "T", Column: "COL1", Required: false}).Apply(db); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if db.IsDeferred("T", "COL1") {
		t.Error("optional column still deferred")
	}
}

type countingVisitor struct {
	Visitor
	removals int
}

func (v *countingVisitor) VisitRemoveIndexChange(*RemoveIndexChange) error { v.removals++; return nil }
func (v *countingVisitor) VisitRemoveCheckChange(*RemoveCheckChange) error { v.removals++; return nil }

func TestAcceptDispatches(t *testing.T) {
	v := &countingVisitor{}
	for _, c := range []Change{&RemoveIndexChange{}, &RemoveCheckChange{}} {
		if err := c.Accept(v); err != nil {
			t.Fatalf("Accept() error: %v", err)
		}
	}
	if v.removals != 2 {
		t.Errorf("removals = %d, want 2", v.removals)
	}
}
