package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Limetric/schemaferry/internal/backend"
	"github.com/Limetric/schemaferry/internal/dialect"
	"github.com/Limetric/schemaferry/internal/translate"
)

const currentOrders = `
tables:
  - name: T
    columns:
      - {name: ID, type: DECIMAL, size: 10, required: true, primary_key: true}
      - {name: COL1, type: VARCHAR, size: 60}
      - {name: X, type: VARCHAR, size: 10}
      - {name: Y, type: VARCHAR, size: 10}
`

const desiredOrders = `
tables:
  - name: T
    columns:
      - {name: ID, type: DECIMAL, size: 10, required: true, primary_key: true}
      - {name: COL1, type: VARCHAR, size: 70}
      - {name: Y, type: VARCHAR, size: 10}
      - {name: STATUS, type: VARCHAR, size: 10, required: true, default: "'new'"}
`

var oracleOrdersPlan = []string{
	"ALTER TABLE T DROP (X)",
	"ALTER TABLE T MODIFY COL1 VARCHAR2(70)",
	"ALTER TABLE T ADD (STATUS VARCHAR2(10) DEFAULT 'new')",
	"fix_status.sql",
	"UPDATE T SET STATUS = 'new' WHERE STATUS IS NULL",
	"ALTER TABLE T MODIFY STATUS NOT NULL",
}

type fakeObserver struct {
	statements []string
	failed     []string
	recreated  []string
	flagged    []string
}

func (o *fakeObserver) Statement(_ context.Context, s dialect.Statement, err error) {
	o.statements = append(o.statements, s.SQL)
	if err != nil {
		o.failed = append(o.failed, s.SQL)
	}
}

func (o *fakeObserver) Recreated(_ context.Context, table string) {
	o.recreated = append(o.recreated, table)
}

func (o *fakeObserver) Flagged(_ context.Context, inc translate.Inconsistency) {
	o.flagged = append(o.flagged, inc.Name)
}

func failOn(fragments ...string) func(string) error {
	return func(sql string) error {
		for _, f := range fragments {
			if strings.Contains(sql, f) {
				return errors.New("rejected")
			}
		}
		return nil
	}
}

func hookScript() Script {
	return Script{Name: "fix_status.sql", Statements: []string{"fix_status.sql"}}
}

func TestRunPhaseOrder(t *testing.T) {
	rec := &backend.Recorder{}
	obs := &fakeObserver{}
	m := New(dialect.NewOracle(dialect.Version{}), rec, Options{
		BeforeBackfill: []Script{hookScript()},
		Observers:      []Observer{obs},
	})
	old := parseModel(t, currentOrders)
	report, err := m.Run(context.Background(), old, parseModel(t, desiredOrders))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if diff := cmp.Diff(oracleOrdersPlan, rec.Statements()); diff != "" {
		t.Errorf("executed statements (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(oracleOrdersPlan, obs.statements); diff != "" {
		t.Errorf("observed statements (-want +got):\n%s", diff)
	}
	if len(report.Changes) != 3 {
		t.Errorf("Run() planned %d changes, want 3", len(report.Changes))
	}
	if old.FindTable("T").FindColumn("X") == nil {
		t.Errorf("Run() modified the current model")
	}
	if report.Model.FindTable("T").FindColumn("STATUS") == nil {
		t.Errorf("working model lacks the added column")
	}
	if d := report.Model.Deferred(); len(d) != 0 {
		t.Errorf("deferred register = %v after the run, want empty", d)
	}
}

func TestRunStrictStops(t *testing.T) {
	rec := &backend.Recorder{Fail: failOn("MODIFY COL1")}
	m := New(dialect.NewOracle(dialect.Version{}), rec, Options{})
	report, err := m.Run(context.Background(), parseModel(t, currentOrders), parseModel(t, desiredOrders))

	var serr *StatementError
	if !errors.As(err, &serr) {
		t.Fatalf("Run() error = %v, want *StatementError", err)
	}
	if serr.Statement.SQL != "ALTER TABLE T MODIFY COL1 VARCHAR2(70)" {
		t.Errorf("failed statement = %q", serr.Statement.SQL)
	}
	if !strings.Contains(err.Error(), "SQL: ALTER TABLE T MODIFY COL1") {
		t.Errorf("error %q does not carry the statement", err)
	}
	if diff := cmp.Diff(oracleOrdersPlan[:2], rec.Statements()); diff != "" {
		t.Errorf("executed statements (-want +got):\n%s", diff)
	}
	if len(report.Failures) != 0 {
		t.Errorf("strict run collected failures: %v", report.Failures)
	}
}

func TestRunContinueOnError(t *testing.T) {
	rec := &backend.Recorder{Fail: failOn("MODIFY COL1", "UPDATE T")}
	obs := &fakeObserver{}
	m := New(dialect.NewOracle(dialect.Version{}), rec, Options{
		ContinueOnError: true,
		BeforeBackfill:  []Script{hookScript()},
		Observers:       []Observer{obs},
	})
	report, err := m.Run(context.Background(), parseModel(t, currentOrders), parseModel(t, desiredOrders))
	if err == nil {
		t.Fatal("Run() error = nil, want the joined failures")
	}
	if diff := cmp.Diff(oracleOrdersPlan, rec.Statements()); diff != "" {
		t.Errorf("executed statements (-want +got):\n%s", diff)
	}

	var got []string
	for _, f := range report.Failures {
		got = append(got, f.Statement.SQL)
	}
	want := []string{
		"ALTER TABLE T MODIFY COL1 VARCHAR2(70)",
		"UPDATE T SET STATUS = 'new' WHERE STATUS IS NULL",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Failures (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, obs.failed); diff != "" {
		t.Errorf("observed failures (-want +got):\n%s", diff)
	}
	for _, w := range want {
		if !strings.Contains(err.Error(), w) {
			t.Errorf("error %q does not mention %q", err, w)
		}
	}
}

func TestRunHookFailureStops(t *testing.T) {
	rec := &backend.Recorder{Fail: failOn("fix_status")}
	m := New(dialect.NewOracle(dialect.Version{}), rec, Options{BeforeBackfill: []Script{hookScript()}})
	_, err := m.Run(context.Background(), parseModel(t, currentOrders), parseModel(t, desiredOrders))
	var serr *StatementError
	if !errors.As(err, &serr) {
		t.Fatalf("Run() error = %v, want *StatementError", err)
	}
	if serr.Statement.Object != "fix_status.sql" {
		t.Errorf("failed statement object = %q, want the script name", serr.Statement.Object)
	}
	if n := len(rec.Statements()); n != 4 {
		t.Errorf("executed %d statements, want 4", n)
	}
}

func TestRunRecreation(t *testing.T) {
	desired := strings.Replace(currentOrders, "{name: COL1, type: VARCHAR, size: 60}", "{name: COL1, type: VARCHAR, size: 20}", 1)
	obs := &fakeObserver{}
	m := New(dialect.NewPostgreSQL(dialect.Version{Major: 16}), &backend.Recorder{}, Options{Observers: []Observer{obs}})
	report, err := m.Run(context.Background(), parseModel(t, currentOrders), parseModel(t, desired))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if diff := cmp.Diff([]string{"T"}, obs.recreated); diff != "" {
		t.Errorf("observed recreations (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"T"}, report.Recreated); diff != "" {
		t.Errorf("Recreated (-want +got):\n%s", diff)
	}
	var sawInsert bool
	for _, s := range report.Statements {
		if strings.HasPrefix(s.SQL, "INSERT INTO T_NEW") {
			sawInsert = true
		}
	}
	if !sawInsert {
		t.Errorf("recreation did not copy rows: %q", report.Statements)
	}
}

const routinesWithOriginals = `
tables:
  - name: T
    columns:
      - {name: ID, type: DECIMAL, size: 10, required: true, primary_key: true}
functions:
  - {name: noop, body: "BEGIN NULL; END;", original_body: "BEGIN NULL; END;"}
  - {name: drifted, body: "BEGIN NULL; END;", original_body: "BEGIN PERFORM 1; END;"}
`

func TestRunVerifyFlags(t *testing.T) {
	obs := &fakeObserver{}
	rec := &backend.Recorder{}
	m := New(dialect.NewPostgreSQL(dialect.Version{}), rec, Options{
		Verify:    true,
		Workers:   2,
		Observers: []Observer{obs},
	})
	report, err := m.Run(context.Background(), parseModel(t, currentOrders), parseModel(t, routinesWithOriginals))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if diff := cmp.Diff([]string{"drifted"}, obs.flagged); diff != "" {
		t.Errorf("flagged (-want +got):\n%s", diff)
	}
	if len(report.Inconsistencies) != 1 {
		t.Errorf("Inconsistencies = %v, want one", report.Inconsistencies)
	}
}

func TestRunVerifySkippedOnOracle(t *testing.T) {
	obs := &fakeObserver{}
	m := New(dialect.NewOracle(dialect.Version{}), &backend.Recorder{}, Options{Verify: true, Observers: []Observer{obs}})
	report, err := m.Run(context.Background(), parseModel(t, currentOrders), parseModel(t, routinesWithOriginals))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(obs.flagged) != 0 || len(report.Inconsistencies) != 0 {
		t.Errorf("Oracle run flagged %v", obs.flagged)
	}
}

func TestPlanDoesNotExecute(t *testing.T) {
	rec := &backend.Recorder{Fail: failOn("")}
	obs := &fakeObserver{}
	m := New(dialect.NewOracle(dialect.Version{}), rec, Options{
		BeforeBackfill: []Script{hookScript()},
		Observers:      []Observer{obs},
	})
	report, err := m.Plan(context.Background(), parseModel(t, currentOrders), parseModel(t, desiredOrders))
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	var got []string
	for _, s := range report.Statements {
		got = append(got, s.SQL)
	}
	want := append(append([]string{}, oracleOrdersPlan[:3]...), oracleOrdersPlan[4:]...)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Plan() (-want +got):\n%s", diff)
	}
	if n := len(rec.Statements()); n != 0 {
		t.Errorf("Plan() executed %d statements", n)
	}
	if len(obs.statements) != 0 {
		t.Errorf("Plan() notified observers")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &backend.Recorder{}
	m := New(dialect.NewOracle(dialect.Version{}), rec, Options{})
	if _, err := m.Run(ctx, parseModel(t, currentOrders), parseModel(t, desiredOrders)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if n := len(rec.Statements()); n != 0 {
		t.Errorf("cancelled run executed %d statements", n)
	}
}

func TestRunViewComments(t *testing.T) {
	const views = `
views:
  - {name: OPEN_ORDERS, definition: "SELECT ID FROM T", comment: %q}
`
	old := parseModel(t, currentOrders+fmt.Sprintf(views, "old"))
	desired := parseModel(t, currentOrders+fmt.Sprintf(views, "orders not yet shipped"))
	rec := &backend.Recorder{}
	report, err := New(dialect.NewOracle(dialect.Version{}), rec, Options{Workers: 2}).Run(context.Background(), old, desired)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	want := []string{"COMMENT ON TABLE OPEN_ORDERS IS 'orders not yet shipped'"}
	if diff := cmp.Diff(want, rec.Statements()); diff != "" {
		t.Errorf("executed statements (-want +got):\n%s", diff)
	}
	if c := report.Model.FindView("OPEN_ORDERS").Comment; c != "orders not yet shipped" {
		t.Errorf("working model view comment = %q", c)
	}
}
