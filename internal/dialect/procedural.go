package dialect

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Limetric/schemaferry/internal/model"
	"github.com/Limetric/schemaferry/internal/translate"
)

var errNoTranslator = errors.New("dialect translates stored code but the planner has no translator")

func routineSignature(f *model.Function) string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = string(p.Direction) + " " + p.Type.String()
	}
	return model.FoldName(f.Name) + "(" + strings.Join(parts, ",") + ")" + f.ReturnType.String()
}

func sameRoutine(a, b *model.Function) bool {
	if routineSignature(a) != routineSignature(b) || a.Body != b.Body {
		return false
	}
	for i := range a.Params {
		if a.Params[i].Default != b.Params[i].Default {
			return false
		}
	}
	return true
}

func sameTrigger(a, b *model.Trigger) bool {
	return strings.EqualFold(a.Timing, b.Timing) &&
		slices.Equal(a.Events, b.Events) &&
		a.ForEachRow == b.ForEachRow &&
		a.Body == b.Body &&
		model.FoldName(a.Table) == model.FoldName(b.Table)
}

// dropRoutine drops a function together with its forwarding overloads.
func (p *Planner) dropRoutine(f *model.Function) []string {
	out := p.d.DropFunction(f)
	if p.d.Translates() {
		for _, o := range translate.Overloads(f) {
			out = append(out, p.d.DropFunction(o)...)
		}
	}
	return out
}

func bodyKey(kind translate.Kind, name string) string {
	return kind.String() + ":" + name
}

// translateBodies translates the bodies of the routines and triggers about
// to be created on at most workers goroutines, keyed by bodyKey.
func (p *Planner) translateBodies(ctx context.Context, fns []*model.Function, trs []*model.Trigger, workers int) (map[string]string, error) {
	if !p.d.Translates() {
		return nil, nil
	}
	if p.translator == nil {
		return nil, errNoTranslator
	}
	todo := &model.Database{Functions: fns, Triggers: trs}
	results, err := p.translator.TranslateAll(ctx, todo, translate.OracleToPostgres, workers)
	if err != nil {
		return nil, fmt.Errorf("translate bodies: %w", err)
	}
	bodies := make(map[string]string, len(results))
	for _, r := range results {
		bodies[bodyKey(r.Kind, r.Name)] = r.Text
	}
	return bodies, nil
}

func (p *Planner) createRoutine(f *model.Function, bodies map[string]string) []string {
	if !p.d.Translates() {
		return p.d.CreateFunction(f, f.Body)
	}
	out := p.d.CreateFunction(f, bodies[bodyKey(translate.KindFunction, f.Name)])
	for _, o := range translate.Overloads(f) {
		out = append(out, p.d.CreateFunction(o, o.Body)...)
	}
	return out
}

func (p *Planner) createTrigger(tr *model.Trigger, bodies map[string]string) []string {
	if !p.d.Translates() {
		return p.d.CreateTrigger(tr, tr.Body)
	}
	return p.d.CreateTrigger(tr, bodies[bodyKey(translate.KindTrigger, tr.Name)])
}

// viewComments comments the views of the model whose desired comment
// differs. Views themselves are neither created nor dropped.
func (p *Planner) viewComments(out *[]Statement, desired *model.Database) error {
	for _, want := range desired.Views {
		v := p.db.FindView(want.Name)
		if v == nil || v.Comment == want.Comment {
			continue
		}
		text, err := Comment{Text: want.Comment}.EncodeWithin(p.d.CommentCapacity())
		if err != nil {
			return fmt.Errorf("comment on %s: %w", v.Name, err)
		}
		v.Comment = want.Comment
		cp := *v
		cp.Comment = text
		p.stmt(out, PhaseProcedural, v.Name, "comment view", CommentOnView(p.d, &cp))
	}
	return nil
}

// Procedural returns the statements that bring functions and triggers to
// their desired form: drops of removed routines and stale signatures, then
// creates for new or changed routines and for triggers lost with a
// recreated table, then comments of existing views. Stored bodies are kept
// in PL/SQL form and translated on at most workers goroutines for backends
// that need it. The model's routines are replaced by the desired ones.
func (p *Planner) Procedural(ctx context.Context, desired *model.Database, workers int) ([]Statement, error) {
	p.plan()
	if p.err != nil {
		return nil, p.err
	}
	var out []Statement
	seen := make(map[string]bool)
	for _, s := range p.routines {
		if !seen[s.SQL] {
			seen[s.SQL] = true
			out = append(out, s)
		}
	}

	wanted := make(map[string]*model.Function)
	for _, f := range desired.Functions {
		wanted[routineSignature(f)] = f
	}
	for _, f := range p.db.Functions {
		if _, ok := wanted[routineSignature(f)]; ok {
			continue
		}
		for _, sql := range p.dropRoutine(f) {
			if !seen[sql] {
				seen[sql] = true
				p.stmt(&out, PhaseProcedural, f.Name, "drop "+f.Name, sql)
			}
		}
	}

	current := make(map[string]*model.Function)
	for _, f := range p.db.Functions {
		current[routineSignature(f)] = f
	}
	var fns []*model.Function
	for _, f := range desired.Functions {
		if old, ok := current[routineSignature(f)]; ok && sameRoutine(old, f) {
			continue
		}
		fns = append(fns, f)
	}
	var trs []*model.Trigger
	for _, tr := range desired.Triggers {
		old := p.db.FindTrigger(tr.Name)
		if old != nil && sameTrigger(old, tr) && !p.isRecreated(tr.Table) {
			continue
		}
		trs = append(trs, tr)
	}

	if len(fns)+len(trs) > 0 {
		bodies, err := p.translateBodies(ctx, fns, trs, workers)
		if err != nil {
			return nil, err
		}
		for _, f := range fns {
			p.stmts(&out, PhaseProcedural, f.Name, "create "+f.Name, p.createRoutine(f, bodies))
		}
		for _, tr := range trs {
			p.stmts(&out, PhaseProcedural, tr.Name, "create trigger "+tr.Name, p.createTrigger(tr, bodies))
		}
	}
	if err := p.viewComments(&out, desired); err != nil {
		return nil, err
	}

	p.db.Functions = p.db.Functions[:0]
	for _, f := range desired.Functions {
		cp := *f
		cp.Params = slices.Clone(f.Params)
		p.db.Functions = append(p.db.Functions, &cp)
	}
	p.db.Triggers = p.db.Triggers[:0]
	for _, tr := range desired.Triggers {
		cp := *tr
		cp.Events = slices.Clone(tr.Events)
		p.db.Triggers = append(p.db.Triggers, &cp)
	}
	return out, nil
}
