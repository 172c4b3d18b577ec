package translate

import (
	"strings"

	"github.com/Limetric/schemaferry/internal/model"
)

// Overloads returns the PL/pgSQL forwarding overloads that stand in for
// PL/SQL parameter defaults: one per suffix of trailing input parameters
// that carry a default, shortest first. Each overload passes its own
// arguments plus the omitted defaults to the full form. Output parameters
// are kept.
func Overloads(f *model.Function) []*model.Function {
	var inputs []int
	for i, p := range f.Params {
		if !p.IsOut() {
			inputs = append(inputs, i)
		}
	}
	trailing := 0
	for j := len(inputs) - 1; j >= 0 && f.Params[inputs[j]].Default != ""; j-- {
		trailing++
	}

	var out []*model.Function
	for keep := len(inputs) - trailing; keep < len(inputs); keep++ {
		omitted := make(map[int]bool)
		for _, i := range inputs[keep:] {
			omitted[i] = true
		}
		o := &model.Function{Name: f.Name, ReturnType: f.ReturnType}
		var args, outs []string
		for i, p := range f.Params {
			switch {
			case omitted[i]:
				args = append(args, defaultToPostgres(p.Default))
			case p.IsOut():
				outs = append(outs, p.Name)
				o.Params = append(o.Params, model.Param{Name: p.Name, Type: p.Type, Direction: p.Direction})
			default:
				args = append(args, p.Name)
				o.Params = append(o.Params, model.Param{Name: p.Name, Type: p.Type, Direction: p.Direction})
			}
		}
		o.Body = forward(f, args, outs)
		out = append(out, o)
	}
	return out
}

func forward(f *model.Function, args, outs []string) string {
	call := f.Name + "(" + strings.Join(args, ", ") + ")"
	switch {
	case !f.IsProcedure():
		return "BEGIN\n  RETURN " + call + ";\nEND;"
	case len(outs) > 0:
		return "BEGIN\n  SELECT * INTO " + strings.Join(outs, ", ") + " FROM " + call + ";\nEND;"
	}
	return "BEGIN\n  PERFORM " + call + ";\nEND;"
}

var dateDefaults = swaps(datesToPostgres)

// defaultToPostgres rewrites the date functions a parameter default may use.
func defaultToPostgres(expr string) string {
	mask, src := NewMask(expr)
	return mask.Unmask(dateDefaults(src, nil))
}
