// Package translate rewrites stored function and trigger bodies between
// PL/SQL and PL/pgSQL.
//
// A translation masks literals, quoted identifiers and comments, runs an
// ordered pipeline of text rules for the direction and object kind, then
// restores the masked text. Pipelines are built once per Translator and
// never modified, so one Translator may be used from many goroutines.
package translate

import (
	"fmt"

	"github.com/Limetric/schemaferry/internal/model"
)

// Direction is a source -> target dialect pair.
type Direction int

const (
	OracleToPostgres Direction = iota
	PostgresToOracle
)

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == OracleToPostgres {
		return PostgresToOracle
	}
	return OracleToPostgres
}

func (d Direction) String() string {
	switch d {
	case OracleToPostgres:
		return "oracle->postgres"
	case PostgresToOracle:
		return "postgres->oracle"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection accepts "oracle->postgres", "postgres->oracle" and the
// short forms "o2p" and "p2o".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "oracle->postgres", "o2p":
		return OracleToPostgres, nil
	case "postgres->oracle", "p2o":
		return PostgresToOracle, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Kind is the kind of stored object a body belongs to.
type Kind int

const (
	KindFunction Kind = iota
	KindTrigger
)

func (k Kind) String() string {
	if k == KindTrigger {
		return "trigger"
	}
	return "function"
}

// State is how far an object has moved through one translation cycle.
type State int

const (
	Untranslated State = iota
	Masked
	Rewritten
	Unmasked
	Verified
	Flagged
)

var stateNames = [...]string{"untranslated", "masked", "rewritten", "unmasked", "verified", "flagged"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Resolver looks up routines by name. *model.Database satisfies it.
type Resolver interface {
	FindFunction(name string) *model.Function
}

// Object is one function or trigger body to translate.
type Object struct {
	Kind Kind
	Name string
	Body string
}

// Result is a translated object.
type Result struct {
	Object
	Text  string
	State State
}

type pipelineKey struct {
	dir  Direction
	kind Kind
}

// Translator owns the rule pipelines for both directions and both kinds.
type Translator struct {
	resolver  Resolver
	pipelines map[pipelineKey]*Pipeline
}

// New builds a Translator. The resolver is used to tell procedures with
// output parameters apart from other calls; it may be nil.
func New(resolver Resolver) *Translator {
	t := &Translator{resolver: resolver, pipelines: make(map[pipelineKey]*Pipeline)}
	for _, dir := range []Direction{OracleToPostgres, PostgresToOracle} {
		for _, kind := range []Kind{KindFunction, KindTrigger} {
			t.pipelines[pipelineKey{dir, kind}] = buildPipeline(dir, kind, resolver)
		}
	}
	return t
}

// Pipeline returns the rules applied for dir and kind.
func (t *Translator) Pipeline(dir Direction, kind Kind) *Pipeline {
	return t.pipelines[pipelineKey{dir, kind}]
}

// Translate rewrites obj's body in direction dir.
func (t *Translator) Translate(obj Object, dir Direction) Result {
	res := Result{Object: obj, State: Untranslated}
	mask, src := NewMask(obj.Body)
	res.State = Masked
	ctx := &Context{Mask: mask, Name: obj.Name, Kind: obj.Kind, Resolver: t.resolver}
	src = t.Pipeline(dir, obj.Kind).Run(src, ctx)
	res.State = Rewritten
	res.Text = mask.Unmask(src)
	res.State = Unmasked
	return res
}

// Body translates a bare body.
func (t *Translator) Body(body string, kind Kind, name string, dir Direction) string {
	return t.Translate(Object{Kind: kind, Name: name, Body: body}, dir).Text
}
