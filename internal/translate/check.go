package translate

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"runtime"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/Limetric/schemaferry/internal/model"
)

var spaceAroundPunct = regexp.MustCompile(`\s*([(),;])\s*`)

// Normalize collapses whitespace outside literals and comments and drops it
// around parentheses, commas and semicolons.
func Normalize(s string) string {
	mask, src := NewMask(s)
	src = strings.Join(strings.Fields(src), " ")
	src = spaceAroundPunct.ReplaceAllString(src, "${1}")
	return mask.Unmask(src)
}

// Fingerprint hashes the normalized form of s.
func Fingerprint(s string) uint64 {
	return xxh3.HashString(Normalize(s))
}

// Equivalent reports whether a and b differ only in whitespace.
func Equivalent(a, b string) bool {
	return Fingerprint(a) == Fingerprint(b)
}

// Inconsistency is an object whose translated body no longer matches the
// last known-good body in the target dialect.
type Inconsistency struct {
	Kind     Kind
	Name     string
	Expected string
	Actual   string
	Diff     string
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("%s %s: translated body differs from last known-good body", i.Kind, i.Name)
}

func bodyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func objects(db *model.Database) []Object {
	var objs []Object
	for _, f := range db.Functions {
		objs = append(objs, Object{Kind: KindFunction, Name: f.Name, Body: f.Body})
	}
	for _, tr := range db.Triggers {
		objs = append(objs, Object{Kind: KindTrigger, Name: tr.Name, Body: tr.Body})
	}
	return objs
}

func originals(db *model.Database) []string {
	var out []string
	for _, f := range db.Functions {
		out = append(out, f.OriginalBody)
	}
	for _, tr := range db.Triggers {
		out = append(out, tr.OriginalBody)
	}
	return out
}

func workerLimit(workers int) int {
	if workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return workers
}

// TranslateAll translates every function and trigger body of db in
// direction dir on at most workers goroutines. Results keep the model's
// order: functions, then triggers. db is only read.
func (t *Translator) TranslateAll(ctx context.Context, db *model.Database, dir Direction, workers int) ([]Result, error) {
	objs := objects(db)
	results := make([]Result, len(objs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(workers))
	for i, obj := range objs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = t.Translate(obj, dir)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Check translates every function and trigger of db in direction dir and
// compares the result, ignoring whitespace, against the object's original
// body. Objects without an original body are skipped. Mismatches are
// logged with a diff and returned; they never fail the caller. The error
// is only set when ctx is cancelled.
func (t *Translator) Check(ctx context.Context, db *model.Database, dir Direction, workers int) ([]Inconsistency, error) {
	objs := objects(db)
	wants := originals(db)

	found := make([]*Inconsistency, len(objs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit(workers))
	for i, obj := range objs {
		if wants[i] == "" {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := t.Translate(obj, dir)
			if Fingerprint(res.Text) == Fingerprint(wants[i]) {
				return nil
			}
			found[i] = &Inconsistency{
				Kind:     obj.Kind,
				Name:     obj.Name,
				Expected: wants[i],
				Actual:   res.Text,
				Diff:     cmp.Diff(bodyLines(wants[i]), bodyLines(res.Text)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Inconsistency
	for _, inc := range found {
		if inc == nil {
			continue
		}
		log.Printf("  %s (-last known-good +translated):\n%s", inc, inc.Diff)
		out = append(out, *inc)
	}
	return out, nil
}

// States returns the terminal state of every checked object: Verified when
// it matched, Flagged when it is among incs.
func States(db *model.Database, incs []Inconsistency) map[string]State {
	flagged := make(map[string]bool, len(incs))
	for _, inc := range incs {
		flagged[inc.Kind.String()+":"+inc.Name] = true
	}
	wants := originals(db)
	states := make(map[string]State)
	for i, obj := range objects(db) {
		key := obj.Kind.String() + ":" + obj.Name
		switch {
		case flagged[key]:
			states[key] = Flagged
		case wants[i] != "":
			states[key] = Verified
		default:
			states[key] = Unmasked
		}
	}
	return states
}
