package dialect

import (
	"github.com/Limetric/schemaferry/internal/change"
	"github.com/Limetric/schemaferry/internal/model"
)

// Transition is a type change a backend performs in place, from MinVersion on.
type Transition struct {
	From, To   model.Type
	MinVersion Version
}

// Resizable is a type whose size changes in place when non-narrowing.
type Resizable struct {
	Type model.Type
	// AllowScaleChange permits a non-decreasing numeric scale change in place.
	AllowScaleChange bool
	// Unbounded types carry no size in DDL: any size change is a no-op.
	Unbounded  bool
	MinVersion Version
}

// AllowList is the versioned table of safe in-place changes.
type AllowList struct {
	Transitions []Transition
	Resizable   []Resizable
}

func (a *AllowList) transition(from, to model.Type, v Version) bool {
	for _, t := range a.Transitions {
		if t.From == from && t.To == to && v.AtLeast(t.MinVersion) {
			return true
		}
	}
	return false
}

func (a *AllowList) resizable(t model.Type, v Version) (Resizable, bool) {
	for _, r := range a.Resizable {
		if r.Type == t && v.AtLeast(r.MinVersion) {
			return r, true
		}
	}
	return Resizable{}, false
}

// RequiresRecreation reports whether c can only be carried out by rebuilding
// its table on d. It looks at the change alone and emits nothing.
func RequiresRecreation(d Dialect, c change.Change) bool {
	switch c := c.(type) {
	case *change.ColumnSizeChange:
		return !resizeInPlace(d, c.Type, c.OldSize, c.OldScale, c.NewSize, c.NewScale)
	case *change.ColumnDataTypeChange:
		if c.OldType == c.NewType {
			return !resizeInPlace(d, c.NewType, c.OldSize, c.OldScale, c.NewSize, c.NewScale)
		}
		if !d.AllowList().transition(c.OldType, c.NewType, d.Version()) {
			return true
		}
		return narrower(c.OldSize, c.NewSize)
	}
	return false
}

func resizeInPlace(d Dialect, t model.Type, oldSize, oldScale, newSize, newScale int) bool {
	r, ok := d.AllowList().resizable(t, d.Version())
	if !ok {
		return oldSize == newSize && oldScale == newScale
	}
	if r.Unbounded {
		return true
	}
	if narrower(oldSize, newSize) {
		return false
	}
	if t == model.TypeDecimal {
		if newScale < oldScale {
			return false
		}
		if newScale != oldScale && !r.AllowScaleChange {
			return false
		}
	}
	return true
}

// narrower reports whether newSize is smaller than oldSize; 0 is unbounded.
func narrower(oldSize, newSize int) bool {
	if newSize == 0 {
		return false
	}
	return oldSize == 0 || newSize < oldSize
}

// RecreatedTables returns the names of tables with at least one change that
// requires recreation, in first-seen order.
func RecreatedTables(d Dialect, changes []change.Change) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range changes {
		if !RequiresRecreation(d, c) {
			continue
		}
		name := c.TableName()
		key := model.FoldName(name)
		if !seen[key] {
			seen[key] = true
			out = append(out, name)
		}
	}
	return out
}

func oracleAllowList() *AllowList {
	return &AllowList{
		Transitions: []Transition{
			{From: model.TypeVarchar, To: model.TypeNVarchar},
			{From: model.TypeChar, To: model.TypeNChar},
		},
		Resizable: []Resizable{
			{Type: model.TypeVarchar},
			{Type: model.TypeNVarchar},
			{Type: model.TypeChar},
			{Type: model.TypeNChar},
			{Type: model.TypeBinary},
			{Type: model.TypeDecimal, AllowScaleChange: true},
			{Type: model.TypeClob, Unbounded: true},
			{Type: model.TypeBlob, Unbounded: true},
		},
	}
}

func postgresAllowList() *AllowList {
	return &AllowList{
		Transitions: []Transition{
			// same native type, the national flag is a comment fact
			{From: model.TypeVarchar, To: model.TypeNVarchar},
			{From: model.TypeChar, To: model.TypeNChar},
		},
		Resizable: []Resizable{
			{Type: model.TypeVarchar},
			{Type: model.TypeNVarchar},
			{Type: model.TypeChar},
			{Type: model.TypeNChar},
			{Type: model.TypeDecimal, MinVersion: Version{Major: 9, Minor: 2}},
			{Type: model.TypeBinary, Unbounded: true},
			{Type: model.TypeClob, Unbounded: true},
			{Type: model.TypeBlob, Unbounded: true},
		},
	}
}
