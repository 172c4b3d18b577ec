package dialect

import (
	"fmt"
	"strings"

	"github.com/Limetric/schemaferry/internal/model"
)

// columnFacts returns the facts d must keep in the column's comment.
func columnFacts(d Dialect, c *model.Column) []Fact {
	var facts []Fact
	if d.EncodesNationalType() && c.Type.IsNational() {
		facts = append(facts, Fact{Kind: FactNationalType, Column: c.Name, Value: c.Type.String()})
	}
	if c.OnCreateDefault != "" {
		facts = append(facts, Fact{Kind: FactOnCreateDefault, Column: c.Name, Value: c.OnCreateDefault})
	}
	return facts
}

// indexFacts returns the facts d must keep in the table comment for idx.
func indexFacts(d Dialect, idx *model.Index) []Fact {
	if !d.EncodesIndexMetadata() {
		return nil
	}
	var facts []Fact
	for _, c := range idx.Columns {
		if c.OperatorClass != "" {
			facts = append(facts, Fact{Kind: FactOperatorClass, Object: idx.Name, Column: c.Name, Value: c.OperatorClass})
		}
	}
	if idx.Where != "" {
		facts = append(facts, Fact{Kind: FactWhere, Object: idx.Name, Value: idx.Where})
	}
	if idx.ContainsSearch {
		facts = append(facts, Fact{Kind: FactContains, Object: idx.Name, Value: "true"})
	}
	return facts
}

func (p *Planner) needsColumnComment(c *model.Column) bool {
	return c.Comment != "" || len(columnFacts(p.d, c)) > 0
}

// columnComment merges the column's facts into its existing comment and
// stores the encoded result back on the column.
func (p *Planner) columnComment(t *model.Table, c *model.Column) (string, error) {
	cm := DecodeComment(c.Comment)
	cm.Remove(FactNationalType, "", c.Name)
	cm.Remove(FactOnCreateDefault, "", c.Name)
	for _, f := range columnFacts(p.d, c) {
		cm.Upsert(f)
	}
	text, err := cm.EncodeWithin(p.d.CommentCapacity())
	if err != nil {
		return "", fmt.Errorf("comment on %s.%s: %w", t.Name, c.Name, err)
	}
	c.Comment = text
	return text, nil
}

// tableComment drops the facts of removed indexes, refreshes those of the
// current ones and keeps everything else.
func (p *Planner) tableComment(t *model.Table) (string, error) {
	cm := DecodeComment(t.Comment)
	for _, name := range p.removedIdx[model.FoldName(t.Name)] {
		cm.RemoveObject(name)
	}
	for _, idx := range t.Indexes {
		cm.RemoveObject(idx.Name)
		for _, f := range indexFacts(p.d, idx) {
			cm.Upsert(f)
		}
	}
	text, err := cm.EncodeWithin(p.d.CommentCapacity())
	if err != nil {
		return "", fmt.Errorf("comment on %s: %w", t.Name, err)
	}
	t.Comment = text
	return text, nil
}

// RestoreFacts decodes comments read back from a database and moves the
// encoded facts into the model fields native DDL could not carry. Comments
// are left holding their free text only.
func RestoreFacts(db *model.Database) {
	for _, t := range db.Tables {
		cm := DecodeComment(t.Comment)
		for _, idx := range t.Indexes {
			for _, f := range cm.ObjectFacts(idx.Name) {
				switch f.Kind {
				case FactOperatorClass:
					for i := range idx.Columns {
						if t.SameName(idx.Columns[i].Name, f.Column) {
							idx.Columns[i].OperatorClass = f.Value
						}
					}
				case FactWhere:
					idx.Where = f.Value
				case FactContains:
					idx.ContainsSearch = strings.EqualFold(f.Value, "true")
				}
			}
		}
		t.Comment = cm.Text
		for _, c := range t.Columns {
			restoreColumn(c)
		}
	}
	for _, v := range db.Views {
		v.Comment = DecodeComment(v.Comment).Text
	}
}

func restoreColumn(c *model.Column) {
	cm := DecodeComment(c.Comment)
	if v, ok := cm.Lookup(FactNationalType, "", c.Name); ok {
		if nt, err := model.ParseType(v); err == nil && nt.IsNational() {
			switch {
			case c.Type == model.TypeVarchar && nt == model.TypeNVarchar,
				c.Type == model.TypeChar && nt == model.TypeNChar:
				c.Type = nt
			}
		}
	}
	if v, ok := cm.Lookup(FactOnCreateDefault, "", c.Name); ok {
		c.OnCreateDefault = v
	}
	c.Comment = cm.Text
}
