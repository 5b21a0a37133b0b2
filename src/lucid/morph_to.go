package lucid

import (
	"context"

	"lucidodm/src/helpers"
)

// MorphTo is the owning side of MorphOne and MorphMany. The parent row names its owner
// type in typeField and the owner key in foreignKey; the type is resolved through the
// registry when the relation runs.
type MorphTo struct {
	parent     *Model
	foreignKey string
	typeField  string
}

// MorphTo declares a polymorphic owner. keys are the foreign key (parent_id) and the type
// field (determiner).
func (m *Model) MorphTo(keys ...string) *MorphTo {
	r := &MorphTo{parent: m, foreignKey: "parent_id", typeField: "determiner"}
	if len(keys) > 0 && keys[0] != "" {
		r.foreignKey = keys[0]
	}
	if len(keys) > 1 && keys[1] != "" {
		r.typeField = keys[1]
	}
	return r
}

func (r *MorphTo) Kind() Kind {
	return KindMorphTo
}

func (r *MorphTo) Parent() *Model {
	return r.parent
}

func (r *MorphTo) Singular() bool {
	return true
}

func (r *MorphTo) determiner(m *Model) string {
	s, _ := m.Attr(r.typeField).(string)
	return s
}

func (r *MorphTo) MapValues(parents []*Model) []interface{} {
	values := make([]interface{}, 0, len(parents))
	for _, p := range parents {
		if v := p.Attr(r.foreignKey); v != nil && r.determiner(p) != "" {
			values = append(values, v)
		}
	}
	return values
}

func (r *MorphTo) ParentIdentity(parent *Model) (string, bool) {
	v := parent.Attr(r.foreignKey)
	name := r.determiner(parent)
	if v == nil || name == "" {
		return "", false
	}
	return name + ":" + helpers.NormalizeKey(v), true
}

// Group keys owners by type name and primary key, matching ParentIdentity.
func (r *MorphTo) Group(rows []*Model) *GroupedResult {
	return groupSingle(rows, func(row *Model) (string, bool) {
		id := row.ID()
		if id == nil {
			return "", false
		}
		return row.typ.Name + ":" + helpers.NormalizeKey(id), true
	})
}

// EagerLoad runs one query per distinct owner type, in the order types are first seen.
func (r *MorphTo) EagerLoad(ctx context.Context, parents []*Model, constrain func(*Query)) ([]*Model, error) {
	var order []string
	keys := make(map[string][]interface{})
	for _, p := range parents {
		name := r.determiner(p)
		v := p.Attr(r.foreignKey)
		if name == "" || v == nil {
			continue
		}
		if _, seen := keys[name]; !seen {
			order = append(order, name)
		}
		keys[name] = append(keys[name], v)
	}

	var rows []*Model
	for _, name := range order {
		t, err := r.parent.typ.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		q := t.Query().Where(t.PrimaryKey, "in", uniqueKeys(keys[name]))
		q.parentName = r.parent.typ.Name
		if constrain != nil {
			constrain(q)
		}
		coll, err := q.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, coll.Rows...)
	}
	return rows, nil
}

// First resolves the owner of the parent row.
func (r *MorphTo) First(ctx context.Context) (*Model, error) {
	name := r.determiner(r.parent)
	v := r.parent.Attr(r.foreignKey)
	if name == "" || v == nil {
		return nil, unsavedModelInstance(r.parent.typ.Name)
	}
	t, err := r.parent.typ.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	q := t.Query().Where(t.PrimaryKey, v)
	q.parentName = r.parent.typ.Name
	return q.First(ctx)
}

func (r *MorphTo) Fetch(ctx context.Context) (*Model, error) {
	return r.First(ctx)
}
