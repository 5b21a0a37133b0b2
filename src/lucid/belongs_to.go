package lucid

import (
	"context"

	"lucidodm/src/helpers"
)

// BelongsTo is the inverse of HasOne and HasMany: the parent stores the key of the
// related row.
type BelongsTo struct {
	parent     *Model
	related    *ModelType
	foreignKey string
	otherKey   string
	query      *Query
}

// BelongsTo declares the owning side. keys are the foreign key on the parent
// (<related>_id by default) and the key it references (related primary key by default).
func (m *Model) BelongsTo(related *ModelType, keys ...string) *BelongsTo {
	r := &BelongsTo{
		parent:     m,
		related:    related,
		foreignKey: helpers.ForeignKeyName(related.Name),
		otherKey:   related.PrimaryKey,
		query:      related.Query(),
	}
	if len(keys) > 0 && keys[0] != "" {
		r.foreignKey = keys[0]
	}
	if len(keys) > 1 && keys[1] != "" {
		r.otherKey = keys[1]
	}
	return r
}

func (r *BelongsTo) Kind() Kind { return KindBelongsTo }
func (r *BelongsTo) Parent() *Model { return r.parent }
func (r *BelongsTo) Singular() bool { return true }
func (r *BelongsTo) Query() *Query { return r.query }

func (r *BelongsTo) Where(field string, args ...interface{}) *BelongsTo {
	r.query.Where(field, args...)
	return r
}

func (r *BelongsTo) MapValues(parents []*Model) []interface{} {
	values := make([]interface{}, 0, len(parents))
	for _, p := range parents {
		if v := p.Attr(r.foreignKey); v != nil {
			values = append(values, v)
		}
	}
	return values
}

func (r *BelongsTo) ParentIdentity(parent *Model) (string, bool) {
	v := parent.Attr(r.foreignKey)
	if v == nil {
		return "", false
	}
	return helpers.NormalizeKey(v), true
}

func (r *BelongsTo) Group(rows []*Model) *GroupedResult {
	return groupSingle(rows, func(row *Model) (string, bool) {
		v := row.Attr(r.otherKey)
		if v == nil {
			return "", false
		}
		return helpers.NormalizeKey(v), true
	})
}

func (r *BelongsTo) EagerLoad(ctx context.Context, parents []*Model, constrain func(*Query)) ([]*Model, error) {
	values := uniqueKeys(r.MapValues(parents))
	if len(values) == 0 {
		return nil, nil
	}
	q := r.query.Clone()
	q.Where(r.otherKey, "in", values)
	q.parentName = r.parent.typ.Name
	if constrain != nil {
		constrain(q)
	}
	q.ensureSelected(r.otherKey)
	coll, err := q.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Rows, nil
}

func (r *BelongsTo) parentQuery() (*Query, error) {
	v := r.parent.Attr(r.foreignKey)
	if v == nil {
		return nil, unsavedModelInstance(r.parent.typ.Name)
	}
	q := r.query.Clone()
	q.Where(r.otherKey, v)
	q.parentName = r.parent.typ.Name
	return q, nil
}

func (r *BelongsTo) First(ctx context.Context) (*Model, error) {
	q, err := r.parentQuery()
	if err != nil {
		return nil, err
	}
	return q.First(ctx)
}

func (r *BelongsTo) Fetch(ctx context.Context) (*Model, error) {
	return r.First(ctx)
}

func (r *BelongsTo) Paginate(ctx context.Context, page, perPage int) (*Collection, error) {
	q, err := r.parentQuery()
	if err != nil {
		return nil, err
	}
	return q.Paginate(ctx, page, perPage)
}

func (r *BelongsTo) Count(ctx context.Context) (int64, error) {
	q, err := r.parentQuery()
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

// Associate links the parent to related, saving related first when it is new, then saves
// the parent.
func (r *BelongsTo) Associate(ctx context.Context, related *Model) error {
	if err := related.persistIfNew(ctx); err != nil {
		return err
	}
	v := related.Attr(r.otherKey)
	if v == nil {
		return unsavedModelInstance(related.typ.Name)
	}
	if err := r.parent.Set(r.foreignKey, v); err != nil {
		return err
	}
	return r.parent.Save(ctx)
}

// Dissociate clears the foreign key on a persisted parent.
func (r *BelongsTo) Dissociate(ctx context.Context) error {
	if r.parent.IsNew() {
		return unsavedModelInstance(r.parent.typ.Name)
	}
	if err := r.parent.Set(r.foreignKey, nil); err != nil {
		return err
	}
	return r.parent.Save(ctx)
}
