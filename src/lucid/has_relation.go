package lucid

import (
	"context"

	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

// hasRelation holds what HasOne, HasMany, MorphOne and MorphMany share: related rows
// point at the parent through foreignKey, and morph variants also carry the parent type
// name in typeField.
type hasRelation struct {
	kind       Kind
	parent     *Model
	related    *ModelType
	localKey   string
	foreignKey string
	typeField  string
	query      *Query
}

func newHasRelation(kind Kind, parent *Model, related *ModelType, keys []string) hasRelation {
	r := hasRelation{
		kind:       kind,
		parent:     parent,
		related:    related,
		localKey:   parent.typ.PrimaryKey,
		foreignKey: helpers.ForeignKeyName(parent.typ.Name),
		query:      related.Query(),
	}
	if len(keys) > 0 && keys[0] != "" {
		r.localKey = keys[0]
	}
	if len(keys) > 1 && keys[1] != "" {
		r.foreignKey = keys[1]
	}
	return r
}

func newMorphRelation(kind Kind, parent *Model, related *ModelType, keys []string) hasRelation {
	r := newHasRelation(kind, parent, related, nil)
	r.foreignKey = "parent_id"
	r.typeField = "determiner"
	if len(keys) > 0 && keys[0] != "" {
		r.foreignKey = keys[0]
	}
	if len(keys) > 1 && keys[1] != "" {
		r.typeField = keys[1]
	}
	if len(keys) > 2 && keys[2] != "" {
		r.localKey = keys[2]
	}
	return r
}

func (r *hasRelation) Kind() Kind {
	return r.kind
}

func (r *hasRelation) Parent() *Model {
	return r.parent
}

// Query exposes the related query so callers can add constraints.
func (r *hasRelation) Query() *Query {
	return r.query
}

func (r *hasRelation) morph() bool {
	return r.typeField != ""
}

func (r *hasRelation) determiner() string {
	return r.parent.typ.Name
}

func (r *hasRelation) localValue() (interface{}, error) {
	v := r.parent.Attr(r.localKey)
	if v == nil {
		return nil, unsavedModelInstance(r.parent.typ.Name)
	}
	return v, nil
}

// scoped returns the related query narrowed to the given parent key values.
func (r *hasRelation) scoped(values ...interface{}) *Query {
	q := r.query.Clone()
	if len(values) == 1 {
		q.Where(r.foreignKey, values[0])
	} else {
		q.Where(r.foreignKey, "in", values)
	}
	if r.morph() {
		q.Where(r.typeField, r.determiner())
	}
	q.parentName = r.parent.typ.Name
	return q
}

func (r *hasRelation) parentQuery() (*Query, error) {
	value, err := r.localValue()
	if err != nil {
		return nil, err
	}
	return r.scoped(value), nil
}

func (r *hasRelation) MapValues(parents []*Model) []interface{} {
	values := make([]interface{}, 0, len(parents))
	for _, p := range parents {
		if v := p.Attr(r.localKey); v != nil {
			values = append(values, v)
		}
	}
	return values
}

func (r *hasRelation) ParentIdentity(parent *Model) (string, bool) {
	v := parent.Attr(r.localKey)
	if v == nil {
		return "", false
	}
	return helpers.NormalizeKey(v), true
}

func (r *hasRelation) rowIdentity(row *Model) (string, bool) {
	v := row.Attr(r.foreignKey)
	if v == nil {
		return "", false
	}
	return helpers.NormalizeKey(v), true
}

func (r *hasRelation) EagerLoad(ctx context.Context, parents []*Model, constrain func(*Query)) ([]*Model, error) {
	values := uniqueKeys(r.MapValues(parents))
	if len(values) == 0 {
		return nil, nil
	}
	q := r.query.Clone()
	q.Where(r.foreignKey, "in", values)
	if r.morph() {
		q.Where(r.typeField, r.determiner())
	}
	q.parentName = r.parent.typ.Name
	if constrain != nil {
		constrain(q)
	}
	q.ensureSelected(r.foreignKey)
	coll, err := q.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Rows, nil
}

func (r *hasRelation) first(ctx context.Context) (*Model, error) {
	q, err := r.parentQuery()
	if err != nil {
		return nil, err
	}
	return q.First(ctx)
}

func (r *hasRelation) fetch(ctx context.Context) (*Collection, error) {
	q, err := r.parentQuery()
	if err != nil {
		return nil, err
	}
	return q.Fetch(ctx)
}

func (r *hasRelation) Paginate(ctx context.Context, page, perPage int) (*Collection, error) {
	q, err := r.parentQuery()
	if err != nil {
		return nil, err
	}
	return q.Paginate(ctx, page, perPage)
}

func (r *hasRelation) Count(ctx context.Context) (int64, error) {
	q, err := r.parentQuery()
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

// Update mass updates the related rows of the parent.
func (r *hasRelation) Update(ctx context.Context, attrs bson.M) (int64, error) {
	q, err := r.parentQuery()
	if err != nil {
		return 0, err
	}
	return q.Update(ctx, attrs)
}

// Delete removes the related rows of the parent.
func (r *hasRelation) Delete(ctx context.Context) (int64, error) {
	q, err := r.parentQuery()
	if err != nil {
		return 0, err
	}
	return q.Delete(ctx)
}

func (r *hasRelation) Save(ctx context.Context, related *Model) error {
	if err := r.parent.persistIfNew(ctx); err != nil {
		return err
	}
	value, err := r.localValue()
	if err != nil {
		return err
	}
	if err := related.Set(r.foreignKey, value); err != nil {
		return err
	}
	if r.morph() {
		if err := related.Set(r.typeField, r.determiner()); err != nil {
			return err
		}
	}
	related.parentName = r.parent.typ.Name
	return related.Save(ctx)
}

func (r *hasRelation) Create(ctx context.Context, attrs bson.M) (*Model, error) {
	related := r.related.New(attrs)
	if err := r.Save(ctx, related); err != nil {
		return nil, err
	}
	return related, nil
}

func (r *hasRelation) saveMany(ctx context.Context, related []*Model) error {
	for _, m := range related {
		if err := r.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *hasRelation) createMany(ctx context.Context, attrs []bson.M) ([]*Model, error) {
	out := make([]*Model, 0, len(attrs))
	for _, a := range attrs {
		m, err := r.Create(ctx, a)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// HasOne: the related row stores the parent key in its foreign key.
type HasOne struct {
	hasRelation
}

// HasOne declares a one to one relation. keys are the local key (parent primary key by
// default) and the foreign key (<parent>_id by default).
func (m *Model) HasOne(related *ModelType, keys ...string) *HasOne {
	return &HasOne{newHasRelation(KindHasOne, m, related, keys)}
}

func (r *HasOne) Singular() bool { return true }

func (r *HasOne) Group(rows []*Model) *GroupedResult {
	return groupSingle(rows, r.rowIdentity)
}

func (r *HasOne) First(ctx context.Context) (*Model, error) { return r.first(ctx) }
func (r *HasOne) Fetch(ctx context.Context) (*Model, error) { return r.first(ctx) }

func (r *HasOne) Where(field string, args ...interface{}) *HasOne {
	r.query.Where(field, args...)
	return r
}

func (r *HasOne) With(args ...interface{}) *HasOne {
	r.query.With(args...)
	return r
}

// HasMany: every related row storing the parent key in its foreign key.
type HasMany struct {
	hasRelation
}

// HasMany declares a one to many relation. keys are as for HasOne.
func (m *Model) HasMany(related *ModelType, keys ...string) *HasMany {
	return &HasMany{newHasRelation(KindHasMany, m, related, keys)}
}

func (r *HasMany) Singular() bool { return false }

func (r *HasMany) Group(rows []*Model) *GroupedResult {
	return groupMany(rows, r.rowIdentity)
}

func (r *HasMany) First(ctx context.Context) (*Model, error) { return r.first(ctx) }
func (r *HasMany) Fetch(ctx context.Context) (*Collection, error) { return r.fetch(ctx) }

func (r *HasMany) SaveMany(ctx context.Context, related []*Model) error {
	return r.saveMany(ctx, related)
}

func (r *HasMany) CreateMany(ctx context.Context, attrs []bson.M) ([]*Model, error) {
	return r.createMany(ctx, attrs)
}

func (r *HasMany) Where(field string, args ...interface{}) *HasMany {
	r.query.Where(field, args...)
	return r
}

func (r *HasMany) OrderBy(field string, direction ...string) *HasMany {
	r.query.OrderBy(field, direction...)
	return r
}

func (r *HasMany) With(args ...interface{}) *HasMany {
	r.query.With(args...)
	return r
}

// MorphOne: HasOne where the related row also names the parent type.
type MorphOne struct {
	hasRelation
}

// MorphOne declares a polymorphic one to one relation. keys are the foreign key
// (parent_id), the type field (determiner) and the local key (parent primary key).
func (m *Model) MorphOne(related *ModelType, keys ...string) *MorphOne {
	return &MorphOne{newMorphRelation(KindMorphOne, m, related, keys)}
}

func (r *MorphOne) Singular() bool { return true }

func (r *MorphOne) Group(rows []*Model) *GroupedResult {
	return groupSingle(rows, r.rowIdentity)
}

func (r *MorphOne) First(ctx context.Context) (*Model, error) { return r.first(ctx) }
func (r *MorphOne) Fetch(ctx context.Context) (*Model, error) { return r.first(ctx) }

func (r *MorphOne) Where(field string, args ...interface{}) *MorphOne {
	r.query.Where(field, args...)
	return r
}

// MorphMany: HasMany where the related rows also name the parent type.
type MorphMany struct {
	hasRelation
}

// MorphMany declares a polymorphic one to many relation. keys are as for MorphOne.
func (m *Model) MorphMany(related *ModelType, keys ...string) *MorphMany {
	return &MorphMany{newMorphRelation(KindMorphMany, m, related, keys)}
}

func (r *MorphMany) Singular() bool { return false }

func (r *MorphMany) Group(rows []*Model) *GroupedResult {
	return groupMany(rows, r.rowIdentity)
}

func (r *MorphMany) First(ctx context.Context) (*Model, error) { return r.first(ctx) }
func (r *MorphMany) Fetch(ctx context.Context) (*Collection, error) { return r.fetch(ctx) }

func (r *MorphMany) SaveMany(ctx context.Context, related []*Model) error {
	return r.saveMany(ctx, related)
}

func (r *MorphMany) CreateMany(ctx context.Context, attrs []bson.M) ([]*Model, error) {
	return r.createMany(ctx, attrs)
}

func (r *MorphMany) Where(field string, args ...interface{}) *MorphMany {
	r.query.Where(field, args...)
	return r
}
