package lucid

import (
	"context"
	"fmt"

	"lucidodm/src/engine"
	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

// EmbedsMany keeps related rows as an array of sub-documents on the parent. Reads work on
// the parent attributes already in memory; writes rewrite the array field of the stored
// parent.
type EmbedsMany struct {
	parent  *Model
	related *ModelType
	field   string
	query   *Query

	// owners maps rows produced by EagerLoad to the identity of their parent.
	owners map[*Model]string
}

// EmbedsMany declares embedded rows stored under field, which defaults to the plural
// snake name of the related type (Email -> emails).
func (m *Model) EmbedsMany(related *ModelType, field ...string) *EmbedsMany {
	r := &EmbedsMany{
		parent:  m,
		related: related,
		field:   helpers.CollectionName(related.Name),
		query:   related.Query(),
		owners:  make(map[*Model]string),
	}
	if len(field) > 0 && field[0] != "" {
		r.field = field[0]
	}
	return r
}

func (r *EmbedsMany) Kind() Kind {
	return KindEmbedsMany
}

func (r *EmbedsMany) Parent() *Model {
	return r.parent
}

func (r *EmbedsMany) Singular() bool {
	return false
}

func (r *EmbedsMany) Query() *Query {
	return r.query
}

// Where filters the embedded rows in memory.
func (r *EmbedsMany) Where(field string, args ...interface{}) *EmbedsMany {
	r.query.Where(field, args...)
	return r
}

func (r *EmbedsMany) With(args ...interface{}) *EmbedsMany {
	r.query.With(args...)
	return r
}

// elements instantiates the embedded rows of parent. Rows without a key are treated as new.
func (r *EmbedsMany) elements(parent *Model) []*Model {
	arr, ok := helpers.AsArray(parent.Attr(r.field))
	if !ok {
		return nil
	}
	rows := make([]*Model, 0, len(arr))
	for _, e := range arr {
		doc, ok := helpers.AsDocument(e)
		if !ok {
			continue
		}
		row := r.related.hydrate(helpers.CloneDocument(doc))
		row.persisted = row.ID() != nil
		row.parentName = parent.typ.Name
		rows = append(rows, row)
	}
	return rows
}

func (r *EmbedsMany) MapValues(parents []*Model) []interface{} {
	values := make([]interface{}, 0, len(parents))
	for _, p := range parents {
		if v := p.Attr(r.field); v != nil {
			values = append(values, v)
		}
	}
	return values
}

// ParentIdentity identifies parents by instance since embedded rows never leave them.
func (r *EmbedsMany) ParentIdentity(parent *Model) (string, bool) {
	return fmt.Sprintf("%p", parent), true
}

// EagerLoad reads the embedded rows of every parent without touching the store. Where
// constraints are evaluated in memory.
func (r *EmbedsMany) EagerLoad(ctx context.Context, parents []*Model, constrain func(*Query)) ([]*Model, error) {
	q := r.query.Clone()
	if constrain != nil {
		constrain(q)
	}
	if q.err != nil {
		return nil, q.err
	}

	var rows []*Model
	for _, parent := range parents {
		identity, _ := r.ParentIdentity(parent)
		for _, row := range r.elements(parent) {
			if !engine.EvaluateWhereClause(row.attributes, q.where) {
				continue
			}
			r.owners[row] = identity
			rows = append(rows, row)
		}
	}
	if err := q.eager.load(ctx, r.related, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EmbedsMany) Group(rows []*Model) *GroupedResult {
	return groupMany(rows, func(row *Model) (string, bool) {
		id, ok := r.owners[row]
		return id, ok
	})
}

func (r *EmbedsMany) Fetch(ctx context.Context) (*Collection, error) {
	if r.query.err != nil {
		return nil, r.query.err
	}
	var rows []*Model
	for _, row := range r.elements(r.parent) {
		if engine.EvaluateWhereClause(row.attributes, r.query.where) {
			rows = append(rows, row)
		}
	}
	if err := r.query.eager.load(ctx, r.related, rows); err != nil {
		return nil, err
	}
	return NewCollection(rows...), nil
}

func (r *EmbedsMany) First(ctx context.Context) (*Model, error) {
	coll, err := r.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return coll.First(), nil
}

// Find returns the embedded row with the given key or nil.
func (r *EmbedsMany) Find(id interface{}) *Model {
	id = CoerceID(id)
	for _, row := range r.elements(r.parent) {
		if helpers.KeysEqual(row.ID(), id) {
			return row
		}
	}
	return nil
}

func (r *EmbedsMany) Count(ctx context.Context) (int64, error) {
	coll, err := r.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	return int64(coll.Size()), nil
}

func (r *EmbedsMany) rawElements() bson.A {
	arr, _ := helpers.AsArray(r.parent.Attr(r.field))
	out := make(bson.A, 0, len(arr))
	for _, e := range arr {
		out = append(out, helpers.CloneValue(e))
	}
	return out
}

// persist writes the array field of the parent, inserting the parent when it is new.
func (r *EmbedsMany) persist(ctx context.Context, elements bson.A) error {
	if err := r.parent.Set(r.field, elements); err != nil {
		return err
	}
	if r.parent.IsNew() {
		return r.parent.Save(ctx)
	}
	t := r.parent.typ
	if _, err := t.registry.store.Update(ctx, t.Collection, r.parent.keyFilter(),
		engine.Patch{Set: bson.M{r.field: elements}}); err != nil {
		return err
	}
	r.parent.original[r.field] = helpers.CloneValue(elements)
	return nil
}

// Save adds row to the parent array, or replaces the element with the same key. New rows
// get a key and run the create hooks, existing rows run the update hooks.
func (r *EmbedsMany) Save(ctx context.Context, row *Model) error {
	if r.parent.IsFrozen() {
		return deletedModel(r.parent.typ.Name)
	}
	t := r.related
	creating := row.IsNew() || row.ID() == nil

	if creating {
		if err := t.runHooks(ctx, BeforeCreate, row); err != nil {
			return err
		}
	} else if err := t.runHooks(ctx, BeforeUpdate, row); err != nil {
		return err
	}
	if err := t.runHooks(ctx, BeforeSave, row); err != nil {
		return err
	}

	now := t.registry.now()
	if row.ID() == nil {
		row.attributes[t.PrimaryKey] = t.registry.newID()
	}
	if creating && t.CreatedAtColumn != "" {
		row.attributes[t.CreatedAtColumn] = now
	}
	if t.UpdatedAtColumn != "" {
		row.attributes[t.UpdatedAtColumn] = now
	}

	elements := r.rawElements()
	doc := helpers.CloneDocument(row.attributes)
	replaced := false
	for i, e := range elements {
		existing, ok := helpers.AsDocument(e)
		if ok && helpers.KeysEqual(existing[t.PrimaryKey], row.ID()) {
			elements[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		elements = append(elements, doc)
	}
	if err := r.persist(ctx, elements); err != nil {
		return err
	}

	row.persisted = true
	row.parentName = r.parent.typ.Name
	row.syncOriginal()

	if creating {
		if err := t.runHooks(ctx, AfterCreate, row); err != nil {
			return err
		}
	} else if err := t.runHooks(ctx, AfterUpdate, row); err != nil {
		return err
	}
	return t.runHooks(ctx, AfterSave, row)
}

func (r *EmbedsMany) Create(ctx context.Context, attrs bson.M) (*Model, error) {
	row := r.related.New(attrs)
	if err := r.Save(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (r *EmbedsMany) SaveMany(ctx context.Context, rows []*Model) error {
	for _, row := range rows {
		if err := r.Save(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *EmbedsMany) CreateMany(ctx context.Context, attrs []bson.M) ([]*Model, error) {
	out := make([]*Model, 0, len(attrs))
	for _, a := range attrs {
		row, err := r.Create(ctx, a)
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Delete removes the element with the given key. Removing the last element leaves an
// empty array on the parent.
func (r *EmbedsMany) Delete(ctx context.Context, id interface{}) error {
	if r.parent.IsFrozen() {
		return deletedModel(r.parent.typ.Name)
	}
	if r.parent.IsNew() {
		return unsavedModelInstance(r.parent.typ.Name)
	}
	id = CoerceID(id)
	pk := r.related.PrimaryKey

	kept := make(bson.A, 0)
	for _, e := range r.rawElements() {
		if doc, ok := helpers.AsDocument(e); ok && helpers.KeysEqual(doc[pk], id) {
			continue
		}
		kept = append(kept, e)
	}
	return r.persist(ctx, kept)
}

// DeleteAll removes the array field itself from the stored and in-memory parent.
func (r *EmbedsMany) DeleteAll(ctx context.Context) error {
	if r.parent.IsFrozen() {
		return deletedModel(r.parent.typ.Name)
	}
	if !r.parent.IsNew() {
		t := r.parent.typ
		if _, err := t.registry.store.Update(ctx, t.Collection, r.parent.keyFilter(),
			engine.Patch{Unset: []string{r.field}}); err != nil {
			return err
		}
	}
	delete(r.parent.attributes, r.field)
	delete(r.parent.original, r.field)
	return nil
}
