package lucid

import (
	"context"

	"lucidodm/src/engine"
	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

// BelongsToMany links parent and related rows through a pivot collection. Each pivot row
// stores the parent key under pivotLocalKey and the related key under pivotOtherKey.
// Related rows fetched through the relation expose their pivot row as Pivot().
//
// A handle owns a cache of the pivot rows it attached or found, so attaching the same id
// twice writes one row. Handles are not safe for concurrent use.
type BelongsToMany struct {
	parent  *Model
	related *ModelType

	pivotLocalKey string
	pivotOtherKey string
	localKey      string
	otherKey      string

	pivotCollection    string
	pivotCollectionSet bool
	pivotModel         *ModelType
	pivotTimestamps    bool
	pivotFields        []string
	pivotWhere         *engine.WhereGroup

	query *Query
	cache *pivotCache
	err   error
}

// BelongsToMany declares a many to many relation. keys are, in order, the pivot field
// holding the parent key (<parent>_id), the pivot field holding the related key
// (<related>_id), the parent key (primary key) and the related key (primary key).
func (m *Model) BelongsToMany(related *ModelType, keys ...string) *BelongsToMany {
	r := &BelongsToMany{
		parent:          m,
		related:         related,
		pivotLocalKey:   helpers.ForeignKeyName(m.typ.Name),
		pivotOtherKey:   helpers.ForeignKeyName(related.Name),
		localKey:        m.typ.PrimaryKey,
		otherKey:        related.PrimaryKey,
		pivotCollection: helpers.PivotCollectionName(m.typ.Name, related.Name),
		pivotWhere:      &engine.WhereGroup{Logic: engine.LogicAnd},
		query:           related.Query(),
		cache:           newPivotCache(),
	}
	for i, k := range keys {
		if k == "" {
			continue
		}
		switch i {
		case 0:
			r.pivotLocalKey = k
		case 1:
			r.pivotOtherKey = k
		case 2:
			r.localKey = k
		case 3:
			r.otherKey = k
		}
	}
	return r
}

func (r *BelongsToMany) Kind() Kind {
	return KindBelongsToMany
}

func (r *BelongsToMany) Parent() *Model {
	return r.parent
}

func (r *BelongsToMany) Singular() bool {
	return false
}

func (r *BelongsToMany) Query() *Query {
	return r.query
}

// Err returns the first configuration error recorded on the handle.
func (r *BelongsToMany) Err() error {
	return r.err
}

func (r *BelongsToMany) fail(err error) *BelongsToMany {
	if r.err == nil {
		r.err = err
	}
	return r
}

func (r *BelongsToMany) Where(field string, args ...interface{}) *BelongsToMany {
	r.query.Where(field, args...)
	return r
}

func (r *BelongsToMany) OrderBy(field string, direction ...string) *BelongsToMany {
	r.query.OrderBy(field, direction...)
	return r
}

func (r *BelongsToMany) Select(fields ...string) *BelongsToMany {
	r.query.Select(fields...)
	return r
}

func (r *BelongsToMany) With(args ...interface{}) *BelongsToMany {
	r.query.With(args...)
	return r
}

func (r *BelongsToMany) localValue() (interface{}, error) {
	if r.err != nil {
		return nil, r.err
	}
	v := r.parent.Attr(r.localKey)
	if v == nil {
		return nil, unsavedModelInstance(r.parent.typ.Name)
	}
	return v, nil
}

func (r *BelongsToMany) MapValues(parents []*Model) []interface{} {
	values := make([]interface{}, 0, len(parents))
	for _, p := range parents {
		if v := p.Attr(r.localKey); v != nil {
			values = append(values, v)
		}
	}
	return values
}

func (r *BelongsToMany) ParentIdentity(parent *Model) (string, bool) {
	v := parent.Attr(r.localKey)
	if v == nil {
		return "", false
	}
	return helpers.NormalizeKey(v), true
}

// Group buckets rows by the parent key stored on their pivot row.
func (r *BelongsToMany) Group(rows []*Model) *GroupedResult {
	return groupMany(rows, func(row *Model) (string, bool) {
		pivot := row.Pivot()
		if pivot == nil {
			return "", false
		}
		v := pivot.Attr(r.pivotLocalKey)
		if v == nil {
			return "", false
		}
		return helpers.NormalizeKey(v), true
	})
}

// relatedQuery narrows the related query to the rows referenced by pivots.
func (r *BelongsToMany) relatedQuery(pivots []*Model, constrain func(*Query)) *Query {
	ids := make([]interface{}, 0, len(pivots))
	for _, p := range pivots {
		ids = append(ids, p.Attr(r.pivotOtherKey))
	}
	q := r.query.Clone()
	q.Where(r.otherKey, "in", uniqueKeys(ids))
	q.parentName = r.parent.typ.Name
	if constrain != nil {
		constrain(q)
	}
	q.ensureSelected(r.otherKey)
	return q
}

// attachPivots pairs every related row with its pivot rows, in related row order. A
// related row linked by several pivot rows is repeated once per pivot.
func (r *BelongsToMany) attachPivots(rows, pivots []*Model) []*Model {
	byKey := make(map[string][]*Model, len(pivots))
	for _, p := range pivots {
		key := helpers.NormalizeKey(p.Attr(r.pivotOtherKey))
		byKey[key] = append(byKey[key], p)
	}

	out := make([]*Model, 0, len(pivots))
	for _, row := range rows {
		matches := byKey[helpers.NormalizeKey(row.Attr(r.otherKey))]
		for i, p := range matches {
			target := row
			if i > 0 {
				target = row.clone()
			}
			target.relations["pivot"] = p
			out = append(out, target)
		}
	}
	return out
}

func (r *BelongsToMany) load(ctx context.Context, values []interface{}, constrain func(*Query)) ([]*Model, error) {
	pivots, err := r.pivotRows(ctx, values)
	if err != nil || len(pivots) == 0 {
		return nil, err
	}
	coll, err := r.relatedQuery(pivots, constrain).Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return r.attachPivots(coll.Rows, pivots), nil
}

// EagerLoad issues one pivot query and one related query for all parents.
func (r *BelongsToMany) EagerLoad(ctx context.Context, parents []*Model, constrain func(*Query)) ([]*Model, error) {
	if r.err != nil {
		return nil, r.err
	}
	values := uniqueKeys(r.MapValues(parents))
	if len(values) == 0 {
		return nil, nil
	}
	return r.load(ctx, values, constrain)
}

func (r *BelongsToMany) Fetch(ctx context.Context) (*Collection, error) {
	local, err := r.localValue()
	if err != nil {
		return nil, err
	}
	rows, err := r.load(ctx, []interface{}{local}, nil)
	if err != nil {
		return nil, err
	}
	return NewCollection(rows...), nil
}

func (r *BelongsToMany) First(ctx context.Context) (*Model, error) {
	local, err := r.localValue()
	if err != nil {
		return nil, err
	}
	rows, err := r.load(ctx, []interface{}{local}, func(q *Query) { q.Limit(1) })
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *BelongsToMany) Paginate(ctx context.Context, page, perPage int) (*Collection, error) {
	local, err := r.localValue()
	if err != nil {
		return nil, err
	}
	pivots, err := r.pivotRows(ctx, []interface{}{local})
	if err != nil {
		return nil, err
	}
	if len(pivots) == 0 {
		if page < 1 {
			page = 1
		}
		if perPage < 1 {
			perPage = 20
		}
		coll := NewCollection()
		coll.Pages = newPagination(0, page, perPage)
		return coll, nil
	}
	coll, err := r.relatedQuery(pivots, nil).Paginate(ctx, page, perPage)
	if err != nil {
		return nil, err
	}
	coll.Rows = r.attachPivots(coll.Rows, pivots)
	return coll, nil
}

// Count returns the number of related rows linked to the parent.
func (r *BelongsToMany) Count(ctx context.Context) (int64, error) {
	local, err := r.localValue()
	if err != nil {
		return 0, err
	}
	pivots, err := r.pivotRows(ctx, []interface{}{local})
	if err != nil || len(pivots) == 0 {
		return 0, err
	}
	return r.relatedQuery(pivots, nil).Count(ctx)
}

// Update mass updates the related rows linked to the parent.
func (r *BelongsToMany) Update(ctx context.Context, attrs bson.M) (int64, error) {
	local, err := r.localValue()
	if err != nil {
		return 0, err
	}
	pivots, err := r.pivotRows(ctx, []interface{}{local})
	if err != nil || len(pivots) == 0 {
		return 0, err
	}
	return r.relatedQuery(pivots, nil).Update(ctx, attrs)
}

// Delete removes the related rows linked to the parent together with their pivot rows.
func (r *BelongsToMany) Delete(ctx context.Context) (int64, error) {
	local, err := r.localValue()
	if err != nil {
		return 0, err
	}
	pivots, err := r.pivotRows(ctx, []interface{}{local})
	if err != nil || len(pivots) == 0 {
		return 0, err
	}
	removed, err := r.relatedQuery(pivots, nil).Delete(ctx)
	if err != nil {
		return 0, err
	}

	ids := make([]interface{}, 0, len(pivots))
	for _, p := range pivots {
		ids = append(ids, p.Attr(r.pivotOtherKey))
	}
	if _, err := r.Detach(ctx, ids); err != nil {
		return removed, err
	}
	return removed, nil
}

// Save persists related, then attaches it.
func (r *BelongsToMany) Save(ctx context.Context, related *Model) error {
	_, err := r.SaveWithPivot(ctx, related, nil)
	return err
}

// SaveWithPivot saves the parent when new, saves related, attaches it with cb applied to
// a new pivot row and returns that pivot row.
func (r *BelongsToMany) SaveWithPivot(ctx context.Context, related *Model, cb PivotCallback) (*Model, error) {
	if r.err != nil {
		return nil, r.err
	}
	if err := r.parent.persistIfNew(ctx); err != nil {
		return nil, err
	}
	if err := related.Save(ctx); err != nil {
		return nil, err
	}
	pivots, err := r.Attach(ctx, []interface{}{related}, cb)
	if err != nil {
		return nil, err
	}
	related.parentName = r.parent.typ.Name
	related.relations["pivot"] = pivots[0]
	return pivots[0], nil
}

func (r *BelongsToMany) Create(ctx context.Context, attrs bson.M) (*Model, error) {
	return r.CreateWithPivot(ctx, attrs, nil)
}

// CreateWithPivot creates a related row from attrs and attaches it with cb applied to the
// pivot row.
func (r *BelongsToMany) CreateWithPivot(ctx context.Context, attrs bson.M, cb PivotCallback) (*Model, error) {
	related := r.related.New(attrs)
	if _, err := r.SaveWithPivot(ctx, related, cb); err != nil {
		return nil, err
	}
	return related, nil
}

func (r *BelongsToMany) SaveMany(ctx context.Context, related []*Model) error {
	return r.SaveManyWithPivot(ctx, related, nil)
}

// SaveManyWithPivot saves and attaches every row in order, applying cb to each new pivot
// row. It stops at the first failure.
func (r *BelongsToMany) SaveManyWithPivot(ctx context.Context, related []*Model, cb PivotCallback) error {
	for _, m := range related {
		if _, err := r.SaveWithPivot(ctx, m, cb); err != nil {
			return err
		}
	}
	return nil
}

func (r *BelongsToMany) CreateMany(ctx context.Context, attrs []bson.M) ([]*Model, error) {
	return r.CreateManyWithPivot(ctx, attrs, nil)
}

func (r *BelongsToMany) CreateManyWithPivot(ctx context.Context, attrs []bson.M, cb PivotCallback) ([]*Model, error) {
	out := make([]*Model, 0, len(attrs))
	for _, a := range attrs {
		m, err := r.CreateWithPivot(ctx, a, cb)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}
