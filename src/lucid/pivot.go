package lucid

import (
	"context"

	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

// pivotCache holds the pivot rows a BelongsToMany handle attached or found, keyed by the
// normalized related key, in insertion order.
type pivotCache struct {
	entries map[string]*Model
	order   []string
}

func newPivotCache() *pivotCache {
	return &pivotCache{entries: make(map[string]*Model)}
}

func (c *pivotCache) get(key string) *Model {
	return c.entries[key]
}

func (c *pivotCache) put(key string, pivot *Model) {
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = pivot
}

func (c *pivotCache) evict(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *pivotCache) clear() {
	c.entries = make(map[string]*Model)
	c.order = nil
}

func (c *pivotCache) list() []*Model {
	out := make([]*Model, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k])
	}
	return out
}

// PivotCollection overrides the pivot collection name. It cannot be combined with a
// pivot model.
func (r *BelongsToMany) PivotCollection(name string) *BelongsToMany {
	if r.pivotModel != nil {
		return r.fail(conflictingPivotConfig("pivotCollection", "pivotModel"))
	}
	r.pivotCollection = name
	r.pivotCollectionSet = true
	return r
}

// WithTimestamps stamps created and updated times on new pivot rows. It cannot be
// combined with a pivot model, which carries its own timestamp columns.
func (r *BelongsToMany) WithTimestamps() *BelongsToMany {
	if r.pivotModel != nil {
		return r.fail(conflictingPivotConfig("withTimestamps", "pivotModel"))
	}
	r.pivotTimestamps = true
	return r
}

// PivotModel stores pivot rows as instances of t, in t's collection, so its setters,
// getters and hooks apply to pivot data. It cannot follow PivotCollection or
// WithTimestamps.
func (r *BelongsToMany) PivotModel(t *ModelType) *BelongsToMany {
	if r.pivotCollectionSet {
		return r.fail(conflictingPivotConfig("pivotModel", "pivotCollection"))
	}
	if r.pivotTimestamps {
		return r.fail(conflictingPivotConfig("pivotModel", "withTimestamps"))
	}
	r.pivotModel = t
	return r
}

// PivotModelName is PivotModel with the type resolved through the registry.
func (r *BelongsToMany) PivotModelName(name string) *BelongsToMany {
	t, err := r.parent.typ.registry.Lookup(name)
	if err != nil {
		return r.fail(err)
	}
	return r.PivotModel(t)
}

// WithPivot adds pivot fields to read along with the keys.
func (r *BelongsToMany) WithPivot(fields ...string) *BelongsToMany {
	r.pivotFields = append(r.pivotFields, fields...)
	return r
}

// WherePivot constrains the pivot rows rather than the related rows. It takes the same
// arguments as Query.Where.
func (r *BelongsToMany) WherePivot(field string, args ...interface{}) *BelongsToMany {
	op, value, err := whereArgs(field, args)
	if err != nil {
		return r.fail(err)
	}
	r.pivotWhere.And(field, op, value)
	return r
}

// PivotInstances returns the pivot rows attached or found by this handle.
func (r *BelongsToMany) PivotInstances() []*Model {
	return r.cache.list()
}

func (r *BelongsToMany) pivotType() *ModelType {
	if r.pivotModel != nil {
		return r.pivotModel
	}
	return r.parent.typ.registry.pivotType(r.pivotCollection, r.pivotTimestamps)
}

// pivotFieldList is the projection used when reading pivot rows without a pivot model.
func (r *BelongsToMany) pivotFieldList() []string {
	fields := []string{r.pivotLocalKey, r.pivotOtherKey}
	fields = append(fields, r.pivotFields...)
	if r.pivotTimestamps {
		fields = append(fields, "created_at", "updated_at")
	}
	return fields
}

// pivotRows reads the pivot rows of the given parent keys, wherePivot applied.
func (r *BelongsToMany) pivotRows(ctx context.Context, values []interface{}) ([]*Model, error) {
	q := r.pivotType().Query()
	if len(values) == 1 {
		q.Where(r.pivotLocalKey, values[0])
	} else {
		q.Where(r.pivotLocalKey, "in", values)
	}
	q.whereGroup(r.pivotWhere)
	if r.pivotModel == nil {
		q.Select(r.pivotFieldList()...)
	}
	coll, err := q.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Rows, nil
}

// relatedKey resolves an attach argument to the value stored under pivotOtherKey.
func (r *BelongsToMany) relatedKey(v interface{}) interface{} {
	if m, ok := v.(*Model); ok {
		return m.Attr(r.otherKey)
	}
	if r.otherKey == r.related.PrimaryKey {
		return CoerceID(v)
	}
	return v
}

// Attach links the related keys to the parent, saving the parent first when it is new.
// An id already linked is not written again: its cached or stored pivot row is returned.
// cb runs on new pivot rows before they are inserted. ids may also hold *Model values.
func (r *BelongsToMany) Attach(ctx context.Context, ids []interface{}, cb PivotCallback) ([]*Model, error) {
	if r.err != nil {
		return nil, r.err
	}
	if err := r.parent.persistIfNew(ctx); err != nil {
		return nil, err
	}
	local, err := r.localValue()
	if err != nil {
		return nil, err
	}

	out := make([]*Model, 0, len(ids))
	for _, id := range ids {
		key := r.relatedKey(id)
		if key == nil {
			return out, invalidParameter("%s.attach expects related keys instead received %s",
				helpers.LowerFirst(string(KindBelongsToMany)), describeType(id))
		}
		pivot, err := r.attachOne(ctx, local, key, cb)
		if err != nil {
			return out, err
		}
		out = append(out, pivot)
	}
	return out, nil
}

func (r *BelongsToMany) attachOne(ctx context.Context, local, id interface{}, cb PivotCallback) (*Model, error) {
	cacheKey := helpers.NormalizeKey(id)
	if pivot := r.cache.get(cacheKey); pivot != nil {
		return pivot, nil
	}

	t := r.pivotType()
	existing, err := t.Query().Where(r.pivotLocalKey, local).Where(r.pivotOtherKey, id).First(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		r.cache.put(cacheKey, existing)
		return existing, nil
	}

	pivot := t.New(bson.M{r.pivotLocalKey: local, r.pivotOtherKey: id})
	if cb != nil {
		if err := cb(pivot); err != nil {
			return nil, err
		}
	}
	if err := pivot.Save(ctx); err != nil {
		return nil, err
	}
	r.cache.put(cacheKey, pivot)
	r.parent.typ.registry.logger.Debugw("pivot attached",
		"collection", t.Collection, "parent", helpers.NormalizeKey(local), "related", cacheKey)
	return pivot, nil
}

// Detach removes the pivot rows linking the parent to ids, or every pivot row of the
// parent when no id is given. Pivot rows of other parents are untouched.
func (r *BelongsToMany) Detach(ctx context.Context, ids ...interface{}) (int64, error) {
	local, err := r.localValue()
	if err != nil {
		return 0, err
	}

	var keys []interface{}
	for _, arg := range ids {
		for _, v := range toList(arg) {
			if k := r.relatedKey(v); k != nil {
				keys = append(keys, k)
			}
		}
	}

	q := r.pivotType().Query().Where(r.pivotLocalKey, local)
	if len(ids) == 0 {
		n, err := q.Delete(ctx)
		if err != nil {
			return 0, err
		}
		r.cache.clear()
		return n, nil
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := q.Where(r.pivotOtherKey, "in", keys).Delete(ctx)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		r.cache.evict(helpers.NormalizeKey(k))
	}
	return n, nil
}

// Sync leaves exactly ids attached: ids no longer wanted are detached, new ones are
// attached with cb, and ids in both sets are left alone.
func (r *BelongsToMany) Sync(ctx context.Context, ids []interface{}, cb PivotCallback) error {
	if r.err != nil {
		return r.err
	}
	if err := r.parent.persistIfNew(ctx); err != nil {
		return err
	}
	local, err := r.localValue()
	if err != nil {
		return err
	}

	wanted := make(map[string]struct{}, len(ids))
	keys := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		k := r.relatedKey(id)
		if k == nil {
			continue
		}
		wanted[helpers.NormalizeKey(k)] = struct{}{}
		keys = append(keys, k)
	}

	current, err := r.pivotType().Query().Where(r.pivotLocalKey, local).Fetch(ctx)
	if err != nil {
		return err
	}
	attached := make(map[string]struct{}, current.Size())
	var stale []interface{}
	for _, pivot := range current.Rows {
		v := pivot.Attr(r.pivotOtherKey)
		k := helpers.NormalizeKey(v)
		attached[k] = struct{}{}
		if _, keep := wanted[k]; keep {
			r.cache.put(k, pivot)
			continue
		}
		stale = append(stale, v)
	}

	if len(stale) > 0 {
		if _, err := r.Detach(ctx, stale); err != nil {
			return err
		}
	}

	var fresh []interface{}
	for _, k := range uniqueKeys(keys) {
		if _, ok := attached[helpers.NormalizeKey(k)]; !ok {
			fresh = append(fresh, k)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	_, err = r.Attach(ctx, fresh, cb)
	return err
}
