package lucid

import (
	"context"

	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

// The functions below let code that only holds a Relation call any verb. A verb the
// relation kind does not support fails before anything reaches the store.

// Fetch returns a *Model for singular relations and a *Collection otherwise.
func Fetch(ctx context.Context, rel Relation) (interface{}, error) {
	switch r := rel.(type) {
	case SingleFetchable:
		m, err := r.Fetch(ctx)
		if err != nil || m == nil {
			return nil, err
		}
		return m, nil
	case ManyFetchable:
		c, err := r.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, invalidRelationMethod("fetch", rel.Kind())
}

func First(ctx context.Context, rel Relation) (*Model, error) {
	switch r := rel.(type) {
	case SingleFetchable:
		return r.First(ctx)
	case ManyFetchable:
		return r.First(ctx)
	}
	return nil, invalidRelationMethod("first", rel.Kind())
}

func Save(ctx context.Context, rel Relation, related *Model) error {
	s, ok := rel.(Saver)
	if !ok {
		return invalidRelationMethod("save", rel.Kind())
	}
	return s.Save(ctx, related)
}

func Create(ctx context.Context, rel Relation, attrs bson.M) (*Model, error) {
	s, ok := rel.(Saver)
	if !ok {
		return nil, invalidRelationMethod("create", rel.Kind())
	}
	return s.Create(ctx, attrs)
}

// SaveMany accepts []*Model, []interface{} of *Model or a *Collection.
func SaveMany(ctx context.Context, rel Relation, related interface{}) error {
	s, ok := rel.(ManySaver)
	if !ok {
		return invalidRelationMethod("saveMany", rel.Kind())
	}
	rows, ok := asModels(related)
	if !ok {
		return invalidParameter("%s.saveMany expects an array of related model instances instead received %s",
			helpers.LowerFirst(string(rel.Kind())), describeType(related))
	}
	return s.SaveMany(ctx, rows)
}

// CreateMany accepts any slice of documents.
func CreateMany(ctx context.Context, rel Relation, attrs interface{}) ([]*Model, error) {
	s, ok := rel.(ManySaver)
	if !ok {
		return nil, invalidRelationMethod("createMany", rel.Kind())
	}
	list, ok := asAttributeList(attrs)
	if !ok {
		return nil, invalidParameter("%s.createMany expects an array of related model instances instead received %s",
			helpers.LowerFirst(string(rel.Kind())), describeType(attrs))
	}
	return s.CreateMany(ctx, list)
}

func Paginate(ctx context.Context, rel Relation, page, perPage int) (*Collection, error) {
	p, ok := rel.(Paginator)
	if !ok {
		return nil, invalidRelationMethod("paginate", rel.Kind())
	}
	return p.Paginate(ctx, page, perPage)
}

// Attach takes a single id or a slice of ids.
func Attach(ctx context.Context, rel Relation, ids interface{}, cb PivotCallback) ([]*Model, error) {
	a, ok := rel.(Attachable)
	if !ok {
		return nil, invalidRelationMethod("attach", rel.Kind())
	}
	return a.Attach(ctx, toList(ids), cb)
}

func Detach(ctx context.Context, rel Relation, ids ...interface{}) (int64, error) {
	a, ok := rel.(Attachable)
	if !ok {
		return 0, invalidRelationMethod("detach", rel.Kind())
	}
	return a.Detach(ctx, ids...)
}

func Sync(ctx context.Context, rel Relation, ids interface{}, cb PivotCallback) error {
	a, ok := rel.(Attachable)
	if !ok {
		return invalidRelationMethod("sync", rel.Kind())
	}
	return a.Sync(ctx, toList(ids), cb)
}

func Count(ctx context.Context, rel Relation) (int64, error) {
	c, ok := rel.(Counter)
	if !ok {
		return 0, invalidRelationMethod("count", rel.Kind())
	}
	return c.Count(ctx)
}
