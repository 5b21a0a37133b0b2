package lucid

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

type Kind string

const (
	KindHasOne        Kind = "HasOne"
	KindHasMany       Kind = "HasMany"
	KindBelongsTo     Kind = "BelongsTo"
	KindBelongsToMany Kind = "BelongsToMany"
	KindEmbedsMany    Kind = "EmbedsMany"
	KindMorphOne      Kind = "MorphOne"
	KindMorphMany     Kind = "MorphMany"
	KindMorphTo       Kind = "MorphTo"
)

// Relation is implemented by every relation kind. The eager loader only talks to a
// relation through this interface.
type Relation interface {
	Kind() Kind
	Parent() *Model

	// Singular reports whether each parent owns at most one related row.
	Singular() bool

	// MapValues returns the key of each parent used to batch the eager load query, in
	// parent order. Parents without a key are skipped.
	MapValues(parents []*Model) []interface{}

	// EagerLoad fetches the related rows of every parent in one pass. constrain is applied
	// to the related query before it runs.
	EagerLoad(ctx context.Context, parents []*Model, constrain func(*Query)) ([]*Model, error)

	// Group partitions rows returned by EagerLoad by the identity of their owner.
	Group(rows []*Model) *GroupedResult

	// ParentIdentity is the identity Group uses for rows owned by parent.
	ParentIdentity(parent *Model) (string, bool)
}

// SingleFetchable relations resolve to at most one row. Fetch is an alias of First.
type SingleFetchable interface {
	Relation
	First(ctx context.Context) (*Model, error)
	Fetch(ctx context.Context) (*Model, error)
}

// ManyFetchable relations resolve to a collection.
type ManyFetchable interface {
	Relation
	First(ctx context.Context) (*Model, error)
	Fetch(ctx context.Context) (*Collection, error)
}

type Paginator interface {
	Paginate(ctx context.Context, page, perPage int) (*Collection, error)
}

// Saver relations persist a related row and link it to the parent, saving the parent
// first when it is new.
type Saver interface {
	Save(ctx context.Context, related *Model) error
	Create(ctx context.Context, attrs bson.M) (*Model, error)
}

type ManySaver interface {
	SaveMany(ctx context.Context, related []*Model) error
	CreateMany(ctx context.Context, attrs []bson.M) ([]*Model, error)
}

// PivotCallback adjusts a pivot row before it is inserted.
type PivotCallback func(pivot *Model) error

type Attachable interface {
	Attach(ctx context.Context, ids []interface{}, cb PivotCallback) ([]*Model, error)
	Detach(ctx context.Context, ids ...interface{}) (int64, error)
	Sync(ctx context.Context, ids []interface{}, cb PivotCallback) error
}

// Embeddable relations keep their rows inside the parent document.
type Embeddable interface {
	Find(id interface{}) *Model
	Delete(ctx context.Context, id interface{}) error
	DeleteAll(ctx context.Context) error
}

type Counter interface {
	Count(ctx context.Context) (int64, error)
}
