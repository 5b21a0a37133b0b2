package engine

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrCollectionNameInvalid = errors.New("invalid collection name")
	ErrUnknownDriver         = errors.New("unknown store driver")
)

// SortField orders a result set by one field.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions shapes the result of a Find call.
type FindOptions struct {
	Sort  []SortField
	Skip  int64
	Limit int64 // 0 means no limit

	// Fields restricts the returned fields. _id is always returned.
	Fields []string
}

// Patch describes an update: fields to overwrite and fields to remove.
type Patch struct {
	Set   bson.M
	Unset []string
}

// Store is the document store the model layer runs on. Every driver returns fresh
// documents that callers may mutate freely.
type Store interface {
	// Find returns every document of the collection matching where, shaped by opts.
	// A nil where matches everything.
	Find(ctx context.Context, collection string, where *WhereGroup, opts *FindOptions) ([]bson.M, error)

	// FindOne returns the first match or nil when nothing matches.
	FindOne(ctx context.Context, collection string, where *WhereGroup, opts *FindOptions) (bson.M, error)

	// Insert stores the documents, assigning an _id to those without one, and returns
	// the ids in input order.
	Insert(ctx context.Context, collection string, docs ...bson.M) ([]interface{}, error)

	// Update applies the patch to every match and returns the number of documents touched.
	Update(ctx context.Context, collection string, where *WhereGroup, patch Patch) (int64, error)

	// Delete removes every match and returns the number removed.
	Delete(ctx context.Context, collection string, where *WhereGroup) (int64, error)

	Count(ctx context.Context, collection string, where *WhereGroup) (int64, error)

	// Collections lists the collection names known to the store.
	Collections(ctx context.Context) ([]string, error)

	Close(ctx context.Context) error
}

func findOne(ctx context.Context, s Store, collection string, where *WhereGroup, opts *FindOptions) (bson.M, error) {
	o := FindOptions{}
	if opts != nil {
		o = *opts
	}
	o.Limit = 1
	docs, err := s.Find(ctx, collection, where, &o)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}
