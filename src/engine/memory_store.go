package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// MemoryStore keeps every bundle in process. It backs tests and is the cache layer
// underneath the bundle file store.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string]*Bundle
	factory DocumentFactory
	logger  *zap.SugaredLogger

	// onWrite persists the next version of a bundle, under the write lock.
	onWrite func(bundle *Bundle) error
}

func NewMemoryStore(newID helpers.IDGenerator, logger *zap.SugaredLogger) *MemoryStore {
	return &MemoryStore{
		bundles: make(map[string]*Bundle),
		factory: NewDocumentFactory(newID),
		logger:  logger,
	}
}

func validateCollectionName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\\x00\"'`") || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "system.") {
		return fmt.Errorf("%w: %q", ErrCollectionNameInvalid, name)
	}
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, collection string, where *WhereGroup, opts *FindOptions) ([]bson.M, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bundle, ok := s.bundles[collection]
	if !ok {
		return []bson.M{}, nil
	}
	matched := FilterDocuments(bundle.Documents, where)
	return applyFindOptions(matched, opts), nil
}

func (s *MemoryStore) FindOne(ctx context.Context, collection string, where *WhereGroup, opts *FindOptions) (bson.M, error) {
	return findOne(ctx, s, collection, where, opts)
}

func (s *MemoryStore) Insert(ctx context.Context, collection string, docs ...bson.M) ([]interface{}, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bundle, ok := s.bundles[collection]
	if !ok {
		bundle = NewBundle(collection)
	}

	existing := make(map[string]struct{}, len(bundle.Documents))
	for _, d := range bundle.Documents {
		existing[helpers.NormalizeKey(d["_id"])] = struct{}{}
	}

	prepared := make([]bson.M, 0, len(docs))
	ids := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		doc := s.factory.NewDocument(d)
		key := helpers.NormalizeKey(doc["_id"])
		if _, dup := existing[key]; dup {
			return nil, fmt.Errorf("duplicate _id %s in collection %s", key, collection)
		}
		existing[key] = struct{}{}
		prepared = append(prepared, doc)
		ids = append(ids, doc["_id"])
	}

	next := *bundle
	next.Documents = make([]bson.M, 0, len(bundle.Documents)+len(prepared))
	next.Documents = append(append(next.Documents, bundle.Documents...), prepared...)
	next.UpdatedAt = time.Now()

	if err := s.commit(collection, &next); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection string, where *WhereGroup, patch Patch) (int64, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bundle, ok := s.bundles[collection]
	if !ok {
		return 0, nil
	}

	next := *bundle
	next.Documents = make([]bson.M, len(bundle.Documents))
	var touched int64
	for i, doc := range bundle.Documents {
		next.Documents[i] = doc
		if !EvaluateWhereClause(doc, where) {
			continue
		}
		patched := helpers.CloneDocument(doc)
		applyPatch(patched, patch)
		next.Documents[i] = patched
		touched++
	}

	if touched > 0 {
		next.UpdatedAt = time.Now()
		if err := s.commit(collection, &next); err != nil {
			return 0, err
		}
	}
	return touched, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection string, where *WhereGroup) (int64, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bundle, ok := s.bundles[collection]
	if !ok {
		return 0, nil
	}

	next := *bundle
	next.Documents = make([]bson.M, 0, len(bundle.Documents))
	var removed int64
	for _, doc := range bundle.Documents {
		if EvaluateWhereClause(doc, where) {
			removed++
			continue
		}
		next.Documents = append(next.Documents, doc)
	}

	if removed > 0 {
		next.UpdatedAt = time.Now()
		if err := s.commit(collection, &next); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string, where *WhereGroup) (int64, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bundle, ok := s.bundles[collection]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, doc := range bundle.Documents {
		if EvaluateWhereClause(doc, where) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.bundles))
	for name := range s.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// commit persists next through onWrite and only then replaces the held bundle, so a
// failed write leaves the previous contents visible.
func (s *MemoryStore) commit(collection string, next *Bundle) error {
	if s.onWrite != nil {
		if err := s.onWrite(next); err != nil {
			return err
		}
	}
	s.bundles[collection] = next
	return nil
}

// applyPatch mutates doc in place.
func applyPatch(doc bson.M, patch Patch) {
	for k, v := range patch.Set {
		if k == "_id" {
			continue
		}
		doc[k] = helpers.CloneValue(v)
	}
	for _, k := range patch.Unset {
		if k == "_id" {
			continue
		}
		delete(doc, k)
	}
}

// applyFindOptions sorts, pages and projects a matched set. The returned documents are
// copies.
func applyFindOptions(docs []bson.M, opts *FindOptions) []bson.M {
	if opts == nil {
		opts = &FindOptions{}
	}

	ordered := make([]bson.M, len(docs))
	copy(ordered, docs)

	if len(opts.Sort) > 0 {
		sort.SliceStable(ordered, func(i, j int) bool {
			for _, s := range opts.Sort {
				a, _ := lookupField(ordered[i], s.Field)
				b, _ := lookupField(ordered[j], s.Field)
				cmp := compareForSort(a, b)
				if cmp == 0 {
					continue
				}
				if s.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(ordered)) {
			ordered = ordered[:0]
		} else {
			ordered = ordered[opts.Skip:]
		}
	}
	if opts.Limit > 0 && opts.Limit < int64(len(ordered)) {
		ordered = ordered[:opts.Limit]
	}

	out := make([]bson.M, len(ordered))
	for i, doc := range ordered {
		out[i] = project(doc, opts.Fields)
	}
	return out
}

// compareForSort orders missing values first, like the mongo sort order for null.
func compareForSort(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if cmp, ok := compareValues(a, b); ok {
		return cmp
	}
	return strings.Compare(helpers.NormalizeKey(a), helpers.NormalizeKey(b))
}

func project(doc bson.M, fields []string) bson.M {
	if len(fields) == 0 {
		return helpers.CloneDocument(doc)
	}
	out := bson.M{"_id": doc["_id"]}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = helpers.CloneValue(v)
		}
	}
	return out
}
