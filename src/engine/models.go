package engine

import (
	"time"

	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

// Bundle is one collection of documents, kept in insertion order.
type Bundle struct {
	// Name is the collection name.
	Name string

	// Documents holds the stored documents, similar to rows in a table.
	Documents []bson.M

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewBundle(name string) *Bundle {
	now := time.Now()
	return &Bundle{Name: name, CreatedAt: now, UpdatedAt: now}
}

// BundleToMap converts the bundle into the document written to its data file.
func BundleToMap(bundle *Bundle) bson.M {
	docs := make(bson.A, len(bundle.Documents))
	for i, d := range bundle.Documents {
		docs[i] = d
	}
	return bson.M{
		"name":       bundle.Name,
		"documents":  docs,
		"created_at": bundle.CreatedAt,
		"updated_at": bundle.UpdatedAt,
	}
}

// MapToBundle is the inverse of BundleToMap.
func MapToBundle(data bson.M) (*Bundle, error) {
	name, _ := data["name"].(string)
	if name == "" {
		return nil, ErrCollectionNameInvalid
	}
	bundle := NewBundle(name)
	if t, ok := asTime(data["created_at"]); ok {
		bundle.CreatedAt = t
	}
	if t, ok := asTime(data["updated_at"]); ok {
		bundle.UpdatedAt = t
	}
	docs, _ := helpers.AsArray(data["documents"])
	for _, d := range docs {
		doc, ok := helpers.AsDocument(d)
		if !ok {
			continue
		}
		bundle.Documents = append(bundle.Documents, normalizeDecoded(doc))
	}
	return bundle, nil
}

// normalizeDecoded turns every nested bson.D into bson.M so decoded documents look
// like the ones the memory store holds.
func normalizeDecoded(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = normalizeDecodedValue(v)
	}
	return out
}

func normalizeDecodedValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		return normalizeDecoded(t.Map())
	case bson.M:
		return normalizeDecoded(t)
	case map[string]interface{}:
		return normalizeDecoded(bson.M(t))
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = normalizeDecodedValue(e)
		}
		return out
	case []interface{}:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = normalizeDecodedValue(e)
		}
		return out
	}
	return v
}
