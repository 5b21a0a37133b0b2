package lucid

import (
	"reflect"

	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CoerceID turns a 24 character hex string into an ObjectID. Anything else is returned as is.
func CoerceID(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok || len(s) != 24 {
		return v
	}
	if id, err := primitive.ObjectIDFromHex(s); err == nil {
		return id
	}
	return v
}

func coerceIDs(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = CoerceID(v)
	}
	return out
}

// uniqueKeys drops nil values and later duplicates, keeping first-seen order.
func uniqueKeys(values []interface{}) []interface{} {
	seen := make(map[string]struct{}, len(values))
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		key := helpers.NormalizeKey(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// toList flattens any slice into []interface{}. A non-slice value becomes a one element list.
func toList(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	if arr, ok := helpers.AsArray(v); ok {
		return arr
	}
	if _, isID := v.(primitive.ObjectID); isID {
		return []interface{}{v}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{v}
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// asModels accepts the slice shapes a caller may hand to saveMany.
func asModels(v interface{}) ([]*Model, bool) {
	switch t := v.(type) {
	case []*Model:
		return t, true
	case *Collection:
		if t == nil {
			return nil, false
		}
		return t.Rows, true
	case []interface{}:
		out := make([]*Model, 0, len(t))
		for _, e := range t {
			m, ok := e.(*Model)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	}
	return nil, false
}

// asAttributeList accepts the slice shapes a caller may hand to createMany.
func asAttributeList(v interface{}) ([]bson.M, bool) {
	arr, ok := helpers.AsArray(v)
	if !ok {
		return nil, false
	}
	out := make([]bson.M, 0, len(arr))
	for _, e := range arr {
		doc, ok := helpers.AsDocument(e)
		if !ok {
			return nil, false
		}
		out = append(out, doc)
	}
	return out, true
}
