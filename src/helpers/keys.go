package helpers

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NormalizeKey returns the canonical comparison form of a key value. Integers of any
// width and whole floats share one representation, ObjectIDs compare by hex.
func NormalizeKey(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return t.Hex()
	case *primitive.ObjectID:
		if t == nil {
			return ""
		}
		return t.Hex()
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case float32:
		return normalizeFloat(float64(t))
	case float64:
		return normalizeFloat(t)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToString(t)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func normalizeFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// KeysEqual reports whether two key values normalise to the same form.
func KeysEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return NormalizeKey(a) == NormalizeKey(b)
}

// CloneDocument deep copies a document so callers never share nested maps or arrays
// with a store.
func CloneDocument(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = CloneValue(v)
	}
	return out
}

func CloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return CloneDocument(t)
	case map[string]interface{}:
		return map[string]interface{}(CloneDocument(bson.M(t)))
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []bson.M:
		out := make([]bson.M, len(t))
		for i, e := range t {
			out[i] = CloneDocument(e)
		}
		return out
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: CloneValue(e.Value)}
		}
		return out
	default:
		return v
	}
}

// AsDocument converts the map shapes a decoder may produce into a bson.M.
func AsDocument(v interface{}) (bson.M, bool) {
	switch t := v.(type) {
	case bson.M:
		return t, true
	case map[string]interface{}:
		return bson.M(t), true
	case bson.D:
		return t.Map(), true
	default:
		return nil, false
	}
}

// AsArray converts the slice shapes a decoder may produce into a []interface{}.
func AsArray(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case bson.A:
		return []interface{}(t), true
	case []interface{}:
		return t, true
	case []bson.M:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out, true
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = bson.M(e)
		}
		return out, true
	default:
		return nil, false
	}
}
