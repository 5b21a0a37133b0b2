package lucid

import (
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
)

// ToMap renders the instance for output: visible attributes through their getters,
// computed fields, then loaded relations.
func (m *Model) ToMap() bson.M {
	out := bson.M{}
	for k := range m.attributes {
		if m.typ.serializes(k) {
			out[k] = m.Get(k)
		}
	}
	for name, fn := range m.typ.computed {
		out[name] = fn(m)
	}
	for name, value := range m.relations {
		out[name] = serializeRelated(value)
	}
	return out
}

func (t *ModelType) serializes(field string) bool {
	if len(t.Visible) > 0 {
		for _, f := range t.Visible {
			if f == field {
				return true
			}
		}
		return false
	}
	for _, f := range t.Hidden {
		if f == field {
			return false
		}
	}
	return true
}

func serializeRelated(value interface{}) interface{} {
	switch v := value.(type) {
	case *Model:
		return v.ToMap()
	case *Collection:
		return v.ToSlice()
	default:
		return nil
	}
}

// ToSlice renders every row with ToMap.
func (c *Collection) ToSlice() []bson.M {
	out := make([]bson.M, len(c.Rows))
	for i, m := range c.Rows {
		out[i] = m.ToMap()
	}
	return out
}

func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

// MarshalJSON renders a plain array, or the pagination meta with the rows under "data"
// for paginated results.
func (c *Collection) MarshalJSON() ([]byte, error) {
	if c.Pages == nil {
		return json.Marshal(c.ToSlice())
	}
	return json.Marshal(struct {
		*Pagination
		Data []bson.M `json:"data"`
	}{c.Pages, c.ToSlice()})
}
