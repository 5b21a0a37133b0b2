package lucid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCoerceID(t *testing.T) {
	id := primitive.NewObjectID()

	assert.Equal(t, id, CoerceID(id.Hex()))
	assert.Equal(t, id, CoerceID(id))
	assert.Equal(t, "virk", CoerceID("virk"))
	assert.Equal(t, "zzzzzzzzzzzzzzzzzzzzzzzz", CoerceID("zzzzzzzzzzzzzzzzzzzzzzzz"))
	assert.Equal(t, 10, CoerceID(10))
}

func TestUniqueKeys(t *testing.T) {
	id := primitive.NewObjectID()
	got := uniqueKeys([]interface{}{1, nil, int64(1), "a", id, 2.0, 2, id})
	assert.Equal(t, []interface{}{1, "a", id, 2.0}, got)
}

func TestToList(t *testing.T) {
	id := primitive.NewObjectID()

	assert.Nil(t, toList(nil))
	assert.Equal(t, []interface{}{1}, toList(1))
	assert.Equal(t, []interface{}{id}, toList(id))
	assert.Equal(t, []interface{}{1, 2}, toList([]int{1, 2}))
	assert.Equal(t, []interface{}{"a", "b"}, toList([]string{"a", "b"}))
	assert.Equal(t, []interface{}{"x"}, toList(bson.A{"x"}))
}

func TestAsModels(t *testing.T) {
	f := newFixture(t)
	a, b := f.User.New(nil), f.User.New(nil)

	rows, ok := asModels([]*Model{a, b})
	assert.True(t, ok)
	assert.Len(t, rows, 2)

	rows, ok = asModels(NewCollection(a))
	assert.True(t, ok)
	assert.Equal(t, []*Model{a}, rows)

	rows, ok = asModels([]interface{}{a, b})
	assert.True(t, ok)
	assert.Len(t, rows, 2)

	_, ok = asModels([]interface{}{a, "b"})
	assert.False(t, ok)
	_, ok = asModels(a)
	assert.False(t, ok)
	_, ok = asModels(bson.M{})
	assert.False(t, ok)
}

func TestAsAttributeList(t *testing.T) {
	list, ok := asAttributeList([]bson.M{{"a": 1}, {"a": 2}})
	assert.True(t, ok)
	assert.Len(t, list, 2)

	list, ok = asAttributeList([]interface{}{map[string]interface{}{"a": 1}})
	assert.True(t, ok)
	assert.Equal(t, bson.M{"a": 1}, list[0])

	_, ok = asAttributeList(bson.M{"a": 1})
	assert.False(t, ok)
	_, ok = asAttributeList([]interface{}{1})
	assert.False(t, ok)
}
