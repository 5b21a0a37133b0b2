package lucid

import (
	"testing"

	"lucidodm/src/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func byField(field string) identityFunc {
	return func(row *Model) (string, bool) {
		v := row.Attr(field)
		if v == nil {
			return "", false
		}
		return helpers.NormalizeKey(v), true
	}
}

func TestGroupSingleLastWriteWins(t *testing.T) {
	f := newFixture(t)
	first := f.Profile.New(bson.M{"user_id": 1, "name": "first"})
	other := f.Profile.New(bson.M{"user_id": 2, "name": "other"})
	second := f.Profile.New(bson.M{"user_id": int32(1), "name": "second"})

	g := groupSingle([]*Model{first, other, second}, byField("user_id"))

	require.Equal(t, 2, g.Len())
	assert.Equal(t, "1", g.Values[0].Identity)
	assert.Same(t, second, g.Values[0].Value)
	assert.Equal(t, "2", g.Values[1].Identity)
	assert.Same(t, other, g.Values[1].Value)

	v, ok := g.Lookup("1")
	assert.True(t, ok)
	assert.Same(t, second, v)
	_, ok = g.Lookup("3")
	assert.False(t, ok)
}

func TestGroupManyKeepsIterationOrder(t *testing.T) {
	f := newFixture(t)
	a := f.Car.New(bson.M{"user_id": 1, "name": "a"})
	b := f.Car.New(bson.M{"user_id": 2, "name": "b"})
	c := f.Car.New(bson.M{"user_id": 1, "name": "c"})
	orphan := f.Car.New(bson.M{"name": "orphan"})

	g := groupMany([]*Model{a, b, orphan, c}, byField("user_id"))

	require.Equal(t, 2, g.Len())
	assert.Equal(t, "1", g.Values[0].Identity)
	assert.Equal(t, []*Model{a, c}, g.Values[0].Value.(*Collection).Rows)
	assert.Equal(t, []*Model{b}, g.Values[1].Value.(*Collection).Rows)
}

func TestGroupEmpty(t *testing.T) {
	g := groupMany(nil, byField("user_id"))
	assert.Equal(t, 0, g.Len())
	_, ok := g.Lookup("")
	assert.False(t, ok)
}
