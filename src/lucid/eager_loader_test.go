package lucid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func nodeNames(l *eagerLoader) []string {
	names := make([]string, 0, len(l.nodes))
	for _, n := range l.nodes {
		names = append(names, n.name)
	}
	return names
}

func TestEagerLoaderAddForms(t *testing.T) {
	l := newEagerLoader()
	require.NoError(t, l.add("profile", []string{"cars.parts", "posts"}))
	require.NoError(t, l.add(map[string]interface{}{
		"pictures": Scope{Limit: 1},
		"emails":   nil,
		"picture":  &Scope{Fields: []string{"path"}},
	}))
	require.NoError(t, l.add("cars", func(q *Query) {}))

	assert.Equal(t, []string{"profile", "cars", "posts", "emails", "picture", "pictures"}, nodeNames(l))
	cars := l.index["cars"]
	assert.NotNil(t, cars.constrain)
	assert.Equal(t, []string{"parts"}, nodeNames(cars.children))
	assert.Nil(t, cars.children.index["parts"].constrain)
	assert.Nil(t, l.index["emails"].constrain)
	assert.NotNil(t, l.index["pictures"].constrain)
}

func TestEagerLoaderRejectsInvalidArguments(t *testing.T) {
	l := newEagerLoader()
	assert.ErrorIs(t, l.add(42), ErrInvalidParameter)
	assert.ErrorIs(t, l.add(map[string]interface{}{"cars": "desc"}), ErrInvalidParameter)
	assert.ErrorIs(t, l.add("cars..parts"), ErrInvalidParameter)

	f := newFixture(t)
	_, err := f.User.With(42).Fetch(f.ctx)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestEagerLoaderDottedConstraintAppliesToLeaf(t *testing.T) {
	l := newEagerLoader()
	var applied []string
	require.NoError(t, l.add("cars.parts", func(q *Query) { applied = append(applied, q.typ.Name) }))

	assert.Nil(t, l.index["cars"].constrain)
	leaf := l.index["cars"].children.index["parts"]
	require.NotNil(t, leaf.constrain)

	f := newFixture(t)
	leaf.constrain(f.Part.Query())
	assert.Equal(t, []string{"Part"}, applied)
}

func TestEagerLoaderCloneAndMergeAreIndependent(t *testing.T) {
	base := newEagerLoader()
	require.NoError(t, base.add("cars.parts"))

	c := base.clone()
	require.NoError(t, c.add("profile", "cars.user"))

	assert.Equal(t, []string{"cars"}, nodeNames(base))
	assert.Equal(t, []string{"parts"}, nodeNames(base.index["cars"].children))
	assert.Equal(t, []string{"cars", "profile"}, nodeNames(c))
	assert.Equal(t, []string{"parts", "user"}, nodeNames(c.index["cars"].children))

	var calls int
	other := newEagerLoader()
	require.NoError(t, other.add("cars", func(q *Query) { calls++ }))
	require.NoError(t, base.add("cars", func(q *Query) { calls++ }))
	base.merge(other)
	base.index["cars"].constrain(nil)
	assert.Equal(t, 2, calls, "merged constraints both run")
}

func TestScopeAppliesToQuery(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "virk")
	_, err := CreateMany(f.ctx, u.HasMany(f.Car), []bson.M{
		{"name": "merc", "model": 1990},
		{"name": "audi", "model": 2001},
		{"name": "bmw", "model": 2010},
	})
	require.NoError(t, err)

	users, err := f.User.With("cars", Scope{
		Where:  bson.M{"model": bson.M{"$gt": 1995}},
		Fields: []string{"name"},
		Limit:  1,
	}).Fetch(f.ctx)
	require.NoError(t, err)

	cars := users.First().RelatedCollection("cars")
	require.Equal(t, 1, cars.Size())
	assert.Contains(t, []interface{}{"audi", "bmw"}, cars.First().Attr("name"))
	assert.Nil(t, cars.First().Attr("model"))
	assert.Equal(t, u.ID(), cars.First().Attr("user_id"), "the foreign key is always selected")
}
