package lucid

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToMapHiddenAndVisible(t *testing.T) {
	f := newFixture(t)
	u, err := f.User.Create(f.ctx, bson.M{"username": "virk", "password": "secret"})
	require.NoError(t, err)

	f.User.Hidden = []string{"password"}
	out := u.ToMap()
	assert.Equal(t, "virk", out["username"])
	assert.NotContains(t, out, "password")
	assert.Contains(t, out, "_id")

	f.User.Visible = []string{"username"}
	assert.Equal(t, bson.M{"username": "virk"}, u.ToMap())
}

func TestToMapGettersAndComputed(t *testing.T) {
	f := newFixture(t)
	f.User.AddGetter("username", func(v interface{}) interface{} { return strings.ToUpper(v.(string)) })
	f.User.AddComputed("handle", func(m *Model) interface{} { return "@" + m.Attr("username").(string) })

	u := f.user(t, "virk")
	out := u.ToMap()
	assert.Equal(t, "VIRK", out["username"])
	assert.Equal(t, "@virk", out["handle"])
}

func TestToMapNestsRelations(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "virk")
	_, err := u.HasMany(f.Car).Create(f.ctx, bson.M{"name": "merc"})
	require.NoError(t, err)
	post, err := f.Post.Create(f.ctx, bson.M{"title": "Adonis 101"})
	require.NoError(t, err)
	_, err = u.BelongsToMany(f.Post).Attach(f.ctx, []interface{}{post.ID()}, nil)
	require.NoError(t, err)

	users, err := f.User.With("cars", "posts", "profile").Fetch(f.ctx)
	require.NoError(t, err)
	out := users.First().ToMap()

	cars, ok := out["cars"].([]bson.M)
	require.True(t, ok)
	require.Len(t, cars, 1)
	assert.Equal(t, "merc", cars[0]["name"])

	posts := out["posts"].([]bson.M)
	require.Len(t, posts, 1)
	pivot, ok := posts[0]["pivot"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, post.ID(), pivot["post_id"])
	assert.Equal(t, u.ID(), pivot["user_id"])

	assert.Contains(t, out, "profile")
	assert.Nil(t, out["profile"])
}

func TestMarshalJSON(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "virk")

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "virk", doc["username"])
	assert.Equal(t, u.ID().(primitive.ObjectID).Hex(), doc["_id"])
	assert.Equal(t, "2024-03-01T12:00:00Z", doc["created_at"])

	raw, err = json.Marshal(NewCollection(u))
	require.NoError(t, err)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "virk", rows[0]["username"])
}

func TestMarshalJSONPaginated(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"virk", "nikk", "romain"} {
		f.user(t, name)
	}

	page, err := f.User.Query().OrderBy("username").Paginate(f.ctx, 2, 2)
	require.NoError(t, err)
	raw, err := json.Marshal(page)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.EqualValues(t, 3, doc["total"])
	assert.EqualValues(t, 2, doc["perPage"])
	assert.EqualValues(t, 2, doc["page"])
	assert.EqualValues(t, 2, doc["lastPage"])
	data, ok := doc["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 1)
	assert.Equal(t, "virk", data[0].(map[string]interface{})["username"])
}
