package lucid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMorphOneSaveAndFetch(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "virk")

	picture, err := user.MorphOne(f.Picture).Create(f.ctx, bson.M{"path": "/avatar.png"})
	require.NoError(t, err)
	assert.Equal(t, user.ID(), picture.Attr("parent_id"))
	assert.Equal(t, "User", picture.Attr("determiner"))
	assert.Equal(t, "User", picture.ParentName())

	f.insert(t, "pictures", bson.M{"path": "/other.png", "parent_id": user.ID(), "determiner": "Post"})

	got, err := user.MorphOne(f.Picture).Fetch(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/avatar.png", got.Attr("path"))
}

func TestMorphManyScopesByDeterminer(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "virk")
	post, err := f.Post.Create(f.ctx, bson.M{"title": "Adonis 101"})
	require.NoError(t, err)

	_, err = CreateMany(f.ctx, user.MorphMany(f.Picture), []bson.M{{"path": "/a.png"}, {"path": "/b.png"}})
	require.NoError(t, err)
	_, err = post.MorphMany(f.Picture).Create(f.ctx, bson.M{"path": "/c.png"})
	require.NoError(t, err)

	pictures, err := user.MorphMany(f.Picture).Fetch(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pictures.Size())

	n, err := post.MorphMany(f.Picture).Count(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	page, err := Paginate(f.ctx, user.MorphMany(f.Picture), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Pages.Total)
}

func TestMorphToResolvesOwner(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "virk")
	picture, err := user.MorphOne(f.Picture).Create(f.ctx, bson.M{"path": "/avatar.png"})
	require.NoError(t, err)

	owner, err := picture.MorphTo().First(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Same(t, f.User, owner.Type())
	assert.Equal(t, "virk", owner.Attr("username"))

	rel, err := picture.Relation("pictureable")
	require.NoError(t, err)
	fetched, err := Fetch(f.ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, user.ID(), fetched.(*Model).ID())
}

func TestMorphToRequiresKeys(t *testing.T) {
	f := newFixture(t)
	orphan := f.Picture.New(bson.M{"path": "/x.png"})

	_, err := orphan.MorphTo().First(f.ctx)
	assert.ErrorIs(t, err, ErrUnsavedModelInstance)

	unknown := f.Picture.New(bson.M{"parent_id": 1, "determiner": "Comment"})
	_, err = unknown.MorphTo().Fetch(f.ctx)
	assert.ErrorIs(t, err, ErrModelNotRegistered)
}

func TestMorphToEagerLoadOneQueryPerType(t *testing.T) {
	f := newFixture(t)
	virk := f.user(t, "virk")
	nikk := f.user(t, "nikk")
	post, err := f.Post.Create(f.ctx, bson.M{"title": "Adonis 101"})
	require.NoError(t, err)

	for _, owner := range []*Model{virk, post, nikk, virk} {
		_, err := owner.MorphMany(f.Picture).Create(f.ctx, bson.M{"path": "/p.png"})
		require.NoError(t, err)
	}
	usersBefore, postsBefore := f.reads("users"), f.reads("posts")

	pictures, err := f.Picture.With("pictureable").Fetch(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 4, pictures.Size())

	assert.Equal(t, usersBefore+1, f.reads("users"))
	assert.Equal(t, postsBefore+1, f.reads("posts"))

	for _, p := range pictures.Rows {
		owner := p.RelatedModel("pictureable")
		require.NotNil(t, owner)
		assert.Equal(t, p.Attr("determiner"), owner.Type().Name)
		assert.Equal(t, p.Attr("parent_id"), owner.ID())
	}
}

func TestMorphEagerLoadFromOwner(t *testing.T) {
	f := newFixture(t)
	virk := f.user(t, "virk")
	f.user(t, "nikk")
	_, err := virk.MorphOne(f.Picture).Create(f.ctx, bson.M{"path": "/avatar.png"})
	require.NoError(t, err)

	users, err := f.User.With("picture", "pictures").OrderBy("username", "desc").Fetch(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, "/avatar.png", users.First().RelatedModel("picture").Attr("path"))
	assert.Equal(t, 1, users.First().RelatedCollection("pictures").Size())
	assert.Nil(t, users.Last().RelatedModel("picture"))
	assert.True(t, users.Last().RelatedCollection("pictures").IsEmpty())
}
