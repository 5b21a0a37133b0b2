package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// exerciseStore runs the behaviour every driver shares.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("insert assigns ids in input order", func(t *testing.T) {
		given := primitive.NewObjectID()
		ids, err := store.Insert(ctx, "posts",
			bson.M{"title": "b", "likes": 3},
			bson.M{"_id": given, "title": "a", "likes": 10},
			bson.M{"title": "c", "likes": 1, "draft": true},
		)
		require.NoError(t, err)
		require.Len(t, ids, 3)
		assert.NotNil(t, ids[0])
		assert.Equal(t, given, ids[1])
	})

	t.Run("duplicate ids are rejected", func(t *testing.T) {
		ids, err := store.Insert(ctx, "dupes", bson.M{"n": 1})
		require.NoError(t, err)
		_, err = store.Insert(ctx, "dupes", bson.M{"_id": ids[0]})
		assert.Error(t, err)
	})

	t.Run("find filters sorts and pages", func(t *testing.T) {
		docs, err := store.Find(ctx, "posts", Where("likes", OpGte, 2), &FindOptions{
			Sort: []SortField{{Field: "likes", Desc: true}},
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "a", docs[0]["title"])
		assert.Equal(t, "b", docs[1]["title"])

		docs, err = store.Find(ctx, "posts", nil, &FindOptions{
			Sort:  []SortField{{Field: "title"}},
			Skip:  1,
			Limit: 1,
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "b", docs[0]["title"])
	})

	t.Run("find projects fields and keeps _id", func(t *testing.T) {
		docs, err := store.Find(ctx, "posts", Eq("title", "c"), &FindOptions{Fields: []string{"likes"}})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Contains(t, docs[0], "_id")
		assert.Contains(t, docs[0], "likes")
		assert.NotContains(t, docs[0], "title")
	})

	t.Run("returned documents are copies", func(t *testing.T) {
		doc, err := store.FindOne(ctx, "posts", Eq("title", "a"), nil)
		require.NoError(t, err)
		require.NotNil(t, doc)
		doc["title"] = "mutated"

		again, err := store.FindOne(ctx, "posts", Eq("_id", doc["_id"]), nil)
		require.NoError(t, err)
		assert.Equal(t, "a", again["title"])
	})

	t.Run("find one returns nil without a match", func(t *testing.T) {
		doc, err := store.FindOne(ctx, "posts", Eq("title", "nope"), nil)
		require.NoError(t, err)
		assert.Nil(t, doc)

		doc, err = store.FindOne(ctx, "unknown_collection", nil, nil)
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("update sets and unsets", func(t *testing.T) {
		n, err := store.Update(ctx, "posts", Eq("draft", true), Patch{
			Set:   bson.M{"likes": 7, "_id": "ignored"},
			Unset: []string{"draft"},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		doc, err := store.FindOne(ctx, "posts", Eq("title", "c"), nil)
		require.NoError(t, err)
		assert.EqualValues(t, 7, doc["likes"])
		assert.NotContains(t, doc, "draft")
		assert.NotEqual(t, "ignored", doc["_id"])
	})

	t.Run("count and delete", func(t *testing.T) {
		n, err := store.Count(ctx, "posts", nil)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)

		removed, err := store.Delete(ctx, "posts", Where("likes", OpLt, 8))
		require.NoError(t, err)
		assert.EqualValues(t, 2, removed)

		n, err = store.Count(ctx, "posts", nil)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = store.Count(ctx, "unknown_collection", nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("collections", func(t *testing.T) {
		names, err := store.Collections(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, "posts")
		assert.Contains(t, names, "dupes")
	})

	t.Run("invalid collection names", func(t *testing.T) {
		_, err := store.Find(ctx, "", nil, nil)
		assert.ErrorIs(t, err, ErrCollectionNameInvalid)

		_, err = store.Insert(ctx, "../escape", bson.M{})
		assert.ErrorIs(t, err, ErrCollectionNameInvalid)
	})
}
