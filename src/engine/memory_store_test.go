package engine

import (
	"context"
	"errors"
	"testing"

	"lucidodm/src/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zaptest"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(helpers.NewIDGenerator("objectid"), zaptest.NewLogger(t).Sugar())
	exerciseStore(t, store)
}

func TestMemoryStoreUUIDStrategy(t *testing.T) {
	store := NewMemoryStore(helpers.NewIDGenerator("uuid"), zaptest.NewLogger(t).Sugar())

	ids, err := store.Insert(context.Background(), "users", bson.M{"username": "virk"})
	require.NoError(t, err)
	assert.IsType(t, "", ids[0])
	assert.Len(t, ids[0], 36)
}

func TestMemoryStoreInsertDoesNotAliasCallerDocuments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil, zaptest.NewLogger(t).Sugar())

	input := bson.M{"tags": bson.A{"a"}}
	_, err := store.Insert(ctx, "posts", input)
	require.NoError(t, err)
	input["tags"].(bson.A)[0] = "changed"
	assert.NotContains(t, input, "_id")

	doc, err := store.FindOne(ctx, "posts", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, bson.A{"a"}, doc["tags"])
}

func TestMemoryStoreRespectsCancelledContext(t *testing.T) {
	store := NewMemoryStore(nil, zaptest.NewLogger(t).Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Find(ctx, "posts", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyFindOptionsSortsMissingFirst(t *testing.T) {
	docs := []bson.M{{"_id": 1, "n": 2}, {"_id": 2}, {"_id": 3, "n": 1}}
	out := applyFindOptions(docs, &FindOptions{Sort: []SortField{{Field: "n"}}})

	require.Len(t, out, 3)
	assert.Equal(t, 2, out[0]["_id"])
	assert.Equal(t, 3, out[1]["_id"])
	assert.Equal(t, 1, out[2]["_id"])
}

func TestMemoryStoreKeepsStateWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil, zaptest.NewLogger(t).Sugar())
	_, err := store.Insert(ctx, "users", bson.M{"_id": 1, "username": "virk"})
	require.NoError(t, err)

	diskFull := errors.New("disk full")
	store.onWrite = func(*Bundle) error { return diskFull }

	_, err = store.Insert(ctx, "users", bson.M{"_id": 2, "username": "nikk"})
	assert.ErrorIs(t, err, diskFull)
	_, err = store.Update(ctx, "users", Eq("_id", 1), Patch{Set: bson.M{"username": "romain"}})
	assert.ErrorIs(t, err, diskFull)
	_, err = store.Delete(ctx, "users", nil)
	assert.ErrorIs(t, err, diskFull)

	docs, err := store.Find(ctx, "users", nil, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "virk", docs[0]["username"])

	store.onWrite = nil
	n, err := store.Update(ctx, "users", Eq("_id", 1), Patch{Set: bson.M{"username": "romain"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
