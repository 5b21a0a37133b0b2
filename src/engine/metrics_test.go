package engine

import (
	"context"
	"testing"

	"lucidodm/src/settings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zaptest"
)

func TestInstrumentedStoreCountsOperations(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()
	metrics := NewStoreMetrics(prometheus.NewRegistry())
	store := NewInstrumentedStore(NewMemoryStore(nil, logger), metrics, logger)

	_, err := store.Insert(ctx, "users", bson.M{"username": "virk"}, bson.M{"username": "romain"})
	require.NoError(t, err)
	_, err = store.Find(ctx, "users", nil, nil)
	require.NoError(t, err)
	_, err = store.FindOne(ctx, "users", Eq("username", "virk"), nil)
	require.NoError(t, err)
	_, err = store.Find(ctx, "", nil, nil)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues("users", "insert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues("users", "find")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues("users", "find_one")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("", "find")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("users", "find")))
}

func TestInstrumentedStoreUnwrap(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	inner := NewMemoryStore(nil, logger)
	store := NewInstrumentedStore(inner, NewStoreMetrics(nil), logger)

	assert.Same(t, inner, store.Unwrap())
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t).Sugar()

	args := settings.Defaults()
	store, err := OpenStore(ctx, args, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	args.Driver = "file"
	args.DataDir = t.TempDir()
	args.MetricsEnabled = true
	store, err = OpenStore(ctx, args, prometheus.NewRegistry(), logger)
	require.NoError(t, err)
	instrumented, ok := store.(*InstrumentedStore)
	require.True(t, ok)
	assert.IsType(t, &BundleStorageEngine{}, instrumented.Unwrap())

	args = settings.Defaults()
	args.Driver = "sqlite"
	store, err = OpenStore(ctx, args, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close(ctx))

	args.Driver = "redis"
	_, err = OpenStore(ctx, args, nil, logger)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
