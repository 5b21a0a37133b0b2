package lucid

import (
	"context"
	"testing"
	"time"

	"lucidodm/src/engine"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fixture is a registry over an instrumented memory store with the model graph used
// across the package tests:
//
//	User    profile(HasOne Profile) cars(HasMany Car) posts(BelongsToMany Post)
//	        emails(EmbedsMany Email) picture(MorphOne Picture) pictures(MorphMany Picture)
//	Profile user(BelongsTo User)
//	Car     user(BelongsTo User) parts(HasMany Part)
//	Post    users(BelongsToMany User) pictures(MorphMany Picture)
//	Picture pictureable(MorphTo)
type fixture struct {
	ctx      context.Context
	store    engine.Store
	metrics  *engine.StoreMetrics
	registry *Registry

	User    *ModelType
	Profile *ModelType
	Car     *ModelType
	Part    *ModelType
	Post    *ModelType
	Picture *ModelType
	Email   *ModelType
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	metrics := engine.NewStoreMetrics(prometheus.NewRegistry())
	store := engine.NewInstrumentedStore(engine.NewMemoryStore(nil, logger), metrics, logger)
	reg := NewRegistry(store, logger, WithClock(func() time.Time { return fixedNow }))

	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		metrics:  metrics,
		registry: reg,
		User:     reg.Define("User"),
		Profile:  reg.Define("Profile"),
		Car:      reg.Define("Car"),
		Part:     reg.Define("Part"),
		Post:     reg.Define("Post"),
		Picture:  reg.Define("Picture"),
		Email:    reg.Define("Email"),
	}

	f.User.
		Relation("profile", func(m *Model) Relation { return m.HasOne(f.Profile) }).
		Relation("cars", func(m *Model) Relation { return m.HasMany(f.Car) }).
		Relation("posts", func(m *Model) Relation { return m.BelongsToMany(f.Post) }).
		Relation("emails", func(m *Model) Relation { return m.EmbedsMany(f.Email) }).
		Relation("picture", func(m *Model) Relation { return m.MorphOne(f.Picture) }).
		Relation("pictures", func(m *Model) Relation { return m.MorphMany(f.Picture) })
	f.Profile.Relation("user", func(m *Model) Relation { return m.BelongsTo(f.User) })
	f.Car.
		Relation("user", func(m *Model) Relation { return m.BelongsTo(f.User) }).
		Relation("parts", func(m *Model) Relation { return m.HasMany(f.Part) })
	f.Post.
		Relation("users", func(m *Model) Relation { return m.BelongsToMany(f.User) }).
		Relation("pictures", func(m *Model) Relation { return m.MorphMany(f.Picture) })
	f.Picture.Relation("pictureable", func(m *Model) Relation { return m.MorphTo() })

	return f
}

// insert writes raw documents and returns their ids.
func (f *fixture) insert(t *testing.T, collection string, docs ...bson.M) []interface{} {
	t.Helper()
	ids, err := f.store.Insert(f.ctx, collection, docs...)
	require.NoError(t, err)
	return ids
}

func (f *fixture) ops(collection, operation string) float64 {
	return testutil.ToFloat64(f.metrics.Operations.WithLabelValues(collection, operation))
}

// reads counts find and find_one calls against collection.
func (f *fixture) reads(collection string) float64 {
	return f.ops(collection, "find") + f.ops(collection, "find_one")
}

// writes counts insert, update and delete calls against the collections.
func (f *fixture) writes(collections ...string) float64 {
	var n float64
	for _, c := range collections {
		n += f.ops(c, "insert") + f.ops(c, "update") + f.ops(c, "delete")
	}
	return n
}

func (f *fixture) user(t *testing.T, name string) *Model {
	t.Helper()
	u, err := f.User.Create(f.ctx, bson.M{"username": name})
	require.NoError(t, err)
	return u
}

func (f *fixture) count(t *testing.T, collection string, where *engine.WhereGroup) int64 {
	t.Helper()
	n, err := f.store.Count(f.ctx, collection, where)
	require.NoError(t, err)
	return n
}

func usernames(c *Collection) []interface{} {
	out := make([]interface{}, 0, c.Size())
	for _, m := range c.Rows {
		out = append(out, m.Attr("username"))
	}
	return out
}
