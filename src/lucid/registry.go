package lucid

import (
	"fmt"
	"sync"
	"time"

	"lucidodm/src/engine"
	"lucidodm/src/helpers"

	"go.uber.org/zap"
)

// Registry owns the store and the table of model types. Relations that name a model
// type at runtime (MorphTo determiners, pivot models by name) resolve through it.
type Registry struct {
	store  engine.Store
	logger *zap.SugaredLogger
	newID  helpers.IDGenerator
	now    func() time.Time

	mu    sync.RWMutex
	types map[string]*ModelType
}

type RegistryOption func(*Registry)

// WithIDGenerator sets the generator used for embedded document ids.
func WithIDGenerator(newID helpers.IDGenerator) RegistryOption {
	return func(r *Registry) {
		r.newID = newID
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(store engine.Store, logger *zap.SugaredLogger, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:  store,
		logger: logger,
		newID:  helpers.NewIDGenerator("objectid"),
		now:    time.Now,
		types:  make(map[string]*ModelType),
	}
	if r.logger == nil {
		r.logger = zap.NewNop().Sugar()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Store() engine.Store {
	return r.store
}

func (r *Registry) Logger() *zap.SugaredLogger {
	return r.logger
}

// Define registers a model type under name. Defining the same name again replaces it.
func (r *Registry) Define(name string, opts ...TypeOption) *ModelType {
	t := newModelType(r, name, opts...)

	r.mu.Lock()
	r.types[name] = t
	r.mu.Unlock()

	r.logger.Debugw("model defined", "model", name, "collection", t.Collection)
	return t
}

// Lookup resolves a registered model type by name.
func (r *Registry) Lookup(name string) (*ModelType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotRegistered, name)
	}
	return t, nil
}

// pivotType builds an unregistered type for pivot rows of relations without a pivot model.
func (r *Registry) pivotType(collection string, timestamps bool) *ModelType {
	t := newModelType(r, "Pivot", WithCollection(collection))
	if !timestamps {
		t.CreatedAtColumn = ""
		t.UpdatedAtColumn = ""
	}
	return t
}
