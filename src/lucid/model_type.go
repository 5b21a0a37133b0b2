package lucid

import (
	"context"
	"sort"

	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

// RelationFactory builds a fresh relation handle bound to m.
type RelationFactory func(m *Model) Relation

// Getter transforms a stored value when it is read.
type Getter func(value interface{}) interface{}

// Setter transforms a value before it is stored on the instance.
type Setter func(value interface{}) interface{}

// Computed derives a serialized field from the whole instance.
type Computed func(m *Model) interface{}

// ModelType describes one kind of document: where it is stored, how it is keyed, its
// hooks and the relations it declares.
type ModelType struct {
	registry *Registry

	Name            string
	Collection      string
	PrimaryKey      string
	CreatedAtColumn string
	UpdatedAtColumn string

	// Hidden fields are dropped from serialized output. A non-empty Visible list wins over Hidden.
	Hidden  []string
	Visible []string

	relations    map[string]RelationFactory
	hooks        map[HookEvent][]Hook
	fetchHooks   map[HookEvent][]FetchHook
	getters      map[string]Getter
	setters      map[string]Setter
	computed     map[string]Computed
	globalScopes map[string]func(*Query)
}

type TypeOption func(*ModelType)

func WithCollection(name string) TypeOption {
	return func(t *ModelType) {
		t.Collection = name
	}
}

func WithPrimaryKey(field string) TypeOption {
	return func(t *ModelType) {
		t.PrimaryKey = field
	}
}

// WithTimestamps renames the timestamp columns.
func WithTimestamps(createdAt, updatedAt string) TypeOption {
	return func(t *ModelType) {
		t.CreatedAtColumn = createdAt
		t.UpdatedAtColumn = updatedAt
	}
}

func WithoutTimestamps() TypeOption {
	return WithTimestamps("", "")
}

func WithHidden(fields ...string) TypeOption {
	return func(t *ModelType) {
		t.Hidden = append(t.Hidden, fields...)
	}
}

func WithVisible(fields ...string) TypeOption {
	return func(t *ModelType) {
		t.Visible = append(t.Visible, fields...)
	}
}

func newModelType(r *Registry, name string, opts ...TypeOption) *ModelType {
	t := &ModelType{
		registry:        r,
		Name:            name,
		Collection:      helpers.CollectionName(name),
		PrimaryKey:      "_id",
		CreatedAtColumn: "created_at",
		UpdatedAtColumn: "updated_at",
		relations:       make(map[string]RelationFactory),
		hooks:           make(map[HookEvent][]Hook),
		fetchHooks:      make(map[HookEvent][]FetchHook),
		getters:         make(map[string]Getter),
		setters:         make(map[string]Setter),
		computed:        make(map[string]Computed),
		globalScopes:    make(map[string]func(*Query)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ModelType) Registry() *Registry {
	return t.registry
}

// Relation registers a relation factory under name.
func (t *ModelType) Relation(name string, factory RelationFactory) *ModelType {
	t.relations[name] = factory
	return t
}

func (t *ModelType) HasRelation(name string) bool {
	_, ok := t.relations[name]
	return ok
}

// RelationNames lists the declared relations in sorted order.
func (t *ModelType) RelationNames() []string {
	names := make([]string, 0, len(t.relations))
	for name := range t.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *ModelType) AddGetter(field string, fn Getter) *ModelType {
	t.getters[field] = fn
	return t
}

func (t *ModelType) AddSetter(field string, fn Setter) *ModelType {
	t.setters[field] = fn
	return t
}

func (t *ModelType) AddComputed(field string, fn Computed) *ModelType {
	t.computed[field] = fn
	return t
}

// AddGlobalScope registers a constraint applied to every query of the type unless the
// query opts out with IgnoreScopes.
func (t *ModelType) AddGlobalScope(name string, scope func(*Query)) error {
	if scope == nil {
		return invalidParameter("%s.addGlobalScope expects a closure as first parameter", t.Name)
	}
	t.globalScopes[name] = scope
	return nil
}

// New builds an unsaved instance. Setters run on the given attributes.
func (t *ModelType) New(attrs bson.M) *Model {
	m := t.blank()
	for k, v := range attrs {
		m.setAttribute(k, v)
	}
	return m
}

func (t *ModelType) blank() *Model {
	return &Model{
		typ:        t,
		attributes: bson.M{},
		original:   bson.M{},
		relations:  make(map[string]interface{}),
	}
}

// hydrate wraps a stored document without running setters.
func (t *ModelType) hydrate(doc bson.M) *Model {
	m := t.blank()
	m.attributes = doc
	m.persisted = true
	m.syncOriginal()
	return m
}

func (t *ModelType) Query() *Query {
	return newQuery(t)
}

func (t *ModelType) Where(field string, args ...interface{}) *Query {
	return t.Query().Where(field, args...)
}

func (t *ModelType) With(args ...interface{}) *Query {
	return t.Query().With(args...)
}

// Find returns the instance with the given primary key or nil.
func (t *ModelType) Find(ctx context.Context, id interface{}) (*Model, error) {
	return t.Query().Where(t.PrimaryKey, id).First(ctx)
}

func (t *ModelType) FindOrFail(ctx context.Context, id interface{}) (*Model, error) {
	return t.Query().Where(t.PrimaryKey, id).FirstOrFail(ctx)
}

func (t *ModelType) FindBy(ctx context.Context, field string, value interface{}) (*Model, error) {
	return t.Query().Where(field, value).First(ctx)
}

func (t *ModelType) FindByOrFail(ctx context.Context, field string, value interface{}) (*Model, error) {
	return t.Query().Where(field, value).FirstOrFail(ctx)
}

func (t *ModelType) First(ctx context.Context) (*Model, error) {
	return t.Query().First(ctx)
}

func (t *ModelType) FirstOrFail(ctx context.Context) (*Model, error) {
	return t.Query().FirstOrFail(ctx)
}

func (t *ModelType) All(ctx context.Context) (*Collection, error) {
	return t.Query().Fetch(ctx)
}

func (t *ModelType) Count(ctx context.Context) (int64, error) {
	return t.Query().Count(ctx)
}

// Create builds and saves a new instance.
func (t *ModelType) Create(ctx context.Context, attrs bson.M) (*Model, error) {
	m := t.New(attrs)
	if err := m.Save(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMany saves one instance per attribute set, in order. attrs must be a slice of
// documents.
func (t *ModelType) CreateMany(ctx context.Context, attrs interface{}) ([]*Model, error) {
	list, ok := asAttributeList(attrs)
	if !ok {
		return nil, invalidParameter("%s.createMany expects an array of values instead received %s", t.Name, describeType(attrs))
	}
	out := make([]*Model, 0, len(list))
	for _, a := range list {
		m, err := t.Create(ctx, a)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// FindOrCreate returns the first row matching search, creating it from search merged
// with attrs when there is none.
func (t *ModelType) FindOrCreate(ctx context.Context, search, attrs bson.M) (*Model, error) {
	m, err := t.FindOrNew(ctx, search, attrs)
	if err != nil || !m.IsNew() {
		return m, err
	}
	if err := m.Save(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// FindOrNew is FindOrCreate without saving the new instance.
func (t *ModelType) FindOrNew(ctx context.Context, search, attrs bson.M) (*Model, error) {
	m, err := t.Query().WhereBSON(search).First(ctx)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}
	merged := helpers.CloneDocument(search)
	if merged == nil {
		merged = bson.M{}
	}
	for k, v := range attrs {
		merged[k] = v
	}
	return t.New(merged), nil
}
