package lucid

import (
	"context"
	"reflect"

	"lucidodm/src/engine"
	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

// Model is one document bound to its ModelType. An instance is owned by a single flow;
// nothing here is safe for concurrent use.
type Model struct {
	typ        *ModelType
	attributes bson.M
	original   bson.M

	persisted bool
	deleted   bool
	frozen    bool

	// relations holds eager loaded results: nil, *Model or *Collection.
	relations map[string]interface{}

	// parentName is the owning type when the instance was fetched through a relation.
	parentName string
}

func (m *Model) Type() *ModelType {
	return m.typ
}

// ID returns the primary key value, nil for unsaved instances.
func (m *Model) ID() interface{} {
	return m.attributes[m.typ.PrimaryKey]
}

func (m *Model) IsNew() bool {
	return !m.persisted
}

func (m *Model) IsPersisted() bool {
	return m.persisted
}

func (m *Model) IsDeleted() bool {
	return m.deleted
}

func (m *Model) IsFrozen() bool {
	return m.frozen
}

// Attr returns the raw stored value.
func (m *Model) Attr(field string) interface{} {
	return m.attributes[field]
}

// Get returns the value of field after its getter, if any.
func (m *Model) Get(field string) interface{} {
	v := m.attributes[field]
	if getter, ok := m.typ.getters[field]; ok {
		return getter(v)
	}
	return v
}

// Attributes returns a copy of the stored attributes.
func (m *Model) Attributes() bson.M {
	return helpers.CloneDocument(m.attributes)
}

// Set stores value under field after running the field's setter.
func (m *Model) Set(field string, value interface{}) error {
	if m.frozen {
		return deletedModel(m.typ.Name)
	}
	m.setAttribute(field, value)
	return nil
}

func (m *Model) setAttribute(field string, value interface{}) {
	if setter, ok := m.typ.setters[field]; ok {
		value = setter(value)
	}
	m.attributes[field] = value
}

// Merge sets every given attribute, keeping the others.
func (m *Model) Merge(attrs bson.M) error {
	if m.frozen {
		return deletedModel(m.typ.Name)
	}
	for k, v := range attrs {
		m.setAttribute(k, v)
	}
	return nil
}

// Fill replaces the attributes. The primary key of a persisted instance is kept.
func (m *Model) Fill(attrs bson.M) error {
	if m.frozen {
		return deletedModel(m.typ.Name)
	}
	id, hasID := m.attributes[m.typ.PrimaryKey]
	m.attributes = bson.M{}
	if hasID && m.persisted {
		m.attributes[m.typ.PrimaryKey] = id
	}
	for k, v := range attrs {
		m.setAttribute(k, v)
	}
	return nil
}

// Dirty returns the attributes changed since the instance was last saved or loaded.
func (m *Model) Dirty() bson.M {
	dirty := bson.M{}
	for k, v := range m.attributes {
		if k == m.typ.PrimaryKey {
			continue
		}
		orig, ok := m.original[k]
		if !ok || !reflect.DeepEqual(orig, v) {
			dirty[k] = v
		}
	}
	return dirty
}

func (m *Model) IsDirty() bool {
	return len(m.Dirty()) > 0
}

func (m *Model) syncOriginal() {
	m.original = helpers.CloneDocument(m.attributes)
}

func (m *Model) store() engine.Store {
	return m.typ.registry.store
}

func (m *Model) keyFilter() *engine.WhereGroup {
	return engine.Eq(m.typ.PrimaryKey, m.ID())
}

// Save inserts a new instance or writes the dirty attributes of a persisted one.
func (m *Model) Save(ctx context.Context) error {
	if m.frozen {
		return deletedModel(m.typ.Name)
	}
	if m.IsNew() {
		return m.insert(ctx)
	}
	return m.update(ctx)
}

func (m *Model) insert(ctx context.Context) error {
	t := m.typ
	if err := t.runHooks(ctx, BeforeCreate, m); err != nil {
		return err
	}
	if err := t.runHooks(ctx, BeforeSave, m); err != nil {
		return err
	}

	now := t.registry.now()
	if t.CreatedAtColumn != "" {
		m.attributes[t.CreatedAtColumn] = now
	}
	if t.UpdatedAtColumn != "" {
		m.attributes[t.UpdatedAtColumn] = now
	}

	doc := helpers.CloneDocument(m.attributes)
	if doc["_id"] == nil {
		delete(doc, "_id")
	}
	ids, err := m.store().Insert(ctx, t.Collection, doc)
	if err != nil {
		return err
	}
	if m.attributes["_id"] == nil {
		m.attributes["_id"] = ids[0]
	}
	m.persisted = true
	m.syncOriginal()

	if err := t.runHooks(ctx, AfterCreate, m); err != nil {
		return err
	}
	return t.runHooks(ctx, AfterSave, m)
}

func (m *Model) update(ctx context.Context) error {
	t := m.typ
	if err := t.runHooks(ctx, BeforeUpdate, m); err != nil {
		return err
	}
	if err := t.runHooks(ctx, BeforeSave, m); err != nil {
		return err
	}

	dirty := m.Dirty()
	if len(dirty) > 0 {
		if t.UpdatedAtColumn != "" {
			now := t.registry.now()
			m.attributes[t.UpdatedAtColumn] = now
			dirty[t.UpdatedAtColumn] = now
		}
		if _, err := m.store().Update(ctx, t.Collection, m.keyFilter(), engine.Patch{Set: dirty}); err != nil {
			return err
		}
		m.syncOriginal()
	}

	if err := t.runHooks(ctx, AfterUpdate, m); err != nil {
		return err
	}
	return t.runHooks(ctx, AfterSave, m)
}

// Delete removes the row and freezes the instance.
func (m *Model) Delete(ctx context.Context) error {
	if m.frozen {
		return deletedModel(m.typ.Name)
	}
	if m.IsNew() {
		return unsavedModelInstance(m.typ.Name)
	}
	if err := m.typ.runHooks(ctx, BeforeDelete, m); err != nil {
		return err
	}
	if _, err := m.store().Delete(ctx, m.typ.Collection, m.keyFilter()); err != nil {
		return err
	}
	m.deleted = true
	m.frozen = true
	return m.typ.runHooks(ctx, AfterDelete, m)
}

// Unfreeze allows writes again on a deleted instance.
func (m *Model) Unfreeze() {
	m.frozen = false
}

// Reload replaces the attributes with the stored row and drops loaded relations.
// Reloading an unsaved instance does nothing.
func (m *Model) Reload(ctx context.Context) error {
	if m.IsNew() {
		return nil
	}
	if m.deleted {
		return newError(CodeRuntimeError, "Cannot reload a deleted model instance")
	}
	doc, err := m.store().FindOne(ctx, m.typ.Collection, m.keyFilter(), nil)
	if err != nil {
		return err
	}
	if doc == nil {
		return missingDatabaseRow(m.typ.Name)
	}
	m.attributes = doc
	m.syncOriginal()
	m.relations = make(map[string]interface{})
	return nil
}

// ParentName is the type name of the owner when the instance came through a relation.
func (m *Model) ParentName() string {
	return m.parentName
}

func (m *Model) HasParent() bool {
	return m.parentName != ""
}

// Relation builds a fresh handle for a declared relation.
func (m *Model) Relation(name string) (Relation, error) {
	factory, ok := m.typ.relations[name]
	if !ok {
		return nil, invalidModelRelation(name, m.typ.Name)
	}
	return factory(m), nil
}

// RelationOf builds the named relation and asserts its concrete type.
func RelationOf[T Relation](m *Model, name string) (T, error) {
	var zero T
	rel, err := m.Relation(name)
	if err != nil {
		return zero, err
	}
	typed, ok := rel.(T)
	if !ok {
		return zero, invalidParameter("%s relation on %s model is a %s relation", name, m.typ.Name, rel.Kind())
	}
	return typed, nil
}

// Related returns an eager loaded relation result: nil, *Model or *Collection.
func (m *Model) Related(name string) (interface{}, bool) {
	v, ok := m.relations[name]
	return v, ok
}

// RelatedModel returns a loaded singleton relation, nil when absent or empty.
func (m *Model) RelatedModel(name string) *Model {
	v, _ := m.relations[name].(*Model)
	return v
}

// RelatedCollection returns a loaded many relation, nil when not loaded.
func (m *Model) RelatedCollection(name string) *Collection {
	v, _ := m.relations[name].(*Collection)
	return v
}

// Pivot returns the pivot row of an instance fetched through a BelongsToMany relation.
func (m *Model) Pivot() *Model {
	return m.RelatedModel("pivot")
}

// SetRelated stores a relation result. A name can only be set once per instance.
func (m *Model) SetRelated(name string, value interface{}) error {
	if _, exists := m.relations[name]; exists {
		return cannotOverrideRelation(name)
	}
	if mv, ok := value.(*Model); ok && mv == nil {
		value = nil
	}
	if cv, ok := value.(*Collection); ok && cv == nil {
		value = nil
	}
	m.relations[name] = value
	return nil
}

// Load eager loads relations onto this instance. It accepts the same arguments as Query.With.
func (m *Model) Load(ctx context.Context, relations ...interface{}) error {
	loader := newEagerLoader()
	if err := loader.add(relations...); err != nil {
		return err
	}
	return loader.load(ctx, m.typ, []*Model{m})
}

// clone copies attributes and state. Loaded relations are shared.
func (m *Model) clone() *Model {
	c := &Model{
		typ:        m.typ,
		attributes: helpers.CloneDocument(m.attributes),
		original:   helpers.CloneDocument(m.original),
		persisted:  m.persisted,
		deleted:    m.deleted,
		frozen:     m.frozen,
		relations:  make(map[string]interface{}, len(m.relations)),
		parentName: m.parentName,
	}
	for k, v := range m.relations {
		c.relations[k] = v
	}
	return c
}

// persistIfNew saves an unsaved instance, leaving persisted ones untouched.
func (m *Model) persistIfNew(ctx context.Context) error {
	if !m.IsNew() {
		return nil
	}
	return m.Save(ctx)
}
