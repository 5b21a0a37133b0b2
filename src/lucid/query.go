package lucid

import (
	"context"
	"sort"
	"strings"

	"lucidodm/src/engine"
	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

// Query builds a filter against one model type's collection. Builder errors are kept
// and returned by the first terminal call.
type Query struct {
	typ   *ModelType
	where *engine.WhereGroup
	opts  engine.FindOptions
	eager *eagerLoader

	ignoredScopes map[string]bool
	ignoreScopes  bool

	// parentName is stamped on every fetched row when the query runs through a relation.
	parentName string

	err error
}

func newQuery(t *ModelType) *Query {
	return &Query{
		typ:           t,
		where:         &engine.WhereGroup{Logic: engine.LogicAnd},
		eager:         newEagerLoader(),
		ignoredScopes: make(map[string]bool),
	}
}

func (q *Query) Type() *ModelType {
	return q.typ
}

func (q *Query) Err() error {
	return q.err
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

// Where adds a condition. It takes either a value, compared for equality, or an operator
// and a value: Where("likes", ">", 2). Values for the primary key are coerced to ObjectIDs
// when they are hex strings.
func (q *Query) Where(field string, args ...interface{}) *Query {
	op, value, err := whereArgs(field, args)
	if err != nil {
		return q.fail(err)
	}
	if field == q.typ.PrimaryKey {
		if list, ok := value.([]interface{}); ok {
			value = coerceIDs(list)
		} else {
			value = CoerceID(value)
		}
	}
	q.where.And(field, op, value)
	return q
}

// whereArgs resolves the operator and value of a Where call.
func whereArgs(field string, args []interface{}) (string, interface{}, error) {
	op := engine.OpEq
	var value interface{}

	switch len(args) {
	case 1:
		value = args[0]
	case 2:
		raw, ok := args[0].(string)
		if !ok {
			return "", nil, invalidParameter("where expects an operator string for %s instead received %s", field, describeType(args[0]))
		}
		normalized, valid := engine.NormalizeOperator(raw)
		if !valid {
			return "", nil, invalidParameter("unsupported operator %s for %s", raw, field)
		}
		op = normalized
		value = args[1]
	default:
		return "", nil, invalidParameter("where expects a value or an operator and a value for %s", field)
	}

	if op == engine.OpIn || op == engine.OpNin {
		value = toList(value)
	}
	return op, value, nil
}

func (q *Query) WhereIn(field string, values interface{}) *Query {
	return q.Where(field, engine.OpIn, values)
}

func (q *Query) WhereNotIn(field string, values interface{}) *Query {
	return q.Where(field, engine.OpNin, values)
}

func (q *Query) WhereNull(field string) *Query {
	return q.Where(field, nil)
}

func (q *Query) WhereNotNull(field string) *Query {
	return q.Where(field, engine.OpNe, nil)
}

// WhereBSON adds a mongo style query document: {likes: {$gt: 2}, $or: [...]}.
func (q *Query) WhereBSON(filter bson.M) *Query {
	if len(filter) == 0 {
		return q
	}
	group, err := engine.FromBSON(filter)
	if err != nil {
		return q.fail(invalidParameter("%s", err.Error()))
	}
	q.where.AndGroup(group)
	return q
}

// whereGroup adds an already built condition group.
func (q *Query) whereGroup(g *engine.WhereGroup) *Query {
	q.where.AndGroup(g)
	return q
}

// Select restricts the returned fields. The primary key is always returned.
func (q *Query) Select(fields ...string) *Query {
	q.opts.Fields = append(q.opts.Fields, fields...)
	return q
}

// ensureSelected keeps field in the projection when one is set.
func (q *Query) ensureSelected(fields ...string) {
	if len(q.opts.Fields) == 0 {
		return
	}
	for _, f := range fields {
		found := false
		for _, existing := range q.opts.Fields {
			if existing == f {
				found = true
				break
			}
		}
		if !found {
			q.opts.Fields = append(q.opts.Fields, f)
		}
	}
}

// OrderBy sorts by field, ascending unless direction is "desc".
func (q *Query) OrderBy(field string, direction ...string) *Query {
	desc := len(direction) > 0 && strings.EqualFold(direction[0], "desc")
	q.opts.Sort = append(q.opts.Sort, engine.SortField{Field: field, Desc: desc})
	return q
}

func (q *Query) Limit(n int) *Query {
	q.opts.Limit = int64(n)
	return q
}

func (q *Query) Skip(n int) *Query {
	q.opts.Skip = int64(n)
	return q
}

// With eager loads relations on the fetched rows. Accepted forms:
//
//	With("posts")
//	With("posts.comments")
//	With([]string{"posts", "profile"})
//	With("posts", func(q *Query) { q.Where("published", true) })
//	With("posts", Scope{Where: bson.M{"published": true}})
//	With(map[string]interface{}{"posts": nil, "profile": Scope{...}})
func (q *Query) With(args ...interface{}) *Query {
	if err := q.eager.add(args...); err != nil {
		return q.fail(err)
	}
	return q
}

// IgnoreScopes skips the named global scopes, or all of them when no name is given.
func (q *Query) IgnoreScopes(names ...string) *Query {
	if len(names) == 0 {
		q.ignoreScopes = true
		return q
	}
	for _, n := range names {
		q.ignoredScopes[n] = true
	}
	return q
}

func (q *Query) Clone() *Query {
	c := &Query{
		typ:           q.typ,
		where:         q.where.Clone(),
		opts:          q.opts,
		eager:         q.eager.clone(),
		ignoredScopes: make(map[string]bool, len(q.ignoredScopes)),
		ignoreScopes:  q.ignoreScopes,
		parentName:    q.parentName,
		err:           q.err,
	}
	c.opts.Sort = append([]engine.SortField(nil), q.opts.Sort...)
	c.opts.Fields = append([]string(nil), q.opts.Fields...)
	for k, v := range q.ignoredScopes {
		c.ignoredScopes[k] = v
	}
	return c
}

// scoped returns the query with the type's global scopes applied.
func (q *Query) scoped() *Query {
	if q.ignoreScopes || len(q.typ.globalScopes) == 0 {
		return q
	}
	c := q.Clone()
	c.ignoreScopes = true

	names := make([]string, 0, len(q.typ.globalScopes))
	for name := range q.typ.globalScopes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !q.ignoredScopes[name] {
			q.typ.globalScopes[name](c)
		}
	}
	return c
}

func (q *Query) store() engine.Store {
	return q.typ.registry.store
}

func (q *Query) hydrateAll(docs []bson.M) []*Model {
	rows := make([]*Model, len(docs))
	for i, doc := range docs {
		rows[i] = q.typ.hydrate(doc)
		rows[i].parentName = q.parentName
	}
	return rows
}

// Fetch runs the query and eager loads the requested relations.
func (q *Query) Fetch(ctx context.Context) (*Collection, error) {
	s := q.scoped()
	if s.err != nil {
		return nil, s.err
	}
	docs, err := s.store().Find(ctx, s.typ.Collection, s.where, &s.opts)
	if err != nil {
		return nil, err
	}
	rows := s.hydrateAll(docs)
	if err := s.eager.load(ctx, s.typ, rows); err != nil {
		return nil, err
	}
	if err := s.typ.runFetchHooks(ctx, AfterFetch, rows); err != nil {
		return nil, err
	}
	return NewCollection(rows...), nil
}

// First returns the first matching row or nil.
func (q *Query) First(ctx context.Context) (*Model, error) {
	s := q.scoped()
	if s.err != nil {
		return nil, s.err
	}
	doc, err := s.store().FindOne(ctx, s.typ.Collection, s.where, &s.opts)
	if err != nil || doc == nil {
		return nil, err
	}
	rows := s.hydrateAll([]bson.M{doc})
	if err := s.typ.runHooks(ctx, AfterFind, rows[0]); err != nil {
		return nil, err
	}
	if err := s.eager.load(ctx, s.typ, rows); err != nil {
		return nil, err
	}
	return rows[0], nil
}

func (q *Query) FirstOrFail(ctx context.Context) (*Model, error) {
	m, err := q.First(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, missingDatabaseRow(q.typ.Name)
	}
	return m, nil
}

// Paginate fetches one page. Pages start at 1; perPage defaults to 20.
func (q *Query) Paginate(ctx context.Context, page, perPage int) (*Collection, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	s := q.scoped()
	if s.err != nil {
		return nil, s.err
	}
	total, err := s.store().Count(ctx, s.typ.Collection, s.where)
	if err != nil {
		return nil, err
	}

	opts := s.opts
	opts.Skip = int64((page - 1) * perPage)
	opts.Limit = int64(perPage)
	docs, err := s.store().Find(ctx, s.typ.Collection, s.where, &opts)
	if err != nil {
		return nil, err
	}
	rows := s.hydrateAll(docs)
	if err := s.eager.load(ctx, s.typ, rows); err != nil {
		return nil, err
	}
	if err := s.typ.runFetchHooks(ctx, AfterPaginate, rows); err != nil {
		return nil, err
	}

	coll := NewCollection(rows...)
	coll.Pages = newPagination(total, page, perPage)
	return coll, nil
}

func (q *Query) Count(ctx context.Context) (int64, error) {
	s := q.scoped()
	if s.err != nil {
		return 0, s.err
	}
	return s.store().Count(ctx, s.typ.Collection, s.where)
}

// Ids returns the primary keys of every match.
func (q *Query) Ids(ctx context.Context) ([]interface{}, error) {
	s := q.scoped()
	if s.err != nil {
		return nil, s.err
	}
	opts := s.opts
	opts.Fields = []string{s.typ.PrimaryKey}
	docs, err := s.store().Find(ctx, s.typ.Collection, s.where, &opts)
	if err != nil {
		return nil, err
	}
	ids := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc[s.typ.PrimaryKey])
	}
	return ids, nil
}

// Update writes attrs to every match, stamping the updated timestamp. Setters and hooks
// do not run.
func (q *Query) Update(ctx context.Context, attrs bson.M) (int64, error) {
	s := q.scoped()
	if s.err != nil {
		return 0, s.err
	}
	set := helpers.CloneDocument(attrs)
	if set == nil {
		set = bson.M{}
	}
	if s.typ.UpdatedAtColumn != "" {
		set[s.typ.UpdatedAtColumn] = s.typ.registry.now()
	}
	return s.store().Update(ctx, s.typ.Collection, s.where, engine.Patch{Set: set})
}

// Delete removes every match. Hooks do not run.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	s := q.scoped()
	if s.err != nil {
		return 0, s.err
	}
	return s.store().Delete(ctx, s.typ.Collection, s.where)
}
