package lucid

import (
	"context"
	"sort"
	"strings"

	"lucidodm/src/engine"

	"go.mongodb.org/mongo-driver/bson"
)

// Scope is a declarative eager load constraint, the data form of a func(*Query).
type Scope struct {
	Where  bson.M
	Sort   []engine.SortField
	Limit  int
	Fields []string
	With   []string
}

func (s Scope) apply(q *Query) {
	if len(s.Where) > 0 {
		q.WhereBSON(s.Where)
	}
	q.opts.Sort = append(q.opts.Sort, s.Sort...)
	if s.Limit > 0 {
		q.Limit(s.Limit)
	}
	if len(s.Fields) > 0 {
		q.Select(s.Fields...)
	}
	if len(s.With) > 0 {
		q.With(s.With)
	}
}

type eagerNode struct {
	name      string
	constrain func(*Query)
	children  *eagerLoader
}

// eagerLoader is the tree of relations requested through With or Load. Each node holds
// the constraint of its own segment only.
type eagerLoader struct {
	nodes []*eagerNode
	index map[string]*eagerNode
}

func newEagerLoader() *eagerLoader {
	return &eagerLoader{index: make(map[string]*eagerNode)}
}

func (l *eagerLoader) empty() bool {
	return len(l.nodes) == 0
}

// asConstraint recognizes the constraint forms accepted after a relation name.
func asConstraint(v interface{}) (func(*Query), bool) {
	switch c := v.(type) {
	case func(*Query):
		return c, true
	case Scope:
		return c.apply, true
	case *Scope:
		if c == nil {
			return nil, true
		}
		return c.apply, true
	}
	return nil, false
}

func (l *eagerLoader) add(args ...interface{}) error {
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case string:
			var constrain func(*Query)
			if i+1 < len(args) {
				if c, ok := asConstraint(args[i+1]); ok {
					constrain = c
					i++
				}
			}
			if err := l.addPath(v, constrain); err != nil {
				return err
			}
		case []string:
			for _, path := range v {
				if err := l.addPath(path, nil); err != nil {
					return err
				}
			}
		case map[string]interface{}:
			names := make([]string, 0, len(v))
			for name := range v {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				constrain, ok := asConstraint(v[name])
				if !ok && v[name] != nil {
					return invalidParameter("with expects a closure or scope for %s instead received %s", name, describeType(v[name]))
				}
				if err := l.addPath(name, constrain); err != nil {
					return err
				}
			}
		default:
			return invalidParameter("with expects a relation name, an array of names or a map of names instead received %s", describeType(args[i]))
		}
	}
	return nil
}

// addPath registers a possibly dotted path. constrain applies to the last segment.
func (l *eagerLoader) addPath(path string, constrain func(*Query)) error {
	segments := strings.Split(path, ".")
	level := l
	for i, seg := range segments {
		if seg == "" {
			return invalidParameter("invalid relation path %q", path)
		}
		node, ok := level.index[seg]
		if !ok {
			node = &eagerNode{name: seg, children: newEagerLoader()}
			level.index[seg] = node
			level.nodes = append(level.nodes, node)
		}
		if i == len(segments)-1 && constrain != nil {
			node.constrain = chainConstraints(node.constrain, constrain)
		}
		level = node.children
	}
	return nil
}

func chainConstraints(first, second func(*Query)) func(*Query) {
	if first == nil {
		return second
	}
	if second == nil {
		return first
	}
	return func(q *Query) {
		first(q)
		second(q)
	}
}

func (l *eagerLoader) clone() *eagerLoader {
	c := newEagerLoader()
	c.merge(l)
	return c
}

// merge adds every node of other, combining constraints of nodes present in both.
func (l *eagerLoader) merge(other *eagerLoader) {
	if other == nil {
		return
	}
	for _, n := range other.nodes {
		existing, ok := l.index[n.name]
		if !ok {
			existing = &eagerNode{name: n.name, children: newEagerLoader()}
			l.index[n.name] = existing
			l.nodes = append(l.nodes, existing)
		}
		existing.constrain = chainConstraints(existing.constrain, n.constrain)
		existing.children.merge(n.children)
	}
}

// load resolves every requested relation of typ onto parents, one relation at a time.
func (l *eagerLoader) load(ctx context.Context, typ *ModelType, parents []*Model) error {
	if len(parents) == 0 || l.empty() {
		return nil
	}
	for _, node := range l.nodes {
		if err := l.loadNode(ctx, typ, parents, node); err != nil {
			return err
		}
	}
	return nil
}

func (l *eagerLoader) loadNode(ctx context.Context, typ *ModelType, parents []*Model, node *eagerNode) error {
	factory, ok := typ.relations[node.name]
	if !ok {
		return invalidModelRelation(node.name, typ.Name)
	}
	for _, p := range parents {
		if _, exists := p.relations[node.name]; exists {
			return cannotOverrideRelation(node.name)
		}
	}

	rel := factory(parents[0])
	rows, err := rel.EagerLoad(ctx, parents, func(q *Query) {
		if node.constrain != nil {
			node.constrain(q)
		}
		q.eager.merge(node.children)
	})
	if err != nil {
		return err
	}

	grouped := rel.Group(rows)
	for _, p := range parents {
		var value interface{}
		if identity, ok := rel.ParentIdentity(p); ok {
			value, _ = grouped.Lookup(identity)
		}
		if value == nil && !rel.Singular() {
			value = NewCollection()
		}
		if err := p.SetRelated(node.name, value); err != nil {
			return err
		}
	}

	typ.registry.logger.Debugw("relation eager loaded",
		"model", typ.Name, "relation", node.name, "kind", rel.Kind(),
		"parents", len(parents), "rows", len(rows), "groups", grouped.Len())
	return nil
}
