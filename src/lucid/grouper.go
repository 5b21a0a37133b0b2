package lucid

// GroupedEntry pairs an owner identity with its related value: a *Model for singular
// relations or a *Collection otherwise.
type GroupedEntry struct {
	Identity string
	Value    interface{}
}

// GroupedResult holds one entry per distinct identity, in first-seen order.
type GroupedResult struct {
	Values []GroupedEntry
	index  map[string]int
}

func newGroupedResult() *GroupedResult {
	return &GroupedResult{index: make(map[string]int)}
}

func (g *GroupedResult) Lookup(identity string) (interface{}, bool) {
	i, ok := g.index[identity]
	if !ok {
		return nil, false
	}
	return g.Values[i].Value, true
}

func (g *GroupedResult) Len() int {
	return len(g.Values)
}

type identityFunc func(row *Model) (string, bool)

// groupSingle keeps one row per identity. When several rows share an identity the last
// one wins; the entry keeps the position of the first.
func groupSingle(rows []*Model, identity identityFunc) *GroupedResult {
	g := newGroupedResult()
	for _, row := range rows {
		id, ok := identity(row)
		if !ok {
			continue
		}
		if i, seen := g.index[id]; seen {
			g.Values[i].Value = row
			continue
		}
		g.index[id] = len(g.Values)
		g.Values = append(g.Values, GroupedEntry{Identity: id, Value: row})
	}
	return g
}

// groupMany collects the rows of each identity in iteration order.
func groupMany(rows []*Model, identity identityFunc) *GroupedResult {
	g := newGroupedResult()
	for _, row := range rows {
		id, ok := identity(row)
		if !ok {
			continue
		}
		if i, seen := g.index[id]; seen {
			coll := g.Values[i].Value.(*Collection)
			coll.Rows = append(coll.Rows, row)
			continue
		}
		g.index[id] = len(g.Values)
		g.Values = append(g.Values, GroupedEntry{Identity: id, Value: NewCollection(row)})
	}
	return g
}
