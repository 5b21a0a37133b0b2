package engine

import (
	"fmt"
	"sort"
	"strings"

	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

var bsonOperators = map[string]string{
	OpEq:     "$eq",
	OpNe:     "$ne",
	OpGt:     "$gt",
	OpGte:    "$gte",
	OpLt:     "$lt",
	OpLte:    "$lte",
	OpIn:     "$in",
	OpNin:    "$nin",
	OpExists: "$exists",
}

// FromBSON converts a mongo style query document, e.g. {likes: {$gt: 2}}, into a WhereGroup.
func FromBSON(filter bson.M) (*WhereGroup, error) {
	group := &WhereGroup{Logic: LogicAnd}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filter[key]
		switch key {
		case "$or", "$and":
			items, ok := helpers.AsArray(value)
			if !ok {
				return nil, fmt.Errorf("%s expects an array of query documents", key)
			}
			sub := &WhereGroup{Logic: LogicAnd}
			if key == "$or" {
				sub.Logic = LogicOr
			}
			for _, item := range items {
				doc, ok := helpers.AsDocument(item)
				if !ok {
					return nil, fmt.Errorf("%s expects an array of query documents", key)
				}
				inner, err := FromBSON(doc)
				if err != nil {
					return nil, err
				}
				sub.SubGroups = append(sub.SubGroups, *inner)
			}
			group.SubGroups = append(group.SubGroups, *sub)
			continue
		}

		if strings.HasPrefix(key, "$") {
			return nil, fmt.Errorf("unsupported top level operator %s", key)
		}

		ops, isOperatorDoc := operatorDocument(value)
		if !isOperatorDoc {
			group.And(key, OpEq, value)
			continue
		}
		opKeys := make([]string, 0, len(ops))
		for k := range ops {
			opKeys = append(opKeys, k)
		}
		sort.Strings(opKeys)
		for _, opKey := range opKeys {
			op := normalizeOperator(opKey)
			if !validOperator(op) {
				return nil, fmt.Errorf("unsupported operator %s on field %s", opKey, key)
			}
			group.And(key, op, ops[opKey])
		}
	}

	return group, nil
}

// operatorDocument reports whether v is a document whose keys are all $operators.
func operatorDocument(v interface{}) (bson.M, bool) {
	doc, ok := helpers.AsDocument(v)
	if !ok || len(doc) == 0 {
		return nil, false
	}
	for k := range doc {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return doc, true
}

// ToBSON renders a WhereGroup as a mongo query document.
func ToBSON(g *WhereGroup) bson.M {
	if g.IsEmpty() {
		return bson.M{}
	}

	parts := make(bson.A, 0, len(g.Clauses)+len(g.SubGroups))
	for _, clause := range g.Clauses {
		value := clause.Value
		if clause.Operator == OpIn || clause.Operator == OpNin {
			if list, ok := toList(value); ok {
				value = bson.A(list)
			}
		}
		parts = append(parts, bson.M{clause.Field: bson.M{bsonOperators[clause.Operator]: value}})
	}
	for i := range g.SubGroups {
		parts = append(parts, ToBSON(&g.SubGroups[i]))
	}

	if g.Logic == LogicOr {
		return bson.M{"$or": parts}
	}
	if len(parts) == 1 {
		return parts[0].(bson.M)
	}
	return bson.M{"$and": parts}
}
