package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTokenizeWhereClauseKeepsQuotedStrings(t *testing.T) {
	tokens := tokenizeWhereClause(`title == "Adonis 101" AND (likes > 2)`)
	assert.Equal(t, []string{"title", "==", `"Adonis 101"`, "AND", "(", "likes", ">", "2", ")"}, tokens)
}

func TestParseWhereClause(t *testing.T) {
	group, err := ParseWhereClause(`WHERE title == "Adonis 101" AND likes >= 2`)
	require.NoError(t, err)

	assert.Equal(t, LogicAnd, group.Logic)
	require.Len(t, group.Clauses, 2)
	assert.Equal(t, WhereClause{Field: "title", Operator: OpEq, Value: "Adonis 101"}, group.Clauses[0])
	assert.Equal(t, WhereClause{Field: "likes", Operator: OpGte, Value: int64(2)}, group.Clauses[1])
}

func TestParseWhereClauseAndBindsTighterThanOr(t *testing.T) {
	group, err := ParseWhereClause(`a == 1 AND b == 2 OR c == 3`)
	require.NoError(t, err)

	assert.Equal(t, LogicOr, group.Logic)
	require.Len(t, group.SubGroups, 2)
	assert.Len(t, group.SubGroups[0].Clauses, 2)
	assert.Len(t, group.SubGroups[1].Clauses, 1)

	assert.True(t, EvaluateWhereClause(bson.M{"a": 1, "b": 2}, group))
	assert.True(t, EvaluateWhereClause(bson.M{"c": 3}, group))
	assert.False(t, EvaluateWhereClause(bson.M{"a": 1, "c": 4}, group))
}

func TestParseWhereClauseParentheses(t *testing.T) {
	group, err := ParseWhereClause(`a == 1 AND ( b == 2 OR c == 3 )`)
	require.NoError(t, err)

	assert.True(t, EvaluateWhereClause(bson.M{"a": 1, "c": 3}, group))
	assert.False(t, EvaluateWhereClause(bson.M{"a": 2, "c": 3}, group))
}

func TestParseWhereClauseErrors(t *testing.T) {
	cases := map[string]string{
		"incomplete":   `title ==`,
		"operator":     `title ~= "x"`,
		"parenthesis":  `( a == 1`,
		"trailing":     `a == 1 )`,
		"dangling and": `a == 1 AND`,
	}
	for name, clause := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWhereClause(clause)
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyWhereClauseMatchesEverything(t *testing.T) {
	group, err := ParseWhereClause("  ")
	require.NoError(t, err)
	assert.True(t, group.IsEmpty())
	assert.True(t, EvaluateWhereClause(bson.M{"x": 1}, group))
}

func TestParseLiteral(t *testing.T) {
	assert.Equal(t, "virk", parseLiteral(`'virk'`))
	assert.Equal(t, true, parseLiteral("TRUE"))
	assert.Nil(t, parseLiteral("null"))
	assert.Equal(t, int64(42), parseLiteral("42"))
	assert.Equal(t, 4.5, parseLiteral("4.5"))
	assert.Equal(t, "bare", parseLiteral("bare"))
}

func TestEvaluateEqualitySemantics(t *testing.T) {
	doc := bson.M{"tags": bson.A{"go", "odm"}, "count": int32(3), "deleted_at": nil}

	assert.True(t, EvaluateWhereClause(doc, Eq("tags", "go")), "array fields match any element")
	assert.True(t, EvaluateWhereClause(doc, Eq("count", 3.0)), "numbers compare across widths")
	assert.True(t, EvaluateWhereClause(doc, Eq("missing", nil)), "null matches missing fields")
	assert.True(t, EvaluateWhereClause(doc, Eq("deleted_at", nil)))
	assert.False(t, EvaluateWhereClause(doc, Eq("missing", "x")))
	assert.True(t, EvaluateWhereClause(doc, Where("missing", OpNe, "x")), "ne matches missing fields")
}

func TestEvaluateObjectIDAgainstHex(t *testing.T) {
	id := primitive.NewObjectID()
	doc := bson.M{"user_id": id}

	assert.True(t, EvaluateWhereClause(doc, Eq("user_id", id)))
	assert.True(t, EvaluateWhereClause(doc, Eq("user_id", id.Hex())))
	assert.True(t, EvaluateWhereClause(doc, In("user_id", []interface{}{primitive.NewObjectID(), id})))
	assert.False(t, EvaluateWhereClause(doc, Where("user_id", OpNin, []primitive.ObjectID{id})))
}

func TestEvaluateComparisons(t *testing.T) {
	doc := bson.M{"likes": 10, "title": "b"}

	assert.True(t, EvaluateWhereClause(doc, Where("likes", OpGt, 2)))
	assert.True(t, EvaluateWhereClause(doc, Where("likes", OpLte, int64(10))))
	assert.False(t, EvaluateWhereClause(doc, Where("likes", OpLt, 10)))
	assert.True(t, EvaluateWhereClause(doc, Where("title", OpGt, "a")))
	assert.False(t, EvaluateWhereClause(doc, Where("title", OpGt, 1)), "mismatched types never order")
	assert.False(t, EvaluateWhereClause(doc, Where("missing", OpGt, 1)))
}

func TestEvaluateExistsAndDottedPaths(t *testing.T) {
	doc := bson.M{"meta": bson.M{"author": bson.M{"name": "virk"}}}

	assert.True(t, EvaluateWhereClause(doc, Eq("meta.author.name", "virk")))
	assert.True(t, EvaluateWhereClause(doc, Where("meta", OpExists, true)))
	assert.True(t, EvaluateWhereClause(doc, Where("meta.author.age", "$exists", false)))
}

func TestAllOfFlattensAndGroups(t *testing.T) {
	or := &WhereGroup{Logic: LogicOr}
	or.And("a", OpEq, 1).And("b", OpEq, 2)

	combined := AllOf(Eq("c", 3), nil, &WhereGroup{}, or)
	assert.Equal(t, LogicAnd, combined.Logic)
	assert.Len(t, combined.Clauses, 1)
	require.Len(t, combined.SubGroups, 1)
	assert.Equal(t, LogicOr, combined.SubGroups[0].Logic)

	assert.True(t, EvaluateWhereClause(bson.M{"c": 3, "b": 2}, combined))
	assert.False(t, EvaluateWhereClause(bson.M{"c": 3}, combined))
}

func TestCloneIsIndependent(t *testing.T) {
	g := Eq("a", 1)
	g.AndGroup(Eq("b", 2))

	clone := g.Clone()
	clone.And("c", OpEq, 3)
	clone.SubGroups[0].And("d", OpEq, 4)

	assert.Len(t, g.Clauses, 1)
	assert.Len(t, g.SubGroups[0].Clauses, 1)
}

func TestFilterDocumentsPreservesOrder(t *testing.T) {
	docs := []bson.M{{"n": 3}, {"n": 1}, {"n": 2}, {"n": 5}}
	out := FilterDocuments(docs, Where("n", OpGte, 2))

	require.Len(t, out, 3)
	assert.Equal(t, 3, out[0]["n"])
	assert.Equal(t, 2, out[1]["n"])
	assert.Equal(t, 5, out[2]["n"])
}
