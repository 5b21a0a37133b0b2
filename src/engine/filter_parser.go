package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lucidodm/src/helpers"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

/*
	Filters are evaluated in memory by the memory, file and sqlite drivers and translated to
	query documents by the mongo driver. Equality follows document store semantics: a null
	value matches a missing field and an array field matches when any element matches.
*/

const (
	OpEq     = "=="
	OpNe     = "!="
	OpGt     = ">"
	OpGte    = ">="
	OpLt     = "<"
	OpLte    = "<="
	OpIn     = "in"
	OpNin    = "nin"
	OpExists = "exists"

	LogicAnd = "AND"
	LogicOr  = "OR"
)

// WhereClause represents a single condition in a WHERE clause
type WhereClause struct {
	Field    string
	Operator string
	Value    interface{}
}

// WhereGroup represents a group of clauses joined by the same logical operator
type WhereGroup struct {
	Clauses   []WhereClause
	SubGroups []WhereGroup
	Logic     string // "AND" (default) or "OR"
}

// Where starts an AND group with one clause.
func Where(field, operator string, value interface{}) *WhereGroup {
	return (&WhereGroup{Logic: LogicAnd}).And(field, operator, value)
}

// Eq is shorthand for Where(field, "==", value).
func Eq(field string, value interface{}) *WhereGroup {
	return Where(field, OpEq, value)
}

// In is shorthand for Where(field, "in", values).
func In(field string, values []interface{}) *WhereGroup {
	return Where(field, OpIn, values)
}

// And appends a clause to the group and returns it.
func (g *WhereGroup) And(field, operator string, value interface{}) *WhereGroup {
	g.Clauses = append(g.Clauses, WhereClause{Field: field, Operator: normalizeOperator(operator), Value: value})
	return g
}

// AndGroup nests another group.
func (g *WhereGroup) AndGroup(sub *WhereGroup) *WhereGroup {
	if sub != nil && !sub.IsEmpty() {
		g.SubGroups = append(g.SubGroups, *sub.Clone())
	}
	return g
}

// IsEmpty reports whether the group has no conditions at all.
func (g *WhereGroup) IsEmpty() bool {
	return g == nil || (len(g.Clauses) == 0 && len(g.SubGroups) == 0)
}

func (g *WhereGroup) Clone() *WhereGroup {
	if g == nil {
		return nil
	}
	out := &WhereGroup{Logic: g.Logic}
	out.Clauses = append(out.Clauses, g.Clauses...)
	for _, sub := range g.SubGroups {
		out.SubGroups = append(out.SubGroups, *sub.Clone())
	}
	return out
}

// AllOf combines groups with AND, skipping nil and empty ones.
func AllOf(groups ...*WhereGroup) *WhereGroup {
	out := &WhereGroup{Logic: LogicAnd}
	for _, g := range groups {
		if g.IsEmpty() {
			continue
		}
		if g.Logic != LogicOr {
			out.Clauses = append(out.Clauses, g.Clauses...)
			for _, sub := range g.SubGroups {
				out.SubGroups = append(out.SubGroups, *sub.Clone())
			}
			continue
		}
		out.SubGroups = append(out.SubGroups, *g.Clone())
	}
	return out
}

func normalizeOperator(op string) string {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "=", "==", "$eq":
		return OpEq
	case "!=", "<>", "$ne":
		return OpNe
	case ">", "$gt":
		return OpGt
	case ">=", "$gte":
		return OpGte
	case "<", "$lt":
		return OpLt
	case "<=", "$lte":
		return OpLte
	case "in", "$in":
		return OpIn
	case "nin", "not in", "$nin":
		return OpNin
	case "exists", "$exists":
		return OpExists
	}
	return op
}

// NormalizeOperator maps an operator alias such as "=" or "$gte" to its canonical form and
// reports whether it is supported.
func NormalizeOperator(op string) (string, bool) {
	n := normalizeOperator(op)
	return n, validOperator(n)
}

func validOperator(op string) bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin, OpExists:
		return true
	}
	return false
}

// tokenizeWhereClause breaks a WHERE clause into tokens while preserving quoted strings
func tokenizeWhereClause(whereClause string) []string {
	var tokens []string
	var currentToken strings.Builder
	var quote byte

	flush := func() {
		if currentToken.Len() > 0 {
			tokens = append(tokens, strings.TrimSpace(currentToken.String()))
			currentToken.Reset()
		}
	}

	for i := 0; i < len(whereClause); i++ {
		ch := whereClause[i]

		if quote != 0 {
			currentToken.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
			continue
		}

		switch ch {
		case '"', '\'':
			quote = ch
			currentToken.WriteByte(ch)
		case '(', ')':
			flush()
			tokens = append(tokens, string(ch))
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			currentToken.WriteByte(ch)
		}
	}
	flush()

	return tokens
}

// ParseWhereClause parses a textual WHERE clause such as
// `title == "Adonis 101" AND (likes > 2 OR featured == true)`.
// AND binds tighter than OR. Tokens must be separated by spaces.
func ParseWhereClause(whereClause string) (*WhereGroup, error) {
	whereClause = strings.TrimSpace(whereClause)
	if strings.HasPrefix(strings.ToUpper(whereClause), "WHERE ") {
		whereClause = strings.TrimSpace(whereClause[5:])
	}

	tokens := tokenizeWhereClause(whereClause)
	if len(tokens) == 0 {
		return &WhereGroup{Logic: LogicAnd}, nil
	}

	group, pos, err := parseOrGroup(tokens, 0)
	if err != nil {
		return nil, err
	}
	if pos < len(tokens) {
		return nil, fmt.Errorf("unexpected tokens after parsing: %v", tokens[pos:])
	}
	return group, nil
}

// parseOrGroup parses AND chains separated by OR.
func parseOrGroup(tokens []string, pos int) (*WhereGroup, int, error) {
	var chains []*WhereGroup
	for {
		chain, next, err := parseAndChain(tokens, pos)
		if err != nil {
			return nil, pos, err
		}
		chains = append(chains, chain)
		pos = next
		if pos < len(tokens) && strings.EqualFold(tokens[pos], LogicOr) {
			pos++
			continue
		}
		break
	}

	if len(chains) == 1 {
		return chains[0], pos, nil
	}
	group := &WhereGroup{Logic: LogicOr}
	for _, c := range chains {
		group.SubGroups = append(group.SubGroups, *c)
	}
	return group, pos, nil
}

func parseAndChain(tokens []string, pos int) (*WhereGroup, int, error) {
	group := &WhereGroup{Logic: LogicAnd}
	for {
		if pos >= len(tokens) {
			return nil, pos, fmt.Errorf("unexpected end of where clause")
		}

		if tokens[pos] == "(" {
			sub, next, err := parseOrGroup(tokens, pos+1)
			if err != nil {
				return nil, pos, err
			}
			if next >= len(tokens) || tokens[next] != ")" {
				return nil, next, fmt.Errorf("missing closing parenthesis")
			}
			group.SubGroups = append(group.SubGroups, *sub)
			pos = next + 1
		} else {
			if pos+2 >= len(tokens) {
				return nil, pos, fmt.Errorf("incomplete condition starting at %q", tokens[pos])
			}
			op := normalizeOperator(tokens[pos+1])
			if !validOperator(op) {
				return nil, pos, fmt.Errorf("unsupported operator %q", tokens[pos+1])
			}
			group.Clauses = append(group.Clauses, WhereClause{
				Field:    tokens[pos],
				Operator: op,
				Value:    parseLiteral(tokens[pos+2]),
			})
			pos += 3
		}

		if pos < len(tokens) && strings.EqualFold(tokens[pos], LogicAnd) {
			pos++
			continue
		}
		return group, pos, nil
	}
}

// parseLiteral converts a token into a string, number, bool or nil.
func parseLiteral(token string) interface{} {
	if len(token) >= 2 && (token[0] == '"' || token[0] == '\'') {
		return helpers.StripQuotes(token)
	}
	switch strings.ToLower(token) {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil":
		return nil
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	return token
}

// EvaluateWhereClause reports whether a document satisfies the group.
func EvaluateWhereClause(document bson.M, whereGroup *WhereGroup) bool {
	if whereGroup.IsEmpty() {
		return true
	}

	or := whereGroup.Logic == LogicOr
	for _, clause := range whereGroup.Clauses {
		matched := evaluateClause(document, clause)
		if or && matched {
			return true
		}
		if !or && !matched {
			return false
		}
	}
	for i := range whereGroup.SubGroups {
		matched := EvaluateWhereClause(document, &whereGroup.SubGroups[i])
		if or && matched {
			return true
		}
		if !or && !matched {
			return false
		}
	}
	return !or
}

// lookupField resolves a possibly dotted field path.
func lookupField(document bson.M, field string) (interface{}, bool) {
	if v, ok := document[field]; ok {
		return v, true
	}
	parts := strings.Split(field, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var current interface{} = document
	for _, part := range parts {
		doc, ok := helpers.AsDocument(current)
		if !ok {
			return nil, false
		}
		current, ok = doc[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// evaluateClause evaluates a single clause against a document
func evaluateClause(document bson.M, clause WhereClause) bool {
	value, exists := lookupField(document, clause.Field)

	switch clause.Operator {
	case OpEq:
		return matchesEqual(value, exists, clause.Value)
	case OpNe:
		return !matchesEqual(value, exists, clause.Value)
	case OpIn:
		return matchesAny(value, exists, clause.Value)
	case OpNin:
		return !matchesAny(value, exists, clause.Value)
	case OpExists:
		want := cast.ToBool(clause.Value)
		return exists == want
	case OpGt, OpGte, OpLt, OpLte:
		if !exists {
			return false
		}
		cmp, ok := compareValues(value, clause.Value)
		if !ok {
			return false
		}
		switch clause.Operator {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	default:
		return false
	}
}

func matchesEqual(value interface{}, exists bool, want interface{}) bool {
	if want == nil {
		return !exists || value == nil
	}
	if !exists {
		return false
	}
	if arr, ok := helpers.AsArray(value); ok {
		if _, wantArray := helpers.AsArray(want); !wantArray {
			for _, e := range arr {
				if valuesEqual(e, want) {
					return true
				}
			}
			return false
		}
	}
	return valuesEqual(value, want)
}

func matchesAny(value interface{}, exists bool, candidates interface{}) bool {
	list, ok := toList(candidates)
	if !ok {
		return matchesEqual(value, exists, candidates)
	}
	for _, c := range list {
		if matchesEqual(value, exists, c) {
			return true
		}
	}
	return false
}

// toList accepts any slice value and returns it as []interface{}.
func toList(v interface{}) ([]interface{}, bool) {
	if arr, ok := helpers.AsArray(v); ok {
		return arr, true
	}
	switch t := v.(type) {
	case []primitive.ObjectID:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out, true
	case []string:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}

func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumeric(a) && isNumeric(b) {
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}
	if da, ok := helpers.AsDocument(a); ok {
		db, ok := helpers.AsDocument(b)
		if !ok || len(da) != len(db) {
			return false
		}
		for k, v := range da {
			if !valuesEqual(v, db[k]) {
				return false
			}
		}
		return true
	}
	return helpers.KeysEqual(a, b)
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// compareValues orders two values of compatible types. The second result is false
// when the values cannot be ordered against each other.
func compareValues(a, b interface{}) (int, bool) {
	if isNumeric(a) && isNumeric(b) {
		af, bf := cast.ToFloat64(a), cast.ToFloat64(b)
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	if at, ok := asTime(a); ok {
		if bt, ok := asTime(b); ok {
			return at.Compare(bt), true
		}
		return 0, false
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case primitive.ObjectID:
		bv, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Hex(), bv.Hex()), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

// FilterDocuments returns the documents matching the group, preserving order.
func FilterDocuments(documents []bson.M, where *WhereGroup) []bson.M {
	var result []bson.M
	for _, doc := range documents {
		if EvaluateWhereClause(doc, where) {
			result = append(result, doc)
		}
	}
	return result
}
