package lucid

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestErrorRendersCodeAndMessage(t *testing.T) {
	err := invalidRelationMethod("paginate", KindMorphTo)
	assert.EqualError(t, err, "E_INVALID_RELATION_METHOD: paginate is not supported by MorphTo relation")

	err = conflictingPivotConfig("pivotCollection", "pivotModel")
	assert.EqualError(t, err, "E_INVALID_RELATION_METHOD: Cannot call pivotCollection since pivotModel has been defined")

	err = cannotOverrideRelation("profile")
	assert.EqualError(t, err, "E_CANNOT_OVERRIDE_RELATION: Trying to eagerload profile relationship twice")
}

func TestErrorMatchesSentinelsByCode(t *testing.T) {
	err := unsavedModelInstance("User")
	assert.ErrorIs(t, err, ErrUnsavedModelInstance)
	assert.NotErrorIs(t, err, ErrInvalidParameter)
	assert.True(t, HasCode(err, CodeUnsavedModelInstance))

	wrapped := fmt.Errorf("loading profile: %w", err)
	assert.ErrorIs(t, wrapped, ErrUnsavedModelInstance)
	assert.True(t, HasCode(wrapped, CodeUnsavedModelInstance))

	assert.False(t, HasCode(errors.New("boom"), CodeRuntimeError))
	assert.False(t, HasCode(nil, CodeRuntimeError))
}

func TestDescribeType(t *testing.T) {
	cases := []struct {
		value interface{}
		want  string
	}{
		{nil, "null"},
		{"x", "string"},
		{true, "boolean"},
		{3, "number"},
		{2.5, "number"},
		{func() {}, "function"},
		{[]string{"a"}, "array"},
		{bson.M{}, "object"},
		{&Model{}, "object"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, describeType(c.value), "%#v", c.value)
	}
}
