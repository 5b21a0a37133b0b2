package lucid

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrorCode categorizes model and relation errors.
type ErrorCode string

const (
	// CodeInvalidRelationMethod: a verb the relation kind cannot support, or a conflicting
	// relation configuration.
	CodeInvalidRelationMethod ErrorCode = "E_INVALID_RELATION_METHOD"

	// CodeInvalidParameter: an argument of the wrong shape.
	CodeInvalidParameter ErrorCode = "E_INVALID_PARAMETER"

	// CodeUnsavedModelInstance: the parent key needed by a relation is undefined.
	CodeUnsavedModelInstance ErrorCode = "E_UNSAVED_MODEL_INSTANCE"

	// CodeCannotOverrideRelation: the same relation was eager loaded twice onto an instance.
	CodeCannotOverrideRelation ErrorCode = "E_CANNOT_OVERRIDE_RELATION"

	CodeDeletedModel       ErrorCode = "E_DELETED_MODEL"
	CodeRuntimeError       ErrorCode = "E_RUNTIME_ERROR"
	CodeMissingDatabaseRow ErrorCode = "E_MISSING_DATABASE_ROW"

	// CodeInvalidModelRelation: the relation name is not registered on the model type.
	CodeInvalidModelRelation ErrorCode = "E_INVALID_MODEL_RELATION"
)

// Error is returned for every failure raised by the model layer itself. Store errors are
// passed through untouched.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error carrying the same code, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidRelationMethod  = &Error{Code: CodeInvalidRelationMethod}
	ErrInvalidParameter       = &Error{Code: CodeInvalidParameter}
	ErrUnsavedModelInstance   = &Error{Code: CodeUnsavedModelInstance}
	ErrCannotOverrideRelation = &Error{Code: CodeCannotOverrideRelation}
	ErrDeletedModel           = &Error{Code: CodeDeletedModel}
	ErrRuntime                = &Error{Code: CodeRuntimeError}
	ErrMissingDatabaseRow     = &Error{Code: CodeMissingDatabaseRow}
	ErrInvalidModelRelation   = &Error{Code: CodeInvalidModelRelation}

	ErrModelNotRegistered = errors.New("model not registered")
)

// HasCode reports whether err, or anything it wraps, is an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalidRelationMethod(verb string, kind Kind) error {
	return newError(CodeInvalidRelationMethod, "%s is not supported by %s relation", verb, kind)
}

func conflictingPivotConfig(method, defined string) error {
	return newError(CodeInvalidRelationMethod, "Cannot call %s since %s has been defined", method, defined)
}

func invalidParameter(format string, args ...interface{}) error {
	return newError(CodeInvalidParameter, format, args...)
}

func unsavedModelInstance(modelName string) error {
	return newError(CodeUnsavedModelInstance,
		"Cannot process relation, since %s model is not persisted to database or relational value is undefined", modelName)
}

func cannotOverrideRelation(relation string) error {
	return newError(CodeCannotOverrideRelation, "Trying to eagerload %s relationship twice", relation)
}

func deletedModel(modelName string) error {
	return newError(CodeDeletedModel, "Cannot edit deleted model instance for %s model", modelName)
}

func missingDatabaseRow(modelName string) error {
	return newError(CodeMissingDatabaseRow, "Cannot find database row for %s model", modelName)
}

func invalidModelRelation(relation, modelName string) error {
	return newError(CodeInvalidModelRelation, "%s is not defined on %s model", relation, modelName)
}

// describeType names the shape of an argument in error messages.
func describeType(v interface{}) string {
	if v == nil {
		return "null"
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Func:
		return "function"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
