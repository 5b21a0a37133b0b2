package helpers

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/stoewer/go-strcase"
)

// SnakeCase converts a model name to snake case: PostUser -> post_user.
func SnakeCase(name string) string {
	return strcase.SnakeCase(name)
}

// CollectionName returns the default collection for a model name: User -> users.
func CollectionName(modelName string) string {
	return inflection.Plural(SnakeCase(modelName))
}

// SingularSnake returns the singular snake form of a model name: Users -> user.
func SingularSnake(modelName string) string {
	return inflection.Singular(SnakeCase(modelName))
}

// ForeignKeyName returns the default foreign key referencing a model: User -> user_id.
func ForeignKeyName(modelName string) string {
	return SingularSnake(modelName) + "_id"
}

// PivotCollectionName joins the singular snake names of two models in sorted order:
// (User, Post) -> post_user.
func PivotCollectionName(a, b string) string {
	names := []string{SingularSnake(a), SingularSnake(b)}
	sort.Strings(names)
	return strings.Join(names, "_")
}

// LowerFirst lowercases the first letter: BelongsToMany -> belongsToMany.
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
