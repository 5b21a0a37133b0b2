package helpers

import (
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDGenerator produces identifiers for new documents and embedded elements.
type IDGenerator func() interface{}

func GenerateUUID() string {
	return uuid.New().String()
}

// NewIDGenerator returns the generator for an id strategy. Anything other than
// "uuid" yields ObjectIDs.
func NewIDGenerator(strategy string) IDGenerator {
	if strategy == "uuid" {
		return func() interface{} { return GenerateUUID() }
	}
	return func() interface{} { return primitive.NewObjectID() }
}

// Helper function to properly remove quotes from strings
func StripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
