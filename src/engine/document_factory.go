package engine

import (
	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
)

type DocumentFactory interface {
	// NewDocument copies the fields into a new document and assigns an _id when missing.
	NewDocument(fields bson.M) bson.M
}

type DocumentFactoryImpl struct {
	newID helpers.IDGenerator
}

func NewDocumentFactory(newID helpers.IDGenerator) DocumentFactory {
	if newID == nil {
		newID = helpers.NewIDGenerator("objectid")
	}
	return &DocumentFactoryImpl{newID: newID}
}

func (f *DocumentFactoryImpl) NewDocument(fields bson.M) bson.M {
	doc := helpers.CloneDocument(fields)
	if doc == nil {
		doc = bson.M{}
	}
	if id, ok := doc["_id"]; !ok || id == nil {
		doc["_id"] = f.newID()
	}
	return doc
}
