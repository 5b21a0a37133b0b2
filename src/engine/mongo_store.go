package engine

import (
	"context"
	"fmt"

	"lucidodm/src/helpers"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore runs the Store contract against a MongoDB database.
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	factory DocumentFactory
	logger  *zap.SugaredLogger
}

func NewMongoStore(ctx context.Context, uri, database string, newID helpers.IDGenerator, logger *zap.SugaredLogger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo at %s: %w", uri, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo at %s: %w", uri, err)
	}

	logger.Infow("mongo store connected", "database", database)
	return &MongoStore{
		client:  client,
		db:      client.Database(database),
		factory: NewDocumentFactory(newID),
		logger:  logger,
	}, nil
}

func findOptionsToMongo(opts *FindOptions) *options.FindOptions {
	o := options.Find()
	if opts == nil {
		return o
	}
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, s := range opts.Sort {
			dir := 1
			if s.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: s.Field, Value: dir})
		}
		o.SetSort(sort)
	}
	if opts.Skip > 0 {
		o.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		o.SetLimit(opts.Limit)
	}
	if len(opts.Fields) > 0 {
		projection := bson.M{"_id": 1}
		for _, f := range opts.Fields {
			projection[f] = 1
		}
		o.SetProjection(projection)
	}
	return o
}

func (s *MongoStore) Find(ctx context.Context, collection string, where *WhereGroup, opts *FindOptions) ([]bson.M, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	cursor, err := s.db.Collection(collection).Find(ctx, ToBSON(where), findOptionsToMongo(opts))
	if err != nil {
		return nil, fmt.Errorf("find on %s failed: %w", collection, err)
	}
	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("reading %s cursor failed: %w", collection, err)
	}
	for i, d := range docs {
		docs[i] = normalizeDecoded(d)
	}
	return docs, nil
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, where *WhereGroup, opts *FindOptions) (bson.M, error) {
	return findOne(ctx, s, collection, where, opts)
}

func (s *MongoStore) Insert(ctx context.Context, collection string, docs ...bson.M) ([]interface{}, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []interface{}{}, nil
	}

	prepared := make([]interface{}, len(docs))
	ids := make([]interface{}, len(docs))
	for i, d := range docs {
		doc := s.factory.NewDocument(d)
		prepared[i] = doc
		ids[i] = doc["_id"]
	}

	if _, err := s.db.Collection(collection).InsertMany(ctx, prepared); err != nil {
		return nil, fmt.Errorf("insert into %s failed: %w", collection, err)
	}
	return ids, nil
}

func (s *MongoStore) Update(ctx context.Context, collection string, where *WhereGroup, patch Patch) (int64, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}
	update := bson.M{}
	if len(patch.Set) > 0 {
		set := helpers.CloneDocument(patch.Set)
		delete(set, "_id")
		update["$set"] = set
	}
	if len(patch.Unset) > 0 {
		unset := bson.M{}
		for _, f := range patch.Unset {
			unset[f] = ""
		}
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return 0, nil
	}

	res, err := s.db.Collection(collection).UpdateMany(ctx, ToBSON(where), update)
	if err != nil {
		return 0, fmt.Errorf("update of %s failed: %w", collection, err)
	}
	return res.MatchedCount, nil
}

func (s *MongoStore) Delete(ctx context.Context, collection string, where *WhereGroup) (int64, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}
	res, err := s.db.Collection(collection).DeleteMany(ctx, ToBSON(where))
	if err != nil {
		return 0, fmt.Errorf("delete from %s failed: %w", collection, err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Count(ctx context.Context, collection string, where *WhereGroup) (int64, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}
	n, err := s.db.Collection(collection).CountDocuments(ctx, ToBSON(where))
	if err != nil {
		return 0, fmt.Errorf("count on %s failed: %w", collection, err)
	}
	return n, nil
}

func (s *MongoStore) Collections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("listing collections failed: %w", err)
	}
	return names, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
