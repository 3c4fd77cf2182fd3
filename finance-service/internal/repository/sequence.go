package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sequences hands out per-tenant counters for document numbers.
type Sequences struct {
	coll *mongo.Collection
}

func NewSequences(db *mongo.Database) *Sequences {
	return &Sequences{coll: db.Collection("counters")}
}

func (s *Sequences) Next(ctx context.Context, tenantID, name string) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": tenantID + ":" + name},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Value, nil
}
