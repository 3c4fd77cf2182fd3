package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsuite/finance-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/mongodb"
)

// Record is implemented by pointers to finance documents.
type Record[T any] interface {
	*T
	GetBase() *models.Base
}

// Collection is a tenant-scoped store for one finance document type.
type Collection[T any, P Record[T]] struct {
	coll *mongo.Collection
}

func NewCollection[T any, P Record[T]](db *mongo.Database, name string) *Collection[T, P] {
	return &Collection[T, P]{coll: db.Collection(name)}
}

// EnsureIndexes creates the tenant index plus the given unique keys, each
// scoped to the tenant.
func (c *Collection[T, P]) EnsureIndexes(ctx context.Context, uniqueKeys ...string) error {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	for _, k := range uniqueKeys {
		idx = append(idx, mongo.IndexModel{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: k, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
	}
	_, err := c.coll.Indexes().CreateMany(ctx, idx)
	return err
}

func (c *Collection[T, P]) Create(ctx context.Context, doc *T) error {
	b := P(doc).GetBase()
	now := time.Now().UTC()
	b.ID = primitive.NewObjectID()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := c.coll.InsertOne(ctx, doc)
	return mongodb.TranslateError(err)
}

func (c *Collection[T, P]) Update(ctx context.Context, doc *T) error {
	b := P(doc).GetBase()
	b.UpdatedAt = time.Now().UTC()
	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": b.ID, "tenant_id": b.TenantID}, doc)
	if err != nil {
		return mongodb.TranslateError(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (c *Collection[T, P]) FindByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*T, error) {
	doc := new(T)
	if err := c.coll.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(doc); err != nil {
		return nil, mongodb.TranslateError(err)
	}
	return doc, nil
}

// List returns the tenant's documents, newest first.
func (c *Collection[T, P]) List(ctx context.Context, tenantID string) ([]T, error) {
	cursor, err := c.coll.Find(ctx, bson.M{"tenant_id": tenantID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Collection[T, P]) Delete(ctx context.Context, tenantID string, id primitive.ObjectID) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
