package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsuite/pkg/apperr"
	"opsuite/pkg/mongodb"
	"opsuite/warehouse-service/internal/models"
)

type WarrantyRepository struct {
	collection *mongo.Collection
}

func NewWarrantyRepository(db *mongo.Database) *WarrantyRepository {
	return &WarrantyRepository{collection: db.Collection("warranties")}
}

func (r *WarrantyRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "serial_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiry_date", Value: 1}}},
	})
	return err
}

func (r *WarrantyRepository) Create(ctx context.Context, w *models.Warranty) error {
	now := time.Now().UTC()
	w.ID = primitive.NewObjectID()
	w.CreatedAt = now
	w.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, w)
	return mongodb.TranslateError(err)
}

func (r *WarrantyRepository) Update(ctx context.Context, w *models.Warranty) error {
	w.UpdatedAt = time.Now().UTC()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": w.ID, "tenant_id": w.TenantID}, w)
	if err != nil {
		return mongodb.TranslateError(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *WarrantyRepository) Delete(ctx context.Context, tenantID string, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *WarrantyRepository) FindByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*models.Warranty, error) {
	w := new(models.Warranty)
	if err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(w); err != nil {
		return nil, mongodb.TranslateError(err)
	}
	return w, nil
}

func (r *WarrantyRepository) List(ctx context.Context, tenantID string) ([]models.Warranty, error) {
	return r.find(ctx, bson.M{"tenant_id": tenantID}, bson.D{{Key: "created_at", Value: -1}})
}

// ExpiringBetween returns warranties of every tenant expiring in [from, to).
func (r *WarrantyRepository) ExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Warranty, error) {
	return r.find(ctx, bson.M{"expiry_date": bson.M{"$gte": from, "$lt": to}}, bson.D{{Key: "expiry_date", Value: 1}})
}

func (r *WarrantyRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]models.Warranty, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Warranty{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
