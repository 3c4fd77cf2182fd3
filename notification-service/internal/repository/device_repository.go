package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsuite/notification-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/mongodb"
)

type DeviceRepository struct {
	col *mongo.Collection
}

func NewDeviceRepository(db *mongo.Database) *DeviceRepository {
	return &DeviceRepository{col: db.Collection("devices")}
}

func (r *DeviceRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Register replaces the user's token.
func (r *DeviceRepository) Register(ctx context.Context, d *models.Device) error {
	d.UpdatedAt = time.Now().UTC()
	_, err := r.col.UpdateOne(ctx,
		bson.M{"tenant_id": d.TenantID, "user_id": d.UserID},
		bson.M{"$set": bson.M{"token": d.Token, "platform": d.Platform, "updated_at": d.UpdatedAt}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *DeviceRepository) Remove(ctx context.Context, tenantID, userID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"tenant_id": tenantID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *DeviceRepository) Token(ctx context.Context, tenantID, userID string) (string, error) {
	var d models.Device
	if err := r.col.FindOne(ctx, bson.M{"tenant_id": tenantID, "user_id": userID}).Decode(&d); err != nil {
		return "", mongodb.TranslateError(err)
	}
	return d.Token, nil
}
