package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsuite/auth-service/internal/models"
	"opsuite/pkg/mongodb"
)

type TenantRepository struct {
	collection *mongo.Collection
}

func NewTenantRepository(db *mongo.Database) *TenantRepository {
	return &TenantRepository{collection: db.Collection("tenants")}
}

func (r *TenantRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *TenantRepository) Create(ctx context.Context, t *models.Tenant) error {
	t.ID = primitive.NewObjectID()
	t.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, t)
	return mongodb.TranslateError(err)
}

func (r *TenantRepository) FindByCode(ctx context.Context, code string) (*models.Tenant, error) {
	var t models.Tenant
	if err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&t); err != nil {
		return nil, mongodb.TranslateError(err)
	}
	return &t, nil
}

func (r *TenantRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Tenant, error) {
	var t models.Tenant
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, mongodb.TranslateError(err)
	}
	return &t, nil
}

func (r *TenantRepository) List(ctx context.Context) ([]models.Tenant, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tenants := []models.Tenant{}
	if err := cursor.All(ctx, &tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}
