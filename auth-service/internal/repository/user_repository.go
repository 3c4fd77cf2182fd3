package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsuite/auth-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/mongodb"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "role", Value: 1}}},
	})
	return err
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, user)
	return mongodb.TranslateError(err)
}

func (r *UserRepository) FindByEmail(ctx context.Context, tenantID, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"tenant_id": tenantID, "email": email}).Decode(&user)
	if err != nil {
		return nil, mongodb.TranslateError(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, mongodb.TranslateError(err)
	}
	return &user, nil
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.collection.UpdateByID(ctx, user.ID, bson.M{"$set": bson.M{
		"first_name":     user.FirstName,
		"last_name":      user.LastName,
		"phone":          user.Phone,
		"role":           user.Role,
		"banned":         user.Banned,
		"reset_required": user.ResetRequired,
		"password":       user.Password,
		"updated_at":     user.UpdatedAt,
	}})
	if err != nil {
		return mongodb.TranslateError(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListByTenant returns users of a tenant, optionally filtered by role.
func (r *UserRepository) ListByTenant(ctx context.Context, tenantID, role string) ([]models.User, error) {
	filter := bson.M{"tenant_id": tenantID}
	if role != "" {
		filter["role"] = role
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
