package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsuite/notification-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/mongodb"
)

type NotificationRepository struct {
	col *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{col: db.Collection("notifications")}
}

func (r *NotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "role", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

// visibleTo matches the user's own notifications and broadcasts to its role.
func visibleTo(tenantID, userID, role string) bson.M {
	return bson.M{
		"tenant_id": tenantID,
		"$or": bson.A{
			bson.M{"user_id": userID},
			bson.M{"user_id": "", "role": role},
		},
	}
}

func unreadBy(tenantID, userID, role string) bson.M {
	return bson.M{
		"tenant_id": tenantID,
		"$or": bson.A{
			bson.M{"user_id": userID, "read": false},
			bson.M{"user_id": "", "role": role, "read_by": bson.M{"$ne": userID}},
		},
	}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	n.ID = primitive.NewObjectID()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, n)
	return err
}

// List returns the caller's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, tenantID, userID, role string, limit, offset int64) ([]models.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)
	cursor, err := r.col.Find(ctx, visibleTo(tenantID, userID, role), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, tenantID, userID, role string) (int64, error) {
	return r.col.CountDocuments(ctx, unreadBy(tenantID, userID, role))
}

func (r *NotificationRepository) MarkRead(ctx context.Context, tenantID, userID, role string, id primitive.ObjectID) error {
	n := new(models.Notification)
	filter := visibleTo(tenantID, userID, role)
	filter["_id"] = id
	if err := r.col.FindOne(ctx, filter).Decode(n); err != nil {
		return mongodb.TranslateError(err)
	}

	update := bson.M{"$set": bson.M{"read": true}}
	if n.IsBroadcast() {
		update = bson.M{"$addToSet": bson.M{"read_by": userID}}
	}
	res, err := r.col.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// MarkAllRead returns how many notifications changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, tenantID, userID, role string) (int64, error) {
	own, err := r.col.UpdateMany(ctx,
		bson.M{"tenant_id": tenantID, "user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	shared, err := r.col.UpdateMany(ctx,
		bson.M{"tenant_id": tenantID, "user_id": "", "role": role, "read_by": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"read_by": userID}})
	if err != nil {
		return own.ModifiedCount, err
	}
	return own.ModifiedCount + shared.ModifiedCount, nil
}
