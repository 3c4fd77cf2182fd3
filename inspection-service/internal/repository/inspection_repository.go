package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsuite/inspection-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/mongodb"
)

type InspectionRepository struct {
	collection *mongo.Collection
}

func NewInspectionRepository(db *mongo.Database) *InspectionRepository {
	return &InspectionRepository{collection: db.Collection("inspection_requests")}
}

func (r *InspectionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reference_no", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "client_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
	})
	return err
}

func (r *InspectionRepository) Create(ctx context.Context, req *models.InspectionRequest) error {
	now := time.Now().UTC()
	req.ID = primitive.NewObjectID()
	req.CreatedAt = now
	req.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, req)
	return mongodb.TranslateError(err)
}

func (r *InspectionRepository) Update(ctx context.Context, req *models.InspectionRequest) error {
	req.UpdatedAt = time.Now().UTC()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": req.ID, "tenant_id": req.TenantID}, req)
	if err != nil {
		return mongodb.TranslateError(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *InspectionRepository) Delete(ctx context.Context, tenantID string, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *InspectionRepository) FindByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*models.InspectionRequest, error) {
	var req models.InspectionRequest
	if err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(&req); err != nil {
		return nil, mongodb.TranslateError(err)
	}
	return &req, nil
}

func (r *InspectionRepository) find(ctx context.Context, filter bson.M) ([]models.InspectionRequest, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.InspectionRequest{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *InspectionRepository) List(ctx context.Context, tenantID string) ([]models.InspectionRequest, error) {
	return r.find(ctx, bson.M{"tenant_id": tenantID})
}

func (r *InspectionRepository) ListByClient(ctx context.Context, tenantID, clientID string) ([]models.InspectionRequest, error) {
	return r.find(ctx, bson.M{"tenant_id": tenantID, "client_id": clientID})
}

// ScheduledBetween returns scheduled requests of every tenant whose
// inspection starts in [from, to).
func (r *InspectionRepository) ScheduledBetween(ctx context.Context, from, to time.Time) ([]models.InspectionRequest, error) {
	return r.find(ctx, bson.M{
		"status":       models.StatusScheduled,
		"scheduled_at": bson.M{"$gte": from, "$lt": to},
	})
}

// MarkReminded records that the reminder for slot went out. A request
// rescheduled in the meantime is left alone and reported as ErrNotFound.
func (r *InspectionRepository) MarkReminded(ctx context.Context, tenantID string, id primitive.ObjectID, slot time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "tenant_id": tenantID, "scheduled_at": slot},
		bson.M{"$set": bson.M{"reminded_for": slot}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *InspectionRepository) CountByStatus(ctx context.Context, tenantID string) (map[models.Status]int, error) {
	cursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tenant_id": tenantID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.Status `bson:"_id"`
		Count  int           `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[models.Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// TenantIDs lists tenants that have at least one request.
func (r *InspectionRepository) TenantIDs(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "tenant_id", bson.M{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}
