package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"opsuite/pkg/apperr"
	"opsuite/pkg/mongodb"
	"opsuite/warehouse-service/internal/models"
)

type InventoryRepository struct {
	items     *mongo.Collection
	movements *mongo.Collection
}

func NewInventoryRepository(db *mongo.Database) *InventoryRepository {
	return &InventoryRepository{
		items:     db.Collection("inventory_items"),
		movements: db.Collection("stock_movements"),
	}
}

func (r *InventoryRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.items.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return err
	}
	_, err := r.movements.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "item_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (r *InventoryRepository) Create(ctx context.Context, item *models.InventoryItem) error {
	now := time.Now().UTC()
	item.ID = primitive.NewObjectID()
	item.CreatedAt = now
	item.UpdatedAt = now
	_, err := r.items.InsertOne(ctx, item)
	return mongodb.TranslateError(err)
}

// Update saves everything but the quantity, which only movements change.
func (r *InventoryRepository) Update(ctx context.Context, item *models.InventoryItem) error {
	item.UpdatedAt = time.Now().UTC()
	res, err := r.items.UpdateOne(ctx, bson.M{"_id": item.ID, "tenant_id": item.TenantID}, bson.M{"$set": bson.M{
		"sku":           item.SKU,
		"name":          item.Name,
		"category":      item.Category,
		"unit":          item.Unit,
		"reorder_level": item.ReorderLevel,
		"location":      item.Location,
		"unit_cost":     item.UnitCost,
		"active":        item.Active,
		"updated_at":    item.UpdatedAt,
	}})
	if err != nil {
		return mongodb.TranslateError(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *InventoryRepository) Delete(ctx context.Context, tenantID string, id primitive.ObjectID) error {
	res, err := r.items.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	_, err = r.movements.DeleteMany(ctx, bson.M{"tenant_id": tenantID, "item_id": id})
	return err
}

func (r *InventoryRepository) FindByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*models.InventoryItem, error) {
	item := new(models.InventoryItem)
	if err := r.items.FindOne(ctx, bson.M{"_id": id, "tenant_id": tenantID}).Decode(item); err != nil {
		return nil, mongodb.TranslateError(err)
	}
	return item, nil
}

func (r *InventoryRepository) List(ctx context.Context, tenantID string) ([]models.InventoryItem, error) {
	cursor, err := r.items.Find(ctx, bson.M{"tenant_id": tenantID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []models.InventoryItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ApplyMovement changes the stock atomically and returns the item as it was
// before the change. An outgoing movement larger than the stock fails with
// ErrConflict and leaves the item untouched.
func (r *InventoryRepository) ApplyMovement(ctx context.Context, tenantID string, id primitive.ObjectID, t models.MovementType, qty decimal.Decimal) (*models.InventoryItem, error) {
	filter := bson.M{"_id": id, "tenant_id": tenantID}
	set := bson.M{"updated_at": time.Now().UTC()}
	update := bson.M{"$set": set}
	switch t {
	case models.MovementIn:
		update["$inc"] = bson.M{"quantity": qty}
	case models.MovementOut:
		filter["quantity"] = bson.M{"$gte": qty}
		update["$inc"] = bson.M{"quantity": qty.Neg()}
	case models.MovementAdjust:
		set["quantity"] = qty
	default:
		return nil, fmt.Errorf("%w: unknown movement type %q", apperr.ErrValidation, t)
	}

	before := new(models.InventoryItem)
	err := r.items.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(before)
	if errors.Is(err, mongo.ErrNoDocuments) && t == models.MovementOut {
		if _, findErr := r.FindByID(ctx, tenantID, id); findErr != nil {
			return nil, findErr
		}
		return nil, fmt.Errorf("%w: insufficient stock", apperr.ErrConflict)
	}
	if err != nil {
		return nil, mongodb.TranslateError(err)
	}
	return before, nil
}

func (r *InventoryRepository) AddMovement(ctx context.Context, m *models.StockMovement) error {
	m.ID = primitive.NewObjectID()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.movements.InsertOne(ctx, m)
	return err
}

// Movements returns an item's history, newest first.
func (r *InventoryRepository) Movements(ctx context.Context, tenantID string, itemID primitive.ObjectID) ([]models.StockMovement, error) {
	cursor, err := r.movements.Find(ctx, bson.M{"tenant_id": tenantID, "item_id": itemID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.StockMovement{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
