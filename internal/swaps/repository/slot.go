package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	swapserrors "github.com/pranaytiwariii/SlotSwapper/internal/swaps/errors"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	"github.com/pranaytiwariii/SlotSwapper/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// SlotRepository is the slot store. Status and ownership updates are
// compare-and-set: callers that need multi-document atomicity compose them
// inside the engine's transaction boundary, never here.
type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*model.Slot, error)
	FindSwappableExcluding(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.SlotWithOwner, error)
	CountSwappableExcluding(ctx context.Context, ownerID string) (int64, error)
	UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error
	UpdateOwnerAndStatus(ctx context.Context, id, expectedStatus, newOwnerID, newStatus string) error
	Delete(ctx context.Context, id string) error
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		collection: db.Collection(SlotCollection),
	}
}

// Slot ids are stored as hex strings so lookups against owner_id and the
// user task index need no type conversion.
func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if slot.ID == "" {
		slot.ID = primitive.NewObjectID().Hex()
	}
	slot.CreatedAt = now
	slot.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, slot); err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}

	var slot model.Slot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, swapserrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindByOwner(ctx context.Context, ownerID string) ([]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) FindSwappableExcluding(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.SlotWithOwner, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"owner_id": bson.M{"$ne": ownerID},
			"status":   config.SlotSwappable,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "date", Value: 1}, {Key: "start", Value: 1}}}},
		{{Key: "$skip", Value: offset}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$lookup", Value: bson.M{
			"from":         UserCollection,
			"localField":   "owner_id",
			"foreignField": "_id",
			"as":           "owner",
			"pipeline": []bson.M{
				{"$project": bson.M{"name": 1, "email": 1}},
			},
		}}},
		{{Key: "$unwind", Value: "$owner"}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to find swappable slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.SlotWithOwner
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode swappable slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) CountSwappableExcluding(ctx context.Context, ownerID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"owner_id": bson.M{"$ne": ownerID},
		"status":   config.SlotSwappable,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count swappable slots: %w", err)
	}
	return count, nil
}

// UpdateStatus moves a slot from one status to another. The filter matches
// the expected current status, so a concurrent transition loses cleanly
// instead of overwriting.
func (r *mongoSlotRepository) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": id, "status": fromStatus}
	update := bson.M{"$set": bson.M{
		"status":     toStatus,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update slot status: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.classifyMiss(ctx, id)
	}

	return nil
}

func (r *mongoSlotRepository) UpdateOwnerAndStatus(ctx context.Context, id, expectedStatus, newOwnerID, newStatus string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": id, "status": expectedStatus}
	update := bson.M{"$set": bson.M{
		"owner_id":   newOwnerID,
		"status":     newStatus,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update slot owner: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.classifyMiss(ctx, id)
	}

	return nil
}

func (r *mongoSlotRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if result.DeletedCount == 0 {
		return swapserrors.ErrSlotNotFound
	}

	return nil
}

// classifyMiss distinguishes "document gone" from "status moved on" after
// a compare-and-set matched nothing.
func (r *mongoSlotRepository) classifyMiss(ctx context.Context, id string) error {
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return swapserrors.ErrSlotNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to inspect slot after missed update: %w", err)
	}
	return swapserrors.ErrStatusConflict
}
