package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	swapserrors "github.com/pranaytiwariii/SlotSwapper/internal/swaps/errors"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	mongotx "github.com/pranaytiwariii/SlotSwapper/pkg/db/mongo"
	"github.com/pranaytiwariii/SlotSwapper/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongoSwapRequestRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

// SwapRequestRepository is the swap-request store. Pending-pair uniqueness
// is backed by a unique partial index on (pair_key, status=PENDING), so a
// racing duplicate insert fails here rather than producing two open
// negotiations.
type SwapRequestRepository interface {
	Create(ctx context.Context, request *model.SwapRequest) error
	FindByID(ctx context.Context, id string) (*model.SwapRequest, error)
	FindPendingForPair(ctx context.Context, slotA, slotB string) (*model.SwapRequest, error)
	FindPendingInvolvingUser(ctx context.Context, userID string) ([]*model.PendingSwap, error)
	UpdateStatus(ctx context.Context, id, fromStatus, toStatus string, respondedAt time.Time) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoSwapRequestRepository(cfg *config.Config) SwapRequestRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSwapRequestRepository{
		cfg:        cfg,
		collection: db.Collection(SwapRequestCollection),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// PairKey builds the canonical key for an unordered slot pair: both
// orderings of the same two slots produce the same key.
func PairKey(slotA, slotB string) string {
	if strings.Compare(slotA, slotB) > 0 {
		slotA, slotB = slotB, slotA
	}
	return slotA + ":" + slotB
}

func (r *mongoSwapRequestRepository) Create(ctx context.Context, request *model.SwapRequest) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if request.ID == "" {
		request.ID = primitive.NewObjectID().Hex()
	}
	request.PairKey = PairKey(request.RequesterSlotID, request.TargetSlotID)
	request.CreatedAt = now
	request.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, request); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return swapserrors.ErrDuplicatePending
		}
		return fmt.Errorf("failed to create swap request: %w", err)
	}
	return nil
}

func (r *mongoSwapRequestRepository) FindByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}

	var request model.SwapRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, swapserrors.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to find swap request: %w", err)
	}

	return &request, nil
}

func (r *mongoSwapRequestRepository) FindPendingForPair(ctx context.Context, slotA, slotB string) (*model.SwapRequest, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"pair_key": PairKey(slotA, slotB),
		"status":   config.SwapPending,
	}

	var request model.SwapRequest
	err := r.collection.FindOne(ctx, filter).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, swapserrors.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to find pending swap request: %w", err)
	}

	return &request, nil
}

// FindPendingInvolvingUser returns every pending request where the user is
// requester or target, enriched with both slots and both user summaries.
func (r *mongoSwapRequestRepository) FindPendingInvolvingUser(ctx context.Context, userID string) ([]*model.PendingSwap, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	userSummary := []bson.M{
		{"$project": bson.M{"name": 1, "email": 1}},
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status": config.SwapPending,
			"$or": []bson.M{
				{"requester_id": userID},
				{"target_user_id": userID},
			},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         SlotCollection,
			"localField":   "requester_slot_id",
			"foreignField": "_id",
			"as":           "requester_slot",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         SlotCollection,
			"localField":   "target_slot_id",
			"foreignField": "_id",
			"as":           "target_slot",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         UserCollection,
			"localField":   "requester_id",
			"foreignField": "_id",
			"as":           "requester",
			"pipeline":     userSummary,
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         UserCollection,
			"localField":   "target_user_id",
			"foreignField": "_id",
			"as":           "target",
			"pipeline":     userSummary,
		}}},
		{{Key: "$unwind", Value: "$requester_slot"}},
		{{Key: "$unwind", Value: "$target_slot"}},
		{{Key: "$unwind", Value: "$requester"}},
		{{Key: "$unwind", Value: "$target"}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending swap requests: %w", err)
	}
	defer cursor.Close(ctx)

	var pending []*model.PendingSwap
	if err = cursor.All(ctx, &pending); err != nil {
		return nil, fmt.Errorf("failed to decode pending swap requests: %w", err)
	}

	return pending, nil
}

// UpdateStatus transitions a request out of fromStatus. The status guard
// makes the transition single-shot: of two concurrent responders, the
// second matches zero documents and gets ErrStatusConflict.
func (r *mongoSwapRequestRepository) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string, respondedAt time.Time) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": id, "status": fromStatus}
	update := bson.M{"$set": bson.M{
		"status":       toStatus,
		"responded_at": respondedAt,
		"updated_at":   respondedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update swap request status: %w", err)
	}
	if result.MatchedCount == 0 {
		err := r.collection.FindOne(ctx, bson.M{"_id": id}).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return swapserrors.ErrRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to inspect swap request after missed update: %w", err)
		}
		return swapserrors.ErrStatusConflict
	}

	return nil
}

func (r *mongoSwapRequestRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
