package repository

import (
	"context"
	"errors"
	"fmt"

	swapserrors "github.com/pranaytiwariii/SlotSwapper/internal/swaps/errors"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
	"github.com/pranaytiwariii/SlotSwapper/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongoUserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// UserRepository maintains the derived per-user task index. AddTask and
// RemoveTask are idempotent ($addToSet / $pull), so a retried transaction
// step cannot duplicate or double-remove an id.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	AddTask(ctx context.Context, userID, slotID string) error
	RemoveTask(ctx context.Context, userID, slotID string) error
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUserRepository{
		cfg:        cfg,
		collection: db.Collection(UserCollection),
	}
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("%w: %s", swapserrors.ErrInvalidID, id)
	}

	var user model.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, swapserrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &user, nil
}

func (r *mongoUserRepository) AddTask(ctx context.Context, userID, slotID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"task_ids": slotID}},
	)
	if err != nil {
		return fmt.Errorf("failed to add slot to user index: %w", err)
	}
	if result.MatchedCount == 0 {
		return swapserrors.ErrUserNotFound
	}

	return nil
}

func (r *mongoUserRepository) RemoveTask(ctx context.Context, userID, slotID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"task_ids": slotID}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove slot from user index: %w", err)
	}
	if result.MatchedCount == 0 {
		return swapserrors.ErrUserNotFound
	}

	return nil
}
