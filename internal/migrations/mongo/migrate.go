package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pranaytiwariii/SlotSwapper/internal/migrations/mongo/validators"
	"github.com/pranaytiwariii/SlotSwapper/internal/swaps/repository"
	"github.com/pranaytiwariii/SlotSwapper/pkg/config"
)

var (
	SlotsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "owner_id", Value: 1},
			{Key: "status", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "date", Value: 1},
			{Key: "start", Value: 1},
		}},
	}

	// The partial unique index is the arbiter for duplicate proposals: at
	// most one PENDING request may exist per unordered slot pair.
	SwapRequestsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": config.SwapPending}),
		},
		{Keys: bson.D{
			{Key: "target_user_id", Value: 1},
			{Key: "status", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "requester_id", Value: 1},
			{Key: "status", Value: 1},
		}},
	}

	UsersIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	fmt.Printf("🚀 Running SlotSwapper Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		repository.SlotCollection: {
			Indexes:   SlotsIndexes,
			Validator: validators.SlotValidator,
		},
		repository.SwapRequestCollection: {
			Indexes:   SwapRequestsIndexes,
			Validator: validators.SwapRequestValidator,
		},
		repository.UserCollection: {
			Indexes:   UsersIndexes,
			Validator: validators.UserValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
	} else {
		fmt.Printf("ℹ️ Collection %s already exists — updating validator if needed\n", name)
		command := bson.D{
			{Key: "collMod", Value: name},
			{Key: "validator", Value: validator},
		}
		if err := db.RunCommand(ctx, command).Err(); err != nil {
			fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
		}
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}
