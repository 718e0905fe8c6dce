package client

import (
	"context"
	"time"

	"github.com/pranaytiwariii/SlotSwapper/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client holds connections to external systems. It is constructed once at
// process start, injected everywhere it is needed, and disconnected on
// shutdown. Nothing reads it from ambient state.
type Client struct {
	Mongo *mongo.Client
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := mongoClient.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = mongoClient
}

func (c *Client) GracefulShutdown(log *logger.Logger) {
	if c.Mongo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Mongo.Disconnect(ctx); err != nil {
		log.Error("Failed to disconnect from MongoDB", "error", err)
		return
	}
	log.Info("Disconnected from MongoDB")
}
