package mongo

import (
	"context"
	"fmt"

	apperrors "github.com/pranaytiwariii/SlotSwapper/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type TransactionFunc func(ctx mongo.SessionContext) error

// TransactionManager is the unit-of-work boundary: every mutation that
// touches more than one document goes through ExecuteTransaction so the
// writes commit or roll back together.
type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
	txOpts *options.TransactionOptions
}

func NewTransactionManager(client *mongo.Client) TransactionManager {
	// Ownership exchanges must be majority-durable and read from a single
	// snapshot; the slot-freeze invariant assumes no reader ever observes
	// a rolled-back exchange.
	txOpts := options.Transaction().
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Snapshot())

	return &mongoTransactionManager{
		client: client,
		txOpts: txOpts,
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	}, m.txOpts)

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
