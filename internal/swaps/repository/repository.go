package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	SlotCollection        = "slots"
	SwapRequestCollection = "swap_requests"
	UserCollection        = "users"
)

// withTimeout wraps the context with a timeout unless the call is already
// inside a transaction. A SessionContext cannot be wrapped without breaking
// transaction semantics, so it is returned unchanged with a no-op cancel.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}
