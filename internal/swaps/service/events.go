package service

import (
	"context"
	"time"

	"github.com/pranaytiwariii/SlotSwapper/pkg/kafka"
	"github.com/pranaytiwariii/SlotSwapper/pkg/logger"
)

const (
	EventSwapProposed  = "swap.proposed"
	EventSwapAccepted  = "swap.accepted"
	EventSwapRejected  = "swap.rejected"
	EventSwapCancelled = "swap.cancelled"
	EventSlotCreated   = "slot.created"
	EventSlotDeleted   = "slot.deleted"

	eventSource        = "swaps"
	eventSchemaVersion = "1"
)

// EventPublisher is satisfied by kafka.Producer. A nil publisher disables
// event emission.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type SwapEvent struct {
	RequestID       string    `json:"request_id"`
	RequesterID     string    `json:"requester_id"`
	TargetUserID    string    `json:"target_user_id"`
	RequesterSlotID string    `json:"requester_slot_id"`
	TargetSlotID    string    `json:"target_slot_id"`
	Status          string    `json:"status"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type SlotEvent struct {
	SlotID     string    `json:"slot_id"`
	OwnerID    string    `json:"owner_id"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// publishEvent emits after the transaction has committed. Publishing is
// best effort: a broker failure is logged and never unwinds the swap.
func publishEvent(ctx context.Context, publisher EventPublisher, log *logger.Logger, eventType, key string, payload any) {
	if publisher == nil {
		return
	}

	msg, err := kafka.NewMessage().
		WithKey(key).
		WithValue(payload).
		WithEventType(eventType).
		WithSource(eventSource).
		WithSchemaVersion(eventSchemaVersion).
		Build()
	if err != nil {
		log.Error("Failed to build event", "event_type", eventType, "key", key, "error", err)
		return
	}

	if err := publisher.Publish(ctx, msg); err != nil {
		log.Error("Failed to publish event", "event_type", eventType, "key", key, "error", err)
	}
}
