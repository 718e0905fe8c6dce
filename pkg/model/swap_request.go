package model

import (
	"time"
)

// SwapRequest proposes exchanging ownership of two slots between two
// users. PairKey is the sorted concatenation of the two slot ids; a unique
// partial index on (pair_key, status=PENDING) guarantees at most one open
// negotiation per unordered slot pair.
type SwapRequest struct {
	ID              string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	RequesterID     string     `json:"requester_id" bson:"requester_id" validate:"required,mongodb"`
	TargetUserID    string     `json:"target_user_id" bson:"target_user_id" validate:"required,mongodb"`
	RequesterSlotID string     `json:"requester_slot_id" bson:"requester_slot_id" validate:"required,mongodb"`
	TargetSlotID    string     `json:"target_slot_id" bson:"target_slot_id" validate:"required,mongodb"`
	PairKey         string     `json:"-" bson:"pair_key" validate:"required"`
	Status          string     `json:"status" bson:"status" validate:"required,oneof=PENDING ACCEPTED REJECTED CANCELLED"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at" validate:"omitempty"`
	RespondedAt     *time.Time `json:"responded_at,omitempty" bson:"responded_at,omitempty" validate:"omitempty"`
}

// PendingSwap is the inbox/outbox view: a pending request enriched with
// both slots and both user summaries.
type PendingSwap struct {
	SwapRequest   `bson:",inline"`
	RequesterSlot Slot        `json:"requester_slot" bson:"requester_slot"`
	TargetSlot    Slot        `json:"target_slot" bson:"target_slot"`
	Requester     UserSummary `json:"requester" bson:"requester"`
	Target        UserSummary `json:"target" bson:"target"`
}

// SwapProposal is the propose payload. MySlotID must be owned by the
// caller; TheirSlotID by someone else.
type SwapProposal struct {
	MySlotID    string `json:"my_slot_id" validate:"required,mongodb"`
	TheirSlotID string `json:"their_slot_id" validate:"required,mongodb,nefield=MySlotID"`
}

// SwapDecision is the respond payload. Accepted is a pointer so a missing
// field is distinguishable from an explicit false.
type SwapDecision struct {
	RequestID string `json:"request_id" validate:"required,mongodb"`
	Accepted  *bool  `json:"accepted" validate:"required"`
}
