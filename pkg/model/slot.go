package model

import (
	"time"
)

// Slot is a calendar task/time-block record. Start and End are optional; a
// slot without them spans the whole day. Status SWAP_PENDING means the
// slot is frozen inside exactly one open swap negotiation.
type Slot struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	OwnerID     string    `json:"owner_id" bson:"owner_id" validate:"required,mongodb"`
	Title       string    `json:"title" bson:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=2000"`
	Date        string    `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	Start       string    `json:"start,omitempty" bson:"start,omitempty" validate:"omitempty,clock_time"`
	End         string    `json:"end,omitempty" bson:"end,omitempty" validate:"omitempty,clock_time"`
	Status      string    `json:"status" bson:"status" validate:"required,oneof=SWAPPABLE BUSY SWAP_PENDING"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// SlotWithOwner is the browse view: a swappable slot enriched with its
// owner's public summary.
type SlotWithOwner struct {
	Slot  `bson:",inline"`
	Owner UserSummary `json:"owner" bson:"owner"`
}

type SlotStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=SWAPPABLE BUSY"`
}
