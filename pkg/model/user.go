package model

import "time"

// User record. TaskIDs is a derived index of the slots the user currently
// owns: it must always equal the set of slots whose owner_id is this user.
// Only the swap engine mutates it, as part of every ownership change.
type User struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name      string    `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Email     string    `json:"email" bson:"email" validate:"required,email"`
	TaskIDs   []string  `json:"task_ids" bson:"task_ids" validate:"omitempty,dive,mongodb"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// UserSummary is the only user shape exposed through swap views.
type UserSummary struct {
	ID    string `json:"id,omitempty" bson:"_id,omitempty"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
}
