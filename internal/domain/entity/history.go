package entity

import (
	"time"

	"github.com/google/uuid"
)

// TransitionRecord is the audit trail entry written for every state change
type TransitionRecord struct {
	ID        int64     `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Reason    string    `json:"reason"`
	Automatic bool      `json:"automatic"`
	Timestamp time.Time `json:"timestamp"`
}
