package models

import (
	"time"

	"github.com/google/uuid"
)

// GuardEventType classifies an audit-log entry written by the run guard.
type GuardEventType string

const (
	GuardEventBlocked     GuardEventType = "blocked"
	GuardEventSoftWarning GuardEventType = "soft_warning"
)

// GuardEvent is one audit-log row. The guard writes one per evaluation that
// produced a block or a soft warning; clean evaluations write nothing.
// Write failures are observability losses, never guard failures.
type GuardEvent struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	WorkspaceID uuid.UUID      `db:"workspace_id" json:"workspace_id"`
	TaskID      uuid.UUID      `db:"task_id" json:"task_id"`
	ToolID      *uuid.UUID     `db:"tool_id" json:"tool_id,omitempty"`
	EventType   GuardEventType `db:"event_type" json:"event_type"`
	Reason      string         `db:"reason" json:"reason"`
	Metadata    JSONB          `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}
