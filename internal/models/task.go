package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus tracks where a task sits in its run lifecycle.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Tool is a prompt template the workspace runs against a provider. Outputs
// inherit their tool attribution through the task that produced them.
type Tool struct {
	ID           uuid.UUID `db:"id" json:"id"`
	WorkspaceID  uuid.UUID `db:"workspace_id" json:"workspace_id"`
	Name         string    `db:"name" json:"name"`
	ModelName    string    `db:"model_name" json:"model_name"`
	SystemPrompt string    `db:"system_prompt" json:"system_prompt"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Task is one unit of work: a prompt run through a tool for a workspace.
type Task struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	WorkspaceID uuid.UUID  `db:"workspace_id" json:"workspace_id"`
	ToolID      *uuid.UUID `db:"tool_id" json:"tool_id,omitempty"`
	Prompt      string     `db:"prompt" json:"prompt"`
	Status      TaskStatus `db:"status" json:"status"`
	ClientTag   *string    `db:"client_tag" json:"client_tag,omitempty"`
	ProjectTag  *string    `db:"project_tag" json:"project_tag,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
