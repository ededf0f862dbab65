package models

import (
	"time"

	"github.com/google/uuid"
)

// OutputStatus marks whether the AI invocation behind an output succeeded.
type OutputStatus string

const (
	OutputSucceeded OutputStatus = "succeeded"
	OutputFailed    OutputStatus = "failed"
)

// Output is one logged AI invocation: its token counts, cost and duration.
// Outputs form an append-only spend log; they are written after the provider
// call completes, success or failure alike (failed calls may still carry
// partial cost), and are never mutated.
type Output struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	WorkspaceID uuid.UUID  `db:"workspace_id" json:"workspace_id"`
	TaskID      uuid.UUID  `db:"task_id" json:"task_id"`
	ToolID      *uuid.UUID `db:"tool_id" json:"tool_id,omitempty"` // via the task's assigned tool; NULL = unattributed

	ModelName string       `db:"model_name" json:"model_name"`
	Status    OutputStatus `db:"status" json:"status"`

	// Nullable by design: a malformed or absent value counts as zero when
	// aggregating, it never fails an evaluation.
	CostUSD      *float64 `db:"cost_usd" json:"cost_usd,omitempty"`
	InputTokens  *int64   `db:"input_tokens" json:"input_tokens,omitempty"`
	OutputTokens *int64   `db:"output_tokens" json:"output_tokens,omitempty"`

	ClientTag  *string `db:"client_tag" json:"client_tag,omitempty"`
	ProjectTag *string `db:"project_tag" json:"project_tag,omitempty"`

	DurationMS   int64  `db:"duration_ms" json:"duration_ms"`
	ErrorMessage string `db:"error_message" json:"error_message,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TotalTokens returns input + output tokens, treating NULL as zero.
func (o *Output) TotalTokens() int64 {
	var total int64
	if o.InputTokens != nil {
		total += *o.InputTokens
	}
	if o.OutputTokens != nil {
		total += *o.OutputTokens
	}
	return total
}
