package guard

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/models"
)

// UsageStore reads the append-only output log.
type UsageStore interface {
	// ListOutputsSince returns all outputs for the workspace created on or
	// after the given timestamp.
	ListOutputsSince(ctx context.Context, workspaceID uuid.UUID, since time.Time) ([]models.Output, error)
}

// Aggregator folds the current month's outputs into a usage snapshot.
// Pure read: it never writes and never caches.
type Aggregator struct {
	store UsageStore
}

// NewAggregator creates an aggregator over the given usage store.
func NewAggregator(store UsageStore) *Aggregator {
	return &Aggregator{store: store}
}

// Aggregate builds the usage snapshot for one workspace since periodStart.
// A store failure wraps ErrUsageUnavailable: the caller must not treat it as
// zero usage.
func (a *Aggregator) Aggregate(ctx context.Context, workspaceID uuid.UUID, periodStart time.Time) (*Snapshot, error) {
	outputs, err := a.store.ListOutputsSince(ctx, workspaceID, periodStart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsageUnavailable, err)
	}

	snapshot := NewSnapshot()
	for i := range outputs {
		foldOutput(snapshot, &outputs[i])
	}
	return snapshot, nil
}

// foldOutput adds one output to the running totals and breakdowns.
func foldOutput(s *Snapshot, out *models.Output) {
	cost := sanitizeCost(out.CostUSD)

	s.RequestsUsed++
	s.TokensUsed += sanitizeTokens(out.InputTokens) + sanitizeTokens(out.OutputTokens)
	s.CostUSDUsed += cost

	if out.ToolID != nil {
		s.ByTool[out.ToolID.String()] += cost
	}

	if out.ClientTag != nil && *out.ClientTag != "" {
		for _, key := range tagKeys(clientTagPrefix, *out.ClientTag) {
			s.ByTag[key] += cost
		}
	}
	if out.ProjectTag != nil && *out.ProjectTag != "" {
		for _, key := range tagKeys(projectTagPrefix, *out.ProjectTag) {
			s.ByTag[key] += cost
		}
	}
}

// sanitizeCost treats missing or non-finite cost values as zero.
func sanitizeCost(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}

// sanitizeTokens treats missing or negative token counts as zero.
func sanitizeTokens(v *int64) int64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

// MonthStart returns the first instant of the month containing t, in UTC.
// The guard computes period boundaries from its injected clock so tests can
// pin them.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
