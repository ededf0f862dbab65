package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/guard"
)

type fakeUsageReader struct {
	snapshot        *guard.Snapshot
	err             error
	lastWorkspaceID uuid.UUID
	lastPeriodStart time.Time
}

func (f *fakeUsageReader) Aggregate(ctx context.Context, workspaceID uuid.UUID, periodStart time.Time) (*guard.Snapshot, error) {
	f.lastWorkspaceID = workspaceID
	f.lastPeriodStart = periodStart
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func TestUsageHandler_ReturnsSnapshot(t *testing.T) {
	reader := &fakeUsageReader{
		snapshot: &guard.Snapshot{
			RequestsUsed: 42,
			TokensUsed:   12_500,
			CostUSDUsed:  3.75,
		},
	}
	fixedNow := time.Date(2025, 6, 18, 14, 30, 0, 0, time.UTC)
	handler := NewUsageHandler(reader, func() time.Time { return fixedNow })
	workspaceID := uuid.New()

	req := requestWithWorkspace(http.MethodGet, "/v1/usage", nil, workspaceID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp UsageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	wantPeriod := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !resp.PeriodStart.Equal(wantPeriod) {
		t.Errorf("Expected periodStart %v, got %v", wantPeriod, resp.PeriodStart)
	}
	if resp.Usage == nil || resp.Usage.RequestsUsed != 42 || resp.Usage.CostUSDUsed != 3.75 {
		t.Errorf("Snapshot not carried through: %+v", resp.Usage)
	}

	if reader.lastWorkspaceID != workspaceID {
		t.Errorf("Aggregated for wrong workspace: %s", reader.lastWorkspaceID)
	}
	if !reader.lastPeriodStart.Equal(wantPeriod) {
		t.Errorf("Aggregated for wrong period: %v", reader.lastPeriodStart)
	}
}

func TestUsageHandler_UsageUnavailableIs503(t *testing.T) {
	reader := &fakeUsageReader{err: guard.ErrUsageUnavailable}
	handler := NewUsageHandler(reader, nil)

	req := requestWithWorkspace(http.MethodGet, "/v1/usage", nil, uuid.New())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}
}

func TestUsageHandler_MissingWorkspace(t *testing.T) {
	handler := NewUsageHandler(&fakeUsageReader{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/usage", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", w.Code)
	}
}

func TestUsageHandler_MethodNotAllowed(t *testing.T) {
	handler := NewUsageHandler(&fakeUsageReader{}, nil)

	req := requestWithWorkspace(http.MethodPost, "/v1/usage", nil, uuid.New())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected status 405, got %d", w.Code)
	}
}
