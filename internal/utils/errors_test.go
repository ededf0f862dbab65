package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRecoverableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "recoverable - connection refused",
			err:      errors.New("dial tcp 127.0.0.1:5432: connection refused"),
			expected: true,
		},
		{
			name:     "recoverable - connection reset",
			err:      errors.New("read: connection reset by peer"),
			expected: true,
		},
		{
			name:     "recoverable - pool exhausted",
			err:      errors.New("pq: too many connections for role"),
			expected: true,
		},
		{
			name:     "recoverable - io timeout",
			err:      errors.New("write tcp: i/o timeout"),
			expected: true,
		},
		{
			name:     "non-recoverable - constraint violation",
			err:      errors.New("pq: duplicate key value violates unique constraint"),
			expected: false,
		},
		{
			name:     "non-recoverable - validation",
			err:      errors.New("invalid input"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "empty error message",
			err:      errors.New(""),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRecoverableError(tt.err)
			if result != tt.expected {
				t.Errorf("IsRecoverableError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestIsRecoverableErrorWrapped(t *testing.T) {
	t.Run("wrapped deadline exceeded", func(t *testing.T) {
		err := fmt.Errorf("failed to insert batch: %w", context.DeadlineExceeded)
		if !IsRecoverableError(err) {
			t.Error("IsRecoverableError() should unwrap context.DeadlineExceeded")
		}
	})

	t.Run("cancellation is not recoverable", func(t *testing.T) {
		err := fmt.Errorf("failed to insert batch: %w", context.Canceled)
		if IsRecoverableError(err) {
			t.Error("IsRecoverableError() should not retry cancelled work")
		}
	})
}
