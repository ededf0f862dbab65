package utils

import (
	"context"
	"errors"
	"strings"
)

// IsRecoverableError reports whether a failed store write is worth retrying.
// Queue workers use this to decide between retry-with-backoff and the dead
// letter queue.
func IsRecoverableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	transient := []string{
		"connection refused",
		"connection reset",
		"too many connections",
		"deadline exceeded",
		"i/o timeout",
	}
	msg := err.Error()
	for _, t := range transient {
		if strings.Contains(msg, t) {
			return true
		}
	}
	return false
}
