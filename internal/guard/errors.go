package guard

import "errors"

var (
	// ErrUsageUnavailable is returned when the usage store cannot be read.
	// The guard refuses to decide on unknown usage; callers must surface the
	// failure instead of treating it as zero spend.
	ErrUsageUnavailable = errors.New("usage data unavailable")
)
