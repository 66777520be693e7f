package engine

import "time"

// Retry tuning for opening a provider completion stream, grounded on the
// teacher's internal/session/loop.go newRetryBackoff. Only the stream-open
// call is retried; a mid-stream error is not, since replaying an
// already-partially-delivered completion would duplicate output.
const (
	retryMaxRetries      = 3
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMaxElapsedTime  = 2 * time.Minute
)
