package engine

import "errors"

// The engine's error taxonomy (§7): every failure surfaced across the
// public RunPromptAsync/SendMessage boundary wraps one of these sentinels,
// so a caller (the HTTP layer, a test) can classify a failure with
// errors.Is without parsing message text.
var (
	// ErrNotFound: a referenced session, message, or request id doesn't
	// exist.
	ErrNotFound = errors.New("engine: not found")

	// ErrPermissionDenied: a tool call was refused by policy, a sticky
	// decision, or a user's explicit reject.
	ErrPermissionDenied = errors.New("engine: permission denied")

	// ErrToolFailed: a tool's Execute returned an error.
	ErrToolFailed = errors.New("engine: tool failed")

	// ErrProviderFailed: the provider's CreateCompletion (or the stream it
	// returned) failed after retries were exhausted.
	ErrProviderFailed = errors.New("engine: provider failed")

	// ErrCancelled: the caller cancelled the session's running turn.
	ErrCancelled = errors.New("engine: cancelled")

	// ErrStorageFailed: a durable-store read or write failed.
	ErrStorageFailed = errors.New("engine: storage failed")

	// ErrInvalidRequest: the caller's request was structurally invalid
	// (bad agent name, empty parts, unparseable part).
	ErrInvalidRequest = errors.New("engine: invalid request")
)
