// Package idgen centralizes identifier generation for the engine.
// Sessions, messages, parts, and requests use lexicographically sortable
// ULIDs (oklog/ulid); leases use random UUIDs, matching the id space the
// generated SDK client expects for lease handles.
package idgen

import (
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	mu  sync.Mutex
	src = ulid.DefaultEntropy()
)

// New returns a fresh ULID string. ULIDs are monotonic within a process
// under concurrent callers because access to the shared entropy source is
// serialized.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Now(), src).String()
}

// NewLeaseID returns a fresh UUID string for lease identity.
func NewLeaseID() string {
	return uuid.NewString()
}
