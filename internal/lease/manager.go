// Package lease is the Session Engine's LeaseManager: a client acquires
// the process-wide lease to signal it is the active attached client,
// renews it periodically, and a background reaper expires it if nobody
// renews in time (§4.6).
package lease

import (
	"sync"
	"time"

	"github.com/frumu/tandem/internal/event"
	"github.com/frumu/tandem/internal/idgen"
	"github.com/frumu/tandem/internal/logging"
	"github.com/frumu/tandem/pkg/types"
)

// DefaultTTLMs is the lease lifetime used when a caller doesn't specify
// one (§4.6).
const DefaultTTLMs int64 = 60_000

// Manager tracks at most one live lease at a time and reaps it on
// expiry. The lease is advisory only: Engine never consults it, the
// wrapping service layer does (§4.6).
type Manager struct {
	bus *event.Bus
	now func() int64

	mu      sync.Mutex
	current *types.Lease

	stop chan struct{}
}

// NewManager constructs a Manager and starts its background reaper,
// ticking at half the default TTL per §4.6.
func NewManager(bus *event.Bus) *Manager {
	m := &Manager{
		bus:  bus,
		now:  func() int64 { return time.Now().UnixMilli() },
		stop: make(chan struct{}),
	}
	go m.reapLoop(DefaultTTLMs / 2)
	return m
}

// Acquire returns the process's live lease, creating one if none exists.
// If a live lease already exists it is returned unchanged regardless of
// which client asks: acquire is idempotent from a single client's
// perspective, and different clients never observe an ownership
// transfer except via expiry (§4.6).
func (m *Manager) Acquire(clientID, clientType string, ttlMs int64) types.Lease {
	if ttlMs <= 0 {
		ttlMs = DefaultTTLMs
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.IsLive(m.now()) {
		return *m.current
	}

	now := m.now()
	l := types.Lease{
		LeaseID:         idgen.NewLeaseID(),
		ClientID:        clientID,
		ClientType:      clientType,
		AcquiredAtMs:    now,
		LastRenewedAtMs: now,
		TTLMs:           ttlMs,
	}
	m.current = &l
	return l
}

// Renew bumps the current lease's last-renewed timestamp. Returns false
// if leaseID does not match a live lease.
func (m *Manager) Renew(leaseID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.LeaseID != leaseID || !m.current.IsLive(m.now()) {
		return false
	}
	m.current.LastRenewedAtMs = m.now()
	return true
}

// Release drops the current lease immediately if leaseID matches,
// regardless of TTL.
func (m *Manager) Release(leaseID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.LeaseID != leaseID {
		return false
	}
	m.current = nil
	return true
}

// Get returns the current live lease, if any.
func (m *Manager) Get() (types.Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || !m.current.IsLive(m.now()) {
		return types.Lease{}, false
	}
	return *m.current, true
}

// Close stops the background reaper.
func (m *Manager) Close() {
	close(m.stop)
}

func (m *Manager) reapLoop(interval int64) {
	if interval <= 0 {
		interval = DefaultTTLMs / 2
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.reapExpired()
		}
	}
}

func (m *Manager) reapExpired() {
	now := m.now()

	m.mu.Lock()
	var expired *types.Lease
	if m.current != nil && !m.current.IsLive(now) {
		expired = m.current
		m.current = nil
	}
	m.mu.Unlock()

	if expired == nil {
		return
	}
	logging.Info().Str("lease", expired.LeaseID).Msg("lease expired")
	if m.bus != nil {
		m.bus.Publish(types.EngineEvent{
			EventType:  types.EventLeaseExpired,
			Properties: types.LeaseExpiredProps{LeaseID: expired.LeaseID},
		})
	}
}
