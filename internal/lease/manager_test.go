package lease

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndGet(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	l := m.Acquire("client-a", "ui", 0)
	assert.NotEmpty(t, l.LeaseID)
	assert.Equal(t, DefaultTTLMs, l.TTLMs)

	got, ok := m.Get()
	require.True(t, ok)
	assert.Equal(t, l.LeaseID, got.LeaseID)
}

func TestRenewExtendsLiveness(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	var clock int64 = 1000
	m.now = func() int64 { return clock }

	l := m.Acquire("c", "ui", 100)
	clock += 50
	ok := m.Renew(l.LeaseID)
	assert.True(t, ok)

	got, _ := m.Get()
	assert.Equal(t, clock, got.LastRenewedAtMs)
}

func TestRenewFailsOnMismatchedID(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	m.Acquire("c", "ui", 0)
	assert.False(t, m.Renew("wrong-id"))
}

func TestRenewFailsAfterExpiry(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	var clock int64 = 0
	m.now = func() int64 { return clock }

	l := m.Acquire("c", "ui", 100)
	clock = 500 // well past TTL
	assert.False(t, m.Renew(l.LeaseID))
}

func TestRelease(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	l := m.Acquire("c", "ui", 0)
	assert.True(t, m.Release(l.LeaseID))

	_, ok := m.Get()
	assert.False(t, ok)
}

func TestReapRemovesExpiredLeases(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	var clock int64 = 0
	m.now = func() int64 { return clock }

	m.Acquire("c", "ui", 10)
	clock = 1000

	m.reapExpired()

	m.mu.Lock()
	stillThere := m.current != nil
	m.mu.Unlock()
	assert.False(t, stillThere)
}

func TestGetReturnsFalseForExpiredButNotYetReaped(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	var clock int64 = 0
	m.now = func() int64 { return clock }

	m.Acquire("c", "ui", 10)
	clock = 1000

	_, ok := m.Get()
	assert.False(t, ok)
}

func TestClose(t *testing.T) {
	m := NewManager(nil)
	m.Close()
	time.Sleep(10 * time.Millisecond) // reaper goroutine should exit cleanly
}
