package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frumu/tandem/pkg/types"
)

func waitEvent(t *testing.T, r *Receiver) types.EngineEvent {
	t.Helper()
	select {
	case e := <-r.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return types.EngineEvent{}
	}
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	r, unsub := b.Subscribe()
	defer unsub()

	b.Publish(types.EngineEvent{EventType: types.EventSessionStatus, Properties: types.SessionStatusProps{SessionID: "s1", Status: types.StatusRunning}})

	e := waitEvent(t, r)
	assert.Equal(t, types.EventSessionStatus, e.EventType)
}

func TestPublishBroadcastsToAllReceivers(t *testing.T) {
	b := New()
	defer b.Close()

	r1, unsub1 := b.Subscribe()
	defer unsub1()
	r2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(types.EngineEvent{EventType: types.EventTodoUpdated})

	e1 := waitEvent(t, r1)
	e2 := waitEvent(t, r2)
	assert.Equal(t, types.EventTodoUpdated, e1.EventType)
	assert.Equal(t, types.EventTodoUpdated, e2.EventType)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	r, unsub := b.Subscribe()
	unsub()

	b.Publish(types.EngineEvent{EventType: types.EventTodoUpdated})

	select {
	case <-r.Events():
		t.Fatal("unsubscribed receiver should not get events")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSlowReceiverLosesOldestEntryOnly(t *testing.T) {
	b := New()
	defer b.Close()

	r, unsub := b.Subscribe()
	defer unsub()

	total := ReceiverQueueCap + 5
	for i := 0; i < total; i++ {
		b.Publish(types.EngineEvent{EventType: types.EventSessionStatus, Properties: float64(i)})
	}

	// Give the dispatcher goroutine time to drain the publish queue and
	// fill the receiver's bounded channel.
	require.Eventually(t, func() bool {
		return len(r.ch) == ReceiverQueueCap
	}, time.Second, 5*time.Millisecond)

	first := waitEvent(t, r)
	// With a cap of ReceiverQueueCap and `total` published, the surviving
	// oldest entry is the one at index (total - ReceiverQueueCap).
	assertProps(t, first, total-ReceiverQueueCap)
}

func assertProps(t *testing.T, e types.EngineEvent, want int) {
	t.Helper()
	v, ok := e.Properties.(float64)
	require.True(t, ok, "unexpected properties type %T", e.Properties)
	assert.Equal(t, float64(want), v)
}

func TestPublishOrderingPerReceiver(t *testing.T) {
	b := New()
	defer b.Close()

	r, unsub := b.Subscribe()
	defer unsub()

	b.Publish(types.EngineEvent{EventType: types.EventSessionStatus, Properties: float64(1)})
	b.Publish(types.EngineEvent{EventType: types.EventSessionStatus, Properties: float64(2)})
	b.Publish(types.EngineEvent{EventType: types.EventSessionStatus, Properties: float64(3)})

	e1 := waitEvent(t, r)
	e2 := waitEvent(t, r)
	e3 := waitEvent(t, r)
	assertProps(t, e1, 1)
	assertProps(t, e2, 2)
	assertProps(t, e3, 3)
}
