// Package event is the Session Engine's EventBus: broadcast of typed
// engine events to N subscribers with a bounded per-subscriber queue and
// lossy-drop on slow consumers (§4.2).
//
// Delivery is two-staged. Publish writes onto a single internal watermill
// (github.com/ThreeDotsLabs/watermill) GoChannel topic, which is the
// single-writer ingress and gives total publication ordering. A lone
// dispatcher goroutine drains that topic and fans each event out to every
// live receiver's own bounded ring; watermill's native subscriber channel
// is not used as the receiver-facing queue because its semantics (block
// until consumed) are the opposite of the spec's publisher-never-blocks,
// lossy-tail requirement — that policy is implemented on top, in
// Receiver.deliver.
package event

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/frumu/tandem/internal/logging"
	"github.com/frumu/tandem/pkg/types"
)

// ReceiverQueueCap is the suggested per-receiver bound from §4.2.
const ReceiverQueueCap = 256

const internalTopic = "engine"

// Receiver is a live subscription handle. Events() exposes the
// lossy-bounded channel to read from.
type Receiver struct {
	id uint64
	mu sync.Mutex
	ch chan types.EngineEvent
}

// Events returns the receiver's channel. Reading from it never blocks the
// publisher; when the bus drops an event for this receiver it is always
// the oldest queued entry.
func (r *Receiver) Events() <-chan types.EngineEvent { return r.ch }

func (r *Receiver) deliver(e types.EngineEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		select {
		case r.ch <- e:
			return
		default:
			// Full: evict the oldest entry, then retry the send. The
			// event currently at the channel head is the loser, never e.
			select {
			case <-r.ch:
			default:
			}
		}
	}
}

// Bus is the process-wide event broadcaster. One Bus exists per Server;
// it holds no session state (§3 ownership: "EventBus owns no state except
// subscriber queues").
type Bus struct {
	mu        sync.Mutex
	receivers map[uint64]*Receiver
	nextID    uint64

	pubsub *gochannel.GoChannel
	cancel context.CancelFunc
}

// New constructs a Bus and starts its internal dispatcher.
func New() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(ReceiverQueueCap)},
		watermill.NopLogger{},
	)
	b := &Bus{
		receivers: make(map[uint64]*Receiver),
		pubsub:    pubsub,
		cancel:    cancel,
	}

	msgs, err := pubsub.Subscribe(ctx, internalTopic)
	if err != nil {
		logging.Error().Err(err).Msg("event: failed to subscribe internal topic")
		return b
	}
	go b.dispatch(msgs)
	return b
}

func (b *Bus) dispatch(msgs <-chan *message.Message) {
	for m := range msgs {
		var e types.EngineEvent
		if err := json.Unmarshal(m.Payload, &e); err != nil {
			logging.Warn().Err(err).Msg("event: failed to decode queued event")
			m.Ack()
			continue
		}
		b.fanOut(e)
		m.Ack()
	}
}

func (b *Bus) fanOut(e types.EngineEvent) {
	b.mu.Lock()
	recvs := make([]*Receiver, 0, len(b.receivers))
	for _, r := range b.receivers {
		recvs = append(recvs, r)
	}
	b.mu.Unlock()
	for _, r := range recvs {
		r.deliver(e)
	}
}

// Subscribe registers a new receiver. The caller must invoke the returned
// function once it stops reading (e.g. an SSE client disconnect) so the
// receiver is dropped rather than accumulating forever.
func (b *Bus) Subscribe() (*Receiver, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	r := &Receiver{id: id, ch: make(chan types.EngineEvent, ReceiverQueueCap)}
	b.receivers[id] = r
	return r, func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	delete(b.receivers, id)
	b.mu.Unlock()
}

// Publish broadcasts e to every live receiver. Publication is
// non-blocking from the caller's perspective and never fails: marshal or
// transport errors are logged and swallowed, matching §7's "internal
// background failures ... are logged and swallowed."
func (b *Bus) Publish(e types.EngineEvent) {
	payload, err := json.Marshal(e)
	if err != nil {
		logging.Error().Err(err).Msg("event: marshal failed")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(internalTopic, msg); err != nil {
		logging.Warn().Err(err).Msg("event: publish failed")
	}
}

// Close stops the dispatcher and releases the underlying pubsub.
func (b *Bus) Close() error {
	b.cancel()
	return b.pubsub.Close()
}
