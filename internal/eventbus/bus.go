// Package eventbus implements a typed, multi-subscriber publish model,
// generalizing the orchestrator's single-channel EventEmitter into a
// per-subscriber fan-out in which critical events wait for buffer room
// instead of being dropped at once.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/swarmctl/swarm/pkg/models"
)

const defaultBufferSize = 256

// criticalPublishTimeout bounds how long Publish will block trying to
// deliver a critical event to a full subscriber before dropping that event
// for that one subscriber (the drop is counted). Delivery is sequential, so
// while Publish blocks here the subscribers after this one wait as well.
const criticalPublishTimeout = 2 * time.Second

// Bus is a typed, multi-subscriber, single-producer-per-event publish
// model. Subscribers register by blueprint id; delivery order is preserved
// per-subscriber. A non-critical event never waits on a full subscriber; a
// critical event can hold up delivery to the remaining subscribers for up to
// criticalPublishTimeout per full subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	nextID      uint64

	droppedMu sync.Mutex
	dropped   map[models.EventType]int64
}

// New returns an empty event bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscription),
		dropped:     make(map[models.EventType]int64),
	}
}

// Subscription is an explicit, closeable subscriber resource. Closing it
// removes it from the bus's index so the publisher never blocks on a
// subscriber nobody is reading from anymore.
type Subscription struct {
	id          string
	blueprintID string
	ch          chan models.Event
	bus         *Bus
	closeOnce   sync.Once
}

// Events returns the channel this subscription receives events on.
func (s *Subscription) Events() <-chan models.Event {
	return s.ch
}

// Close unregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subscribers, s.id)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Subscribe registers a new subscriber for events belonging to blueprintID.
// An empty blueprintID subscribes to events from every blueprint.
func (b *Bus) Subscribe(blueprintID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{
		id:          subID(b.nextID),
		blueprintID: blueprintID,
		ch:          make(chan models.Event, defaultBufferSize),
		bus:         b,
	}
	b.subscribers[sub.id] = sub
	return sub
}

func subID(n uint64) string {
	const hex = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = hex[n%16]
		n /= 16
	}
	return string(buf[i:])
}

// Publish delivers an event to every matching subscriber, one after another,
// on the caller's goroutine. Non-critical events are dropped (with a counter
// increment) on a subscriber whose buffer is full; critical events (task
// terminal states, merge results — see models.EventType.Critical) wait up to
// criticalPublishTimeout for buffer room and are dropped (and counted) only
// if the subscriber is still full then.
func (b *Bus) Publish(ctx context.Context, event models.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.blueprintID == "" || event.BlueprintID == "" || sub.blueprintID == event.BlueprintID {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	// Delivery to each subscriber happens in the order Publish is called, so
	// that per-subscriber ordering (spec §4.B) holds even when several
	// subscribers are registered. A non-critical send never waits, so a full
	// subscriber does not hold up the next one; a critical send to a full
	// subscriber waits up to criticalPublishTimeout before moving on.
	for _, sub := range targets {
		b.deliver(ctx, sub, event)
	}
}

func (b *Bus) deliver(ctx context.Context, sub *Subscription, event models.Event) {
	if !event.Type.Critical() {
		select {
		case sub.ch <- event:
		default:
			b.recordDrop(event.Type)
		}
		return
	}

	timer := time.NewTimer(criticalPublishTimeout)
	defer timer.Stop()
	select {
	case sub.ch <- event:
	case <-timer.C:
		// Even critical events must not wedge the publisher forever against
		// a dead subscriber; the drop is still counted so it's observable.
		b.recordDrop(event.Type)
	case <-ctx.Done():
	}
}

func (b *Bus) recordDrop(t models.EventType) {
	b.droppedMu.Lock()
	b.dropped[t]++
	b.droppedMu.Unlock()
}

// DroppedCount returns how many events of type t have been dropped across
// all subscribers since the bus was created.
func (b *Bus) DroppedCount(t models.EventType) int64 {
	b.droppedMu.Lock()
	defer b.droppedMu.Unlock()
	return b.dropped[t]
}

// SubscriberCount returns the number of currently-registered subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
