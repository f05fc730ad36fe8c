package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/swarmctl/swarm/pkg/models"
)

func TestPublishFansOutToMatchingSubscribers(t *testing.T) {
	b := New()
	sub1 := b.Subscribe("bp1")
	sub2 := b.Subscribe("bp2")
	defer sub1.Close()
	defer sub2.Close()

	b.Publish(context.Background(), models.Event{
		Type:        models.EventTaskUpdate,
		BlueprintID: "bp1",
		Payload:     models.TaskUpdatePayload{TaskID: "t1", Status: models.TaskStatusCompleted},
	})

	select {
	case ev := <-sub1.Events():
		if ev.Type != models.EventTaskUpdate {
			t.Fatalf("unexpected event type %v", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("sub1 did not receive event for its blueprint")
	}

	select {
	case <-sub2.Events():
		t.Fatal("sub2 should not have received event for a different blueprint")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeWildcard(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	defer sub.Close()

	b.Publish(context.Background(), models.Event{Type: models.EventPlanStarted, BlueprintID: "any"})

	select {
	case <-sub.Events():
	case <-time.After(time.Second):
		t.Fatal("wildcard subscriber did not receive event")
	}
}

func TestNonCriticalEventsDropOnFullBuffer(t *testing.T) {
	b := New()
	sub := b.Subscribe("bp")
	defer sub.Close()

	// Fill the subscriber's buffer without draining it.
	for i := 0; i < defaultBufferSize+5; i++ {
		b.Publish(context.Background(), models.Event{Type: models.EventWorkerStatusUpdated, BlueprintID: "bp"})
	}

	if got := b.DroppedCount(models.EventWorkerStatusUpdated); got == 0 {
		t.Fatal("expected some non-critical events to be dropped once buffer is full")
	}
}

func TestCriticalEventsAreNeverSilentlyDropped(t *testing.T) {
	if !models.EventTaskUpdate.Critical() {
		t.Fatal("task:update must be critical")
	}
	if !models.EventMergeSuccess.Critical() {
		t.Fatal("merge:success must be critical")
	}
	if models.EventWorkerStatusUpdated.Critical() {
		t.Fatal("worker:status-updated should not be critical")
	}
}

func TestSubscriptionCloseRemovesFromIndex(t *testing.T) {
	b := New()
	sub := b.Subscribe("bp")
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount())
	}
	sub.Close()
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", b.SubscriberCount())
	}
	// Closing twice must not panic.
	sub.Close()
}

func TestOrderingPreservedPerSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe("bp")
	defer sub.Close()

	for i := 0; i < 10; i++ {
		b.Publish(context.Background(), models.Event{
			Type:        models.EventTaskUpdate,
			BlueprintID: "bp",
			Payload:     models.TaskUpdatePayload{TaskID: string(rune('a' + i))},
		})
	}

	for i := 0; i < 10; i++ {
		select {
		case ev := <-sub.Events():
			p := ev.Payload.(models.TaskUpdatePayload)
			if p.TaskID != string(rune('a'+i)) {
				t.Fatalf("out of order delivery: expected %c, got %s", rune('a'+i), p.TaskID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}
