package daemon

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewEventBus(4)
	id, ch := bus.Subscribe()
	defer bus.Unsubscribe(id)

	if err := bus.Publish(EventTurnCompleted, TurnEventData{SessionID: "s1", Category: "accident"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != EventTurnCompleted {
			t.Errorf("got type %q, want %q", ev.Type, EventTurnCompleted)
		}
		var data TurnEventData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			t.Fatalf("unmarshal event data: %v", err)
		}
		if data.SessionID != "s1" || data.Category != "accident" {
			t.Errorf("got %+v, want session s1 / category accident", data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestEventBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus(4)
	id, ch := bus.Subscribe()
	bus.Unsubscribe(id)

	if err := bus.Publish(EventSessionEvicted, SessionEvictedEventData{SessionID: "s2"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed after Unsubscribe, got a delivered event")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("expected the unsubscribed channel to be closed, not still open")
	}
}

func TestEventBus_FullSubscriberChannelDropsRatherThanBlocks(t *testing.T) {
	bus := NewEventBus(1)
	id, ch := bus.Subscribe()
	defer bus.Unsubscribe(id)

	if err := bus.Publish(EventDaemonStatus, DaemonStatusData{Status: "running"}); err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}
	if err := bus.Publish(EventDaemonStatus, DaemonStatusData{Status: "running"}); err != nil {
		t.Fatalf("second Publish() error = %v (should drop, not error)", err)
	}

	if n := len(ch); n != 1 {
		t.Errorf("got %d buffered events, want 1 (second publish dropped on a full buffer)", n)
	}
}

func TestEventBus_SubscriberCountTracksLifecycle(t *testing.T) {
	bus := NewEventBus(4)
	if bus.SubscriberCount() != 0 {
		t.Fatalf("got %d subscribers, want 0", bus.SubscriberCount())
	}

	id, _ := bus.Subscribe()
	if bus.SubscriberCount() != 1 {
		t.Errorf("got %d subscribers, want 1", bus.SubscriberCount())
	}

	bus.Unsubscribe(id)
	if bus.SubscriberCount() != 0 {
		t.Errorf("got %d subscribers after unsubscribe, want 0", bus.SubscriberCount())
	}
}

func TestEventBus_ClosedBusRejectsNewSubscribers(t *testing.T) {
	bus := NewEventBus(4)
	bus.Close()

	id, ch := bus.Subscribe()
	if ch != nil || id != 0 {
		t.Errorf("got id=%d ch=%v, want a closed bus to refuse new subscriptions", id, ch)
	}
}
