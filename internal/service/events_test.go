package service

import (
	"testing"
	"time"
)

func receiveEvent(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case e, ok := <-sub.C():
		if !ok {
			t.Fatal("subscriber channel closed")
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestEventBusDeliversInOrder(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Close()

	for i := 0; i < 100; i++ {
		bus.Publish(Event{Type: EventDevice, Payload: i})
	}

	for i := 0; i < 100; i++ {
		e := receiveEvent(t, sub)
		if e.Payload.(int) != i {
			t.Fatalf("event %d delivered out of order: %v", i, e.Payload)
		}
	}
}

func TestEventBusPublishNeverBlocks(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	// Subscriber never reads; publishing must still complete.
	sub := bus.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			bus.Publish(Event{Type: EventTimeline, Payload: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	a := bus.Subscribe()
	defer a.Close()
	b := bus.Subscribe()
	defer b.Close()

	bus.Publish(Event{Type: EventDevice, Payload: "x"})

	if e := receiveEvent(t, a); e.Payload != "x" {
		t.Fatalf("subscriber a got %v", e.Payload)
	}
	if e := receiveEvent(t, b); e.Payload != "x" {
		t.Fatalf("subscriber b got %v", e.Payload)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	sub := bus.Subscribe()
	sub.Close()

	// Channel is closed after detach.
	select {
	case _, ok := <-sub.C():
		if ok {
			t.Fatal("expected closed channel after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after Close")
	}

	// Publishing after detach must not panic.
	bus.Publish(Event{Type: EventDevice})
}

func TestEventBusSubscribeAfterClose(t *testing.T) {
	bus := NewEventBus()
	bus.Close()

	sub := bus.Subscribe()
	select {
	case _, ok := <-sub.C():
		if ok {
			t.Fatal("expected closed channel from closed bus")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed for subscriber on closed bus")
	}
}
