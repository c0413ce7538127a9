package storage

import "testing"

func TestBusSubscribePublish(t *testing.T) {
	bus := NewBus()
	store := NewMemoryStorage()

	var got []Event
	cancel := bus.Subscribe(store, "k", func(e Event) {
		got = append(got, e)
	})
	defer cancel()

	bus.Publish(Event{Storage: store, Key: "k", NewValue: strptr("v")})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Key != "k" || got[0].NewValue == nil || *got[0].NewValue != "v" {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestBusFiltersByKeyAndBackend(t *testing.T) {
	bus := NewBus()
	storeA := NewMemoryStorage()
	storeB := NewMemoryStorage()

	count := 0
	cancel := bus.Subscribe(storeA, "k", func(Event) { count++ })
	defer cancel()

	bus.Publish(Event{Storage: storeA, Key: "other"})
	bus.Publish(Event{Storage: storeB, Key: "k"})

	if count != 0 {
		t.Errorf("expected no delivery for other key or backend, got %d", count)
	}

	bus.Publish(Event{Storage: storeA, Key: "k"})
	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestBusCancel(t *testing.T) {
	bus := NewBus()
	store := NewMemoryStorage()

	count := 0
	cancel := bus.Subscribe(store, "k", func(Event) { count++ })

	bus.Publish(Event{Storage: store, Key: "k"})
	cancel()
	cancel() // second cancel is harmless
	bus.Publish(Event{Storage: store, Key: "k"})

	if count != 1 {
		t.Errorf("expected 1 delivery after cancel, got %d", count)
	}
}

func TestBusHandlerMaySubscribe(t *testing.T) {
	bus := NewBus()
	store := NewMemoryStorage()

	nested := false
	cancel := bus.Subscribe(store, "k", func(Event) {
		// Subscribing during delivery must not deadlock.
		c := bus.Subscribe(store, "k2", func(Event) { nested = true })
		defer c()
		bus.Publish(Event{Storage: store, Key: "k2"})
	})
	defer cancel()

	bus.Publish(Event{Storage: store, Key: "k"})

	if !nested {
		t.Error("nested subscribe/publish should work")
	}
}
