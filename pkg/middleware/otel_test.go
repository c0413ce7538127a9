package middleware

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xiaofan33/vueuse/pkg/storage"
)

func TestTraceStoragePassesValuesThrough(t *testing.T) {
	mem := storage.NewMemoryStorage()

	traced := TraceStorage(mem,
		WithTraceBackend("memory"),
		WithIncludeKey(true),
		WithTraceAttributeExtractor(func(op, key string) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}))

	if err := traced.SetItem("k", "v"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	v, ok, err := traced.GetItem("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("expected v, got %q ok=%v err=%v", v, ok, err)
	}
	if err := traced.RemoveItem("k"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if _, ok, _ := traced.GetItem("k"); ok {
		t.Error("expected key removed")
	}
}

func TestTraceStoragePropagatesErrors(t *testing.T) {
	traced := TraceStorage(failingStore{})

	if _, _, err := traced.GetItem("k"); err == nil {
		t.Error("expected read error passed through")
	}
	if err := traced.SetItem("k", "v"); err == nil {
		t.Error("expected write error passed through")
	}
	if err := traced.RemoveItem("k"); err == nil {
		t.Error("expected remove error passed through")
	}
}

func TestTraceStorageForwardsEvents(t *testing.T) {
	mem := storage.NewMemoryStorage()
	traced := TraceStorage(mem)

	src, ok := traced.(storage.EventSource)
	if !ok {
		t.Fatal("decorated event-emitting backend should stay an event source")
	}

	var events []storage.Event
	cancel := src.Subscribe(func(e storage.Event) { events = append(events, e) })
	defer cancel()

	mem.ExternalSetItem("k", "v")

	if len(events) != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", len(events))
	}
	if events[0].Storage != traced {
		t.Error("forwarded event should carry the decorated backend")
	}
}

func TestDecoratorsCompose(t *testing.T) {
	mem := storage.NewMemoryStorage()

	store := TraceStorage(InstrumentStorage(mem), WithTraceBackend("memory"))

	b := storage.Bind("k", 1, storage.WithStorage(store), storage.WithBus(storage.NewBus()))
	defer b.Close()

	b.Set(5)
	if v, _, _ := mem.GetItem("k"); v != "5" {
		t.Errorf("write should reach the inner backend, got %q", v)
	}

	// External changes propagate up through both decorators.
	mem.ExternalSetItem("k", "9")
	if b.Get() != 9 {
		t.Errorf("expected 9 from forwarded event, got %d", b.Get())
	}
}
