package middleware

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/xiaofan33/vueuse/pkg/storage"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) GetItem(string) (string, bool, error) { return "", false, errors.New("down") }
func (failingStore) SetItem(string, string) error         { return errors.New("down") }
func (failingStore) RemoveItem(string) error              { return errors.New("down") }

func TestInstrumentStorageRecordsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	mem := storage.NewMemoryStorage()
	mem.SetItem("present", "1")

	inst := InstrumentStorage(mem,
		WithRegistry(reg),
		WithBackendLabel("memory"))

	if err := inst.SetItem("k", "v"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if _, ok, _ := inst.GetItem("present"); !ok {
		t.Fatal("expected hit")
	}
	if _, ok, _ := inst.GetItem("absent"); ok {
		t.Fatal("expected miss")
	}
	if err := inst.RemoveItem("k"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}

	m := inst.(*instrumentedEventStorage).metrics
	if got := counterValue(t, m.opsTotal.WithLabelValues("set", "success")); got != 1 {
		t.Errorf("operations_total(set,success)=%v, want 1", got)
	}
	if got := counterValue(t, m.opsTotal.WithLabelValues("get", "success")); got != 2 {
		t.Errorf("operations_total(get,success)=%v, want 2", got)
	}
	if got := counterValue(t, m.hits); got != 1 {
		t.Errorf("read_hits_total=%v, want 1", got)
	}
	if got := counterValue(t, m.misses); got != 1 {
		t.Errorf("read_misses_total=%v, want 1", got)
	}
}

func TestInstrumentStorageRecordsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()

	inst := InstrumentStorage(failingStore{}, WithRegistry(reg))

	if err := inst.SetItem("k", "v"); err == nil {
		t.Fatal("expected error passed through")
	}
	if _, _, err := inst.GetItem("k"); err == nil {
		t.Fatal("expected error passed through")
	}

	m := inst.(*instrumentedStorage).metrics
	if got := counterValue(t, m.opsTotal.WithLabelValues("set", "error")); got != 1 {
		t.Errorf("operations_total(set,error)=%v, want 1", got)
	}
	if got := counterValue(t, m.opsTotal.WithLabelValues("get", "error")); got != 1 {
		t.Errorf("operations_total(get,error)=%v, want 1", got)
	}
}

func TestInstrumentStorageForwardsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	mem := storage.NewMemoryStorage()

	inst := InstrumentStorage(mem, WithRegistry(reg))

	src, ok := inst.(storage.EventSource)
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
	// Identity is rewritten so bindings comparing against the decorated
	// store still match.
	if events[0].Storage != inst {
		t.Error("forwarded event should carry the decorated backend")
	}
}

func TestInstrumentStoragePlainBackendIsNotEventSource(t *testing.T) {
	reg := prometheus.NewRegistry()

	inst := InstrumentStorage(failingStore{}, WithRegistry(reg))
	if _, ok := inst.(storage.EventSource); ok {
		t.Error("decorating a plain backend should not invent an event source")
	}
}
