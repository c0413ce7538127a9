package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeRedisClient is an in-memory RedisClient for tests.
type fakeRedisClient struct {
	mu    sync.Mutex
	items map[string]string
	ttls  map[string]time.Duration

	failNext error
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{
		items: make(map[string]string),
		ttls:  make(map[string]time.Duration),
	}
}

type fakeStatusCmd struct{ err error }

func (c fakeStatusCmd) Err() error { return c.err }

type fakeStringCmd struct {
	val string
	err error
}

func (c fakeStringCmd) Result() (string, error) { return c.val, c.err }

type fakeIntCmd struct{ err error }

func (c fakeIntCmd) Err() error { return c.err }

func (f *fakeRedisClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return fakeStatusCmd{err: err}
	}
	f.items[key] = value.(string)
	f.ttls[key] = expiration
	return fakeStatusCmd{}
}

func (f *fakeRedisClient) Get(_ context.Context, key string) RedisStringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return fakeStringCmd{err: err}
	}
	v, ok := f.items[key]
	if !ok {
		return fakeStringCmd{err: errors.New("redis: nil")}
	}
	return fakeStringCmd{val: v}
}

func (f *fakeRedisClient) Del(_ context.Context, keys ...string) RedisIntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, k := range keys {
		delete(f.items, k)
	}
	return fakeIntCmd{}
}

func TestRedisStorageRoundTrip(t *testing.T) {
	client := newFakeRedisClient()
	s := NewRedisStorage(client)

	mustAbsent(t, s, "a")

	if err := s.SetItem("a", "1"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if got := mustGet(t, s, "a"); got != "1" {
		t.Errorf("expected 1, got %q", got)
	}

	// Keys are namespaced under the prefix.
	if _, ok := client.items["vueuse:kv:a"]; !ok {
		t.Errorf("expected prefixed key, have %v", client.items)
	}

	if err := s.RemoveItem("a"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	mustAbsent(t, s, "a")
}

func TestRedisStoragePrefixAndTTL(t *testing.T) {
	client := newFakeRedisClient()
	s := NewRedisStorage(client,
		WithRedisPrefix("app:"),
		WithRedisTTL(time.Minute))

	s.SetItem("a", "1")

	if _, ok := client.items["app:a"]; !ok {
		t.Errorf("expected key under custom prefix, have %v", client.items)
	}
	if client.ttls["app:a"] != time.Minute {
		t.Errorf("expected TTL passed through, got %v", client.ttls["app:a"])
	}
}

func TestRedisStoragePropagatesErrors(t *testing.T) {
	client := newFakeRedisClient()
	s := NewRedisStorage(client)

	client.failNext = errors.New("connection refused")
	if _, _, err := s.GetItem("a"); err == nil {
		t.Error("expected error from failing client")
	}

	client.failNext = errors.New("connection refused")
	if err := s.SetItem("a", "1"); err == nil {
		t.Error("expected error from failing client")
	}
}
