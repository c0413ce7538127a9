package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStorage persists keys to a single JSON file, the closest analog to
// a browser's persistent storage for command-line programs. Writes go
// through an atomic rename. A background poller watches the file's
// modification time and emits native change events when another process
// rewrites it.
type FileStorage struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	items   map[string]string
	modTime time.Time

	subMu  sync.RWMutex
	nextID uint64
	subs   map[uint64]func(Event)

	done     chan struct{}
	stopOnce sync.Once
}

// FileStorageOption configures FileStorage.
type FileStorageOption func(*fileStorageConfig)

type fileStorageConfig struct {
	pollInterval time.Duration
	logger       *slog.Logger
}

// WithPollInterval sets how often the backing file is checked for external
// changes. Zero disables polling (no native events). Default: 1 second.
func WithPollInterval(d time.Duration) FileStorageOption {
	return func(c *fileStorageConfig) {
		c.pollInterval = d
	}
}

// WithFileLogger sets the logger for poll failures.
func WithFileLogger(l *slog.Logger) FileStorageOption {
	return func(c *fileStorageConfig) {
		c.logger = l
	}
}

// NewFileStorage opens (or creates on first write) the JSON store at path.
func NewFileStorage(path string, opts ...FileStorageOption) (*FileStorage, error) {
	cfg := fileStorageConfig{
		pollInterval: time.Second,
		logger:       slog.Default().With("component", "storage"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &FileStorage{
		path:   path,
		logger: cfg.logger,
		items:  make(map[string]string),
		subs:   make(map[uint64]func(Event)),
		done:   make(chan struct{}),
	}

	if err := f.load(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if cfg.pollInterval > 0 {
		go f.pollLoop(cfg.pollInterval)
	}

	return f, nil
}

// GetItem returns the value stored under key.
func (f *FileStorage) GetItem(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.items[key]
	return v, ok, nil
}

// SetItem stores value under key and persists the file.
func (f *FileStorage) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items[key] = value
	return f.save()
}

// RemoveItem deletes key and persists the file.
func (f *FileStorage) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.items[key]; !ok {
		return nil
	}
	delete(f.items, key)
	return f.save()
}

// Clear drops all keys and persists the file.
func (f *FileStorage) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = make(map[string]string)
	return f.save()
}

// Keys returns a snapshot of the stored keys.
func (f *FileStorage) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	return keys
}

// Subscribe registers fn for native change events. Implements EventSource.
func (f *FileStorage) Subscribe(fn func(Event)) (cancel func()) {
	f.subMu.Lock()
	f.nextID++
	id := f.nextID
	f.subs[id] = fn
	f.subMu.Unlock()

	return func() {
		f.subMu.Lock()
		defer f.subMu.Unlock()
		delete(f.subs, id)
	}
}

// Close stops the poller. The file itself needs no closing.
func (f *FileStorage) Close() error {
	f.stopOnce.Do(func() { close(f.done) })
	return nil
}

// load reads the backing file into memory. A missing file is an empty
// store.
func (f *FileStorage) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	items := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
	}

	f.items = items
	if info, err := os.Stat(f.path); err == nil {
		f.modTime = info.ModTime()
	}
	return nil
}

// save writes the store atomically: temp file in the same directory, then
// rename. Caller holds f.mu.
func (f *FileStorage) save() error {
	data, err := json.MarshalIndent(f.items, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".vueuse-kv-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return err
	}

	if info, err := os.Stat(f.path); err == nil {
		f.modTime = info.ModTime()
	}
	return nil
}

// pollLoop watches the file's modification time and reloads on external
// change, emitting per-key native events for the differences.
func (f *FileStorage) pollLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.checkExternal()
		}
	}
}

// checkExternal reloads the file if it changed on disk and emits events
// for every key whose value differs.
func (f *FileStorage) checkExternal() {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		f.logger.Error("poll stat failed", "path", f.path, "error", err)
		return
	}

	f.mu.Lock()
	if !info.ModTime().After(f.modTime) {
		f.mu.Unlock()
		return
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		f.mu.Unlock()
		f.logger.Error("poll read failed", "path", f.path, "error", err)
		return
	}

	fresh := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fresh); err != nil {
			f.mu.Unlock()
			f.logger.Error("poll decode failed", "path", f.path, "error", err)
			return
		}
	}

	old := f.items
	f.items = fresh
	f.modTime = info.ModTime()
	f.mu.Unlock()

	var events []Event
	for k, v := range fresh {
		prev, had := old[k]
		if !had {
			events = append(events, Event{Storage: f, Key: k, NewValue: strptr(v)})
		} else if prev != v {
			events = append(events, Event{Storage: f, Key: k, OldValue: strptr(prev), NewValue: strptr(v)})
		}
	}
	for k, v := range old {
		if _, still := fresh[k]; !still {
			events = append(events, Event{Storage: f, Key: k, OldValue: strptr(v), NewValue: nil})
		}
	}

	for _, e := range events {
		f.emit(e)
	}
}

func (f *FileStorage) emit(e Event) {
	f.subMu.RLock()
	subs := make([]func(Event), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.subMu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
