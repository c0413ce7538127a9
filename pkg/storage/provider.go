package storage

import (
	"fmt"
	"log/slog"
	"sync"
)

// Provider resolves the backend used when a binding is created without an
// explicit one. The default provider returns a process-wide in-memory
// backend.
type Provider func() (Storage, error)

var (
	providerMu sync.RWMutex
	provider   Provider = defaultProvider

	sharedMemoryOnce sync.Once
	sharedMemory     *MemoryStorage
)

func defaultProvider() (Storage, error) {
	sharedMemoryOnce.Do(func() {
		sharedMemory = NewMemoryStorage()
	})
	return sharedMemory, nil
}

// SetProvider replaces the default backend provider. Passing nil restores
// the built-in in-memory provider.
func SetProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()

	if p == nil {
		provider = defaultProvider
		return
	}
	provider = p
}

// resolveStorage calls the configured provider, converting a panic or an
// error into a logged failure and a nil backend. A binding with a nil
// backend stays at its default value with no persistence.
func resolveStorage(logger *slog.Logger) (s Storage) {
	providerMu.RLock()
	p := provider
	providerMu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("storage provider panicked", "error", fmt.Sprint(r))
			s = nil
		}
	}()

	s, err := p()
	if err != nil {
		logger.Error("storage provider failed", "error", err)
		return nil
	}
	return s
}
