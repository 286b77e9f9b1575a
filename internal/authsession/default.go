package authsession

import (
	"context"
	"sync"

	"github.com/haasteikko/webclient/internal/storage"
)

var (
	defaultMu      sync.Mutex
	defaultManager *Manager
)

// Initialize sets up the process-wide manager. The first successful call
// constructs it; later calls return the same instance.
func Initialize(ctx context.Context, cfg Config, store storage.Store) (*Manager, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager == nil {
		defaultManager = NewManager(store)
	}
	if _, err := defaultManager.Initialize(ctx, cfg); err != nil {
		return nil, err
	}
	return defaultManager, nil
}

// Default returns the process-wide manager.
func Default() (*Manager, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager == nil {
		return nil, ErrNotInitialized
	}
	if _, err := defaultManager.identity(); err != nil {
		return nil, err
	}
	return defaultManager, nil
}

// Shutdown closes and forgets the process-wide manager.
func Shutdown() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager != nil {
		defaultManager.Close()
		defaultManager = nil
	}
}
