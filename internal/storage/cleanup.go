package storage

import (
	"context"
	"sync"
	"time"

	"github.com/haasteikko/webclient/internal/log"
)

// CleanupManager periodically purges expired signin state and sessions
// from stores that do not expire entries themselves.
type CleanupManager struct {
	sweeper  Sweeper
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(sweeper Sweeper, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		sweeper:  sweeper,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the cleanup loop in a goroutine
func (cm *CleanupManager) Start(ctx context.Context) {
	log.LogInfoWithFields("cleanup", "Starting storage cleanup", map[string]any{
		"interval": cm.interval.String(),
	})
	go cm.run(ctx)
}

// Stop ends the loop and waits for it. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() {
		close(cm.stopChan)
		<-cm.doneChan
		log.LogDebugWithFields("cleanup", "Storage cleanup stopped", nil)
	})
}

func (cm *CleanupManager) run(ctx context.Context) {
	defer close(cm.doneChan)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.cleanup(ctx)
		case <-cm.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (cm *CleanupManager) cleanup(ctx context.Context) {
	count, err := cm.sweeper.CleanupExpired(ctx)
	if err != nil {
		log.LogErrorWithFields("cleanup", "Failed to cleanup expired entries", map[string]any{
			"error": err.Error(),
		})
		return
	}

	if count > 0 {
		log.LogDebugWithFields("cleanup", "Cleaned up expired entries", map[string]any{
			"count": count,
		})
	}
}
