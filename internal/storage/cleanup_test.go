package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) CleanupExpired(context.Context) (int, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestCleanupManager(t *testing.T) {
	sweeper := &countingSweeper{}
	cm := NewCleanupManager(sweeper, 10*time.Millisecond)
	cm.Start(context.Background())

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cm.Stop()
	cm.Stop()
	stopped := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, sweeper.calls.Load())
}
