package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired
var ErrNotFound = errors.New("key not found")

// PendingRedirectKey holds the route a visitor was denied before login.
const PendingRedirectKey = "auth_redirect"

// Store is the key/value surface the identity layer and navigation guard
// persist into. A zero ttl means the value never expires. Remove of a
// missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Sweeper is implemented by stores that need expired entries purged
// periodically. Redis expires keys on its own and does not implement it.
type Sweeper interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// taker is implemented by stores with an atomic get-and-delete.
type taker interface {
	Take(ctx context.Context, key string) (string, error)
}

// Take reads a value and removes it. Values handed out by Take are
// single-use: a second Take for the same key returns ErrNotFound.
func Take(ctx context.Context, s Store, key string) (string, error) {
	if t, ok := s.(taker); ok {
		return t.Take(ctx, key)
	}
	value, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if err := s.Remove(ctx, key); err != nil {
		return "", fmt.Errorf("removing %s: %w", key, err)
	}
	return value, nil
}

// UserKey is where the identity layer keeps the signed-in user for one
// client registration.
func UserKey(authority, clientID string) string {
	return "user:" + authority + ":" + clientID
}

// StateKey is where a pending authorization request is kept until its
// callback arrives.
func StateKey(state string) string {
	return "state:" + state
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
