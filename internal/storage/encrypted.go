package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/haasteikko/webclient/internal/crypto"
)

var _ Store = (*EncryptedStore)(nil)

// EncryptedStore seals every value before it reaches the wrapped store.
// Keys are left in the clear.
type EncryptedStore struct {
	inner     Store
	encryptor crypto.Encryptor
}

func NewEncryptedStore(inner Store, encryptor crypto.Encryptor) (*EncryptedStore, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner store is required")
	}
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	return &EncryptedStore{inner: inner, encryptor: encryptor}, nil
}

func (s *EncryptedStore) Get(ctx context.Context, key string) (string, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return s.open(key, sealed)
}

func (s *EncryptedStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	sealed, err := s.encryptor.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, sealed, ttl)
}

func (s *EncryptedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *EncryptedStore) Take(ctx context.Context, key string) (string, error) {
	sealed, err := Take(ctx, s.inner, key)
	if err != nil {
		return "", err
	}
	return s.open(key, sealed)
}

// CleanupExpired forwards to the wrapped store when it sweeps.
func (s *EncryptedStore) CleanupExpired(ctx context.Context) (int, error) {
	if sw, ok := s.inner.(Sweeper); ok {
		return sw.CleanupExpired(ctx)
	}
	return 0, nil
}

func (s *EncryptedStore) Close() error { return s.inner.Close() }

func (s *EncryptedStore) open(key, sealed string) (string, error) {
	value, err := s.encryptor.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("decrypting %s: %w", key, err)
	}
	return value, nil
}
