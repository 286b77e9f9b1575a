package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasteikko/webclient/internal/crypto"
)

// runStoreContract checks the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, PendingRedirectKey, "/library", 0))
		require.NoError(t, s.Set(ctx, PendingRedirectKey, "/challenges/7", 0))

		got, err := s.Get(ctx, PendingRedirectKey)
		require.NoError(t, err)
		assert.Equal(t, "/challenges/7", got)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "k", "v", time.Hour))
		require.NoError(t, s.Remove(ctx, "k"))
		require.NoError(t, s.Remove(ctx, "k"))

		_, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("take is single use", func(t *testing.T) {
		s := newStore(t)
		key := StateKey("abc")
		require.NoError(t, s.Set(ctx, key, `{"nonce":"n"}`, time.Minute))

		got, err := Take(ctx, s, key)
		require.NoError(t, err)
		assert.Equal(t, `{"nonce":"n"}`, got)

		_, err = Take(ctx, s, key)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("keys with urls", func(t *testing.T) {
		s := newStore(t)
		key := UserKey("https://auth.haasteikko.eu/", "web")
		require.NoError(t, s.Set(ctx, key, "user", 0))

		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "user", got)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "short", "v", time.Minute))
	require.NoError(t, s.Set(ctx, "forever", "v", 0))

	now = now.Add(2 * time.Minute)
	_, err := s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := s.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return newSQLiteStore(t) })
}

func TestSQLiteStore_ExpiryAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "state:x", "v", time.Minute))
	require.NoError(t, s.Set(ctx, "user", "u", 0))
	require.NoError(t, s.Close())

	// Reopening runs migrations again without error and keeps data.
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(ctx))

	s.now = func() time.Time { return now.Add(time.Hour) }
	_, err = s.Get(ctx, "state:x")
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := s.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, "u", got)
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.ErrorContains(t, err, "path is required")
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, err := NewRedisStore(client, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, _ := newRedisStore(t)
		return s
	})
}

func TestRedisStore_TTLAndPrefix(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Set(ctx, "state:x", "v", time.Minute))
	assert.True(t, mr.Exists("haasteikko:state:x"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "state:x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := DialRedis(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = DialRedis(context.Background(), "", "", 0)
	assert.ErrorContains(t, err, "redisAddr is required")

	_, err = NewRedisStore(nil, "")
	assert.ErrorContains(t, err, "redis client is required")
}

func TestEncryptedStore(t *testing.T) {
	enc, err := crypto.NewEncryptor([]byte("test-encryption-key-32-bytes-ok!"))
	require.NoError(t, err)

	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewEncryptedStore(NewMemoryStore(), enc)
		require.NoError(t, err)
		return s
	})

	t.Run("values are sealed at rest", func(t *testing.T) {
		ctx := context.Background()
		inner := NewMemoryStore()
		s, err := NewEncryptedStore(inner, enc)
		require.NoError(t, err)

		require.NoError(t, s.Set(ctx, "user", `{"access_token":"tok"}`, 0))
		raw, err := inner.Get(ctx, "user")
		require.NoError(t, err)
		assert.NotContains(t, raw, "tok")

		require.NoError(t, inner.Set(ctx, "user", "tampered", 0))
		_, err = s.Get(ctx, "user")
		assert.ErrorContains(t, err, "decrypting user")
	})

	t.Run("constructor checks", func(t *testing.T) {
		_, err := NewEncryptedStore(nil, enc)
		assert.ErrorContains(t, err, "inner store is required")
		_, err = NewEncryptedStore(NewMemoryStore(), nil)
		assert.ErrorContains(t, err, "encryptor is required")
	})
}
