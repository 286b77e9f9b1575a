package internal

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasteikko/webclient/internal/config"
	"github.com/haasteikko/webclient/internal/storage"
	"github.com/haasteikko/webclient/internal/testutil"
)

func TestSetupStorage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name     string
		cfg      config.StorageConfig
		wantType any
	}{
		{
			name:     "memory",
			cfg:      config.StorageConfig{Kind: config.StorageKindMemory},
			wantType: &storage.MemoryStore{},
		},
		{
			name:     "empty kind is memory",
			cfg:      config.StorageConfig{},
			wantType: &storage.MemoryStore{},
		},
		{
			name:     "sqlite",
			cfg:      config.StorageConfig{Kind: config.StorageKindSQLite, Path: filepath.Join(t.TempDir(), "session.db")},
			wantType: &storage.SQLiteStore{},
		},
		{
			name:     "redis",
			cfg:      config.StorageConfig{Kind: config.StorageKindRedis, RedisAddr: mr.Addr()},
			wantType: &storage.RedisStore{},
		},
		{
			name: "encrypted",
			cfg: config.StorageConfig{
				Kind:          config.StorageKindMemory,
				EncryptionKey: config.Secret(strings.Repeat("k", 32)),
			},
			wantType: &storage.EncryptedStore{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := SetupStorage(ctx, tt.cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			assert.IsType(t, tt.wantType, store)

			require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
			got, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v", got)
		})
	}
}

func TestSetupStorage_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := SetupStorage(ctx, config.StorageConfig{Kind: "etcd"})
	assert.ErrorContains(t, err, "unknown storage kind")

	_, err = SetupStorage(ctx, config.StorageConfig{Kind: config.StorageKindMemory, EncryptionKey: "short"})
	assert.ErrorContains(t, err, "encryptor")
}

func TestSessionConfig(t *testing.T) {
	got := SessionConfig(config.AuthConfig{
		Authority:             "https://auth.example.com",
		ClientID:              "web",
		ClientSecret:          config.Secret("s3cret"),
		RedirectURI:           "http://127.0.0.1:5173/auth/callback",
		PostLogoutRedirectURI: "http://127.0.0.1:5173/",
		Audience:              "api",
		Scope:                 "openid",
		AutomaticSilentRenew:  true,
		RenewTimeout:          3 * time.Second,
		ClockSkew:             time.Second,
	})

	assert.Equal(t, "s3cret", got.ClientSecret)
	assert.Equal(t, "https://auth.example.com", got.Authority)
	assert.Equal(t, "api", got.Audience)
	assert.True(t, got.AutomaticSilentRenew)
	assert.Equal(t, 3*time.Second, got.RenewTimeout)
	assert.Equal(t, time.Second, got.ClockSkew)
}

func TestNewWebClient(t *testing.T) {
	provider := testutil.NewFakeProvider(t, "haasteikko-web", testutil.ProviderOptions{})
	fake := testutil.NewFakeAPI(t)

	cfg := config.Config{
		Version: config.SupportedVersion,
		Auth: config.AuthConfig{
			Authority:             provider.Issuer(),
			ClientID:              "haasteikko-web",
			RedirectURI:           "http://127.0.0.1:5173/auth/callback",
			PostLogoutRedirectURI: "http://127.0.0.1:5173/",
		},
		API: config.APIConfig{BaseURL: fake.BaseURL()},
		Web: config.WebConfig{Addr: "127.0.0.1:0"},
		Storage: config.StorageConfig{
			Kind: config.StorageKindSQLite,
			Path: filepath.Join(t.TempDir(), "session.db"),
		},
	}
	cfg.ApplyDefaults()

	wc, err := NewWebClient(context.Background(), cfg)
	require.NoError(t, err)

	session := wc.Sessions().Session()
	assert.False(t, session.IsLoading)
	assert.False(t, session.IsAuthenticated)
	assert.NotNil(t, wc.Resources().Library)
	assert.NotNil(t, wc.cleanup, "sqlite storage is swept periodically")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wc.Shutdown(ctx))
}
