package internal

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haasteikko/webclient/internal/api"
	"github.com/haasteikko/webclient/internal/authsession"
	"github.com/haasteikko/webclient/internal/config"
	"github.com/haasteikko/webclient/internal/crypto"
	"github.com/haasteikko/webclient/internal/guard"
	"github.com/haasteikko/webclient/internal/log"
	"github.com/haasteikko/webclient/internal/navigation"
	"github.com/haasteikko/webclient/internal/resources"
	"github.com/haasteikko/webclient/internal/server"
	"github.com/haasteikko/webclient/internal/storage"
)

const csrfTTL = time.Hour

// WebClient is the assembled application: session manager, resource
// clients and the local HTTP front end.
type WebClient struct {
	config     config.Config
	store      storage.Store
	cleanup    *storage.CleanupManager
	sessions   *authsession.Manager
	clients    *resources.Clients
	httpServer *server.HTTPServer
}

// NewWebClient builds every dependency from cfg. The session is restored
// from storage before it returns.
func NewWebClient(ctx context.Context, cfg config.Config) (*WebClient, error) {
	log.LogInfoWithFields("webclient", "Building web client", map[string]any{
		"authority": cfg.Auth.Authority,
		"api":       cfg.API.BaseURL,
		"storage":   cfg.Storage.Kind,
	})

	store, err := SetupStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	var cleanup *storage.CleanupManager
	if sweeper, ok := store.(storage.Sweeper); ok {
		cleanup = storage.NewCleanupManager(sweeper, cfg.Storage.CleanupInterval)
	}

	sessions, err := authsession.Initialize(ctx, SessionConfig(cfg.Auth), store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize auth session: %w", err)
	}

	proxy, err := api.NewProxy(sessions, api.Options{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	})
	if err != nil {
		authsession.Shutdown()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create API proxy: %w", err)
	}
	clients := resources.New(proxy)

	g := guard.New(sessions, store, guard.Options{
		LoginPath:    cfg.Web.LoginPath,
		HomePath:     cfg.Web.HomePath,
		CallbackPath: cfg.Web.CallbackPath,
		WaitBound:    cfg.Web.GuardWait,
		PollInterval: cfg.Web.GuardPollInterval,
	})

	// A fresh key per process: CSRF tokens only need to outlive one page.
	csrfKey, err := crypto.RandomKey(32)
	if err != nil {
		authsession.Shutdown()
		_ = store.Close()
		return nil, fmt.Errorf("failed to generate CSRF key: %w", err)
	}

	handlers := server.NewHandlers(sessions, g, clients, crypto.NewCSRFProtection(csrfKey, csrfTTL), server.Paths{
		Login:    cfg.Web.LoginPath,
		Callback: cfg.Web.CallbackPath,
		Home:     cfg.Web.HomePath,
	})

	return &WebClient{
		config:     cfg,
		store:      store,
		cleanup:    cleanup,
		sessions:   sessions,
		clients:    clients,
		httpServer: server.NewHTTPServer(handlers.Handler(), cfg.Web.Addr),
	}, nil
}

// Sessions exposes the session manager for command-line use.
func (w *WebClient) Sessions() *authsession.Manager { return w.sessions }

// Resources exposes the typed resource clients.
func (w *WebClient) Resources() *resources.Clients { return w.clients }

// SessionConfig converts the file configuration into manager options.
func SessionConfig(cfg config.AuthConfig) authsession.Config {
	return authsession.Config{
		Authority:             cfg.Authority,
		ClientID:              cfg.ClientID,
		ClientSecret:          string(cfg.ClientSecret),
		RedirectURI:           cfg.RedirectURI,
		PostLogoutRedirectURI: cfg.PostLogoutRedirectURI,
		Audience:              cfg.Audience,
		Scope:                 cfg.Scope,
		AutomaticSilentRenew:  cfg.AutomaticSilentRenew,
		RenewTimeout:          cfg.RenewTimeout,
		ClockSkew:             cfg.ClockSkew,
	}
}

// SetupStorage opens the configured backend and wraps it in encryption
// when a key is present.
func SetupStorage(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch cfg.Kind {
	case config.StorageKindSQLite:
		log.LogInfoWithFields("storage", "Using SQLite storage", map[string]any{
			"path": cfg.Path,
		})
		store, err = storage.NewSQLiteStore(cfg.Path)
	case config.StorageKindRedis:
		log.LogInfoWithFields("storage", "Using Redis storage", map[string]any{
			"addr": cfg.RedisAddr,
			"db":   cfg.RedisDB,
		})
		store, err = storage.DialRedis(ctx, cfg.RedisAddr, string(cfg.RedisPassword), cfg.RedisDB)
	case config.StorageKindFirestore:
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.GCPProject,
			"database":   cfg.Database,
			"collection": cfg.Collection,
		})
		store, err = storage.NewFirestoreStore(ctx, cfg.GCPProject, cfg.Database, cfg.Collection)
	case config.StorageKindMemory, "":
		log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
		store = storage.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown storage kind: %s", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}

	if cfg.EncryptionKey == "" {
		return store, nil
	}
	encryptor, err := crypto.NewEncryptor([]byte(cfg.EncryptionKey))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	encrypted, err := storage.NewEncryptedStore(store, encryptor)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return encrypted, nil
}

// Run serves until SIGINT, SIGTERM or a server failure.
func (w *WebClient) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return w.Serve(ctx, w.onListening(ctx))
}

// Serve runs the HTTP server and background cleanup until ctx ends or the
// server fails, then shuts everything down. ready receives the bound
// address.
func (w *WebClient) Serve(ctx context.Context, ready func(addr string)) error {
	log.LogInfoWithFields("webclient", "Starting web client", map[string]any{
		"addr": w.config.Web.Addr,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if w.cleanup != nil {
		w.cleanup.Start(runCtx)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := w.httpServer.Start(ready); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.LogInfoWithFields("webclient", "Shutting down", map[string]any{
			"reason": context.Cause(ctx).Error(),
		})
	case err := <-errChan:
		log.LogErrorWithFields("webclient", "Server error, shutting down", map[string]any{
			"error": err.Error(),
		})
		runErr = err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer shutdownCancel()
	if err := w.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// onListening opens the home page in the desktop browser when configured.
func (w *WebClient) onListening(ctx context.Context) func(addr string) {
	if !w.config.Web.OpenBrowser {
		return nil
	}
	return func(addr string) {
		home := url.URL{Scheme: "http", Host: addr, Path: w.config.Web.HomePath}
		nav := navigation.NewBrowserNavigator(os.Stdout)
		if err := nav.Assign(ctx, home.String()); err != nil {
			log.LogWarn("Could not open browser: %v", err)
		}
	}
}

// Shutdown stops the server and background work and closes storage.
func (w *WebClient) Shutdown(ctx context.Context) error {
	var firstErr error
	if w.httpServer != nil {
		if err := w.httpServer.Stop(ctx); err != nil {
			log.LogErrorWithFields("webclient", "HTTP server shutdown error", map[string]any{
				"error": err.Error(),
			})
			firstErr = err
		}
	}
	if w.cleanup != nil {
		w.cleanup.Stop()
	}
	authsession.Shutdown()
	if err := w.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	log.LogInfoWithFields("webclient", "Web client stopped", nil)
	return firstErr
}
