// Package authsession owns the end user's authentication session: it
// restores it from storage, keeps it current through silent renewal and
// falls back to an interactive login redirect when renewal is impossible.
package authsession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/haasteikko/webclient/internal/identity"
	"github.com/haasteikko/webclient/internal/log"
	"github.com/haasteikko/webclient/internal/navigation"
	"github.com/haasteikko/webclient/internal/storage"
	"github.com/haasteikko/webclient/internal/urlutil"
)

var (
	// ErrNotInitialized is returned when the manager is used before Initialize.
	ErrNotInitialized = errors.New("auth session not initialized")
	// ErrInteractionRequired means the user has to sign in at the provider.
	ErrInteractionRequired = identity.ErrInteractionRequired
	// ErrCallbackInvalid means an authorization callback was rejected.
	ErrCallbackInvalid = identity.ErrCallbackInvalid
	// ErrLoginRedirect means the user agent was sent to the provider. The
	// caller must stop processing the current request. It also matches
	// ErrInteractionRequired.
	ErrLoginRedirect = errors.New("redirected to login")
)

const (
	defaultClockSkew    = 30 * time.Second
	defaultRenewTimeout = 10 * time.Second
)

// callbackParams are removed from the address bar after a callback.
var callbackParams = []string{"code", "state", "session_state", "iss", "error", "error_description", "error_uri"}

// Config holds the options Initialize recognises.
type Config struct {
	Authority             string
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	PostLogoutRedirectURI string
	Audience              string
	Scope                 string

	AutomaticSilentRenew bool
	RenewTimeout         time.Duration
	ClockSkew            time.Duration
	HTTPClient           *http.Client
}

// TokenOptions controls GetAccessToken.
type TokenOptions struct {
	// RedirectOnFailure starts an interactive login when no token can be
	// obtained silently.
	RedirectOnFailure bool
}

// Manager is the single source of truth for whether a usable credential
// exists and what it is.
type Manager struct {
	store storage.Store
	creds credentialStore
	now   func() time.Time

	mu       sync.Mutex
	client   *identity.Client
	cfg      Config
	detach   []func()
	renewals singleflight.Group
}

// NewManager returns a manager in the Loading state. It does nothing until
// Initialize is called.
func NewManager(store storage.Store) *Manager {
	m := &Manager{store: store, now: time.Now}
	m.creds.set(Session{IsLoading: true})
	return m
}

// Initialize builds the identity client on the first call and restores the
// stored session. Later calls return the same client and ignore cfg.
func (m *Manager) Initialize(ctx context.Context, cfg Config) (*identity.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = defaultClockSkew
	}
	if cfg.RenewTimeout == 0 {
		cfg.RenewTimeout = defaultRenewTimeout
	}

	client, err := identity.NewClient(identity.Settings{
		Authority:             cfg.Authority,
		ClientID:              cfg.ClientID,
		ClientSecret:          cfg.ClientSecret,
		RedirectURI:           cfg.RedirectURI,
		PostLogoutRedirectURI: cfg.PostLogoutRedirectURI,
		Audience:              cfg.Audience,
		Scope:                 cfg.Scope,
		AutomaticSilentRenew:  cfg.AutomaticSilentRenew,
		RenewTimeout:          cfg.RenewTimeout,
		HTTPClient:            cfg.HTTPClient,
	}, m.store)
	if err != nil {
		return nil, fmt.Errorf("creating identity client: %w", err)
	}

	m.detach = []func(){
		client.AddUserLoaded(m.onUserLoaded),
		client.AddUserUnloaded(m.onUserUnloaded),
		client.AddSilentRenewError(m.onSilentRenewError),
	}
	client.SetRenewer(m.renew)
	m.client = client
	m.cfg = cfg

	m.restore(ctx, client)

	if err := client.StartSilentRenew(ctx); err != nil {
		log.LogWarn("Could not arm token expiry timer: %v", err)
	}

	log.LogInfoWithFields("authsession", "Initialized", map[string]any{
		"authority":     cfg.Authority,
		"clientId":      cfg.ClientID,
		"authenticated": m.creds.snapshot().IsAuthenticated,
	})
	return client, nil
}

// restore reads the stored user. Only local storage is consulted.
func (m *Manager) restore(ctx context.Context, client *identity.Client) {
	user, err := client.GetUser(ctx)
	if err != nil {
		log.LogWarn("Could not restore session, continuing signed out: %v", err)
		m.creds.set(Session{})
		return
	}
	if user == nil {
		m.creds.set(Session{})
		return
	}

	record := recordFromUser(user)
	m.creds.set(Session{
		IsAuthenticated: !record.Expired(m.now(), m.cfg.ClockSkew),
		User:            record,
	})
}

func (m *Manager) identity() (*identity.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil, ErrNotInitialized
	}
	return m.client, nil
}

// Session returns a snapshot of the current state.
func (m *Manager) Session() Session {
	return m.creds.snapshot()
}

// GetAccessToken returns a token that is valid now. An unexpired cached
// token is returned directly. Otherwise one renewal is performed and shared
// by every concurrent caller.
func (m *Manager) GetAccessToken(ctx context.Context, opts TokenOptions) (string, error) {
	if _, err := m.identity(); err != nil {
		return "", err
	}

	if rec := m.creds.user(); rec != nil && !rec.Expired(m.now(), m.cfg.ClockSkew) {
		return rec.AccessToken, nil
	}

	user, err := m.renew(ctx)
	if err == nil {
		return user.AccessToken, nil
	}
	if !errors.Is(err, ErrInteractionRequired) || !opts.RedirectOnFailure {
		return "", err
	}

	log.LogDebugWithFields("authsession", "Silent renewal impossible, redirecting to login", map[string]any{
		"reason": err.Error(),
	})
	if rerr := m.LoginWithRedirect(ctx); rerr != nil {
		return "", fmt.Errorf("redirecting to login: %w", rerr)
	}
	return "", fmt.Errorf("%w: %w", ErrLoginRedirect, err)
}

// AccessToken is GetAccessToken with redirect on failure, the contract the
// resource clients use.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	return m.GetAccessToken(ctx, TokenOptions{RedirectOnFailure: true})
}

// renew runs at most one silent renewal at a time. The shared renewal is
// detached from the first caller's cancellation and bounded by the renew
// timeout; each caller stops waiting when its own context ends.
func (m *Manager) renew(ctx context.Context) (*identity.User, error) {
	client, err := m.identity()
	if err != nil {
		return nil, err
	}

	ch := m.renewals.DoChan("renew", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.RenewTimeout)
		defer cancel()

		m.creds.update(func(s *Session) { s.IsLoading = true })
		user, err := client.SigninSilent(rctx)
		if err != nil {
			m.settle()
			return nil, err
		}
		return user, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*identity.User), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle leaves Loading after a failed renewal, keeping the session
// authenticated only while the current token is still usable.
func (m *Manager) settle() {
	now := m.now()
	m.creds.update(func(s *Session) {
		s.IsLoading = false
		s.IsAuthenticated = s.User != nil && !s.User.Expired(now, m.cfg.ClockSkew)
	})
}

// LoginWithRedirect sends the user agent to the provider's authorization
// endpoint. On success the caller must stop processing the request.
func (m *Manager) LoginWithRedirect(ctx context.Context) error {
	client, err := m.identity()
	if err != nil {
		return err
	}
	nav, ok := navigation.FromContext(ctx)
	if !ok {
		return navigation.ErrNoNavigator
	}

	target, err := client.CreateSigninRequest(ctx)
	if err != nil {
		return fmt.Errorf("creating signin request: %w", err)
	}
	log.LogDebugWithFields("authsession", "Redirecting to provider", map[string]any{
		"authority": m.cfg.Authority,
	})
	return nav.Assign(ctx, target)
}

// HandleRedirectCallback completes a sign-in from the callback URL. The
// authorization parameters are scrubbed from the visible location whether
// or not the exchange succeeds, and Loading is always cleared.
func (m *Manager) HandleRedirectCallback(ctx context.Context, callback *url.URL) (*UserRecord, error) {
	client, err := m.identity()
	if err != nil {
		return nil, err
	}

	m.creds.update(func(s *Session) { s.IsLoading = true })
	defer m.creds.update(func(s *Session) { s.IsLoading = false })

	user, err := client.SigninRedirectCallback(ctx, callback)
	m.scrub(ctx, callback)
	if err != nil {
		m.creds.set(Session{})
		log.LogWarnWithFields("authsession", "Redirect callback failed", map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	record := recordFromUser(user)
	m.creds.set(Session{IsAuthenticated: true, User: record})
	return record.clone(), nil
}

func (m *Manager) scrub(ctx context.Context, callback *url.URL) {
	nav, ok := navigation.FromContext(ctx)
	if !ok {
		return
	}
	clean := urlutil.StripQuery(callback, callbackParams...)
	if err := nav.Replace(ctx, clean.String()); err != nil {
		log.LogDebug("Could not rewrite callback location: %v", err)
	}
}

// Logout removes the stored user and sends the user agent to the
// provider's end-session endpoint.
func (m *Manager) Logout(ctx context.Context) error {
	client, err := m.identity()
	if err != nil {
		return err
	}
	nav, ok := navigation.FromContext(ctx)
	if !ok {
		return navigation.ErrNoNavigator
	}

	target, err := client.CreateSignoutRequest(ctx)
	if err != nil {
		return fmt.Errorf("creating signout request: %w", err)
	}
	if err := client.RemoveUser(ctx); err != nil {
		return err
	}
	m.creds.set(Session{})

	log.LogInfoWithFields("authsession", "Logged out", nil)
	return nav.Assign(ctx, target)
}

// ClearSession drops the local credential without contacting the provider.
func (m *Manager) ClearSession(ctx context.Context) error {
	defer m.creds.set(Session{})

	client, err := m.identity()
	if err != nil {
		// Nothing was ever stored.
		return nil
	}
	return client.RemoveUser(ctx)
}

// Close detaches from the identity client and stops automatic renewal.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, fn := range m.detach {
		fn()
	}
	m.detach = nil
	if m.client != nil {
		m.client.Close()
	}
}

func (m *Manager) onUserLoaded(user *identity.User) {
	m.creds.set(Session{IsAuthenticated: true, User: recordFromUser(user)})
}

func (m *Manager) onUserUnloaded() {
	m.creds.update(func(s *Session) {
		s.IsAuthenticated = false
		s.User = nil
	})
}

func (m *Manager) onSilentRenewError(err error) {
	log.LogDebugWithFields("authsession", "Silent renew error", map[string]any{
		"error": err.Error(),
	})
	m.settle()
}
