// Package identity is the OpenID Connect relying-party layer: it builds
// authorization requests, completes the code exchange, renews tokens with
// the refresh grant and persists the signed-in user.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/haasteikko/webclient/internal/crypto"
	"github.com/haasteikko/webclient/internal/log"
	"github.com/haasteikko/webclient/internal/storage"
)

var (
	// ErrInteractionRequired means no token can be obtained without the user
	// visiting the provider.
	ErrInteractionRequired = errors.New("interaction required")
	// ErrCallbackInvalid means an authorization response was malformed,
	// unsolicited or rejected.
	ErrCallbackInvalid = errors.New("invalid authorization callback")
)

const (
	defaultStateTTL         = 10 * time.Minute
	defaultExpiringNotice   = 60 * time.Second
	defaultHTTPTimeout      = 30 * time.Second
	minimumExpiringInterval = time.Second
)

// Settings configures a Client.
type Settings struct {
	Authority             string
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	PostLogoutRedirectURI string
	Audience              string
	Scope                 string

	// StateTTL bounds how long an authorization request may stay pending.
	StateTTL time.Duration
	// ExpiringNotificationTime is how long before expiry the
	// access-token-expiring event fires.
	ExpiringNotificationTime time.Duration
	// AutomaticSilentRenew renews the token when the expiring event fires.
	AutomaticSilentRenew bool
	RenewTimeout         time.Duration

	HTTPClient *http.Client
}

// Client talks to one provider for one client registration.
type Client struct {
	settings Settings
	store    storage.Store
	now      func() time.Time
	events   events

	discoverMu sync.Mutex
	discovered *discovery

	timerMu sync.Mutex
	timer   *time.Timer
	renewer func(ctx context.Context) (*User, error)
	closed  bool
}

type discovery struct {
	oauth      oauth2.Config
	verifier   *oidc.IDTokenVerifier
	endSession string
}

// signinState is kept between the authorization request and its callback.
type signinState struct {
	Nonce        string    `json:"nonce"`
	CodeVerifier string    `json:"code_verifier"`
	RedirectURI  string    `json:"redirect_uri"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewClient validates settings and applies defaults. No network calls are
// made until a flow needs the provider's metadata.
func NewClient(settings Settings, store storage.Store) (*Client, error) {
	if settings.Authority == "" {
		return nil, fmt.Errorf("authority is required")
	}
	if settings.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if settings.RedirectURI == "" {
		return nil, fmt.Errorf("redirect URI is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if settings.Scope == "" {
		settings.Scope = oidc.ScopeOpenID
	}
	if settings.StateTTL == 0 {
		settings.StateTTL = defaultStateTTL
	}
	if settings.ExpiringNotificationTime == 0 {
		settings.ExpiringNotificationTime = defaultExpiringNotice
	}
	if settings.RenewTimeout == 0 {
		settings.RenewTimeout = defaultHTTPTimeout
	}
	if settings.HTTPClient == nil {
		settings.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	c := &Client{
		settings: settings,
		store:    store,
		now:      time.Now,
	}
	c.renewer = c.SigninSilent
	return c, nil
}

// Settings returns the effective settings.
func (c *Client) Settings() Settings {
	return c.settings
}

func (c *Client) httpContext(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, c.settings.HTTPClient)
}

// discover fetches and caches the provider metadata. Failures are not
// cached so a later call can retry.
func (c *Client) discover(ctx context.Context) (*discovery, error) {
	c.discoverMu.Lock()
	defer c.discoverMu.Unlock()

	if c.discovered != nil {
		return c.discovered, nil
	}

	provider, err := oidc.NewProvider(c.httpContext(ctx), c.settings.Authority)
	if err != nil {
		return nil, fmt.Errorf("discovering %s: %w", c.settings.Authority, err)
	}

	var extra struct {
		EndSession string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		return nil, fmt.Errorf("reading provider metadata: %w", err)
	}

	endpoint := provider.Endpoint()
	if c.settings.ClientSecret == "" {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}

	c.discovered = &discovery{
		oauth: oauth2.Config{
			ClientID:     c.settings.ClientID,
			ClientSecret: c.settings.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  c.settings.RedirectURI,
			Scopes:       strings.Fields(c.settings.Scope),
		},
		verifier: provider.Verifier(&oidc.Config{
			ClientID: c.settings.ClientID,
			Now:      c.now,
		}),
		endSession: extra.EndSession,
	}
	log.LogDebugWithFields("identity", "Discovered provider", map[string]any{
		"authority":  c.settings.Authority,
		"endSession": extra.EndSession != "",
	})
	return c.discovered, nil
}

// CreateSigninRequest prepares an authorization-code request with PKCE and
// returns the URL the user agent must visit.
func (c *Client) CreateSigninRequest(ctx context.Context) (string, error) {
	d, err := c.discover(ctx)
	if err != nil {
		return "", err
	}

	state, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	data, err := json.Marshal(signinState{
		Nonce:        nonce,
		CodeVerifier: verifier,
		RedirectURI:  c.settings.RedirectURI,
		CreatedAt:    c.now(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding signin state: %w", err)
	}
	if err := c.store.Set(ctx, storage.StateKey(state), string(data), c.settings.StateTTL); err != nil {
		return "", fmt.Errorf("storing signin state: %w", err)
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	}
	if c.settings.Audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", c.settings.Audience))
	}
	return d.oauth.AuthCodeURL(state, opts...), nil
}

// SigninRedirectCallback completes the flow started by CreateSigninRequest.
// The stored signin state is consumed whether or not the exchange succeeds.
func (c *Client) SigninRedirectCallback(ctx context.Context, callback *url.URL) (*User, error) {
	q := callback.Query()
	state := q.Get("state")

	if providerErr := q.Get("error"); providerErr != "" {
		if state != "" {
			_ = c.store.Remove(ctx, storage.StateKey(state))
		}
		return nil, fmt.Errorf("%w: provider returned %s: %s", ErrCallbackInvalid, providerErr, q.Get("error_description"))
	}

	code := q.Get("code")
	if code == "" || state == "" {
		return nil, fmt.Errorf("%w: missing code or state", ErrCallbackInvalid)
	}

	raw, err := storage.Take(ctx, c.store, storage.StateKey(state))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: no matching signin state", ErrCallbackInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("loading signin state: %w", err)
	}
	var pending signinState
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, fmt.Errorf("%w: corrupt signin state", ErrCallbackInvalid)
	}

	d, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := d.oauth.Exchange(c.httpContext(ctx), code, oauth2.VerifierOption(pending.CodeVerifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %w", ErrCallbackInvalid, err)
		}
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, fmt.Errorf("%w: token response has no id_token", ErrCallbackInvalid)
	}
	idToken, err := d.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCallbackInvalid, err)
	}
	if idToken.Nonce != pending.Nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrCallbackInvalid)
	}

	user, err := c.userFromToken(tok, rawIDToken, idToken, nil)
	if err != nil {
		return nil, err
	}
	if err := c.StoreUser(ctx, user); err != nil {
		return nil, err
	}

	log.LogInfoWithFields("identity", "User signed in", map[string]any{
		"subject":   user.Subject,
		"expiresAt": user.ExpiresAt,
	})
	c.loaded(user)
	return user, nil
}

// SigninSilent renews the stored user with the refresh grant. Every
// failure to obtain a token this way is reported as ErrInteractionRequired.
func (c *Client) SigninSilent(ctx context.Context) (*User, error) {
	current, err := c.GetUser(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: no signed-in user", ErrInteractionRequired)
	}
	if current.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrInteractionRequired)
	}

	d, err := c.discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInteractionRequired, err)
	}

	src := d.oauth.TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: refreshing token: %w", ErrInteractionRequired, err)
	}

	var idToken *oidc.IDToken
	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken != "" {
		idToken, err = d.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInteractionRequired, err)
		}
		if idToken.Subject != current.Subject {
			return nil, fmt.Errorf("%w: subject changed during renewal", ErrInteractionRequired)
		}
	}

	renewed, err := c.userFromToken(tok, rawIDToken, idToken, current)
	if err != nil {
		return nil, err
	}
	if err := c.StoreUser(ctx, renewed); err != nil {
		return nil, err
	}

	log.LogDebugWithFields("identity", "Token renewed", map[string]any{
		"subject":   renewed.Subject,
		"expiresAt": renewed.ExpiresAt,
	})
	c.loaded(renewed)
	return renewed, nil
}

// userFromToken builds a user from a token response. When the response
// carries no id token the identity of prev is kept.
func (c *Client) userFromToken(tok *oauth2.Token, rawIDToken string, idToken *oidc.IDToken, prev *User) (*User, error) {
	user := &User{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
		IDToken:      rawIDToken,
		ExpiresAt:    tokenExpiry(tok),
	}
	user.Scope, _ = tok.Extra("scope").(string)

	if idToken != nil {
		var claims map[string]any
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("reading id token claims: %w", err)
		}
		user.Subject = idToken.Subject
		user.Profile = profileFromClaims(claims)
	} else if prev != nil {
		user.Subject = prev.Subject
		user.Profile = prev.Clone().Profile
		user.IDToken = prev.IDToken
	}

	if user.Scope == "" {
		if prev != nil && prev.Scope != "" {
			user.Scope = prev.Scope
		} else {
			user.Scope = c.settings.Scope
		}
	}
	return user, nil
}

func (c *Client) userKey() string {
	return storage.UserKey(c.settings.Authority, c.settings.ClientID)
}

// GetUser loads the stored user. It returns nil without error when nobody is
// signed in. A corrupt record is discarded.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	raw, err := c.store.Get(ctx, c.userKey())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		log.LogWarn("Discarding unreadable stored user: %v", err)
		_ = c.store.Remove(ctx, c.userKey())
		return nil, nil
	}
	return &user, nil
}

// StoreUser persists user without raising events.
func (c *Client) StoreUser(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	if err := c.store.Set(ctx, c.userKey(), string(data), 0); err != nil {
		return fmt.Errorf("storing user: %w", err)
	}
	return nil
}

// RemoveUser deletes the stored user and raises the unloaded event.
func (c *Client) RemoveUser(ctx context.Context) error {
	c.stopTimer()
	if err := c.store.Remove(ctx, c.userKey()); err != nil {
		return fmt.Errorf("removing user: %w", err)
	}
	c.events.unloaded.raise(struct{}{})
	return nil
}

// CreateSignoutRequest returns the URL that ends the provider session. When
// the provider has no end-session endpoint the post-logout URI is returned.
func (c *Client) CreateSignoutRequest(ctx context.Context) (string, error) {
	user, err := c.GetUser(ctx)
	if err != nil {
		return "", err
	}

	d, err := c.discover(ctx)
	if err != nil {
		log.LogWarn("Provider unavailable for sign-out, skipping end-session: %v", err)
		return c.postLogoutURI(), nil
	}
	if d.endSession == "" {
		return c.postLogoutURI(), nil
	}

	u, err := url.Parse(d.endSession)
	if err != nil {
		return "", fmt.Errorf("parsing end_session_endpoint: %w", err)
	}
	q := u.Query()
	q.Set("client_id", c.settings.ClientID)
	if user != nil && user.IDToken != "" {
		q.Set("id_token_hint", user.IDToken)
	}
	if c.settings.PostLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", c.settings.PostLogoutRedirectURI)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) postLogoutURI() string {
	if c.settings.PostLogoutRedirectURI != "" {
		return c.settings.PostLogoutRedirectURI
	}
	return "/"
}
