package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const signingKeyID = "test-key"

// ProviderOptions tune a FakeProvider.
type ProviderOptions struct {
	Subject              string
	Email                string
	Name                 string
	ExpiresIn            time.Duration
	RefreshDelay         time.Duration
	OmitRefreshToken     bool
	OmitIDTokenOnRefresh bool
	OmitEndSession       bool
}

// FakeProvider is an in-process OpenID provider: discovery, JWKS,
// authorization, token and end-session endpoints.
type FakeProvider struct {
	Server   *httptest.Server
	ClientID string

	// FailRefresh makes the refresh grant answer invalid_grant.
	FailRefresh atomic.Bool
	// FailCodeExchange makes the code grant answer invalid_grant.
	FailCodeExchange atomic.Bool

	CodeExchanges   atomic.Int32
	RefreshRequests atomic.Int32

	opts ProviderOptions
	key  *rsa.PrivateKey

	mu            sync.Mutex
	codes         map[string]issuedCode
	refreshTokens map[string]bool
	lastAuthorize url.Values
	nonceOverride string
}

type issuedCode struct {
	challenge   string
	redirectURI string
	nonce       string
}

// NewFakeProvider starts a provider that is shut down with the test.
func NewFakeProvider(t testing.TB, clientID string, opts ProviderOptions) *FakeProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	if opts.Subject == "" {
		opts.Subject = "u1"
	}
	if opts.Email == "" {
		opts.Email = "reader@example.com"
	}
	if opts.Name == "" {
		opts.Name = "Reader"
	}
	if opts.ExpiresIn == 0 {
		opts.ExpiresIn = time.Hour
	}

	p := &FakeProvider{
		ClientID:      clientID,
		opts:          opts,
		key:           key,
		codes:         make(map[string]issuedCode),
		refreshTokens: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("GET /jwks", p.handleJWKS)
	mux.HandleFunc("GET /authorize", p.handleAuthorize)
	mux.HandleFunc("POST /token", p.handleToken)
	mux.HandleFunc("GET /logout", p.handleLogout)

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// Issuer is the authority URL clients must be configured with.
func (p *FakeProvider) Issuer() string {
	return p.Server.URL
}

// LastAuthorize returns the query of the most recent authorization request.
func (p *FakeProvider) LastAuthorize() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuthorize
}

// OverrideNonce makes subsequent id tokens carry nonce instead of the one
// from the authorization request.
func (p *FakeProvider) OverrideNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonceOverride = nonce
}

// Approve follows an authorization URL as a user who consents, returning
// the callback URL the provider redirects to.
func (p *FakeProvider) Approve(t testing.TB, authURL string) *url.URL {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(authURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode, "authorization request rejected")

	callback, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return callback
}

func (p *FakeProvider) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	issuer := p.Issuer()
	doc := map[string]any{
		"issuer":                                issuer,
		"authorization_endpoint":                issuer + "/authorize",
		"token_endpoint":                        issuer + "/token",
		"jwks_uri":                              issuer + "/jwks",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"code_challenge_methods_supported":      []string{"S256"},
	}
	if !p.opts.OmitEndSession {
		doc["end_session_endpoint"] = issuer + "/logout"
	}
	WriteJSON(w, http.StatusOK, doc)
}

func (p *FakeProvider) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	pub := p.key.PublicKey
	WriteJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": signingKeyID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (p *FakeProvider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	p.mu.Lock()
	p.lastAuthorize = q
	p.mu.Unlock()

	switch {
	case q.Get("client_id") != p.ClientID:
		http.Error(w, "unknown client", http.StatusBadRequest)
		return
	case q.Get("response_type") != "code":
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	case q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256":
		http.Error(w, "PKCE S256 required", http.StatusBadRequest)
		return
	case q.Get("redirect_uri") == "":
		http.Error(w, "redirect_uri required", http.StatusBadRequest)
		return
	}

	code := rand.Text()
	p.mu.Lock()
	p.codes[code] = issuedCode{
		challenge:   q.Get("code_challenge"),
		redirectURI: q.Get("redirect_uri"),
		nonce:       q.Get("nonce"),
	}
	p.mu.Unlock()

	target, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		http.Error(w, "bad redirect_uri", http.StatusBadRequest)
		return
	}
	params := target.Query()
	params.Set("code", code)
	params.Set("state", q.Get("state"))
	params.Set("iss", p.Issuer())
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (p *FakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		tokenError(w, "invalid_request")
		return
	}
	if r.PostForm.Get("client_id") != p.ClientID {
		tokenError(w, "invalid_client")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		p.exchangeCode(w, r)
	case "refresh_token":
		p.refresh(w, r)
	default:
		tokenError(w, "unsupported_grant_type")
	}
}

func (p *FakeProvider) exchangeCode(w http.ResponseWriter, r *http.Request) {
	p.CodeExchanges.Add(1)

	code := r.PostForm.Get("code")
	p.mu.Lock()
	issued, ok := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()

	switch {
	case !ok, p.FailCodeExchange.Load():
		tokenError(w, "invalid_grant")
		return
	case issued.redirectURI != r.PostForm.Get("redirect_uri"):
		tokenError(w, "invalid_grant")
		return
	case !VerifyPKCE(r.PostForm.Get("code_verifier"), issued.challenge):
		tokenError(w, "invalid_grant")
		return
	}

	p.issueTokens(w, issued.nonce, true)
}

func (p *FakeProvider) refresh(w http.ResponseWriter, r *http.Request) {
	p.RefreshRequests.Add(1)
	if p.opts.RefreshDelay > 0 {
		time.Sleep(p.opts.RefreshDelay)
	}
	if p.FailRefresh.Load() {
		tokenError(w, "invalid_grant")
		return
	}

	presented := r.PostForm.Get("refresh_token")
	p.mu.Lock()
	valid := p.refreshTokens[presented]
	// Refresh tokens are single-use.
	delete(p.refreshTokens, presented)
	p.mu.Unlock()
	if !valid {
		tokenError(w, "invalid_grant")
		return
	}

	p.issueTokens(w, "", !p.opts.OmitIDTokenOnRefresh)
}

func (p *FakeProvider) issueTokens(w http.ResponseWriter, nonce string, withIDToken bool) {
	now := time.Now()
	expires := now.Add(p.opts.ExpiresIn)

	access, err := p.sign(jwt.MapClaims{
		"iss":   p.Issuer(),
		"sub":   p.opts.Subject,
		"aud":   "api",
		"iat":   now.Unix(),
		"exp":   expires.Unix(),
		"jti":   rand.Text(),
		"scope": "openid profile email",
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   int(p.opts.ExpiresIn.Seconds()),
		"scope":        "openid profile email",
	}

	if withIDToken {
		p.mu.Lock()
		if p.nonceOverride != "" {
			nonce = p.nonceOverride
		}
		p.mu.Unlock()

		claims := jwt.MapClaims{
			"iss":   p.Issuer(),
			"sub":   p.opts.Subject,
			"aud":   p.ClientID,
			"iat":   now.Unix(),
			"exp":   expires.Unix(),
			"email": p.opts.Email,
			"name":  p.opts.Name,
		}
		if nonce != "" {
			claims["nonce"] = nonce
		}
		idToken, err := p.sign(claims)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		body["id_token"] = idToken
	}

	if !p.opts.OmitRefreshToken {
		refresh := rand.Text()
		p.mu.Lock()
		p.refreshTokens[refresh] = true
		p.mu.Unlock()
		body["refresh_token"] = refresh
	}

	WriteJSON(w, http.StatusOK, body)
}

func (p *FakeProvider) handleLogout(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("post_logout_redirect_uri")
	if target == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// SignAccessToken returns a JWT access token signed by the provider that
// expires at exp.
func (p *FakeProvider) SignAccessToken(t testing.TB, exp time.Time) string {
	t.Helper()
	token, err := p.sign(jwt.MapClaims{
		"iss": p.Issuer(),
		"sub": p.opts.Subject,
		"exp": exp.Unix(),
	})
	require.NoError(t, err)
	return token
}

func (p *FakeProvider) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = signingKeyID
	return token.SignedString(p.key)
}

func tokenError(w http.ResponseWriter, code string) {
	WriteJSON(w, http.StatusBadRequest, map[string]string{"error": code})
}
