package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haasteikko/webclient/internal"
	"github.com/haasteikko/webclient/internal/config"
	"github.com/haasteikko/webclient/internal/testutil"
)

const clientID = "haasteikko-web"

// testConfig points a client at the fake provider and API. Storage is
// left to the caller.
func testConfig(provider *testutil.FakeProvider, api *testutil.FakeAPI, st config.StorageConfig) config.Config {
	cfg := config.Config{
		Version: config.SupportedVersion,
		Auth: config.AuthConfig{
			Authority:             provider.Issuer(),
			ClientID:              clientID,
			RedirectURI:           "http://127.0.0.1:5173/auth/callback",
			PostLogoutRedirectURI: "http://127.0.0.1:5173/",
			Audience:              "api",
		},
		API:     config.APIConfig{BaseURL: api.BaseURL()},
		Web:     config.WebConfig{Addr: "127.0.0.1:0"},
		Storage: st,
	}
	cfg.ApplyDefaults()
	return cfg
}

// runningClient is a web client served on a real listener.
type runningClient struct {
	wc      *internal.WebClient
	baseURL string
	stop    func()
}

func startClient(t *testing.T, cfg config.Config) *runningClient {
	t.Helper()

	wc, err := internal.NewWebClient(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- wc.Serve(ctx, func(addr string) { ready <- addr }) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("web client exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("web client did not start")
	}

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		cancel()
		require.NoError(t, <-done)
	}
	t.Cleanup(stop)

	return &runningClient{wc: wc, baseURL: "http://" + addr, stop: stop}
}

// browser is a cookie-keeping user agent that reports redirects instead
// of following them.
type browser struct {
	t      *testing.T
	client *http.Client
}

func newBrowser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp, string(body)
}

func (b *browser) get(target string) (*http.Response, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) postForm(target string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

var csrfInput = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// signIn submits the login form, consents at the provider and delivers
// the callback to the client. It returns where the client sent the
// browser afterwards.
func (b *browser) signIn(rc *runningClient, provider *testutil.FakeProvider) string {
	b.t.Helper()

	resp, page := b.get(rc.baseURL + "/")
	require.Equal(b.t, http.StatusOK, resp.StatusCode)
	m := csrfInput.FindStringSubmatch(page)
	require.Len(b.t, m, 2, "login page carries a CSRF token")

	resp, _ = b.postForm(rc.baseURL+"/auth/login", url.Values{"csrf_token": {m[1]}})
	require.Equal(b.t, http.StatusFound, resp.StatusCode)
	authURL := resp.Header.Get("Location")
	require.True(b.t, strings.HasPrefix(authURL, provider.Issuer()), authURL)

	callback := provider.Approve(b.t, authURL)
	resp, _ = b.get(rc.baseURL + callback.RequestURI())
	require.Equal(b.t, http.StatusFound, resp.StatusCode)
	return resp.Header.Get("Location")
}
