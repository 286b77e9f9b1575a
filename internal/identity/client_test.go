package identity

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/haasteikko/webclient/internal/storage"
	"github.com/haasteikko/webclient/internal/testutil"
)

const testClientID = "abc"

func newTestClient(t *testing.T, p *testutil.FakeProvider, store storage.Store) *Client {
	t.Helper()
	c, err := NewClient(Settings{
		Authority:             p.Issuer(),
		ClientID:              testClientID,
		RedirectURI:           "https://app/cb",
		PostLogoutRedirectURI: "https://app/",
		Audience:              "api",
		Scope:                 "openid profile email",
	}, store)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func signIn(t *testing.T, p *testutil.FakeProvider, c *Client) *User {
	t.Helper()
	ctx := context.Background()
	authURL, err := c.CreateSigninRequest(ctx)
	require.NoError(t, err)
	user, err := c.SigninRedirectCallback(ctx, p.Approve(t, authURL))
	require.NoError(t, err)
	return user
}

func TestNewClient_Validation(t *testing.T) {
	store := storage.NewMemoryStore()
	valid := Settings{Authority: "https://id.example.com", ClientID: "abc", RedirectURI: "https://app/cb"}

	tests := []struct {
		name   string
		mutate func(*Settings)
		store  storage.Store
		errMsg string
	}{
		{"missing authority", func(s *Settings) { s.Authority = "" }, store, "authority is required"},
		{"missing client", func(s *Settings) { s.ClientID = "" }, store, "client ID is required"},
		{"missing redirect", func(s *Settings) { s.RedirectURI = "" }, store, "redirect URI is required"},
		{"missing store", func(*Settings) {}, nil, "store is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			_, err := NewClient(s, tt.store)
			assert.EqualError(t, err, tt.errMsg)
		})
	}

	c, err := NewClient(valid, store)
	require.NoError(t, err)
	assert.Equal(t, "openid", c.Settings().Scope)
	assert.Equal(t, defaultStateTTL, c.Settings().StateTTL)
	assert.NotNil(t, c.Settings().HTTPClient)
}

func TestCreateSigninRequest(t *testing.T) {
	p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{})
	c := newTestClient(t, p, storage.NewMemoryStore())

	authURL, err := c.CreateSigninRequest(context.Background())
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "https://app/cb", q.Get("redirect_uri"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, "api", q.Get("audience"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.NotEmpty(t, q.Get("state"))
	assert.NotEmpty(t, q.Get("nonce"))
}

func TestSigninRedirectCallback(t *testing.T) {
	p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{Email: "u1@example.com"})
	store := storage.NewMemoryStore()
	c := newTestClient(t, p, store)

	var loaded []*User
	c.AddUserLoaded(func(u *User) { loaded = append(loaded, u) })

	user := signIn(t, p, c)

	assert.Equal(t, "u1", user.Subject)
	assert.NotEmpty(t, user.AccessToken)
	assert.NotEmpty(t, user.RefreshToken)
	assert.NotEmpty(t, user.IDToken)
	assert.Equal(t, "Bearer", user.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), user.ExpiresAt, time.Minute)
	assert.Equal(t, "u1@example.com", user.Profile["email"])
	assert.NotContains(t, user.Profile, "nonce")
	assert.NotContains(t, user.Profile, "aud")

	stored, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, user.AccessToken, stored.AccessToken)

	require.Len(t, loaded, 1)
	assert.Equal(t, "u1", loaded[0].Subject)
}

func TestSigninRedirectCallback_StateIsSingleUse(t *testing.T) {
	p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{})
	c := newTestClient(t, p, storage.NewMemoryStore())
	ctx := context.Background()

	authURL, err := c.CreateSigninRequest(ctx)
	require.NoError(t, err)
	callback := p.Approve(t, authURL)

	_, err = c.SigninRedirectCallback(ctx, callback)
	require.NoError(t, err)

	_, err = c.SigninRedirectCallback(ctx, callback)
	assert.ErrorIs(t, err, ErrCallbackInvalid)
	assert.Equal(t, int32(1), p.CodeExchanges.Load())
}

func TestSigninRedirectCallback_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		tamper   func(t *testing.T, p *testutil.FakeProvider, callback *url.URL)
		exchange bool
	}{
		{
			name: "tampered state",
			tamper: func(_ *testing.T, _ *testutil.FakeProvider, u *url.URL) {
				q := u.Query()
				q.Set("state", "forged")
				u.RawQuery = q.Encode()
			},
		},
		{
			name: "missing state",
			tamper: func(_ *testing.T, _ *testutil.FakeProvider, u *url.URL) {
				q := u.Query()
				q.Del("state")
				u.RawQuery = q.Encode()
			},
		},
		{
			name: "missing code",
			tamper: func(_ *testing.T, _ *testutil.FakeProvider, u *url.URL) {
				q := u.Query()
				q.Del("code")
				u.RawQuery = q.Encode()
			},
		},
		{
			name: "provider error",
			tamper: func(_ *testing.T, _ *testutil.FakeProvider, u *url.URL) {
				q := u.Query()
				q.Del("code")
				q.Set("error", "access_denied")
				u.RawQuery = q.Encode()
			},
		},
		{
			name: "code rejected",
			tamper: func(_ *testing.T, p *testutil.FakeProvider, _ *url.URL) {
				p.FailCodeExchange.Store(true)
			},
			exchange: true,
		},
		{
			name: "nonce mismatch",
			tamper: func(_ *testing.T, p *testutil.FakeProvider, _ *url.URL) {
				p.OverrideNonce("replayed")
			},
			exchange: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{})
			c := newTestClient(t, p, storage.NewMemoryStore())
			ctx := context.Background()

			var loaded bool
			c.AddUserLoaded(func(*User) { loaded = true })

			authURL, err := c.CreateSigninRequest(ctx)
			require.NoError(t, err)
			callback := p.Approve(t, authURL)
			tt.tamper(t, p, callback)

			user, err := c.SigninRedirectCallback(ctx, callback)
			assert.ErrorIs(t, err, ErrCallbackInvalid)
			assert.Nil(t, user)
			assert.False(t, loaded)

			stored, err := c.GetUser(ctx)
			require.NoError(t, err)
			assert.Nil(t, stored)

			if tt.exchange {
				assert.Equal(t, int32(1), p.CodeExchanges.Load())
			} else {
				assert.Zero(t, p.CodeExchanges.Load())
			}
		})
	}
}

func TestSigninRedirectCallback_ProviderErrorClearsState(t *testing.T) {
	p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{})
	store := storage.NewMemoryStore()
	c := newTestClient(t, p, store)
	ctx := context.Background()

	authURL, err := c.CreateSigninRequest(ctx)
	require.NoError(t, err)
	u, _ := url.Parse(authURL)
	state := u.Query().Get("state")

	_, err = store.Get(ctx, storage.StateKey(state))
	require.NoError(t, err)

	callback, _ := url.Parse("https://app/cb?error=login_required&state=" + state)
	_, err = c.SigninRedirectCallback(ctx, callback)
	assert.ErrorIs(t, err, ErrCallbackInvalid)
	assert.Contains(t, err.Error(), "login_required")

	_, err = store.Get(ctx, storage.StateKey(state))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSigninSilent(t *testing.T) {
	p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{})
	c := newTestClient(t, p, storage.NewMemoryStore())
	ctx := context.Background()

	_, err := c.SigninSilent(ctx)
	assert.ErrorIs(t, err, ErrInteractionRequired)

	first := signIn(t, p, c)

	var loaded int
	c.AddUserLoaded(func(*User) { loaded++ })

	renewed, err := c.SigninSilent(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Subject, renewed.Subject)
	assert.NotEqual(t, first.AccessToken, renewed.AccessToken)
	assert.NotEqual(t, first.RefreshToken, renewed.RefreshToken)
	assert.Equal(t, int32(1), p.RefreshRequests.Load())
	assert.Equal(t, 1, loaded)

	stored, err := c.GetUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, renewed.AccessToken, stored.AccessToken)
}

func TestSigninSilent_FailuresRequireInteraction(t *testing.T) {
	t.Run("refresh rejected", func(t *testing.T) {
		p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{})
		c := newTestClient(t, p, storage.NewMemoryStore())
		signIn(t, p, c)

		p.FailRefresh.Store(true)
		_, err := c.SigninSilent(context.Background())
		assert.ErrorIs(t, err, ErrInteractionRequired)

		var retrieveErr *oauth2.RetrieveError
		assert.ErrorAs(t, err, &retrieveErr)
	})

	t.Run("no refresh token", func(t *testing.T) {
		p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{OmitRefreshToken: true})
		c := newTestClient(t, p, storage.NewMemoryStore())
		signIn(t, p, c)

		_, err := c.SigninSilent(context.Background())
		assert.ErrorIs(t, err, ErrInteractionRequired)
		assert.Zero(t, p.RefreshRequests.Load())
	})

	t.Run("provider unreachable", func(t *testing.T) {
		p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{})
		store := storage.NewMemoryStore()
		c := newTestClient(t, p, store)
		require.NoError(t, c.StoreUser(context.Background(), &User{Subject: "u1", AccessToken: "a", RefreshToken: "r"}))
		p.Server.Close()

		_, err := c.SigninSilent(context.Background())
		assert.ErrorIs(t, err, ErrInteractionRequired)
	})
}

func TestSigninSilent_KeepsProfileWithoutIDToken(t *testing.T) {
	p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{OmitIDTokenOnRefresh: true, Name: "Kirjatoukka"})
	c := newTestClient(t, p, storage.NewMemoryStore())
	first := signIn(t, p, c)

	renewed, err := c.SigninSilent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", renewed.Subject)
	assert.Equal(t, "Kirjatoukka", renewed.Profile["name"])
	assert.Equal(t, first.IDToken, renewed.IDToken)
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()

	t.Run("corrupt record is discarded", func(t *testing.T) {
		store := storage.NewMemoryStore()
		c, err := NewClient(Settings{Authority: "https://id.example.com", ClientID: "abc", RedirectURI: "https://app/cb"}, store)
		require.NoError(t, err)
		require.NoError(t, store.Set(ctx, c.userKey(), "{not json", 0))

		user, err := c.GetUser(ctx)
		require.NoError(t, err)
		assert.Nil(t, user)

		_, err = store.Get(ctx, c.userKey())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("storage failure surfaces", func(t *testing.T) {
		store := &testutil.MockStore{}
		store.On("Get", mock.Anything, mock.Anything).Return("", errors.New("disk on fire"))
		c, err := NewClient(Settings{Authority: "https://id.example.com", ClientID: "abc", RedirectURI: "https://app/cb"}, store)
		require.NoError(t, err)

		_, err = c.GetUser(ctx)
		assert.ErrorContains(t, err, "disk on fire")
		store.AssertExpectations(t)
	})
}

func TestRemoveUser(t *testing.T) {
	p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{})
	c := newTestClient(t, p, storage.NewMemoryStore())
	signIn(t, p, c)

	unloaded := 0
	remove := c.AddUserUnloaded(func() { unloaded++ })

	require.NoError(t, c.RemoveUser(context.Background()))
	assert.Equal(t, 1, unloaded)

	user, err := c.GetUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)

	remove()
	require.NoError(t, c.RemoveUser(context.Background()))
	assert.Equal(t, 1, unloaded)
}

func TestCreateSignoutRequest(t *testing.T) {
	t.Run("end session endpoint", func(t *testing.T) {
		p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{})
		c := newTestClient(t, p, storage.NewMemoryStore())
		user := signIn(t, p, c)

		target, err := c.CreateSignoutRequest(context.Background())
		require.NoError(t, err)

		u, err := url.Parse(target)
		require.NoError(t, err)
		assert.Equal(t, "/logout", u.Path)
		assert.Equal(t, user.IDToken, u.Query().Get("id_token_hint"))
		assert.Equal(t, testClientID, u.Query().Get("client_id"))
		assert.Equal(t, "https://app/", u.Query().Get("post_logout_redirect_uri"))
	})

	t.Run("no end session endpoint", func(t *testing.T) {
		p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{OmitEndSession: true})
		c := newTestClient(t, p, storage.NewMemoryStore())

		target, err := c.CreateSignoutRequest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "https://app/", target)
	})
}

func TestAutomaticSilentRenew(t *testing.T) {
	p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{ExpiresIn: 2 * time.Second})
	c, err := NewClient(Settings{
		Authority:            p.Issuer(),
		ClientID:             testClientID,
		RedirectURI:          "https://app/cb",
		AutomaticSilentRenew: true,
		RenewTimeout:         5 * time.Second,
	}, storage.NewMemoryStore())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	expiring := make(chan *User, 4)
	c.AddAccessTokenExpiring(func(u *User) { expiring <- u })

	signIn(t, p, c)

	select {
	case u := <-expiring:
		assert.Equal(t, "u1", u.Subject)
	case <-time.After(5 * time.Second):
		t.Fatal("expiring event not raised")
	}
	assert.Eventually(t, func() bool { return p.RefreshRequests.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestAutomaticSilentRenew_RaisesRenewError(t *testing.T) {
	p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{ExpiresIn: 2 * time.Second})
	c, err := NewClient(Settings{
		Authority:            p.Issuer(),
		ClientID:             testClientID,
		RedirectURI:          "https://app/cb",
		AutomaticSilentRenew: true,
	}, storage.NewMemoryStore())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	boom := errors.New("renewal refused")
	c.SetRenewer(func(context.Context) (*User, error) { return nil, boom })

	renewErrs := make(chan error, 1)
	c.AddSilentRenewError(func(err error) { renewErrs <- err })

	signIn(t, p, c)

	select {
	case err := <-renewErrs:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("silent renew error not raised")
	}
}

func TestClose_StopsRenewal(t *testing.T) {
	p := testutil.NewFakeProvider(t, testClientID, testutil.ProviderOptions{ExpiresIn: 2 * time.Second})
	c, err := NewClient(Settings{
		Authority:            p.Issuer(),
		ClientID:             testClientID,
		RedirectURI:          "https://app/cb",
		AutomaticSilentRenew: true,
	}, storage.NewMemoryStore())
	require.NoError(t, err)

	signIn(t, p, c)
	c.Close()

	time.Sleep(1500 * time.Millisecond)
	assert.Zero(t, p.RefreshRequests.Load())
}
