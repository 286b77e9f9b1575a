package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasteikko/webclient/internal/authsession"
)

type staticSessions authsession.Session

func (s staticSessions) Session() authsession.Session { return authsession.Session(s) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name    string
		session authsession.Session
		want    map[string]any
	}{
		{
			name:    "loading",
			session: authsession.Session{IsLoading: true},
			want:    map[string]any{"status": "ok", "loading": true, "authenticated": false},
		},
		{
			name:    "signed in",
			session: authsession.Session{IsAuthenticated: true},
			want:    map[string]any{"status": "ok", "loading": false, "authenticated": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(staticSessions(tt.session)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			var got map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPServer_StartStop(t *testing.T) {
	srv := NewHTTPServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}), "127.0.0.1:0")

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- srv.Start(func(addr string) { ready <- addr }) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.NoError(t, <-done)
}

func TestHTTPServer_StartFailsOnBusyAddress(t *testing.T) {
	busy := httptest.NewServer(http.NotFoundHandler())
	defer busy.Close()

	srv := NewHTTPServer(http.NotFoundHandler(), busy.Listener.Addr().String())
	assert.Error(t, srv.Start(nil))
}
