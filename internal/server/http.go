package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/haasteikko/webclient/internal/log"
)

// HTTPServer manages the HTTP server lifecycle
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates a new HTTP server with the given handler and address
func NewHTTPServer(handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start listens on the configured address and serves until Stop. The
// ready callback, if any, receives the bound address once listening.
func (h *HTTPServer) Start(ready func(addr string)) error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return err
	}
	log.LogInfoWithFields("http", "HTTP server starting", map[string]any{
		"addr": ln.Addr().String(),
	})
	if ready != nil {
		ready(ln.Addr().String())
	}

	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	log.LogInfoWithFields("http", "HTTP server stopping", map[string]any{
		"addr": h.server.Addr,
	})

	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.LogInfoWithFields("http", "HTTP server stopped", map[string]any{
		"addr": h.server.Addr,
	})
	return nil
}

// HealthHandler reports liveness and whether the session has settled.
type HealthHandler struct {
	sessions SessionSource
}

func NewHealthHandler(sessions SessionSource) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Session()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"loading":       session.IsLoading,
		"authenticated": session.IsAuthenticated,
	})
}
