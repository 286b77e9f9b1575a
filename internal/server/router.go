// Package server serves the web client's routes: the login and callback
// pages, the JSON views behind the navigation guard, and health.
package server

import (
	"net/http"

	"github.com/haasteikko/webclient/internal/authsession"
	"github.com/haasteikko/webclient/internal/crypto"
	"github.com/haasteikko/webclient/internal/guard"
	"github.com/haasteikko/webclient/internal/resources"
)

// SessionSource exposes the current session.
type SessionSource interface {
	Session() authsession.Session
}

// Paths are the routes with a fixed role in the sign-in flow.
type Paths struct {
	Login    string
	Callback string
	Home     string
}

// Handlers serves every route of the client.
type Handlers struct {
	sessions  *authsession.Manager
	guard     *guard.Guard
	resources *resources.Clients
	csrf      crypto.CSRFProtection
	paths     Paths
}

func NewHandlers(sessions *authsession.Manager, g *guard.Guard, clients *resources.Clients, csrf crypto.CSRFProtection, paths Paths) *Handlers {
	return &Handlers{
		sessions:  sessions,
		guard:     g,
		resources: clients,
		csrf:      csrf,
		paths:     paths,
	}
}

// Routes returns the guard's view of the route layout. Anything not listed
// requires a session.
func (h *Handlers) Routes() *guard.RouteTable {
	return guard.NewRouteTable(
		guard.RouteRule{Pattern: h.paths.Login, RequiresAuth: false},
		guard.RouteRule{Pattern: h.paths.Callback, RequiresAuth: false},
		guard.RouteRule{Pattern: "/auth/**", RequiresAuth: false},
		guard.RouteRule{Pattern: "/health", RequiresAuth: false},
		guard.RouteRule{Pattern: "/api/session", RequiresAuth: false},
		guard.RouteRule{Pattern: h.paths.Home, RequiresAuth: true},
		guard.RouteRule{Pattern: "/library/**", RequiresAuth: true},
		guard.RouteRule{Pattern: "/manageChallenges/**", RequiresAuth: true},
		guard.RouteRule{Pattern: "/challenges/**", RequiresAuth: true},
		guard.RouteRule{Pattern: "/preferences", RequiresAuth: true},
	)
}

func loginPattern(p string) string {
	if p == "/" {
		return "GET /{$}"
	}
	return "GET " + p
}

// Handler assembles the mux and middleware chain.
func (h *Handlers) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(loginPattern(h.paths.Login), h.LoginPage)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("GET "+h.paths.Callback, h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /api/session", h.Session)
	mux.Handle("GET /health", NewHealthHandler(h.sessions))

	mux.HandleFunc("GET "+h.paths.Home, h.Home)
	mux.HandleFunc("GET /library", h.Library)
	mux.HandleFunc("POST /library", h.requireCSRF(h.AddLibraryItem))
	mux.HandleFunc("GET /library/{id}", h.LibraryItem)
	mux.HandleFunc("PUT /library/{id}", h.requireCSRF(h.UpdateLibraryItem))
	mux.HandleFunc("DELETE /library/{id}", h.requireCSRF(h.DeleteLibraryItem))
	mux.HandleFunc("PUT /preferences", h.requireCSRF(h.UpdatePreferences))
	mux.HandleFunc("GET /manageChallenges", h.ManageChallenges)
	mux.HandleFunc("POST /manageChallenges", h.requireCSRF(h.AddChallenge))
	mux.HandleFunc("PUT /manageChallenges/{id}", h.requireCSRF(h.UpdateChallenge))
	mux.HandleFunc("GET /challenges", h.Challenges)
	mux.HandleFunc("GET /challenges/{id}", h.Challenge)
	mux.HandleFunc("PUT /challenges/{id}/answers/{itemId}", h.requireCSRF(h.SaveAnswers))
	mux.HandleFunc("POST /challenges/{id}/solutions", h.requireCSRF(h.SaveSolutions))

	return ChainMiddleware(mux,
		h.guard.Middleware(h.Routes()),
		NewNavigationMiddleware(),
		NewSecurityHeadersMiddleware(),
		NewLoggerMiddleware("http"),
		NewRecoverMiddleware("http"),
	)
}
