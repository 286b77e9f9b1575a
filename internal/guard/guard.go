// Package guard decides whether a navigation may proceed given the current
// authentication session.
package guard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/haasteikko/webclient/internal/authsession"
	"github.com/haasteikko/webclient/internal/log"
	"github.com/haasteikko/webclient/internal/storage"
	"github.com/haasteikko/webclient/internal/urlutil"
)

const (
	DefaultWaitBound    = 5 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
)

// Action is what the navigation should do.
type Action int

const (
	Proceed Action = iota
	Redirect
)

func (a Action) String() string {
	if a == Redirect {
		return "redirect"
	}
	return "proceed"
}

// Decision is the outcome of Check. Location is set for Redirect.
type Decision struct {
	Action   Action
	Location string
}

// Route is an attempted navigation. FullPath includes the query string and
// is what the user returns to after signing in.
type Route struct {
	Path         string
	FullPath     string
	RequiresAuth bool
}

// SessionSource exposes the current session.
type SessionSource interface {
	Session() authsession.Session
}

type Options struct {
	LoginPath    string
	HomePath     string
	CallbackPath string
	WaitBound    time.Duration
	PollInterval time.Duration
}

type Guard struct {
	sessions SessionSource
	store    storage.Store
	opts     Options
}

func New(sessions SessionSource, store storage.Store, opts Options) *Guard {
	if opts.LoginPath == "" {
		opts.LoginPath = "/"
	}
	if opts.HomePath == "" {
		opts.HomePath = "/home"
	}
	if opts.CallbackPath == "" {
		opts.CallbackPath = "/auth/callback"
	}
	if opts.WaitBound <= 0 {
		opts.WaitBound = DefaultWaitBound
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Guard{sessions: sessions, store: store, opts: opts}
}

// Check decides one navigation. It blocks at most WaitBound while the
// session is loading and treats a session still loading after that as
// signed out.
func (g *Guard) Check(ctx context.Context, r Route) Decision {
	if r.Path == g.opts.CallbackPath {
		return Decision{Action: Proceed}
	}

	if r.Path == g.opts.LoginPath {
		if g.sessions.Session().IsAuthenticated {
			return Decision{Action: Redirect, Location: g.opts.HomePath}
		}
		return Decision{Action: Proceed}
	}

	if !r.RequiresAuth {
		return Decision{Action: Proceed}
	}

	if g.await(ctx).IsAuthenticated {
		return Decision{Action: Proceed}
	}

	g.remember(ctx, r.FullPath)
	return Decision{Action: Redirect, Location: g.opts.LoginPath}
}

// await polls until the session stops loading, the bound elapses or ctx
// ends. The latter two yield a signed-out session.
func (g *Guard) await(ctx context.Context) authsession.Session {
	session := g.sessions.Session()
	if !session.IsLoading {
		return session
	}

	deadline := time.NewTimer(g.opts.WaitBound)
	defer deadline.Stop()
	ticker := time.NewTicker(g.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			session = g.sessions.Session()
			if !session.IsLoading {
				return session
			}
		case <-deadline.C:
			log.LogWarnWithFields("guard", "Session still loading, treating as signed out", map[string]any{
				"waited": g.opts.WaitBound.String(),
			})
			return authsession.Session{}
		case <-ctx.Done():
			return authsession.Session{}
		}
	}
}

// remember overwrites the pending redirect target.
func (g *Guard) remember(ctx context.Context, fullPath string) {
	if !urlutil.IsLocalPath(fullPath) {
		return
	}
	if err := g.store.Set(context.WithoutCancel(ctx), storage.PendingRedirectKey, fullPath, 0); err != nil {
		log.LogErrorWithFields("guard", "Failed to store pending redirect", map[string]any{
			"path":  fullPath,
			"error": err.Error(),
		})
	}
}

// ConsumePendingRedirect returns the path a visitor was denied before
// signing in and clears it. Only local paths are returned.
func (g *Guard) ConsumePendingRedirect(ctx context.Context) (string, bool) {
	target, err := storage.Take(ctx, g.store, storage.PendingRedirectKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.LogWarn("Reading pending redirect failed: %v", err)
		}
		return "", false
	}
	if !urlutil.IsLocalPath(target) {
		log.LogWarnWithFields("guard", "Discarding non-local pending redirect", map[string]any{
			"target": target,
		})
		return "", false
	}
	return target, true
}

// Middleware applies Check to every request before it reaches next.
func (g *Guard) Middleware(routes *RouteTable) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule := routes.Lookup(r.URL.Path)
			decision := g.Check(r.Context(), Route{
				Path:         r.URL.Path,
				FullPath:     r.URL.RequestURI(),
				RequiresAuth: rule.RequiresAuth,
			})
			if decision.Action == Redirect {
				log.LogTraceWithFields("guard", "Redirecting navigation", map[string]any{
					"from": r.URL.Path,
					"to":   decision.Location,
				})
				http.Redirect(w, r, decision.Location, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
