// Package navigation abstracts moving the end user's browser, so the
// session manager can redirect without knowing whether it runs inside an
// HTTP request or a terminal command.
package navigation

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// ErrNoNavigator is returned when navigation is requested but no
// navigator is bound to the context.
var ErrNoNavigator = errors.New("no navigator available")

// Navigator moves the user agent.
type Navigator interface {
	// Assign leaves the current page for target.
	Assign(ctx context.Context, target string) error
	// Replace rewrites the current location without loading a new page.
	Replace(ctx context.Context, target string) error
}

type ctxKey struct{}

// WithNavigator binds n to ctx.
func WithNavigator(ctx context.Context, n Navigator) context.Context {
	return context.WithValue(ctx, ctxKey{}, n)
}

// FromContext returns the navigator bound to ctx, if any.
func FromContext(ctx context.Context) (Navigator, bool) {
	n, ok := ctx.Value(ctxKey{}).(Navigator)
	return n, ok && n != nil
}

// ResponseNavigator navigates by answering the current HTTP request with a
// redirect. Only the first Assign writes to the response.
type ResponseNavigator struct {
	w http.ResponseWriter
	r *http.Request

	mu       sync.Mutex
	assigned string
	replaced string
}

func NewResponseNavigator(w http.ResponseWriter, r *http.Request) *ResponseNavigator {
	return &ResponseNavigator{w: w, r: r}
}

func (n *ResponseNavigator) Assign(_ context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.assigned != "" {
		return nil
	}
	n.assigned = target
	http.Redirect(n.w, n.r, target, http.StatusFound)
	return nil
}

// Replace records target. The handler decides whether to surface it.
func (n *ResponseNavigator) Replace(_ context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replaced = target
	return nil
}

// Assigned returns the redirect target written, or "".
func (n *ResponseNavigator) Assigned() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.assigned
}

// Replaced returns the last location passed to Replace, or "".
func (n *ResponseNavigator) Replaced() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.replaced
}

// Recorder captures navigation for tests and for callers that want to
// decide later what to do with a redirect.
type Recorder struct {
	mu       sync.Mutex
	assigns  []string
	replaces []string
}

func (r *Recorder) Assign(_ context.Context, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigns = append(r.assigns, target)
	return nil
}

func (r *Recorder) Replace(_ context.Context, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaces = append(r.replaces, target)
	return nil
}

func (r *Recorder) Assigns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.assigns...)
}

func (r *Recorder) Replaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.replaces...)
}

// LastAssign returns the most recent Assign target, or "".
func (r *Recorder) LastAssign() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.assigns) == 0 {
		return ""
	}
	return r.assigns[len(r.assigns)-1]
}
