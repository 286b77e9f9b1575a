package identity

import "sync"

// listeners is a set of callbacks that can be removed individually.
type listeners[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (l *listeners[T]) add(fn func(T)) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

// raise calls every listener outside the lock, so a listener may add or
// remove listeners.
func (l *listeners[T]) raise(v T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

type events struct {
	loaded   listeners[*User]
	unloaded listeners[struct{}]
	renewErr listeners[error]
	expiring listeners[*User]
}

// AddUserLoaded registers fn to run whenever a user is signed in or renewed.
// The returned func unregisters it.
func (c *Client) AddUserLoaded(fn func(*User)) func() {
	return c.events.loaded.add(fn)
}

// AddUserUnloaded registers fn to run when the stored user is removed.
func (c *Client) AddUserUnloaded(fn func()) func() {
	return c.events.unloaded.add(func(struct{}) { fn() })
}

// AddSilentRenewError registers fn to run when automatic renewal fails.
func (c *Client) AddSilentRenewError(fn func(error)) func() {
	return c.events.renewErr.add(fn)
}

// AddAccessTokenExpiring registers fn to run shortly before the access
// token expires.
func (c *Client) AddAccessTokenExpiring(fn func(*User)) func() {
	return c.events.expiring.add(fn)
}
