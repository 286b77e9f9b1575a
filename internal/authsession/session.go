package authsession

import (
	"maps"
	"sync"
	"time"

	"github.com/haasteikko/webclient/internal/identity"
)

// Session is a read-only view of the authentication state.
type Session struct {
	IsAuthenticated bool        `json:"isAuthenticated"`
	IsLoading       bool        `json:"isLoading"`
	User            *UserRecord `json:"user,omitempty"`
}

// UserRecord is the credential the rest of the application may see.
type UserRecord struct {
	Subject     string         `json:"sub"`
	AccessToken string         `json:"-"`
	TokenType   string         `json:"tokenType"`
	Scope       string         `json:"scope,omitempty"`
	ExpiresAt   time.Time      `json:"expiresAt,omitzero"`
	Profile     map[string]any `json:"profile,omitempty"`
}

// Expired reports whether the access token expires within skew of now.
func (u *UserRecord) Expired(now time.Time, skew time.Duration) bool {
	if u.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(u.ExpiresAt)
}

func (u *UserRecord) clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	c.Profile = maps.Clone(u.Profile)
	return &c
}

func recordFromUser(u *identity.User) *UserRecord {
	return &UserRecord{
		Subject:     u.Subject,
		AccessToken: u.AccessToken,
		TokenType:   u.TokenType,
		Scope:       u.Scope,
		ExpiresAt:   u.ExpiresAt,
		Profile:     maps.Clone(u.Profile),
	}
}

// credentialStore holds the one Session. Writers replace it wholesale so a
// reader never sees a half-updated record.
type credentialStore struct {
	mu      sync.RWMutex
	session Session
}

func (s *credentialStore) snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.session
	out.User = s.session.User.clone()
	return out
}

func (s *credentialStore) set(next Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = next
}

func (s *credentialStore) update(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.session
	fn(&next)
	s.session = next
}

func (s *credentialStore) user() *UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.User.clone()
}
