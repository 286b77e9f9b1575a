package identity

import (
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// User is the signed-in user as persisted by the identity layer.
type User struct {
	Subject      string         `json:"sub"`
	AccessToken  string         `json:"access_token"`
	TokenType    string         `json:"token_type"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	IDToken      string         `json:"id_token,omitempty"`
	Scope        string         `json:"scope,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at,omitzero"`
	Profile      map[string]any `json:"profile,omitempty"`
}

// Expired reports whether the access token is unusable at now, treating
// tokens that expire within skew as already expired. A user without an
// expiry never expires.
func (u *User) Expired(now time.Time, skew time.Duration) bool {
	if u.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(u.ExpiresAt)
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Profile = maps.Clone(u.Profile)
	return &c
}

// protocolClaims describe the id token itself rather than the user.
var protocolClaims = []string{"nonce", "at_hash", "c_hash", "iat", "nbf", "exp", "aud", "iss", "auth_time", "azp", "sid"}

func profileFromClaims(claims map[string]any) map[string]any {
	profile := maps.Clone(claims)
	for _, c := range protocolClaims {
		delete(profile, c)
	}
	return profile
}

// tokenExpiry prefers the expires_in of the token response and falls back
// to the exp claim when the access token is a JWT.
func tokenExpiry(tok *oauth2.Token) time.Time {
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
