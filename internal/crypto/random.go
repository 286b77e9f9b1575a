package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const tokenBytes = 32

// RandomKey returns n bytes from the system CSPRNG, for signing keys that
// live only as long as the process.
func RandomKey(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("key length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateSecureToken returns 256 random bits as unpadded base64url, safe
// in URLs, cookies and form fields. Used for signin state, nonces and CSRF
// nonces.
func GenerateSecureToken() (string, error) {
	b, err := RandomKey(tokenBytes)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
