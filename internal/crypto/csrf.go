package crypto

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CSRFProtection issues stateless tokens for the local login and logout
// forms. Format: nonce:unix-timestamp:hmac.
type CSRFProtection struct {
	signingKey []byte
	ttl        time.Duration
}

func NewCSRFProtection(signingKey []byte, ttl time.Duration) CSRFProtection {
	return CSRFProtection{signingKey: signingKey, ttl: ttl}
}

// Generate creates a new CSRF token
func (c *CSRFProtection) Generate() (string, error) {
	nonce, err := GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	payload := nonce + ":" + strconv.FormatInt(time.Now().Unix(), 10)
	return payload + ":" + SignData(payload, c.signingKey), nil
}

// Validate checks signature and age.
func (c *CSRFProtection) Validate(token string) bool {
	payload, signature, ok := cutLast(token, ":")
	if !ok || strings.Count(payload, ":") != 1 {
		return false
	}
	_, ts, _ := strings.Cut(payload, ":")

	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if time.Since(time.Unix(issued, 0)) > c.ttl {
		return false
	}
	return ValidateSignedData(payload, signature, c.signingKey)
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
