// Package cookie manages the CSRF cookie of the local login and logout
// forms.
package cookie

import (
	"net/http"
	"time"

	"github.com/haasteikko/webclient/internal/envutil"
	"github.com/haasteikko/webclient/internal/log"
)

const CSRFCookie = "haasteikko_csrf"

// CSRFMaxAge matches the lifetime of the tokens the server issues.
const CSRFMaxAge = time.Hour

// secure reports whether the cookie may only travel over TLS. Plain HTTP
// is accepted for loopback listeners and in dev.
func secure(r *http.Request) bool {
	return r.TLS != nil && !envutil.IsDev()
}

// SetCSRF sets the double-submit CSRF cookie.
func SetCSRF(w http.ResponseWriter, r *http.Request, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(CSRFMaxAge.Seconds()),
	})
	log.LogTraceWithFields("cookie", "CSRF cookie set", map[string]any{
		"secure": secure(r),
	})
}

// ClearCSRF removes the CSRF cookie.
func ClearCSRF(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   CSRFCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// GetCSRF retrieves the CSRF cookie value.
func GetCSRF(r *http.Request) (string, error) {
	c, err := r.Cookie(CSRFCookie)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
