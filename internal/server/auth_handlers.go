package server

import (
	"net/http"

	"github.com/haasteikko/webclient/internal/authsession"
	"github.com/haasteikko/webclient/internal/cookie"
	jsonwriter "github.com/haasteikko/webclient/internal/json"
	"github.com/haasteikko/webclient/internal/log"
)

const (
	csrfFormField  = "csrf_token"
	csrfHeader     = "X-CSRF-Token"
	signinFailedQS = "error=signin_failed"
)

// issueCSRF sets the double-submit cookie and returns the token to embed.
func (h *Handlers) issueCSRF(w http.ResponseWriter, r *http.Request) (string, error) {
	token, err := h.csrf.Generate()
	if err != nil {
		return "", err
	}
	cookie.SetCSRF(w, r, token)
	return token, nil
}

// validCSRF checks that submitted matches the cookie and carries a valid
// signature.
func (h *Handlers) validCSRF(r *http.Request, submitted string) bool {
	stored, err := cookie.GetCSRF(r)
	if err != nil || submitted == "" || stored != submitted {
		return false
	}
	return h.csrf.Validate(submitted)
}

// LoginPage renders the sign-in form.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	token, err := h.issueCSRF(w, r)
	if err != nil {
		log.LogError("Failed to generate CSRF token: %v", err)
		jsonwriter.WriteInternalServerError(w, "Internal Server Error")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := LoginPageData{
		CSRFToken: token,
		Failed:    r.URL.Query().Get("error") != "",
	}
	if err := loginPageTemplate.Execute(w, data); err != nil {
		log.LogError("Failed to render login page: %v", err)
	}
}

// Login starts the interactive sign-in.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if !h.validCSRF(r, r.PostFormValue(csrfFormField)) {
		jsonwriter.WriteForbidden(w, "invalid CSRF token")
		return
	}
	if err := h.sessions.LoginWithRedirect(r.Context()); err != nil {
		writeError(w, r, err)
	}
}

// Callback completes the sign-in and lands on the page the user was
// denied, or on home.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.sessions.HandleRedirectCallback(ctx, r.URL)
	if err != nil {
		http.Redirect(w, r, h.paths.Login+"?"+signinFailedQS, http.StatusFound)
		return
	}

	target, ok := h.guard.ConsumePendingRedirect(ctx)
	if !ok {
		target = h.paths.Home
	}
	log.LogInfoWithFields("server", "Signed in", map[string]any{
		"subject": user.Subject,
		"target":  target,
	})
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout ends the session locally and at the provider.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if !h.validCSRF(r, r.PostFormValue(csrfFormField)) {
		jsonwriter.WriteForbidden(w, "invalid CSRF token")
		return
	}
	cookie.ClearCSRF(w)
	if err := h.sessions.Logout(r.Context()); err != nil {
		writeError(w, r, err)
	}
}

type sessionResponse struct {
	authsession.Session
	CSRFToken string `json:"csrfToken"`
}

// Session exposes the current session and a CSRF token for JSON clients.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	token, err := h.issueCSRF(w, r)
	if err != nil {
		log.LogError("Failed to generate CSRF token: %v", err)
		jsonwriter.WriteInternalServerError(w, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: h.sessions.Session(), CSRFToken: token})
}

// requireCSRF guards JSON mutations with the X-CSRF-Token header.
func (h *Handlers) requireCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.validCSRF(r, r.Header.Get(csrfHeader)) {
			jsonwriter.WriteForbidden(w, "invalid CSRF token")
			return
		}
		next(w, r)
	}
}
