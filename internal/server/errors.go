package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/haasteikko/webclient/internal/api"
	"github.com/haasteikko/webclient/internal/authsession"
	jsonwriter "github.com/haasteikko/webclient/internal/json"
	"github.com/haasteikko/webclient/internal/log"
	"github.com/haasteikko/webclient/internal/navigation"
	"github.com/haasteikko/webclient/internal/schema"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	_ = jsonwriter.WriteResponse(w, status, v)
}

// redirected reports whether a navigator already answered r.
func redirected(r *http.Request) bool {
	nav, ok := navigation.FromContext(r.Context())
	if !ok {
		return false
	}
	rn, ok := nav.(*navigation.ResponseNavigator)
	return ok && rn.Assigned() != ""
}

// writeError maps a resource or session failure to a response. Nothing is
// written when the request was already answered with a login redirect.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, authsession.ErrLoginRedirect) || redirected(r) {
		return
	}

	var violation *schema.ViolationError
	switch {
	case errors.Is(err, authsession.ErrInteractionRequired):
		jsonwriter.WriteUnauthorized(w, "sign in required")
	case errors.Is(err, api.ErrResourceNotFound):
		jsonwriter.WriteNotFound(w, "resource not found")
	case errors.As(err, &violation) && violation.Direction == schema.Outgoing:
		jsonwriter.WriteBadRequest(w, violation.Error())
	case errors.Is(err, schema.ErrViolation):
		jsonwriter.WriteBadGateway(w, "invalid_payload", err.Error())
	case errors.Is(err, api.ErrTransport):
		jsonwriter.WriteBadGateway(w, "upstream_unavailable", "resource API request failed")
	default:
		jsonwriter.WriteInternalServerError(w, "Internal Server Error")
	}

	log.LogWarnWithFields("server", "Request failed", map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"error":  err.Error(),
	})
}

func redactQuery(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	return u.String()
}
