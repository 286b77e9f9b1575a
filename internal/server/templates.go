package server

import (
	_ "embed"
	"html/template"
)

//go:embed templates/login.html
var loginPageTemplateHTML string

var loginPageTemplate = template.Must(template.New("login").Parse(loginPageTemplateHTML))

// LoginPageData is rendered on the login route.
type LoginPageData struct {
	CSRFToken string
	// Failed is set when the previous sign-in attempt was rejected.
	Failed bool
}
