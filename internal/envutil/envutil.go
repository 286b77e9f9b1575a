package envutil

import (
	"os"
	"strings"
)

// EnvName selects the runtime environment.
const EnvName = "HAASTEIKKO_ENV"

// IsDev reports whether development relaxations apply, such as allowing a
// plain-http identity provider on localhost.
func IsDev() bool {
	env := strings.ToLower(os.Getenv(EnvName))
	return env == "development" || env == "dev"
}
