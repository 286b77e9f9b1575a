package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the backend holding the identity session.
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindSQLite    StorageKind = "sqlite"
	StorageKindRedis     StorageKind = "redis"
	StorageKindFirestore StorageKind = "firestore"
)

// SupportedVersion is the config version this build understands.
const SupportedVersion = "haasteikko/v1"

// Defaults mirror the behaviour of the hosted web application.
const (
	DefaultScope             = "openid profile email"
	DefaultAddr              = "127.0.0.1:5173"
	DefaultLoginPath         = "/"
	DefaultCallbackPath      = "/auth/callback"
	DefaultHomePath          = "/home"
	DefaultGuardWait         = 5 * time.Second
	DefaultGuardPollInterval = 50 * time.Millisecond
	DefaultRenewTimeout      = 10 * time.Second
	DefaultClockSkew         = 30 * time.Second
	DefaultAPITimeout        = 30 * time.Second
	DefaultCleanupInterval   = 5 * time.Minute
	DefaultCollection        = "haasteikko_sessions"
)

// AuthConfig describes the OpenID Connect client registration.
type AuthConfig struct {
	Authority             string        `json:"authority"`
	ClientID              string        `json:"clientId"`
	ClientSecret          Secret        `json:"clientSecret,omitempty"`
	RedirectURI           string        `json:"redirectUri"`
	PostLogoutRedirectURI string        `json:"postLogoutRedirectUri"`
	Audience              string        `json:"audience,omitempty"`
	Scope                 string        `json:"scope,omitempty"`
	AutomaticSilentRenew  bool          `json:"automaticSilentRenew"`
	RenewTimeout          time.Duration `json:"renewTimeout,omitempty"`
	ClockSkew             time.Duration `json:"clockSkew,omitempty"`
}

// APIConfig describes the remote resource API.
type APIConfig struct {
	BaseURL           string        `json:"baseURL"`
	Timeout           time.Duration `json:"timeout,omitempty"`
	RequestsPerSecond float64       `json:"requestsPerSecond,omitempty"`
	Burst             int           `json:"burst,omitempty"`
}

// WebConfig describes the local listener and route layout.
type WebConfig struct {
	Addr              string        `json:"addr"`
	LoginPath         string        `json:"loginPath"`
	CallbackPath      string        `json:"callbackPath"`
	HomePath          string        `json:"homePath"`
	GuardWait         time.Duration `json:"guardWait,omitempty"`
	GuardPollInterval time.Duration `json:"guardPollInterval,omitempty"`
	OpenBrowser       bool          `json:"openBrowser"`
}

// StorageConfig selects and configures the session store.
type StorageConfig struct {
	Kind            StorageKind   `json:"kind"`
	Path            string        `json:"path,omitempty"`
	RedisAddr       string        `json:"redisAddr,omitempty"`
	RedisPassword   Secret        `json:"redisPassword,omitempty"`
	RedisDB         int           `json:"redisDb,omitempty"`
	GCPProject      string        `json:"gcpProject,omitempty"`
	Database        string        `json:"database,omitempty"`
	Collection      string        `json:"collection,omitempty"`
	EncryptionKey   Secret        `json:"encryptionKey,omitempty"`
	CleanupInterval time.Duration `json:"cleanupInterval,omitempty"`
}

// LogConfig overrides the environment-derived logging setup.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// Config represents the config structure with resolved values
type Config struct {
	Version string        `json:"version"`
	Log     LogConfig     `json:"log"`
	Auth    AuthConfig    `json:"auth"`
	API     APIConfig     `json:"api"`
	Web     WebConfig     `json:"web"`
	Storage StorageConfig `json:"storage"`
}

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "VAR"} reference.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}

func parseDuration(field, s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}
