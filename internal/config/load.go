package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haasteikko/webclient/internal/envutil"
	"github.com/haasteikko/webclient/internal/log"
)

// Load loads and processes the config with immediate env var resolution.
// Files ending in .yaml or .yml are accepted and normalised to JSON first.
func Load(path string) (Config, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return Config{}, err
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if version != SupportedVersion {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	config.ApplyDefaults()

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func readConfigFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return normalizeDocument(path, data)
}

// normalizeDocument converts YAML documents to JSON so one decoder serves both.
func normalizeDocument(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("converting YAML config: %w", err)
		}
		return converted, nil
	}
	return data, nil
}

// secretFields must never be written inline in the config file.
var secretFields = []struct {
	section string
	name    string
}{
	{"auth", "clientSecret"},
	{"storage", "encryptionKey"},
	{"storage", "redisPassword"},
}

// validateRawConfig validates the config structure before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	for _, secret := range secretFields {
		section, ok := rawConfig[secret.section].(map[string]any)
		if !ok {
			continue
		}
		value, exists := section[secret.name]
		if !exists {
			continue
		}
		if _, isString := value.(string); isString {
			return fmt.Errorf("%s.%s must use environment variable reference for security", secret.section, secret.name)
		}
		if refMap, isMap := value.(map[string]any); isMap {
			if _, hasEnv := refMap["$env"]; !hasEnv {
				return fmt.Errorf("%s.%s must use {\"$env\": \"VAR_NAME\"} format", secret.section, secret.name)
			}
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if err := validateAuthConfig(&config.Auth); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	if err := validateAPIConfig(&config.API); err != nil {
		return fmt.Errorf("api config: %w", err)
	}
	if err := validateWebConfig(&config.Web); err != nil {
		return fmt.Errorf("web config: %w", err)
	}
	if err := validateStorageConfig(&config.Storage); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	return nil
}

func validateAuthConfig(auth *AuthConfig) error {
	if auth.Authority == "" {
		return fmt.Errorf("authority is required")
	}
	u, err := url.Parse(auth.Authority)
	if err != nil || u.Host == "" {
		return fmt.Errorf("authority must be an absolute URL")
	}
	if u.Scheme != "https" && !(u.Scheme == "http" && envutil.IsDev()) {
		return fmt.Errorf("authority must use https")
	}
	if auth.ClientID == "" {
		return fmt.Errorf("clientId is required")
	}
	if auth.RedirectURI == "" {
		return fmt.Errorf("redirectUri is required")
	}
	if _, err := url.ParseRequestURI(auth.RedirectURI); err != nil {
		return fmt.Errorf("redirectUri is invalid: %w", err)
	}
	if auth.PostLogoutRedirectURI == "" {
		return fmt.Errorf("postLogoutRedirectUri is required")
	}
	if !strings.Contains(" "+auth.Scope+" ", " openid ") {
		return fmt.Errorf("scope must include openid")
	}
	if auth.RenewTimeout < 0 {
		return fmt.Errorf("renewTimeout cannot be negative")
	}
	if auth.ClockSkew < 0 {
		return fmt.Errorf("clockSkew cannot be negative")
	}
	return nil
}

func validateAPIConfig(api *APIConfig) error {
	if api.BaseURL == "" {
		return fmt.Errorf("baseURL is required")
	}
	if u, err := url.Parse(api.BaseURL); err != nil || u.Host == "" {
		return fmt.Errorf("baseURL must be an absolute URL")
	}
	if api.RequestsPerSecond < 0 {
		return fmt.Errorf("requestsPerSecond cannot be negative")
	}
	if api.RequestsPerSecond > 0 && api.Burst < 1 {
		log.LogWarn("api.burst is below 1 with rate limiting enabled, using 1")
		api.Burst = 1
	}
	return nil
}

func validateWebConfig(web *WebConfig) error {
	for name, p := range map[string]string{
		"loginPath":    web.LoginPath,
		"callbackPath": web.CallbackPath,
		"homePath":     web.HomePath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with /", name)
		}
	}
	if web.CallbackPath == web.LoginPath {
		return fmt.Errorf("callbackPath and loginPath must differ")
	}
	if web.GuardPollInterval <= 0 {
		return fmt.Errorf("guardPollInterval must be positive")
	}
	if web.GuardWait < web.GuardPollInterval {
		return fmt.Errorf("guardWait must be at least guardPollInterval")
	}
	return nil
}

func validateStorageConfig(storage *StorageConfig) error {
	switch storage.Kind {
	case StorageKindMemory:
	case StorageKindSQLite:
		if storage.Path == "" {
			return fmt.Errorf("path is required when using sqlite storage")
		}
	case StorageKindRedis:
		if storage.RedisAddr == "" {
			return fmt.Errorf("redisAddr is required when using redis storage")
		}
	case StorageKindFirestore:
		if storage.GCPProject == "" {
			return fmt.Errorf("gcpProject is required when using firestore storage")
		}
	default:
		return fmt.Errorf("unknown storage kind: %s", storage.Kind)
	}

	if storage.Kind != StorageKindMemory && storage.EncryptionKey == "" {
		log.LogWarn("storage.encryptionKey is not set, tokens will be stored unencrypted in %s storage", storage.Kind)
	}
	if storage.EncryptionKey != "" && len(storage.EncryptionKey) != 32 {
		return fmt.Errorf("encryptionKey must be exactly 32 characters (got %d). Generate with: openssl rand -base64 32 | head -c 32", len(storage.EncryptionKey))
	}
	return nil
}
