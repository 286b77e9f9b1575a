package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	data, err = normalizeDocument(path, data)
	if err != nil {
		result.addError("", "%v", err)
		return result, nil
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", SupportedVersion)
	} else if version != SupportedVersion {
		result.addError("version", "unsupported version '%s' - use '%s'", version, SupportedVersion)
	}

	validateAuthStructure(rawConfig, result)
	validateAPIStructure(rawConfig, result)
	validateWebStructure(rawConfig, result)
	validateStorageStructure(rawConfig, result)

	return result, nil
}

func section(rawConfig map[string]any, name string, required bool, result *ValidationResult) map[string]any {
	value, exists := rawConfig[name]
	if !exists {
		if required {
			result.addError(name, "%s field is required and must be an object", name)
		}
		return nil
	}
	m, ok := value.(map[string]any)
	if !ok {
		result.addError(name, "%s must be an object", name)
		return nil
	}
	return m
}

func validateAuthStructure(rawConfig map[string]any, result *ValidationResult) {
	auth := section(rawConfig, "auth", true, result)
	if auth == nil {
		return
	}

	required := map[string]string{
		"authority":             "\"https://auth.haasteikko.eu\"",
		"clientId":              "\"haasteikko-web\"",
		"redirectUri":           "\"http://127.0.0.1:5173/auth/callback\"",
		"postLogoutRedirectUri": "\"http://127.0.0.1:5173/\"",
	}
	for field, example := range required {
		if _, ok := auth[field]; !ok {
			result.addError("auth."+field, "%s is required. Example: %s", field, example)
		}
	}

	if secret, ok := auth["clientSecret"]; ok {
		if verr := validateEnvVarReference(secret, "clientSecret", "auth.clientSecret"); verr != nil {
			result.Errors = append(result.Errors, *verr)
		}
	}

	if scope, ok := auth["scope"].(string); ok && !strings.Contains(" "+scope+" ", " openid ") {
		result.addError("auth.scope", "scope must include 'openid'")
	}
	if _, ok := auth["audience"]; !ok {
		result.addWarning("auth.audience", "audience is not set; the provider may issue tokens the resource API rejects")
	}

	validateDurationField(auth, "auth", "renewTimeout", result)
	validateDurationField(auth, "auth", "clockSkew", result)
}

func validateAPIStructure(rawConfig map[string]any, result *ValidationResult) {
	api := section(rawConfig, "api", true, result)
	if api == nil {
		return
	}
	if _, ok := api["baseURL"]; !ok {
		result.addError("api.baseURL", "baseURL is required. Example: \"https://haasteikko.eu/api\"")
	}
	if rps, ok := api["requestsPerSecond"].(float64); ok && rps < 0 {
		result.addError("api.requestsPerSecond", "requestsPerSecond cannot be negative")
	}
	validateDurationField(api, "api", "timeout", result)
}

func validateWebStructure(rawConfig map[string]any, result *ValidationResult) {
	web := section(rawConfig, "web", false, result)
	if web == nil {
		return
	}

	for _, field := range []string{"loginPath", "callbackPath", "homePath"} {
		if p, ok := web[field].(string); ok && !strings.HasPrefix(p, "/") {
			result.addError("web."+field, "%s must start with '/'", field)
		}
	}

	wait := validateDurationField(web, "web", "guardWait", result)
	poll := validateDurationField(web, "web", "guardPollInterval", result)
	if wait > 0 && poll > 0 && poll > wait {
		result.addWarning("web", "guardPollInterval (%s) is longer than guardWait (%s). The guard will check the session only once.", poll, wait)
	}
}

func validateStorageStructure(rawConfig map[string]any, result *ValidationResult) {
	storage := section(rawConfig, "storage", false, result)
	if storage == nil {
		return
	}

	kind, _ := storage["kind"].(string)
	persistent := true
	switch StorageKind(kind) {
	case "", StorageKindMemory:
		persistent = false
	case StorageKindSQLite:
		if _, ok := storage["path"]; !ok {
			result.addError("storage.path", "path is required when using sqlite storage. Example: \"~/.haasteikko/session.db\"")
		}
	case StorageKindRedis:
		if _, ok := storage["redisAddr"]; !ok {
			result.addError("storage.redisAddr", "redisAddr is required when using redis storage. Example: \"localhost:6379\"")
		}
	case StorageKindFirestore:
		if _, ok := storage["gcpProject"]; !ok {
			result.addError("storage.gcpProject", "gcpProject is required when using firestore storage")
		}
	default:
		persistent = false
		result.addError("storage.kind", "unknown storage kind '%s' - use memory, sqlite, redis or firestore", kind)
	}

	for _, field := range []string{"encryptionKey", "redisPassword"} {
		if value, ok := storage[field]; ok {
			if verr := validateEnvVarReference(value, field, "storage."+field); verr != nil {
				result.Errors = append(result.Errors, *verr)
			}
		}
	}
	if _, ok := storage["encryptionKey"]; !ok && persistent {
		result.addWarning("storage.encryptionKey", "tokens will be stored unencrypted in %s storage", kind)
	}

	validateDurationField(storage, "storage", "cleanupInterval", result)
}

func validateDurationField(m map[string]any, prefix, field string, result *ValidationResult) time.Duration {
	raw, ok := m[field]
	if !ok {
		return 0
	}
	s, ok := raw.(string)
	if !ok {
		result.addError(prefix+"."+field, "%s must be a duration string like \"5s\"", field)
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		result.addError(prefix+"."+field, "invalid duration %q: %v", s, err)
		return 0
	}
	if d < 0 {
		result.addError(prefix+"."+field, "%s cannot be negative", field)
	}
	return d
}

func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName)
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
