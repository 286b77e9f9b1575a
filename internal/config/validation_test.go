package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name          string
		file          string
		config        string
		wantErrors    []string
		wantWarnings  []string
		wantErrCount  int
		wantWarnCount int
	}{
		{
			name: "valid_config",
			file: "config.json",
			config: `{
				"version": "haasteikko/v1",
				"auth": {
					"authority": "https://auth.haasteikko.eu",
					"clientId": "haasteikko-web",
					"redirectUri": "http://127.0.0.1:5173/auth/callback",
					"postLogoutRedirectUri": "http://127.0.0.1:5173/",
					"audience": "https://haasteikko.eu/api"
				},
				"api": {"baseURL": "https://haasteikko.eu/api"}
			}`,
		},
		{
			name:         "invalid_json",
			file:         "config.json",
			config:       `{"version":`,
			wantErrors:   []string{"invalid JSON"},
			wantErrCount: 1,
		},
		{
			name:         "missing_sections",
			file:         "config.json",
			config:       `{"version": "haasteikko/v1"}`,
			wantErrors:   []string{"auth field is required", "api field is required"},
			wantErrCount: 2,
		},
		{
			name: "secrets_and_bash_syntax",
			file: "config.json",
			config: `{
				"version": "haasteikko/v1",
				"auth": {
					"authority": "https://auth.haasteikko.eu",
					"clientId": "${CLIENT_ID}",
					"clientSecret": "plain",
					"redirectUri": "http://127.0.0.1:5173/auth/callback",
					"postLogoutRedirectUri": "http://127.0.0.1:5173/",
					"audience": "https://haasteikko.eu/api"
				},
				"api": {"baseURL": "https://haasteikko.eu/api"},
				"storage": {"kind": "redis", "redisAddr": "localhost:6379"}
			}`,
			wantErrors:    []string{"clientSecret must use environment variable reference"},
			wantWarnings:  []string{"found bash-style syntax '${CLIENT_ID}'", "stored unencrypted in redis storage"},
			wantErrCount:  1,
			wantWarnCount: 2,
		},
		{
			name: "yaml_bad_storage_and_durations",
			file: "config.yaml",
			config: `
version: haasteikko/v1
auth:
  authority: https://auth.haasteikko.eu
  clientId: web
  redirectUri: http://127.0.0.1:5173/auth/callback
  postLogoutRedirectUri: http://127.0.0.1:5173/
  audience: https://haasteikko.eu/api
api:
  baseURL: https://haasteikko.eu/api
web:
  guardWait: 10ms
  guardPollInterval: 50ms
storage:
  kind: etcd
`,
			wantErrors:    []string{"unknown storage kind 'etcd'"},
			wantWarnings:  []string{"guardPollInterval (50ms) is longer than guardWait (10ms)"},
			wantErrCount:  1,
			wantWarnCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateFile(writeConfig(t, tt.file, tt.config))
			require.NoError(t, err)

			assert.Len(t, result.Errors, tt.wantErrCount, "errors: %+v", result.Errors)
			assert.Len(t, result.Warnings, tt.wantWarnCount, "warnings: %+v", result.Warnings)
			assert.Equal(t, tt.wantErrCount == 0, result.IsValid())

			for _, want := range tt.wantErrors {
				assert.True(t, containsMessage(result.Errors, want), "missing error %q in %+v", want, result.Errors)
			}
			for _, want := range tt.wantWarnings {
				assert.True(t, containsMessage(result.Warnings, want), "missing warning %q in %+v", want, result.Warnings)
			}
		})
	}
}

func TestValidateFile_Missing(t *testing.T) {
	_, err := ValidateFile("/nonexistent/config.json")
	assert.ErrorContains(t, err, "reading config file")
}

func containsMessage(issues []ValidationError, want string) bool {
	for _, issue := range issues {
		if strings.Contains(issue.Message, want) {
			return true
		}
	}
	return false
}
