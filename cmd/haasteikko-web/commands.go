package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/haasteikko/webclient/internal"
	"github.com/haasteikko/webclient/internal/authsession"
	"github.com/haasteikko/webclient/internal/config"
	"github.com/haasteikko/webclient/internal/log"
	"github.com/haasteikko/webclient/internal/navigation"
	"github.com/haasteikko/webclient/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web client until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log.LogInfoWithFields("main", "Starting haasteikko-web", map[string]any{
			"version": BuildVersion,
			"config":  configPath,
		})

		wc, err := internal.NewWebClient(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to create web client: %w", err)
		}
		return wc.Run()
	},
}

var tokenLogin bool

func init() {
	tokenCmd.Flags().BoolVar(&tokenLogin, "login", false, "open the sign-in page when the token cannot be renewed")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a valid access token for the resource API",
	Long: `Print the stored access token, renewing it silently when it has expired.

With --login, a failed renewal opens the provider's sign-in page in the
browser. The sign-in completes in a running "serve" instance that shares
this configuration's storage.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log.SetOutput(os.Stderr)
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := navigation.WithNavigator(cmd.Context(), navigation.NewBrowserNavigator(cmd.ErrOrStderr()))
		return withSession(ctx, cfg, func(m *authsession.Manager) error {
			token, err := m.GetAccessToken(ctx, authsession.TokenOptions{RedirectOnFailure: tokenLogin})
			switch {
			case errors.Is(err, authsession.ErrLoginRedirect):
				return fmt.Errorf("sign-in required: finish signing in in the browser, then run this command again")
			case errors.Is(err, authsession.ErrInteractionRequired):
				return fmt.Errorf("sign-in required: run with --login or sign in through serve")
			case err != nil:
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session without contacting the provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), cfg, func(m *authsession.Manager) error {
			if err := m.ClearSession(cmd.Context()); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return err
		})
	},
}

var configInitCmd = &cobra.Command{
	Use:   "config-init <path>",
	Short: "Write a starter config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := generateDefaultConfig(args[0]); err != nil {
			return fmt.Errorf("failed to generate config: %w", err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Generated default config at: %s\n", args[0])
		return err
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a config file without resolving environment variables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configPath == "" {
			return fmt.Errorf("--config is required for validation")
		}
		return validateConfig(cmd.OutOrStdout(), configPath)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), BuildVersion)
	},
}

// withSession restores the stored session for one command and releases
// it afterwards.
func withSession(ctx context.Context, cfg config.Config, fn func(*authsession.Manager) error) error {
	store, err := internal.SetupStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to setup storage: %w", err)
	}
	defer func(s storage.Store) { _ = s.Close() }(store)

	sessionCfg := internal.SessionConfig(cfg.Auth)
	sessionCfg.AutomaticSilentRenew = false
	m, err := authsession.Initialize(ctx, sessionCfg, store)
	if err != nil {
		return fmt.Errorf("failed to initialize auth session: %w", err)
	}
	defer authsession.Shutdown()

	return fn(m)
}

func defaultConfig() map[string]any {
	return map[string]any{
		"version": config.SupportedVersion,
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"auth": map[string]any{
			"authority":             "https://auth.haasteikko.eu",
			"clientId":              "haasteikko-web",
			"redirectUri":           "http://127.0.0.1:5173/auth/callback",
			"postLogoutRedirectUri": "http://127.0.0.1:5173/",
			"audience":              "https://haasteikko.eu/api",
			"scope":                 config.DefaultScope,
			"automaticSilentRenew":  true,
		},
		"api": map[string]any{
			"baseURL":           "https://haasteikko.eu/api",
			"timeout":           "30s",
			"requestsPerSecond": 10,
			"burst":             20,
		},
		"web": map[string]any{
			"addr":        config.DefaultAddr,
			"openBrowser": true,
		},
		"storage": map[string]any{
			"kind":          "sqlite",
			"path":          "haasteikko-session.db",
			"encryptionKey": map[string]string{"$env": "HAASTEIKKO_ENCRYPTION_KEY"},
		},
	}
}

// generateDefaultConfig writes YAML for .yaml/.yml paths and JSON otherwise.
func generateDefaultConfig(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(defaultConfig())
	default:
		data, err = json.MarshalIndent(defaultConfig(), "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func printIssues(out io.Writer, title string, issues []config.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(issues))
	for _, issue := range issues {
		if issue.Path != "" {
			fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Fprintf(out, "  - %s\n", issue.Message)
		}
	}
}

func validateConfig(out io.Writer, path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Fprintf(out, "Validating: %s\n", path)
	printIssues(out, "Errors", result.Errors)
	printIssues(out, "Warnings", result.Warnings)

	fmt.Fprintln(out)
	switch {
	case len(result.Errors) == 0 && len(result.Warnings) == 0:
		fmt.Fprintln(out, "Result: PASS")
		return nil
	case len(result.Errors) == 0:
		fmt.Fprintln(out, "Result: FAIL (warnings present)")
	default:
		fmt.Fprintln(out, "Result: FAIL")
	}
	return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
}
