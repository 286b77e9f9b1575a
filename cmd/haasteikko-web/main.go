package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haasteikko/webclient/internal/config"
	"github.com/haasteikko/webclient/internal/log"
)

var BuildVersion = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "haasteikko-web",
	Short:         "Reading challenge web client",
	Long:          "haasteikko-web signs in against the Haasteikko identity provider and serves the reading challenge views locally.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (JSON or YAML)")
	rootCmd.AddCommand(serveCmd, tokenCmd, logoutCmd, configInitCmd, validateCmd, versionCmd)
}

// loadConfig reads --config and applies its logging section.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Config{}, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := log.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return config.Config{}, fmt.Errorf("log config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.LogError("%v", err)
		os.Exit(1)
	}
}
