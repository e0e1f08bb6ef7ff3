// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the mdconvert CLI.
// See docs/ARCHITECTURE § Command Surface, § Project Structure.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/mdconvert/internal/logging"
	"github.com/pdiddy/mdconvert/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// logger writes diagnostics to stderr; stdout carries the progress protocol.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// rootCmd is the base command for the mdconvert CLI.
var rootCmd = &cobra.Command{
	Use:   "mdconvert",
	Short: "Batch-convert documents to Markdown",
	Long: `mdconvert converts documents (PDF, Office, HTML, images) into Markdown.
Inputs may be files or whole directory trees; directory structure is
preserved under the output directory and existing files are never
overwritten.

Progress is reported on stdout as newline-delimited JSON so a supervising
process can follow a batch in real time. Use "tui" for an interactive view
or "serve" to run batches over HTTP and websockets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(os.Stderr, viper.GetString("log.level"), viper.GetString("log.format"))
		if err != nil {
			return err
		}
		logger = log
		slog.SetDefault(log)

		s, err := secrets.Load(secrets.DefaultDir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Debug("loaded secrets", "keys", s.Keys())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./mdconvert.yaml or ~/.config/mdconvert/mdconvert.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "diagnostic log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().String("log-format", "text", "diagnostic log format: text or json")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mdconvert")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "mdconvert"))
		}
	}

	setDefaults()

	viper.SetEnvPrefix("MDCONVERT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Info("using config file", "path", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
