// Package cli provides the command-line interface for mongohaul.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mongohaul/mongohaul/internal/config"
	"github.com/mongohaul/mongohaul/internal/logging"
	"github.com/mongohaul/mongohaul/internal/version"
)

var (
	// Global flags
	cfgFile  string
	mongoURI string
	verbose  bool
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   "mongohaul",
	Short: "Selective bulk import/export for MongoDB snapshot archives",
	Long: `mongohaul moves data between MongoDB deployments and snapshot archives.

Import walks an archive through preview, selection, dry run, review and
transfer, with pause, cancel and partial-failure recovery. Export packs live
databases into an archive. Archives can live on disk, behind http(s), in S3
(s3://bucket/key) or in Azure Blob Storage (azblob://container/blob).`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case debug:
			logging.SetGlobalLevel(zerolog.DebugLevel)
		case verbose:
			logging.SetGlobalLevel(zerolog.InfoLevel)
		default:
			logging.SetGlobalLevel(zerolog.WarnLevel)
		}
	},
}

// Execute runs the CLI with a context cancelled by SIGINT/SIGTERM, so a
// Ctrl+C during a transfer turns into a cooperative cancel.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/mongohaul/config)")
	rootCmd.PersistentFlags().StringVar(&mongoURI, "uri", "", "MongoDB connection string (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug output")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config file and applies flag overrides and the proxy
// password from the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if mongoURI != "" {
		cfg.Mongo.URI = mongoURI
	}
	if pw := os.Getenv("MONGOHAUL_PROXY_PASSWORD"); pw != "" {
		cfg.HTTP.ProxyPassword = pw
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
