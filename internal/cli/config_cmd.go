package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mongohaul/mongohaul/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("mongo.uri = %s\n", redactedURI(cfg.Mongo.URI))
		fmt.Printf("mongo.compressors = %s\n", cfg.Mongo.Compressors)
		fmt.Printf("mongo.connect_timeout_seconds = %d\n", cfg.Mongo.ConnectTimeoutSeconds)
		fmt.Printf("transfer.batch_size = %d\n", cfg.Transfer.BatchSize)
		fmt.Printf("transfer.disk_safety_margin = %g\n", cfg.Transfer.DiskSafetyMargin)
		fmt.Printf("http.proxy_mode = %s\n", cfg.HTTP.ProxyMode)
		fmt.Printf("http.proxy_host = %s\n", cfg.HTTP.ProxyHost)
		fmt.Printf("http.proxy_port = %d\n", cfg.HTTP.ProxyPort)
		fmt.Printf("http.proxy_user = %s\n", cfg.HTTP.ProxyUser)
		fmt.Printf("http.no_proxy = %s\n", cfg.HTTP.NoProxy)
		fmt.Printf("notifications.enabled = %t\n", cfg.Notifications.Enabled)
		fmt.Printf("notifications.show_transfer_complete = %t\n", cfg.Notifications.ShowTransferComplete)
		fmt.Printf("notifications.show_transfer_failed = %t\n", cfg.Notifications.ShowTransferFailed)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting and save the config file",
	Long: "Change one setting and save the config file.\n\nKeys:\n  " +
		strings.Join(config.SettableKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("refusing to save: %w", err)
		}
		if err := config.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Printf("%s set\n", args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			var err error
			path, err = config.DefaultConfigPath()
			if err != nil {
				return err
			}
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

// redactedURI hides the credential section of a connection string.
func redactedURI(uri string) string {
	scheme := strings.Index(uri, "://")
	if scheme < 0 {
		return uri
	}
	at := strings.Index(uri[scheme+3:], "@")
	if at < 0 {
		return uri
	}
	return uri[:scheme+3] + "***" + uri[scheme+3+at:]
}
