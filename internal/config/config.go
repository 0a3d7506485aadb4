// Package config provides configuration management for mongohaul.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Config is the single configuration source for the CLI and TUI.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\mongohaul\config
//   - Unix: ~/.config/mongohaul/config
//
// INI format:
//
//	[mongo]
//	uri = mongodb://localhost:27017
//	compressors = snappy
//	connect_timeout_seconds = 10
//
//	[transfer]
//	batch_size = 1000
//	disk_safety_margin = 1.2
//
//	[http]
//	proxy_mode = no-proxy
//	proxy_host =
//	proxy_port = 8080
//	proxy_user =
//	no_proxy =
//
//	[notifications]
//	enabled = true
//	show_transfer_complete = true
//	show_transfer_failed = true
type Config struct {
	Mongo         MongoConfig
	Transfer      TransferConfig
	HTTP          HTTPConfig
	Notifications NotificationConfig
}

// MongoConfig contains destination deployment settings.
type MongoConfig struct {
	// URI is the MongoDB connection string. Credentials travel inside it and
	// are never logged unredacted.
	URI string `ini:"uri"`

	// Compressors is a comma-separated wire compressor list.
	// Default: "snappy"
	Compressors string `ini:"compressors"`

	// ConnectTimeoutSeconds bounds dialing and the verification ping.
	// Minimum: 1, Maximum: 300, Default: 10
	ConnectTimeoutSeconds int `ini:"connect_timeout_seconds"`
}

// TransferConfig contains settings for the transfer engine.
type TransferConfig struct {
	// BatchSize caps documents per insert batch.
	// Minimum: 1, Maximum: 100000, Default: 1000
	BatchSize int `ini:"batch_size"`

	// DiskSafetyMargin scales the free-space requirement before staging an
	// export. Default: 1.2
	DiskSafetyMargin float64 `ini:"disk_safety_margin"`
}

// HTTPConfig contains proxy settings for remote archive fetches.
type HTTPConfig struct {
	// ProxyMode is one of "no-proxy", "system", "basic" or "ntlm".
	// Default: "no-proxy"
	ProxyMode string `ini:"proxy_mode"`

	// ProxyHost is required for basic and ntlm modes.
	ProxyHost string `ini:"proxy_host"`

	// ProxyPort defaults to 8080 when unset.
	ProxyPort int `ini:"proxy_port"`

	// ProxyUser authenticates against the proxy. The password is deliberately
	// not persisted; it is prompted for or taken from MONGOHAUL_PROXY_PASSWORD.
	ProxyUser string `ini:"proxy_user"`

	// ProxyPassword is runtime-only and never written to disk.
	ProxyPassword string `ini:"-"`

	// NoProxy is a comma-separated bypass list of hosts and CIDRs.
	NoProxy string `ini:"no_proxy"`
}

// NotificationConfig contains settings for desktop notifications.
type NotificationConfig struct {
	// Enabled indicates whether notifications are shown.
	// Default: true
	Enabled bool `ini:"enabled"`

	// ShowTransferComplete shows a notification when a transfer completes.
	// Default: true
	ShowTransferComplete bool `ini:"show_transfer_complete"`

	// ShowTransferFailed shows a notification when a transfer fails.
	// Default: true
	ShowTransferFailed bool `ini:"show_transfer_failed"`
}

// Validation errors
var (
	ErrMissingURI            = errors.New("mongo uri is required")
	ErrInvalidConnectTimeout = errors.New("connect_timeout_seconds must be between 1 and 300")
	ErrInvalidBatchSize      = errors.New("batch_size must be between 1 and 100000")
	ErrInvalidSafetyMargin   = errors.New("disk_safety_margin must be at least 1.0")
	ErrInvalidProxyMode      = errors.New("proxy_mode must be one of: no-proxy, system, basic, ntlm")
	ErrMissingProxyHost      = errors.New("proxy_host is required for basic and ntlm proxy modes")
	ErrUnknownKey            = errors.New("unknown configuration key")
)

// DefaultConfigPath returns the default path for the config file.
// - Windows: %USERPROFILE%\.config\mongohaul\config
// - Unix: ~/.config/mongohaul/config
func DefaultConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", "mongohaul")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "mongohaul")
	}

	return filepath.Join(configDir, "config"), nil
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Mongo: MongoConfig{
			URI:                   "mongodb://localhost:27017",
			Compressors:           "snappy",
			ConnectTimeoutSeconds: 10,
		},
		Transfer: TransferConfig{
			BatchSize:        1000,
			DiskSafetyMargin: 1.2,
		},
		HTTP: HTTPConfig{
			ProxyMode: "no-proxy",
			ProxyPort: 8080,
		},
		Notifications: NotificationConfig{
			Enabled:              true,
			ShowTransferComplete: true,
			ShowTransferFailed:   true,
		},
	}
}

// Load loads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil // Return defaults if we can't determine path
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // Return defaults if config doesn't exist
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	mongoSection := iniFile.Section("mongo")
	cfg.Mongo.URI = mongoSection.Key("uri").MustString(cfg.Mongo.URI)
	cfg.Mongo.Compressors = mongoSection.Key("compressors").MustString(cfg.Mongo.Compressors)
	cfg.Mongo.ConnectTimeoutSeconds = mongoSection.Key("connect_timeout_seconds").MustInt(cfg.Mongo.ConnectTimeoutSeconds)

	transferSection := iniFile.Section("transfer")
	cfg.Transfer.BatchSize = transferSection.Key("batch_size").MustInt(cfg.Transfer.BatchSize)
	cfg.Transfer.DiskSafetyMargin = transferSection.Key("disk_safety_margin").MustFloat64(cfg.Transfer.DiskSafetyMargin)

	httpSection := iniFile.Section("http")
	cfg.HTTP.ProxyMode = httpSection.Key("proxy_mode").MustString(cfg.HTTP.ProxyMode)
	cfg.HTTP.ProxyHost = httpSection.Key("proxy_host").String()
	cfg.HTTP.ProxyPort = httpSection.Key("proxy_port").MustInt(cfg.HTTP.ProxyPort)
	cfg.HTTP.ProxyUser = httpSection.Key("proxy_user").String()
	cfg.HTTP.NoProxy = httpSection.Key("no_proxy").String()

	notifySection := iniFile.Section("notifications")
	cfg.Notifications.Enabled = notifySection.Key("enabled").MustBool(true)
	cfg.Notifications.ShowTransferComplete = notifySection.Key("show_transfer_complete").MustBool(true)
	cfg.Notifications.ShowTransferFailed = notifySection.Key("show_transfer_failed").MustBool(true)

	return cfg, nil
}

// Save saves configuration to an INI file.
// Creates parent directories if they don't exist.
// The URI can embed credentials - the file is written owner-only.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	mongoSection, err := iniFile.NewSection("mongo")
	if err != nil {
		return fmt.Errorf("failed to create mongo section: %w", err)
	}
	mongoSection.Key("uri").SetValue(cfg.Mongo.URI)
	mongoSection.Key("compressors").SetValue(cfg.Mongo.Compressors)
	mongoSection.Key("connect_timeout_seconds").SetValue(strconv.Itoa(cfg.Mongo.ConnectTimeoutSeconds))

	transferSection, err := iniFile.NewSection("transfer")
	if err != nil {
		return fmt.Errorf("failed to create transfer section: %w", err)
	}
	transferSection.Key("batch_size").SetValue(strconv.Itoa(cfg.Transfer.BatchSize))
	transferSection.Key("disk_safety_margin").SetValue(strconv.FormatFloat(cfg.Transfer.DiskSafetyMargin, 'f', -1, 64))

	httpSection, err := iniFile.NewSection("http")
	if err != nil {
		return fmt.Errorf("failed to create http section: %w", err)
	}
	httpSection.Key("proxy_mode").SetValue(cfg.HTTP.ProxyMode)
	httpSection.Key("proxy_host").SetValue(cfg.HTTP.ProxyHost)
	httpSection.Key("proxy_port").SetValue(strconv.Itoa(cfg.HTTP.ProxyPort))
	httpSection.Key("proxy_user").SetValue(cfg.HTTP.ProxyUser)
	httpSection.Key("no_proxy").SetValue(cfg.HTTP.NoProxy)

	notifySection, err := iniFile.NewSection("notifications")
	if err != nil {
		return fmt.Errorf("failed to create notifications section: %w", err)
	}
	notifySection.Key("enabled").SetValue(fmt.Sprintf("%t", cfg.Notifications.Enabled))
	notifySection.Key("show_transfer_complete").SetValue(fmt.Sprintf("%t", cfg.Notifications.ShowTransferComplete))
	notifySection.Key("show_transfer_failed").SetValue(fmt.Sprintf("%t", cfg.Notifications.ShowTransferFailed))

	// Temporary file + rename for atomicity; the URI may carry credentials so
	// permissions are restricted before the file lands at its final path.
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is usable.
// Returns nil if valid, or an error describing what's wrong.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Mongo.URI) == "" {
		return ErrMissingURI
	}
	if cfg.Mongo.ConnectTimeoutSeconds < 1 || cfg.Mongo.ConnectTimeoutSeconds > 300 {
		return ErrInvalidConnectTimeout
	}
	if cfg.Transfer.BatchSize < 1 || cfg.Transfer.BatchSize > 100000 {
		return ErrInvalidBatchSize
	}
	if cfg.Transfer.DiskSafetyMargin < 1.0 {
		return ErrInvalidSafetyMargin
	}

	switch strings.ToLower(cfg.HTTP.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if strings.TrimSpace(cfg.HTTP.ProxyHost) == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	return nil
}

// CompressorList splits the configured compressors into driver form.
func (cfg *Config) CompressorList() []string {
	var out []string
	for _, c := range strings.Split(cfg.Mongo.Compressors, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// SettableKeys lists the dotted keys accepted by Set, for help output.
func SettableKeys() []string {
	return []string{
		"mongo.uri",
		"mongo.compressors",
		"mongo.connect_timeout_seconds",
		"transfer.batch_size",
		"transfer.disk_safety_margin",
		"http.proxy_mode",
		"http.proxy_host",
		"http.proxy_port",
		"http.proxy_user",
		"http.no_proxy",
		"notifications.enabled",
		"notifications.show_transfer_complete",
		"notifications.show_transfer_failed",
	}
}

// Set applies one dotted-key assignment, parsing the value to the field's
// type. Used by the "config set" command.
func (cfg *Config) Set(key, value string) error {
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("%s expects true or false, got %q", key, value)
		}
		return b, nil
	}
	parseInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s expects a number, got %q", key, value)
		}
		return n, nil
	}

	switch key {
	case "mongo.uri":
		cfg.Mongo.URI = value
	case "mongo.compressors":
		cfg.Mongo.Compressors = value
	case "mongo.connect_timeout_seconds":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Mongo.ConnectTimeoutSeconds = n
	case "transfer.batch_size":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.Transfer.BatchSize = n
	case "transfer.disk_safety_margin":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s expects a number, got %q", key, value)
		}
		cfg.Transfer.DiskSafetyMargin = f
	case "http.proxy_mode":
		cfg.HTTP.ProxyMode = value
	case "http.proxy_host":
		cfg.HTTP.ProxyHost = value
	case "http.proxy_port":
		n, err := parseInt()
		if err != nil {
			return err
		}
		cfg.HTTP.ProxyPort = n
	case "http.proxy_user":
		cfg.HTTP.ProxyUser = value
	case "http.no_proxy":
		cfg.HTTP.NoProxy = value
	case "notifications.enabled":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Notifications.Enabled = b
	case "notifications.show_transfer_complete":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Notifications.ShowTransferComplete = b
	case "notifications.show_transfer_failed":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Notifications.ShowTransferFailed = b
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}
