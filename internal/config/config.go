package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys shared by the CLI flags, the AZCTL_* environment and viper.
const (
	KeyAzuriteURL    = "azurite-url"
	KeyLog           = "log"
	KeyVerbose       = "verbose"
	KeyLogLevel      = "log-level"
	KeyContainerName = "container-name"
	KeyBlobName      = "blob-name"
	KeyTimeout       = "timeout"
	KeyPageSize      = "page-size"
	KeyDelimiter     = "delimiter"
	KeyTLS           = "tls"
	KeyAccountName   = "account-name"
	KeyAccountKey    = "account-key"

	KeyPort    = "port"
	KeyDataDir = "data-dir"

	// EnvPrefix is prepended to every environment variable name.
	EnvPrefix = "AZCTL"
)

// Defaults.
const (
	DefaultAzuriteURL    = "https://127.0.1:10000"
	DefaultContainerName = "default"
	DefaultTimeout       = 30 * time.Second
	DefaultLogLevel      = "info"
	DefaultEmulatorPort  = 10000
	DefaultDataDir       = "./data"
)

// Config holds the client-side settings for one azctl invocation.
type Config struct {
	// AzuriteURL is the emulator endpoint, e.g. http://127.0.0.1:10000.
	AzuriteURL string

	// LogFile, when set, receives a copy of every log entry.
	LogFile string

	// LogLevel controls the verbosity of logging (debug, info, warn, error).
	// Any --verbose count raises it to debug.
	LogLevel string

	// ContainerName is the container targeted by container and blob operations.
	ContainerName string

	// BlobName overrides the remote name used by --put-blob. Empty keeps the
	// local file path as the blob name.
	BlobName string

	// Timeout bounds every backend operation. Zero disables the bound.
	Timeout time.Duration

	// PageSize is the maxresults hint sent with listing requests. Zero lets
	// the backend choose.
	PageSize int

	// Delimiter enables hierarchical blob listing.
	Delimiter string

	// TLS connects to the emulator over https.
	TLS bool

	// AccountName and AccountKey override the development credential.
	AccountName string
	AccountKey  string
}

// EmulatorConfig holds the settings of the in-process emulator.
type EmulatorConfig struct {
	// Port is the HTTP port the emulator listens on.
	Port int

	// DataDir is the base directory where blob data is stored.
	DataDir string

	// LogLevel controls the verbosity of logging.
	LogLevel string
}

// Load builds a Config from flags and environment bound to v.
func Load(v *viper.Viper) *Config {
	cfg := &Config{
		AzuriteURL:    strings.TrimSpace(v.GetString(KeyAzuriteURL)),
		LogFile:       strings.TrimSpace(v.GetString(KeyLog)),
		LogLevel:      strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		ContainerName: v.GetString(KeyContainerName),
		BlobName:      v.GetString(KeyBlobName),
		Timeout:       v.GetDuration(KeyTimeout),
		PageSize:      v.GetInt(KeyPageSize),
		Delimiter:     v.GetString(KeyDelimiter),
		TLS:           v.GetBool(KeyTLS),
		AccountName:   strings.TrimSpace(v.GetString(KeyAccountName)),
		AccountKey:    strings.TrimSpace(v.GetString(KeyAccountKey)),
	}
	if cfg.AzuriteURL == "" {
		cfg.AzuriteURL = DefaultAzuriteURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if v.GetInt(KeyVerbose) > 0 {
		cfg.LogLevel = "debug"
	}
	return cfg
}

// Validate performs basic validation on the configuration.
// The endpoint itself is checked by the storage facade.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s (must not be negative)", c.Timeout)
	}
	if c.PageSize < 0 || c.PageSize > 5000 {
		return fmt.Errorf("invalid page size: %d (must be 0-5000)", c.PageSize)
	}
	if (c.AccountName == "") != (c.AccountKey == "") {
		return fmt.Errorf("account name and account key must be set together")
	}
	return nil
}

// LoadEmulator builds an EmulatorConfig from flags and environment bound to v.
func LoadEmulator(v *viper.Viper) *EmulatorConfig {
	cfg := &EmulatorConfig{
		Port:     v.GetInt(KeyPort),
		DataDir:  strings.TrimSpace(v.GetString(KeyDataDir)),
		LogLevel: strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultEmulatorPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if v.GetInt(KeyVerbose) > 0 {
		cfg.LogLevel = "debug"
	}
	return cfg
}

// Validate performs basic validation on the emulator configuration.
func (c *EmulatorConfig) Validate() error {
	if c.Port <= 0 || c.Port >= 65536 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	return nil
}

// NewViper returns a viper instance reading AZCTL_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}
