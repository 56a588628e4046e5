package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sha1n/search-every/internal/scanner"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by LoadSettings.
const EnvPrefix = "SEARCH_EVERY"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Transport constants
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// IndexSettings configuration for scanning and indexing
type IndexSettings struct {
	Dir                string   `mapstructure:"dir"`
	ScanRoots          []string `mapstructure:"scan_roots"`
	ExcludePatterns    []string `mapstructure:"exclude_patterns"`
	EnableContentParse bool     `mapstructure:"enable_content_parse"`
	MaxFileSizeMB      uint64   `mapstructure:"max_file_size_mb"` // 0 means no cap
	FollowSymlinks     bool     `mapstructure:"follow_symlinks"`
}

// AutoScanSettings configuration for the daily background scan
type AutoScanSettings struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	IdleCPUPercent float64       `mapstructure:"idle_cpu_percent"`
}

// MetricsSettings configuration for the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

// Settings application settings
type Settings struct {
	Transport string           `mapstructure:"transport"`
	Host      string           `mapstructure:"host"`
	Port      int              `mapstructure:"port"`
	Auth      AuthSettings     `mapstructure:"auth"`
	LogLevel  string           `mapstructure:"log_level"`
	StateDir  string           `mapstructure:"state_dir"`
	Index     IndexSettings    `mapstructure:"index"`
	AutoScan  AutoScanSettings `mapstructure:"auto_scan"`
	Metrics   MetricsSettings  `mapstructure:"metrics"`
}

// MaxFileSize returns the scan size cap, or nil when uncapped.
func (s IndexSettings) MaxFileSize() *uint64 {
	if s.MaxFileSizeMB == 0 {
		return nil
	}
	v := s.MaxFileSizeMB
	return &v
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", TransportStdio)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)
	v.SetDefault("log_level", "info")
	v.SetDefault("state_dir", defaultStateDir())

	// Index defaults; an unset index dir lives under the state dir
	v.SetDefault("index.dir", "")
	v.SetDefault("index.scan_roots", defaultScanRoots())
	v.SetDefault("index.exclude_patterns", scanner.DefaultExcludePatterns())
	v.SetDefault("index.enable_content_parse", true)
	v.SetDefault("index.max_file_size_mb", uint64(500))
	v.SetDefault("index.follow_symlinks", false)

	// Auto scan and metrics defaults
	v.SetDefault("auto_scan.enabled", true)
	v.SetDefault("auto_scan.interval", 30*time.Minute)
	v.SetDefault("auto_scan.idle_cpu_percent", 30.0)
	v.SetDefault("metrics.enabled", true)

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	for _, key := range []string{
		"auth.type",
		"auth.basic.username",
		"auth.basic.password",
		"auth.api_keys",
		"index.dir",
		"index.scan_roots",
		"index.exclude_patterns",
		"index.enable_content_parse",
		"index.max_file_size_mb",
		"index.follow_symlinks",
		"auto_scan.enabled",
		"auto_scan.interval",
		"auto_scan.idle_cpu_percent",
		"metrics.enabled",
	} {
		_ = v.BindEnv(key, envName(key))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for key, flag := range flagBindings {
			if f := flags.Lookup(flag); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Comma-separated env values arrive as a single element
	settings.Auth.APIKeys = splitList(settings.Auth.APIKeys, envName("auth.api_keys"))
	settings.Index.ScanRoots = splitList(settings.Index.ScanRoots, envName("index.scan_roots"))
	settings.Index.ExcludePatterns = splitList(settings.Index.ExcludePatterns, envName("index.exclude_patterns"))

	for i := range settings.Index.ScanRoots {
		settings.Index.ScanRoots[i] = expandHomeDir(settings.Index.ScanRoots[i])
	}
	settings.StateDir = expandHomeDir(settings.StateDir)
	settings.Index.Dir = expandHomeDir(settings.Index.Dir)
	if settings.Index.Dir == "" && settings.StateDir != "" {
		settings.Index.Dir = filepath.Join(settings.StateDir, "index")
	}

	return &settings, nil
}

// flagBindings maps settings keys to CLI flag names.
var flagBindings = map[string]string{
	"transport":                  "transport",
	"host":                       "host",
	"port":                       "port",
	"auth.type":                  "auth-type",
	"auth.basic.username":        "auth-basic-username",
	"auth.basic.password":        "auth-basic-password",
	"auth.api_keys":              "auth-api-keys",
	"log_level":                  "log-level",
	"state_dir":                  "state-dir",
	"index.dir":                  "index-dir",
	"index.scan_roots":           "scan-roots",
	"index.exclude_patterns":     "exclude-patterns",
	"index.enable_content_parse": "content-parse",
	"index.max_file_size_mb":     "max-file-size-mb",
	"index.follow_symlinks":      "follow-symlinks",
	"auto_scan.enabled":          "auto-scan",
	"auto_scan.interval":         "auto-scan-interval",
	"auto_scan.idle_cpu_percent": "auto-scan-idle-cpu",
	"metrics.enabled":            "metrics",
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// splitList splits a single comma-separated element when the value came from
// env, trims entries and drops empty ones.
func splitList(values []string, env string) []string {
	if raw := os.Getenv(env); raw != "" {
		if len(values) == 0 || (len(values) == 1 && strings.Contains(values[0], ",")) {
			values = strings.Split(raw, ",")
		}
	}

	result := make([]string, 0, len(values))
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}

// defaultStateDir returns the default directory for the index and run state
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".search-every"
	}
	return filepath.Join(home, ".search-every")
}

// defaultScanRoots returns every existing drive on Windows and the home
// directory elsewhere
func defaultScanRoots() []string {
	if runtime.GOOS == "windows" {
		var drives []string
		for c := 'A'; c <= 'Z'; c++ {
			d := string(c) + `:\`
			if _, err := os.Stat(d); err == nil {
				drives = append(drives, d)
			}
		}
		if len(drives) == 0 {
			return []string{`C:\`}
		}
		return drives
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return []string{"~"}
	}
	return []string{home}
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete auth config.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case TransportStdio, TransportSSE:
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	if _, err := ParseLogLevel(s.LogLevel); err != nil {
		return err
	}

	if strings.TrimSpace(s.StateDir) == "" {
		return errors.New("state-dir cannot be empty")
	}

	if err := validateIndexSettings(&s.Index); err != nil {
		return err
	}

	return validateAutoScanSettings(&s.AutoScan)
}

// validateIndexSettings validates the index configuration
func validateIndexSettings(i *IndexSettings) error {
	if strings.TrimSpace(i.Dir) == "" {
		return errors.New("index-dir cannot be empty")
	}
	return nil
}

// validateAutoScanSettings validates the auto scan configuration
func validateAutoScanSettings(a *AutoScanSettings) error {
	if !a.Enabled {
		return nil // No validation needed when disabled
	}

	if a.Interval <= 0 {
		return errors.New("auto-scan-interval must be positive")
	}

	if a.IdleCPUPercent <= 0 || a.IdleCPUPercent > 100 {
		return fmt.Errorf("auto-scan-idle-cpu must be in (0, 100], got: %v", a.IdleCPUPercent)
	}

	return nil
}
