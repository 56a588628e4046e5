package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ParseLogLevel maps a log_level setting to a slog level. An empty value is
// treated as info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log-level must be one of debug, info, warn, error, got: %s", s)
	}
}

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == TransportSSE {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
		logger.InfoContext(ctx, "Config: metrics.enabled", "value", s.Metrics.Enabled)
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	logger.InfoContext(ctx, "Config: log_level", "value", s.LogLevel)
	logger.InfoContext(ctx, "Config: state_dir", "value", s.StateDir)
	logger.InfoContext(ctx, "Config: index.dir", "value", s.Index.Dir)
	logger.InfoContext(ctx, "Config: index.scan_roots", "value", s.Index.ScanRoots)
	logger.InfoContext(ctx, "Config: index.exclude_patterns", "count", len(s.Index.ExcludePatterns))
	logger.InfoContext(ctx, "Config: index.enable_content_parse", "value", s.Index.EnableContentParse)
	logger.InfoContext(ctx, "Config: index.max_file_size_mb", "value", s.Index.MaxFileSizeMB)
	logger.InfoContext(ctx, "Config: index.follow_symlinks", "value", s.Index.FollowSymlinks)

	logger.InfoContext(ctx, "Config: auto_scan.enabled", "value", s.AutoScan.Enabled)
	if s.AutoScan.Enabled {
		logger.InfoContext(ctx, "Config: auto_scan.interval", "value", s.AutoScan.Interval)
		logger.InfoContext(ctx, "Config: auto_scan.idle_cpu_percent", "value", s.AutoScan.IdleCPUPercent)
	}
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", "****"),
	)
}

// IndexSettingsLogValue returns a slog.Value for IndexSettings
func IndexSettingsLogValue(s IndexSettings) slog.Value {
	return slog.GroupValue(
		slog.String("dir", s.Dir),
		slog.Any("scan_roots", s.ScanRoots),
		slog.Int("exclude_patterns", len(s.ExcludePatterns)),
		slog.Bool("enable_content_parse", s.EnableContentParse),
		slog.Uint64("max_file_size_mb", s.MaxFileSizeMB),
		slog.Bool("follow_symlinks", s.FollowSymlinks),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.String("log_level", s.LogLevel),
		slog.String("state_dir", s.StateDir),
		slog.Any("index", IndexSettingsLogValue(s.Index)),
		slog.Bool("auto_scan", s.AutoScan.Enabled),
		slog.Bool("metrics", s.Metrics.Enabled),
	)
}
