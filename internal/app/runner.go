package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/search-every/internal/config"
	mcputil "github.com/sha1n/search-every/internal/mcp"
	"github.com/sha1n/search-every/internal/service"
	"github.com/spf13/pflag"
)

// ServerName is the MCP implementation name.
const ServerName = "search-every"

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings) error
	CreateServer      func(*config.Settings, string) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, err := loadValidSettings(params.LoadSettings, params.ValidSettings, flags)
	if err != nil {
		return err
	}

	slog.Info("Starting search-every MCP server", "version", version)
	config.Log(settings)

	mcpServer, cleanup, err := params.CreateServer(settings, version)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Start server
	if settings.Transport == config.TransportStdio {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	}

	slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
	return params.StartSSEServer(mcpServer, settings)
}

// loadValidSettings loads and validates settings, then configures logging.
func loadValidSettings(
	load func(*pflag.FlagSet) (*config.Settings, error),
	validate func(*config.Settings) error,
	flags *pflag.FlagSet,
) (*config.Settings, error) {
	settings, err := load(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := validate(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ConfigureLogging(settings.LogLevel)
	return settings, nil
}

// ConfigureLogging installs a text handler on stderr as the default logger.
// Stdout is reserved for the stdio transport and command output.
func ConfigureLogging(level string) {
	lvl, err := config.ParseLogLevel(level)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
	if err != nil {
		slog.Warn("Invalid log level, using info", "error", err)
	}
}

// CreateMCPServer creates the service, starts the auto scan scheduler when
// enabled and returns the MCP server with all tools registered. The cleanup
// function stops the scheduler and closes the service.
func CreateMCPServer(settings *config.Settings, version string) (*mcp.Server, func(), error) {
	svc, err := service.NewService(settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	// Scheduler runs in a background context, not tied to any request
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.RunAutoScan(ctx)
	}()

	cleanup := func() {
		cancel()
		<-done
		if err := svc.Close(); err != nil {
			slog.Error("Failed to close service", "error", err)
		}
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    ServerName,
		Version: version,
		Service: svc,
	})

	return server, cleanup, nil
}
