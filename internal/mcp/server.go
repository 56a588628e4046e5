package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/search-every/internal/config"
	"github.com/sha1n/search-every/internal/diagnostics"
	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/events"
	"github.com/sha1n/search-every/internal/indexer"
	"github.com/sha1n/search-every/internal/pipeline"
	"github.com/sha1n/search-every/internal/scanner"
	"github.com/sha1n/search-every/internal/search"
)

// Service is the command surface the tools call into.
type Service interface {
	Settings() *config.Settings
	Scan(ctx context.Context, opts scanner.Options) ([]domain.FileRecord, error)
	BuildIndex(ctx context.Context, files []domain.FileRecord, opts indexer.Options) (indexer.Result, error)
	Query(ctx context.Context, req search.Request) ([]domain.SearchResult, error)
	DetectDuplicates(ctx context.Context, paths []string) ([]domain.DupGroup, error)
	ScanAndIndexPipeline(ctx context.Context, opts pipeline.Options, sink events.Sink) (pipeline.Summary, error)
	StartAutoScanNow() error
	Diagnostics(ctx context.Context) diagnostics.Report
}

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	Service Service
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Service != nil {
		RegisterSearchTool(s, cfg.Service)
		RegisterIndexTools(s, cfg.Service)
		RegisterAdminTools(s, cfg.Service)
	}

	return s
}
