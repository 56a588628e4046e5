package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/indexstore"
	"github.com/sha1n/search-every/internal/search"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query     string   `json:"query" jsonschema_description:"Query string over file names and text content (supports wildcards, phrases, +required and -excluded terms)"`
	Extension []string `json:"extension,omitempty" jsonschema_description:"Keep only files with one of these extensions (e.g., txt, md)"`
	MinSize   *uint64  `json:"min_size,omitempty" jsonschema_description:"Keep only files of at least this many bytes"`
	MaxSize   *uint64  `json:"max_size,omitempty" jsonschema_description:"Keep only files of at most this many bytes"`
	PathGlob  string   `json:"path_glob,omitempty" jsonschema_description:"Keep only paths matching this glob (e.g., /home/me/docs/**)"`
	IndexDir  string   `json:"index_dir,omitempty" jsonschema_description:"Index directory, defaults to the configured one"`
}

// SearchHandler handles the search_files MCP tool.
type SearchHandler struct {
	service Service
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(service Service) *SearchHandler {
	return &SearchHandler{
		service: service,
	}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	results, err := h.service.Query(ctx, h.buildRequest(args))
	switch {
	case errors.Is(err, indexstore.ErrIndexNotFound):
		return errorResult("No index found. Run run_pipeline or build_index first."), nil, nil
	case errors.Is(err, search.ErrInvalidQuery):
		return errorResult("Invalid query: %s", err), nil, nil
	case err != nil:
		return errorResult("Search failed: %s", err), nil, nil
	}

	return h.formatResults(results, args.Query), nil, nil
}

// buildRequest maps tool arguments to a query request. Filters are attached
// only when at least one is set.
func (h *SearchHandler) buildRequest(args SearchArgument) search.Request {
	req := search.Request{
		Query:    args.Query,
		IndexDir: args.IndexDir,
	}
	if len(args.Extension) > 0 || args.MinSize != nil || args.MaxSize != nil || args.PathGlob != "" {
		req.Filters = &search.Filters{
			Ext:      args.Extension,
			MinSize:  args.MinSize,
			MaxSize:  args.MaxSize,
			PathGlob: args.PathGlob,
		}
	}
	return req
}

// formatResults formats query results for the MCP response.
func (h *SearchHandler) formatResults(results []domain.SearchResult, queryStr string) *mcp.CallToolResult {
	if len(results) == 0 {
		return textResult(fmt.Sprintf("No results found for query: %s", queryStr))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s':\n\n", len(results), queryStr))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, r.Path))
		sb.WriteString(fmt.Sprintf("**Score**: %.4f", r.Score))
		if r.Size != nil {
			sb.WriteString(fmt.Sprintf(" | **Size**: %d", *r.Size))
		}
		sb.WriteString("\n")

		if r.Summary != nil && *r.Summary != "" {
			sb.WriteString("```\n")
			sb.WriteString(*r.Summary)
			sb.WriteString("\n```\n")
		}

		sb.WriteString("\n")
	}

	if len(results) == search.MaxResults {
		sb.WriteString(fmt.Sprintf("Showing the top %d results, refine the query to see more\n", search.MaxResults))
	}

	return textResult(sb.String())
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_files",
		Description: "Search indexed files by name and text content, ranked by relevance",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, service Service) {
	handler := NewSearchHandler(service)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
