package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/search-every/internal/autoscan"
)

// DuplicatesArgument defines detect_duplicates parameters.
type DuplicatesArgument struct {
	Paths []string `json:"paths" jsonschema_description:"Absolute file paths to compare by content hash and by file name"`
}

// NoArgument is the input of tools without parameters.
type NoArgument struct{}

// AdminHandler handles the detect_duplicates, start_auto_scan and diagnostics
// tools.
type AdminHandler struct {
	service Service
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(service Service) *AdminHandler {
	return &AdminHandler{
		service: service,
	}
}

// HandleDuplicates groups the given paths into duplicate sets.
func (h *AdminHandler) HandleDuplicates(ctx context.Context, req *mcp.CallToolRequest, args DuplicatesArgument) (*mcp.CallToolResult, any, error) {
	paths := make([]string, 0, len(args.Paths))
	for _, p := range args.Paths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return errorResult("Paths cannot be empty"), nil, nil
	}

	groups, err := h.service.DetectDuplicates(ctx, paths)
	if err != nil {
		return errorResult("Duplicate detection failed: %s", err), nil, nil
	}
	return jsonResult(groups), nil, nil
}

// HandleStartAutoScan launches a background scan over the configured roots.
func (h *AdminHandler) HandleStartAutoScan(ctx context.Context, req *mcp.CallToolRequest, args NoArgument) (*mcp.CallToolResult, any, error) {
	err := h.service.StartAutoScanNow()
	switch {
	case errors.Is(err, autoscan.ErrAutoScanRunning):
		return errorResult("An auto scan is already running"), nil, nil
	case err != nil:
		return errorResult("Failed to start auto scan: %s", err), nil, nil
	}
	return textResult("Auto scan started"), nil, nil
}

// HandleDiagnostics reports index, run state and host health.
func (h *AdminHandler) HandleDiagnostics(ctx context.Context, req *mcp.CallToolRequest, args NoArgument) (*mcp.CallToolResult, any, error) {
	return jsonResult(h.service.Diagnostics(ctx)), nil, nil
}

// RegisterAdminTools registers detect_duplicates, start_auto_scan and
// diagnostics.
func RegisterAdminTools(server *mcp.Server, service Service) {
	handler := NewAdminHandler(service)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "detect_duplicates",
		Description: "Group files with identical content and files sharing a name",
	}, handler.HandleDuplicates)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_auto_scan",
		Description: "Start a background scan of the configured roots without content parsing",
	}, handler.HandleStartAutoScan)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "diagnostics",
		Description: "Report index health, last run state and host resources",
	}, handler.HandleDiagnostics)
}
