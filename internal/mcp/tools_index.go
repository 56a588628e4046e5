package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/indexer"
	"github.com/sha1n/search-every/internal/indexstore"
	"github.com/sha1n/search-every/internal/pipeline"
	"github.com/sha1n/search-every/internal/scanner"
)

// maxListedFiles caps the records echoed back by scan_files.
const maxListedFiles = 200

// ScanArgument defines scan parameters. Empty fields fall back to the
// configured scan settings.
type ScanArgument struct {
	Roots           []string `json:"roots,omitempty" jsonschema_description:"Directories to scan, defaults to the configured scan roots"`
	ExcludePatterns []string `json:"exclude_patterns,omitempty" jsonschema_description:"Path substrings to exclude, defaults to the configured exclusions"`
	MaxFileSizeMB   *uint64  `json:"max_file_size_mb,omitempty" jsonschema_description:"Skip files larger than this many megabytes"`
	FollowSymlinks  *bool    `json:"follow_symlinks,omitempty" jsonschema_description:"Follow symbolic links to directories"`
}

// IndexArgument defines build_index and run_pipeline parameters.
type IndexArgument struct {
	Roots              []string `json:"roots,omitempty" jsonschema_description:"Directories to scan, defaults to the configured scan roots"`
	ExcludePatterns    []string `json:"exclude_patterns,omitempty" jsonschema_description:"Path substrings to exclude, defaults to the configured exclusions"`
	IndexDir           string   `json:"index_dir,omitempty" jsonschema_description:"Index directory, defaults to the configured one"`
	EnableContentParse *bool    `json:"enable_content_parse,omitempty" jsonschema_description:"Index the text content of txt, md, csv, log, json, xml, ini, conf, yaml and yml files"`
}

// ScanOutput is the scan_files result.
type ScanOutput struct {
	Total     int                 `json:"total"`
	Files     []domain.FileRecord `json:"files"`
	Truncated bool                `json:"truncated,omitempty"`
}

// IndexHandler handles the scan_files, build_index and run_pipeline tools.
type IndexHandler struct {
	service Service
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(service Service) *IndexHandler {
	return &IndexHandler{
		service: service,
	}
}

// HandleScan lists the files a scan would index.
func (h *IndexHandler) HandleScan(ctx context.Context, req *mcp.CallToolRequest, args ScanArgument) (*mcp.CallToolResult, any, error) {
	idx := h.service.Settings().Index
	opts := scanner.Options{
		Roots:           orDefault(args.Roots, idx.ScanRoots),
		ExcludePatterns: orDefault(args.ExcludePatterns, idx.ExcludePatterns),
		MaxFileSizeMB:   args.MaxFileSizeMB,
		FollowSymlinks:  idx.FollowSymlinks,
	}
	if opts.MaxFileSizeMB == nil {
		opts.MaxFileSizeMB = idx.MaxFileSize()
	}
	if args.FollowSymlinks != nil {
		opts.FollowSymlinks = *args.FollowSymlinks
	}

	files, err := h.service.Scan(ctx, opts)
	if err != nil {
		return errorResult("Scan failed: %s", err), nil, nil
	}

	out := ScanOutput{Total: len(files), Files: files}
	if len(files) > maxListedFiles {
		out.Files = files[:maxListedFiles]
		out.Truncated = true
	}
	return jsonResult(out), nil, nil
}

// HandleBuild scans and then indexes every file in one commit.
func (h *IndexHandler) HandleBuild(ctx context.Context, req *mcp.CallToolRequest, args IndexArgument) (*mcp.CallToolResult, any, error) {
	idx := h.service.Settings().Index
	files, err := h.service.Scan(ctx, scanner.Options{
		Roots:           orDefault(args.Roots, idx.ScanRoots),
		ExcludePatterns: orDefault(args.ExcludePatterns, idx.ExcludePatterns),
		MaxFileSizeMB:   idx.MaxFileSize(),
		FollowSymlinks:  idx.FollowSymlinks,
	})
	if err != nil {
		return errorResult("Scan failed: %s", err), nil, nil
	}

	res, err := h.service.BuildIndex(ctx, files, indexer.Options{
		IndexDir:           args.IndexDir,
		EnableContentParse: boolOrDefault(args.EnableContentParse, idx.EnableContentParse),
		Mode:               indexstore.CommitOnce,
	})
	if err != nil {
		return indexErrorResult("Index build failed", err), nil, nil
	}
	return jsonResult(res), nil, nil
}

// HandlePipeline runs the streaming scan-and-index pipeline to completion.
func (h *IndexHandler) HandlePipeline(ctx context.Context, req *mcp.CallToolRequest, args IndexArgument) (*mcp.CallToolResult, any, error) {
	idx := h.service.Settings().Index
	summary, err := h.service.ScanAndIndexPipeline(ctx, pipeline.Options{
		Roots:              orDefault(args.Roots, idx.ScanRoots),
		ExcludePatterns:    orDefault(args.ExcludePatterns, idx.ExcludePatterns),
		IndexDir:           args.IndexDir,
		EnableContentParse: boolOrDefault(args.EnableContentParse, idx.EnableContentParse),
	}, nil)
	if err != nil {
		return indexErrorResult("Pipeline failed", err), nil, nil
	}
	return jsonResult(summary), nil, nil
}

// RegisterIndexTools registers scan_files, build_index and run_pipeline.
func RegisterIndexTools(server *mcp.Server, service Service) {
	handler := NewIndexHandler(service)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_files",
		Description: "List the files under the scan roots that pass the exclusion and size filters",
	}, handler.HandleScan)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_index",
		Description: "Scan the roots and index every file, making all documents visible in one commit",
	}, handler.HandleBuild)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_pipeline",
		Description: "Scan the roots and index files concurrently as they are found",
	}, handler.HandlePipeline)
}

func indexErrorResult(prefix string, err error) *mcp.CallToolResult {
	if errors.Is(err, indexstore.ErrWriterBusy) {
		return errorResult("%s: the index is being written by another process, try again later", prefix)
	}
	return errorResult("%s: %s", prefix, err)
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}

func boolOrDefault(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
