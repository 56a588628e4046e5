package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/sha1n/search-every/internal/config"
	"github.com/sha1n/search-every/internal/events"
	"github.com/sha1n/search-every/internal/indexer"
	"github.com/sha1n/search-every/internal/indexstore"
	"github.com/sha1n/search-every/internal/pipeline"
	"github.com/sha1n/search-every/internal/scanner"
	"github.com/sha1n/search-every/internal/search"
	"github.com/sha1n/search-every/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandParams contains dependencies for the CLI sub-commands
type CommandParams struct {
	LoadSettings  func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings func(*config.Settings) error
	NewService    func(*config.Settings) (*service.Service, error)
}

// DefaultCommandParams returns production dependencies
func DefaultCommandParams() CommandParams {
	return CommandParams{
		LoadSettings:  config.LoadSettingsWithFlags,
		ValidSettings: config.ValidateSettings,
		NewService:    service.NewService,
	}
}

// NewCommands returns the one-shot sub-commands. Each prints its result as
// JSON on stdout; with --progress, events are written to stderr as JSON lines.
func NewCommands(params CommandParams) []*cobra.Command {
	return []*cobra.Command{
		newScanCommand(params),
		newBuildCommand(params),
		newQueryCommand(params),
		newDupesCommand(params),
		newPipelineCommand(params),
		newAutoScanCommand(params),
		newDiagnosticsCommand(params),
	}
}

// runFunc is the body of a sub-command once the service is up.
type runFunc func(ctx context.Context, cmd *cobra.Command, svc *service.Service, args []string) (any, error)

// withService wraps fn with settings loading, service lifecycle, interrupt
// handling and JSON output.
func withService(params CommandParams, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		settings, err := loadValidSettings(params.LoadSettings, params.ValidSettings, cmd.Flags())
		if err != nil {
			return err
		}

		svc, err := params.NewService(settings)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer func() {
			if cerr := svc.Close(); cerr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed to close service: %v\n", cerr)
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out, err := fn(ctx, cmd, svc, args)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}

func addProgressFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("progress", false, "Write progress events to stderr as JSON lines")
}

// progressSink returns a JSON-lines sink on stderr when --progress is set.
func progressSink(cmd *cobra.Command) events.Sink {
	if on, _ := cmd.Flags().GetBool("progress"); on {
		return events.NewJSONLinesSink(cmd.ErrOrStderr())
	}
	return nil
}

// scanOptions builds scan options from settings, with positional roots
// replacing the configured ones.
func scanOptions(settings *config.Settings, roots []string) scanner.Options {
	if len(roots) == 0 {
		roots = settings.Index.ScanRoots
	}
	return scanner.Options{
		Roots:           roots,
		ExcludePatterns: settings.Index.ExcludePatterns,
		MaxFileSizeMB:   settings.Index.MaxFileSize(),
		FollowSymlinks:  settings.Index.FollowSymlinks,
	}
}

func newScanCommand(params CommandParams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [root...]",
		Short: "List the files a scan would index",
		RunE: withService(params, func(ctx context.Context, cmd *cobra.Command, svc *service.Service, args []string) (any, error) {
			return svc.ScanWithProgress(ctx, scanOptions(svc.Settings(), args), progressSink(cmd))
		}),
	}
	addProgressFlag(cmd)
	return cmd
}

func newBuildCommand(params CommandParams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [root...]",
		Short: "Scan the roots and index every file",
		RunE: withService(params, func(ctx context.Context, cmd *cobra.Command, svc *service.Service, args []string) (any, error) {
			sink := progressSink(cmd)
			files, err := svc.ScanWithProgress(ctx, scanOptions(svc.Settings(), args), sink)
			if err != nil {
				return nil, err
			}

			mode := indexstore.CommitOnce
			if each, _ := cmd.Flags().GetBool("commit-each"); each {
				mode = indexstore.CommitEach
			}
			return svc.BuildIndexWithProgress(ctx, files, indexer.Options{
				EnableContentParse: svc.Settings().Index.EnableContentParse,
				Mode:               mode,
			}, sink)
		}),
	}
	cmd.Flags().Bool("commit-each", false, "Commit after every document instead of once at the end")
	addProgressFlag(cmd)
	return cmd
}

func newQueryCommand(params CommandParams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <query...>",
		Short: "Search the index by file name and content",
		Args:  cobra.MinimumNArgs(1),
		RunE: withService(params, func(ctx context.Context, cmd *cobra.Command, svc *service.Service, args []string) (any, error) {
			filters, err := queryFilters(cmd.Flags())
			if err != nil {
				return nil, err
			}
			return svc.Query(ctx, search.Request{
				Query:   strings.Join(args, " "),
				Filters: filters,
			})
		}),
	}
	cmd.Flags().StringSlice("ext", nil, "Keep only these extensions (comma-separated)")
	cmd.Flags().Uint64("min-size", 0, "Keep only files of at least this many bytes")
	cmd.Flags().Uint64("max-size", 0, "Keep only files of at most this many bytes")
	cmd.Flags().String("glob", "", "Keep only paths matching this glob")
	return cmd
}

// queryFilters returns the filters set on the command line, or nil when none
// are.
func queryFilters(flags *pflag.FlagSet) (*search.Filters, error) {
	var f search.Filters
	set := false

	if flags.Changed("ext") {
		ext, err := flags.GetStringSlice("ext")
		if err != nil {
			return nil, err
		}
		f.Ext, set = ext, true
	}
	for name, dst := range map[string]**uint64{"min-size": &f.MinSize, "max-size": &f.MaxSize} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetUint64(name)
		if err != nil {
			return nil, err
		}
		*dst, set = &v, true
	}
	if flags.Changed("glob") {
		glob, err := flags.GetString("glob")
		if err != nil {
			return nil, err
		}
		f.PathGlob, set = glob, true
	}

	if !set {
		return nil, nil
	}
	return &f, nil
}

func newDupesCommand(params CommandParams) *cobra.Command {
	return &cobra.Command{
		Use:   "dupes <path...>",
		Short: "Group files by identical content and by shared name",
		Args:  cobra.MinimumNArgs(1),
		RunE: withService(params, func(ctx context.Context, cmd *cobra.Command, svc *service.Service, args []string) (any, error) {
			return svc.DetectDuplicates(ctx, args)
		}),
	}
}

func newPipelineCommand(params CommandParams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline [root...]",
		Short: "Scan and index concurrently, streaming files to the index as they are found",
		RunE: withService(params, func(ctx context.Context, cmd *cobra.Command, svc *service.Service, args []string) (any, error) {
			idx := svc.Settings().Index
			roots := args
			if len(roots) == 0 {
				roots = idx.ScanRoots
			}
			workers, _ := cmd.Flags().GetInt("workers")
			return svc.ScanAndIndexPipeline(ctx, pipeline.Options{
				Roots:              roots,
				ExcludePatterns:    idx.ExcludePatterns,
				EnableContentParse: idx.EnableContentParse,
				Workers:            workers,
			}, progressSink(cmd))
		}),
	}
	cmd.Flags().Int("workers", 0, "Worker count, 0 to size from physical cores")
	addProgressFlag(cmd)
	return cmd
}

func newAutoScanCommand(params CommandParams) *cobra.Command {
	return &cobra.Command{
		Use:   "autoscan",
		Short: "Run an auto scan of the configured roots now and wait for it",
		RunE: withService(params, func(ctx context.Context, cmd *cobra.Command, svc *service.Service, args []string) (any, error) {
			if err := svc.StartAutoScanNow(); err != nil {
				return nil, err
			}
			done := make(chan struct{})
			go func() {
				svc.WaitAutoScan()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return svc.Diagnostics(ctx), nil
		}),
	}
}

func newDiagnosticsCommand(params CommandParams) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnostics",
		Short: "Report index health, last run state and host resources",
		RunE: withService(params, func(ctx context.Context, cmd *cobra.Command, svc *service.Service, args []string) (any, error) {
			return svc.Diagnostics(ctx), nil
		}),
	}
}
