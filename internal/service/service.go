package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sha1n/search-every/internal/autoscan"
	"github.com/sha1n/search-every/internal/config"
	"github.com/sha1n/search-every/internal/dedup"
	"github.com/sha1n/search-every/internal/diagnostics"
	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/events"
	"github.com/sha1n/search-every/internal/indexer"
	"github.com/sha1n/search-every/internal/indexstore"
	"github.com/sha1n/search-every/internal/metrics"
	"github.com/sha1n/search-every/internal/pipeline"
	"github.com/sha1n/search-every/internal/runstate"
	"github.com/sha1n/search-every/internal/scanner"
	"github.com/sha1n/search-every/internal/search"
	"github.com/sha1n/search-every/internal/sysinfo"
)

// Service owns the shared index writers and run state, and exposes every
// scan, index, search and maintenance command on top of them. It is safe for
// concurrent use.
type Service struct {
	settings  *config.Settings
	probe     sysinfo.Probe
	registry  *indexstore.Registry
	state     *runstate.Store
	pipeline  *pipeline.Orchestrator
	engine    *search.Engine
	reporter  *diagnostics.Reporter
	scheduler *autoscan.Scheduler
	observer  events.Sink
}

// NewService creates a service for the given settings, probing the host for
// cores and memory.
func NewService(settings *config.Settings) (*Service, error) {
	return newService(settings, sysinfo.NewHostProbe())
}

func newService(settings *config.Settings, probe sysinfo.Probe) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}

	if err := os.MkdirAll(settings.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	budget := indexstore.WriterBudget(sysinfo.DetectTotalMemory(context.Background(), probe))
	registry := indexstore.NewRegistry(budget)
	state := runstate.NewStore(settings.StateDir)
	orchestrator := pipeline.New(registry, state, probe)

	s := &Service{
		settings: settings,
		probe:    probe,
		registry: registry,
		state:    state,
		pipeline: orchestrator,
		engine:   search.NewEngine(registry),
		reporter: diagnostics.NewReporter(registry, state, probe),
		observer: metrics.NewEventSink(),
	}
	s.scheduler = autoscan.New(orchestrator, state, probe, s.autoScanConfig,
		events.Multi(s.observer, events.NewLogSink(slog.Default(), slog.LevelDebug)))

	slog.Debug("Service created", "state_dir", settings.StateDir, "writer_budget", budget)
	return s, nil
}

// Settings returns the settings the service reads on every command.
func (s *Service) Settings() *config.Settings {
	return s.settings
}

// Scan returns the files under opts.Roots that pass the exclusion and size
// filters.
func (s *Service) Scan(ctx context.Context, opts scanner.Options) ([]domain.FileRecord, error) {
	return scanner.ScanWithProgress(ctx, opts, s.observer)
}

// ScanWithProgress is Scan, also publishing scan_progress per file and
// scan_done at the end.
func (s *Service) ScanWithProgress(ctx context.Context, opts scanner.Options, sink events.Sink) ([]domain.FileRecord, error) {
	return scanner.ScanWithProgress(ctx, opts, s.observe(sink))
}

// BuildIndex upserts one document per file. An empty opts.IndexDir selects
// the configured index.
func (s *Service) BuildIndex(ctx context.Context, files []domain.FileRecord, opts indexer.Options) (indexer.Result, error) {
	return s.BuildIndexWithProgress(ctx, files, opts, nil)
}

// BuildIndexWithProgress is BuildIndex, also publishing index_progress per
// document and index_done after the commit.
func (s *Service) BuildIndexWithProgress(ctx context.Context, files []domain.FileRecord, opts indexer.Options, sink events.Sink) (indexer.Result, error) {
	opts.IndexDir = s.indexDir(opts.IndexDir)
	return indexer.Build(ctx, s.registry, files, opts, s.observe(sink))
}

// Query searches the index. An empty req.IndexDir selects the configured
// index.
func (s *Service) Query(ctx context.Context, req search.Request) ([]domain.SearchResult, error) {
	req.IndexDir = s.indexDir(req.IndexDir)
	return s.engine.Query(ctx, req)
}

// DetectDuplicates groups paths by content hash and by base name, hashing
// with as many workers as the pipeline would use.
func (s *Service) DetectDuplicates(ctx context.Context, paths []string) ([]domain.DupGroup, error) {
	return dedup.Detect(ctx, paths, dedup.Options{
		Concurrency: sysinfo.DetectWorkers(ctx, s.probe),
	})
}

// ScanAndIndexPipeline runs the streaming pipeline and blocks until it is
// done. An empty opts.IndexDir selects the configured index.
func (s *Service) ScanAndIndexPipeline(ctx context.Context, opts pipeline.Options, sink events.Sink) (pipeline.Summary, error) {
	opts.IndexDir = s.indexDir(opts.IndexDir)
	return s.pipeline.Run(ctx, opts, s.observe(sink))
}

// StartAutoScanNow launches a background pipeline over the configured roots
// with content parsing off. It returns autoscan.ErrAutoScanRunning while a
// previous auto scan is in progress.
func (s *Service) StartAutoScanNow() error {
	return s.scheduler.StartNow(autoscan.ReasonManual)
}

// AutoScanRunning reports whether an auto scan is in progress.
func (s *Service) AutoScanRunning() bool {
	return s.scheduler.Running()
}

// WaitAutoScan blocks until the current auto scan, if any, finishes.
func (s *Service) WaitAutoScan() {
	s.scheduler.Wait()
}

// RunAutoScan runs the daily scheduler until ctx is done. It returns at once
// when auto scan is disabled.
func (s *Service) RunAutoScan(ctx context.Context) {
	if !s.settings.AutoScan.Enabled {
		slog.Info("Auto scan disabled")
		return
	}
	s.scheduler.Run(ctx)
}

// Diagnostics reports on the configured index, the run state and the host.
func (s *Service) Diagnostics(ctx context.Context) diagnostics.Report {
	return s.reporter.Report(ctx, diagnostics.Input{
		IndexDir:        s.settings.Index.Dir,
		ScanRoots:       s.settings.Index.ScanRoots,
		AutoScanEnabled: s.settings.AutoScan.Enabled,
	})
}

// Close stops any auto scan and closes every open index writer.
func (s *Service) Close() error {
	s.scheduler.Close()
	if err := s.registry.Close(); err != nil {
		return fmt.Errorf("failed to close index writers: %w", err)
	}
	return nil
}

func (s *Service) autoScanConfig() autoscan.Config {
	return autoscan.Config{
		Roots:           s.settings.Index.ScanRoots,
		ExcludePatterns: s.settings.Index.ExcludePatterns,
		IndexDir:        s.settings.Index.Dir,
		Interval:        s.settings.AutoScan.Interval,
		IdleCPUPercent:  s.settings.AutoScan.IdleCPUPercent,
	}
}

// observe adds the metrics sink in front of the caller's sink.
func (s *Service) observe(sink events.Sink) events.Sink {
	return events.Multi(s.observer, sink)
}

func (s *Service) indexDir(dir string) string {
	if dir == "" {
		return s.settings.Index.Dir
	}
	return dir
}
