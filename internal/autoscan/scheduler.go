package autoscan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sha1n/search-every/internal/events"
	"github.com/sha1n/search-every/internal/pipeline"
	"github.com/sha1n/search-every/internal/runstate"
	"github.com/sha1n/search-every/internal/sysinfo"
)

// Reasons reported in auto_scan_start events.
const (
	ReasonManual    = "manual"
	ReasonScheduled = "scheduled"
)

// ErrAutoScanRunning is returned when an auto scan is already in progress.
var ErrAutoScanRunning = errors.New("auto scan already running")

// Config is read at the moment a scan starts, so changes to the underlying
// settings apply to the next run.
type Config struct {
	Roots           []string
	ExcludePatterns []string
	IndexDir        string
	// Interval is how often the scheduler checks whether a run is due.
	Interval time.Duration
	// IdleCPUPercent is the host CPU load below which a due run may start.
	IdleCPUPercent float64
}

// Runner runs one pipeline.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options, sink events.Sink) (pipeline.Summary, error)
}

// Scheduler starts background pipeline runs, either on request or once a day
// when the host is idle. At most one auto scan runs at a time.
type Scheduler struct {
	runner Runner
	state  *runstate.Store
	probe  sysinfo.Probe
	config func() Config
	sink   events.Sink

	// SampleInterval is how long CPU load is measured before a scheduled run.
	SampleInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New creates a scheduler. config is called each time a run starts.
func New(runner Runner, state *runstate.Store, probe sysinfo.Probe, config func() Config, sink events.Sink) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:         runner,
		state:          state,
		probe:          probe,
		config:         config,
		sink:           events.OrDiscard(sink),
		SampleInterval: sysinfo.DefaultSampleInterval,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// StartNow publishes auto_scan_start and launches a pipeline run in the
// background with content parsing off. It returns ErrAutoScanRunning when a
// previous auto scan has not finished.
func (s *Scheduler) StartNow(reason string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAutoScanRunning
	}
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return s.ctx.Err()
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	cfg := s.config()
	s.sink.Publish(events.AutoScanStart, events.AutoScanStartPayload{Reason: reason})
	slog.Info("Auto scan started", "reason", reason, "roots", cfg.Roots, "index_dir", cfg.IndexDir)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()

		summary, err := s.runner.Run(s.ctx, pipeline.Options{
			Roots:              cfg.Roots,
			ExcludePatterns:    cfg.ExcludePatterns,
			IndexDir:           cfg.IndexDir,
			EnableContentParse: false,
		}, s.sink)
		if err != nil {
			slog.Error("Auto scan failed", "reason", reason, "error", err)
			return
		}
		slog.Info("Auto scan done",
			"reason", reason,
			"scanned", summary.Scanned,
			"indexed", summary.Indexed,
			"duration", summary.Duration)
	}()
	return nil
}

// Running reports whether an auto scan is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run checks once immediately and then every Config.Interval until ctx is
// done. A run starts when one is due and the host is idle.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.config().Interval
	if interval <= 0 {
		slog.Warn("Auto scan disabled, interval must be positive", "interval", interval)
		return
	}

	slog.Info("Auto scan scheduler started", "interval", interval)
	s.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Auto scan scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts a scheduled run if one is due and the host is idle. It reports
// whether a run was started.
func (s *Scheduler) tick(ctx context.Context) bool {
	st := s.state.Load()
	today := s.state.Today()
	if !st.Due(today) {
		slog.Debug("Auto scan not due", "last_day", st.LastDay, "completed", st.Completed)
		return false
	}

	threshold := s.config().IdleCPUPercent
	load, err := s.probe.CPUPercent(ctx, s.SampleInterval)
	if err != nil {
		slog.Warn("Failed to sample CPU load, skipping auto scan", "error", err)
		return false
	}
	if load >= threshold {
		slog.Debug("Host busy, deferring auto scan", "cpu", load, "threshold", threshold)
		return false
	}

	if err := s.StartNow(ReasonScheduled); err != nil {
		slog.Debug("Auto scan not started", "error", err)
		return false
	}
	return true
}

// Wait blocks until the current auto scan, if any, finishes.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close cancels a running auto scan and waits for it to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}
