package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sha1n/search-every/internal/events"
	"github.com/sha1n/search-every/internal/indexstore"
	"github.com/sha1n/search-every/internal/metrics"
	"github.com/sha1n/search-every/internal/runstate"
	"github.com/sha1n/search-every/internal/scanner"
	"github.com/sha1n/search-every/internal/sysinfo"
	"golang.org/x/sync/errgroup"
)

// MaxFileSizeMB is the fixed size cap for files discovered by the pipeline.
const MaxFileSizeMB uint64 = 500

// Options configures a pipeline run.
type Options struct {
	Roots              []string
	ExcludePatterns    []string
	IndexDir           string
	EnableContentParse bool
	// Workers overrides the detected worker count when positive.
	Workers int
}

// Summary describes a finished run.
type Summary struct {
	Scanned  int           `json:"scanned"`
	Indexed  int           `json:"indexed"`
	Failed   int           `json:"failed"`
	Workers  int           `json:"workers"`
	Duration time.Duration `json:"duration"`
}

// Orchestrator runs the scan-and-index pipeline: a single producer walks the
// roots and hands each file to a bounded pool of workers, which upsert into
// the shared writer for the index directory.
type Orchestrator struct {
	registry *indexstore.Registry
	state    *runstate.Store
	probe    sysinfo.Probe
}

// New creates an orchestrator. The registry supplies the shared writer and
// state records run progress.
func New(registry *indexstore.Registry, state *runstate.Store, probe sysinfo.Probe) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		state:    state,
		probe:    probe,
	}
}

// Run executes one pipeline run and blocks until every dispatched document is
// written. Events are published in the order scan_progress (per file, with
// index_progress interleaved as workers finish), scan_done, index_done.
//
// Failing to open the writer aborts the run before traversal. Per-file
// failures are counted in the summary. Canceling ctx stops traversal; work
// already dispatched drains, the run is not marked completed and ctx's error
// is returned.
func (o *Orchestrator) Run(ctx context.Context, opts Options, sink events.Sink) (summary Summary, err error) {
	sink = events.OrDiscard(sink)
	start := time.Now()

	workers := opts.Workers
	if workers <= 0 {
		workers = sysinfo.DetectWorkers(ctx, o.probe)
	}
	summary.Workers = workers

	w, err := o.registry.Acquire(opts.IndexDir)
	if err != nil {
		return summary, fmt.Errorf("failed to open index writer: %w", err)
	}
	defer func() {
		if rerr := o.registry.Release(w); rerr != nil && err == nil {
			err = fmt.Errorf("failed to release index writer: %w", rerr)
		}
	}()

	metrics.ObservePipelineStart(workers)
	defer func() {
		summary.Duration = time.Since(start)
		metrics.ObservePipelineEnd(summary.Duration, summary.Failed, err)
	}()

	slog.Info("Pipeline started",
		"roots", opts.Roots,
		"index_dir", opts.IndexDir,
		"workers", workers,
		"content_parse", opts.EnableContentParse)

	if serr := o.state.MarkStarted(opts.IndexDir); serr != nil {
		slog.Warn("Failed to record pipeline start", "error", serr)
	}

	var (
		indexed  atomic.Int64
		failed   atomic.Int64
		progress atomic.Uint64
		g        errgroup.Group
	)
	g.SetLimit(workers)

	maxMB := MaxFileSizeMB
	walk := scanner.Walk(scanner.Options{
		Roots:           opts.Roots,
		ExcludePatterns: opts.ExcludePatterns,
		MaxFileSizeMB:   &maxMB,
		FollowSymlinks:  false,
	})

	scanned := 0
	for rec := range walk {
		if ctx.Err() != nil {
			break
		}
		scanned++
		sink.Publish(events.ScanProgress, events.ScanProgressPayload{
			Current: uint64(scanned),
			Path:    rec.Path,
			Name:    rec.FileName,
		})

		// Go blocks while all workers are busy.
		g.Go(func() error {
			doc := indexstore.NewDocument(rec, opts.EnableContentParse)
			if werr := w.Upsert(doc); werr != nil {
				slog.Warn("Failed to index file", "path", rec.Path, "error", werr)
				failed.Add(1)
			} else {
				indexed.Add(1)
			}
			sink.Publish(events.IndexProgress, events.IndexProgressPayload{
				Current: progress.Add(1),
				Name:    rec.FileName,
				Path:    rec.Path,
			})
			return nil
		})
	}
	summary.Scanned = scanned
	sink.Publish(events.ScanDone, events.ScanDonePayload{Total: uint64(scanned)})

	_ = g.Wait()
	summary.Indexed = int(indexed.Load())
	summary.Failed = int(failed.Load())

	if cerr := ctx.Err(); cerr != nil {
		slog.Warn("Pipeline canceled", "scanned", scanned, "indexed", summary.Indexed)
		return summary, cerr
	}

	if serr := o.state.MarkCompleted(opts.IndexDir); serr != nil {
		slog.Warn("Failed to record pipeline completion", "error", serr)
	}
	sink.Publish(events.IndexDone, events.IndexDonePayload{OK: true})

	slog.Info("Pipeline done",
		"scanned", scanned,
		"indexed", summary.Indexed,
		"failed", summary.Failed,
		"duration", time.Since(start))
	return summary, nil
}
