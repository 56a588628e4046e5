package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/events"
	"github.com/sha1n/search-every/internal/indexstore"
)

// logSampleEvery controls how often a progress line is logged.
const logSampleEvery = 500

// Options configures a build.
type Options struct {
	IndexDir           string
	EnableContentParse bool
	Mode               indexstore.CommitMode
}

// Result summarizes a build.
type Result struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// Build upserts one document per file into the index at opts.IndexDir,
// creating the index when missing. In CommitOnce mode documents become
// visible together after the final commit; in CommitEach mode each one is
// visible as soon as it is written.
//
// A document the writer rejects is logged and counted as failed. Failing to
// open the index or to commit aborts the build.
func Build(ctx context.Context, reg *indexstore.Registry, files []domain.FileRecord, opts Options, sink events.Sink) (res Result, err error) {
	sink = events.OrDiscard(sink)
	slog.Info("Index build started",
		"files", len(files),
		"index_dir", opts.IndexDir,
		"content_parse", opts.EnableContentParse,
		"mode", opts.Mode)

	w, err := reg.Acquire(opts.IndexDir)
	if err != nil {
		return res, fmt.Errorf("failed to open index writer: %w", err)
	}
	defer func() {
		if rerr := reg.Release(w); rerr != nil && err == nil {
			err = fmt.Errorf("failed to release index writer: %w", rerr)
		}
	}()

	total := uint64(len(files))
	for i, rec := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		doc := indexstore.NewDocument(rec, opts.EnableContentParse)
		if werr := w.Write(doc, opts.Mode); werr != nil {
			slog.Warn("Failed to index file", "path", rec.Path, "error", werr)
			res.Failed++
		} else {
			res.Indexed++
		}

		current := uint64(i + 1)
		sink.Publish(events.IndexProgress, events.IndexProgressPayload{
			Current: current,
			Total:   &total,
			Name:    rec.FileName,
			Path:    rec.Path,
		})
		if current%logSampleEvery == 0 {
			slog.Info("Index progress", "current", current, "total", total)
		}
	}

	if err := w.Commit(); err != nil {
		return res, err
	}

	sink.Publish(events.IndexDone, events.IndexDonePayload{OK: true})
	slog.Info("Index build done", "indexed", res.Indexed, "failed", res.Failed)
	return res, nil
}
