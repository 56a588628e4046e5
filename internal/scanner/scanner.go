package scanner

import (
	"context"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/events"
)

// logSampleEvery controls how often a progress line is logged during a walk.
const logSampleEvery = 200

// Options configures a scan.
type Options struct {
	Roots           []string
	ExcludePatterns []string
	// MaxFileSizeMB caps the file size; nil means unlimited.
	MaxFileSizeMB  *uint64
	FollowSymlinks bool
}

// Walk returns a lazy sequence of the regular files under opts.Roots that
// pass the exclusion and size filters. The sequence is finite and walks the
// file system again each time it is ranged over. Entries that cannot be read
// are skipped silently.
func Walk(opts Options) iter.Seq[domain.FileRecord] {
	filter := NewFilter(opts.ExcludePatterns, opts.MaxFileSizeMB)
	return func(yield func(domain.FileRecord) bool) {
		for _, root := range opts.Roots {
			abs, err := filepath.Abs(root)
			if err != nil {
				slog.Debug("Skipping root", "root", root, "error", err)
				continue
			}
			start := abs
			if isSymlinkedDir(abs) {
				// A trailing separator makes WalkDir descend into the link target.
				start = abs + string(filepath.Separator)
			}
			w := &walker{filter: filter, follow: opts.FollowSymlinks, yield: yield}
			if real, err := filepath.EvalSymlinks(abs); err == nil {
				w.active = append(w.active, real)
			}
			if !w.walk(start, abs) {
				return
			}
		}
	}
}

// Scan materializes Walk into a slice. It stops early when ctx is canceled.
func Scan(ctx context.Context, opts Options) ([]domain.FileRecord, error) {
	return ScanWithProgress(ctx, opts, nil)
}

// ScanWithProgress is Scan that also publishes a scan_progress event per
// record and a final scan_done event.
func ScanWithProgress(ctx context.Context, opts Options, sink events.Sink) ([]domain.FileRecord, error) {
	sink = events.OrDiscard(sink)
	slog.Info("Scan started", "roots", opts.Roots)

	var records []domain.FileRecord
	for rec := range Walk(opts) {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		records = append(records, rec)
		current := uint64(len(records))
		sink.Publish(events.ScanProgress, events.ScanProgressPayload{
			Current: current,
			Path:    rec.Path,
			Name:    rec.FileName,
		})
		if current%logSampleEvery == 0 {
			slog.Info("Scan progress", "files", current)
		}
	}

	sink.Publish(events.ScanDone, events.ScanDonePayload{Total: uint64(len(records))})
	slog.Info("Scan done", "total_files", len(records))
	return records, nil
}

// walker holds the per-root traversal state.
type walker struct {
	filter *Filter
	follow bool
	yield  func(domain.FileRecord) bool
	// active holds the resolved directories currently being traversed.
	active []string
}

// walk traverses dir, reporting paths under display. display differs from
// dir only below a followed symlink, where records keep the link path.
// It returns false once the consumer stops the iteration.
func (w *walker) walk(dir, display string) bool {
	stopped := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("Skipping unreadable entry", "path", path, "error", err)
			return nil
		}

		shown := path
		if display != dir {
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				return nil
			}
			shown = filepath.Join(display, rel)
		}

		if !utf8.ValidString(shown) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if w.filter.ShouldExclude(shown) {
			slog.Debug("Excluded by pattern", "path", shown)
			if d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		var info fs.FileInfo
		if d.Type()&fs.ModeSymlink != 0 {
			if !w.follow {
				return nil
			}
			target, statErr := os.Stat(path)
			if statErr != nil {
				return nil
			}
			if target.IsDir() {
				real, cycle := w.resolveLink(path)
				if cycle {
					slog.Debug("Skipping symlink cycle", "path", shown)
					return nil
				}
				w.active = append(w.active, real)
				ok := w.walk(path+string(filepath.Separator), shown)
				w.active = w.active[:len(w.active)-1]
				if !ok {
					stopped = true
					return filepath.SkipAll
				}
				return nil
			}
			info = target
		} else {
			info, err = d.Info()
			if err != nil {
				return nil
			}
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		size := uint64(info.Size())
		if w.filter.ExceedsSize(size) {
			slog.Debug("Skipping by size", "path", shown, "size", size)
			return nil
		}

		rec := domain.FileRecord{
			Path:       shown,
			FileName:   filepath.Base(shown),
			Ext:        FileExtension(shown),
			Size:       size,
			ModifiedTS: modifiedTS(info),
		}
		if !w.yield(rec) {
			stopped = true
			return filepath.SkipAll
		}
		return nil
	})
	return !stopped
}

// resolveLink resolves a directory symlink and reports whether following it
// would re-enter a directory that is already being traversed.
func (w *walker) resolveLink(path string) (string, bool) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", true
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return "", true
	}
	for _, dir := range append([]string{parent}, w.active...) {
		if dir == target || strings.HasPrefix(dir, target+string(filepath.Separator)) {
			return target, true
		}
	}
	return target, false
}

func isSymlinkedDir(path string) bool {
	li, err := os.Lstat(path)
	if err != nil || li.Mode()&fs.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func modifiedTS(info fs.FileInfo) int64 {
	mt := info.ModTime()
	if mt.IsZero() {
		return 0
	}
	return mt.Unix()
}
