package indexstore

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/sha1n/search-every/internal/domain"
)

// CommitMode selects when staged documents become visible to readers.
type CommitMode int

const (
	// CommitOnce stages every document and commits when the caller is done.
	CommitOnce CommitMode = iota
	// CommitEach commits after every document.
	CommitEach
)

// String returns the mode name.
func (m CommitMode) String() string {
	switch m {
	case CommitOnce:
		return "once"
	case CommitEach:
		return "each"
	default:
		return fmt.Sprintf("CommitMode(%d)", int(m))
	}
}

// Writer is the single mutation path into one index directory. All methods
// are safe for concurrent use; mutations are serialized.
type Writer struct {
	dir    string
	budget uint64

	mu           sync.Mutex
	index        bleve.Index
	lock         *FileLock
	batch        *bleve.Batch
	pending      int
	pendingBytes uint64
	closed       bool
}

// OpenWriter takes the writer lock for dir and opens the index for writing,
// creating it when missing. It fails with ErrWriterBusy when another writer
// holds the lock and with ErrSchemaMismatch when the index layout differs.
//
// Most callers should go through a Registry instead, which shares one Writer
// per directory.
func OpenWriter(dir string, budget uint64) (*Writer, error) {
	lock := NewFileLock(filepath.Join(dir, LockFileName))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock index: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrWriterBusy, dir)
	}

	index, err := openOrCreate(dir, budget)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	slog.Debug("Index writer opened", "dir", dir, "budget", budget)
	return &Writer{
		dir:    dir,
		budget: budget,
		index:  index,
		lock:   lock,
		batch:  index.NewBatch(),
	}, nil
}

// Dir returns the index directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Index returns the live index handle. Readers may search it concurrently
// with writes; they see the last committed state.
func (w *Writer) Index() bleve.Index {
	return w.index
}

// Write stages doc as an upsert and commits it immediately in CommitEach mode.
func (w *Writer) Write(doc domain.IndexDocument, mode CommitMode) error {
	if mode == CommitEach {
		return w.Upsert(doc)
	}
	return w.Stage(doc)
}

// Upsert replaces any document with the same path by doc and commits it on
// its own. Documents staged with Stage are not committed by Upsert.
func (w *Writer) Upsert(doc domain.IndexDocument) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, id, err := w.docBatch(doc)
	if err != nil {
		return err
	}
	// A separate batch keeps documents staged by a CommitOnce caller pending.
	if err := w.index.Batch(b); err != nil {
		return fmt.Errorf("failed to commit document %s: %w", id, err)
	}
	return nil
}

// Stage adds doc to the pending batch as an upsert without committing. When
// the pending batch grows beyond the writer budget it is committed early.
func (w *Writer) Stage(doc domain.IndexDocument) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.stageLocked(doc); err != nil {
		return err
	}
	if w.pendingBytes >= w.budget {
		slog.Debug("Writer budget reached, committing early", "dir", w.dir, "pending", w.pending)
		return w.commitLocked()
	}
	return nil
}

// Commit makes every staged document visible and durable.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commitLocked()
}

// Pending returns the number of staged, uncommitted documents.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// DocCount returns the number of committed documents.
func (w *Writer) DocCount() (uint64, error) {
	return w.index.DocCount()
}

// Close commits staged documents, closes the index and releases the lock.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	commitErr := w.commitLocked()
	closeErr := w.index.Close()
	unlockErr := w.lock.Unlock()

	if commitErr != nil {
		return commitErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close index: %w", closeErr)
	}
	return unlockErr
}

func (w *Writer) stageLocked(doc domain.IndexDocument) error {
	b, id, err := w.docBatch(doc)
	if err != nil {
		return err
	}
	w.batch.Merge(b)
	w.pending++
	w.pendingBytes += uint64(len(id) + len(doc.Content) + len(doc.Summary))
	return nil
}

// docBatch builds a one-document upsert batch. A document that fails to map
// leaves no delete behind in the shared batch.
func (w *Writer) docBatch(doc domain.IndexDocument) (*bleve.Batch, string, error) {
	if w.closed {
		return nil, "", fmt.Errorf("index writer for %s is closed", w.dir)
	}
	id := doc.ID()
	if id == "" {
		return nil, "", fmt.Errorf("document has no path")
	}

	b := w.index.NewBatch()
	b.Delete(id)
	if err := b.Index(id, doc.Fields()); err != nil {
		return nil, "", fmt.Errorf("failed to add document %s: %w", id, err)
	}
	return b, id, nil
}

func (w *Writer) commitLocked() error {
	if w.pending == 0 {
		return nil
	}
	if err := w.index.Batch(w.batch); err != nil {
		return fmt.Errorf("failed to commit %d documents: %w", w.pending, err)
	}
	w.batch.Reset()
	w.pending = 0
	w.pendingBytes = 0
	return nil
}
