package indexstore

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

type registryEntry struct {
	writer *Writer
	refs   int
}

// Registry shares one Writer per index directory within the process.
// Writers are opened on first Acquire and closed on the last Release.
type Registry struct {
	budget uint64

	mu      sync.Mutex
	writers map[string]*registryEntry
}

// NewRegistry creates a registry whose writers use the given buffer budget.
func NewRegistry(budget uint64) *Registry {
	return &Registry{
		budget:  budget,
		writers: make(map[string]*registryEntry),
	}
}

// Acquire returns the shared writer for dir, opening it if needed. Every
// successful Acquire must be paired with Release.
func (r *Registry) Acquire(dir string) (*Writer, error) {
	key, err := registryKey(dir)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.writers[key]; ok {
		e.refs++
		return e.writer, nil
	}

	w, err := OpenWriter(key, r.budget)
	if err != nil {
		return nil, err
	}
	r.writers[key] = &registryEntry{writer: w, refs: 1}
	return w, nil
}

// Release drops one reference to w and closes it when none remain.
func (r *Registry) Release(w *Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked(w.Dir())
}

// Borrow returns the live index handle for dir when a writer is open in this
// process. The returned func must be called when the caller is done.
func (r *Registry) Borrow(dir string) (bleve.Index, func(), bool) {
	key, err := registryKey(dir)
	if err != nil {
		return nil, nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.writers[key]
	if !ok {
		return nil, nil, false
	}
	e.refs++

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if err := r.releaseLocked(key); err != nil {
				slog.Warn("Failed to release borrowed index", "dir", key, "error", err)
			}
		})
	}
	return e.writer.Index(), release, true
}

// OpenReader returns an index handle for queries. It borrows the live writer
// handle when one is open for dir, since the writer holds the index
// exclusively, and opens a read-only handle otherwise. A nil registry always
// opens read-only. The returned func releases the handle.
func (r *Registry) OpenReader(dir string) (bleve.Index, func(), error) {
	if r != nil {
		if index, release, ok := r.Borrow(dir); ok {
			return index, release, nil
		}
	}

	index, err := OpenReadOnly(dir)
	if err != nil {
		return nil, nil, err
	}
	return index, func() {
		if err := index.Close(); err != nil {
			slog.Warn("Failed to close index", "dir", dir, "error", err)
		}
	}, nil
}

// Open reports whether a writer for dir is currently open.
func (r *Registry) Open(dir string) bool {
	key, err := registryKey(dir)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.writers[key]
	return ok
}

// Close closes every open writer regardless of outstanding references.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, e := range r.writers {
		if err := e.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		delete(r.writers, key)
	}
	return errors.Join(errs...)
}

func (r *Registry) releaseLocked(key string) error {
	e, ok := r.writers[key]
	if !ok {
		return nil
	}
	e.refs--
	if e.refs > 0 {
		return nil
	}
	delete(r.writers, key)
	return e.writer.Close()
}

func registryKey(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve index directory: %w", err)
	}
	return filepath.Clean(abs), nil
}
