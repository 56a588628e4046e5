package indexstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
)

const (
	// IndexName is the bleve index directory inside an index dir.
	IndexName = "files.bleve"

	// LockFileName is the cross-process writer lock inside an index dir.
	LockFileName = "writer.lock"

	// boltTimeout bounds how long an open waits for another process holding
	// the index root.
	boltTimeout = "2s"
)

var (
	// ErrIndexNotFound indicates no index exists in the given directory.
	ErrIndexNotFound = errors.New("index not found")

	// ErrSchemaMismatch indicates the on-disk index was built with a different
	// field layout.
	ErrSchemaMismatch = errors.New("index schema version mismatch")

	// ErrWriterBusy indicates another writer already holds the index.
	ErrWriterBusy = errors.New("index writer is held by another process")
)

// IndexPath returns the bleve index path for an index dir.
func IndexPath(dir string) string {
	return filepath.Join(dir, IndexName)
}

// Exists reports whether dir contains an index.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(IndexPath(dir), "index_meta.json"))
	return err == nil
}

// OpenReadOnly opens an existing index for queries. The handle does not take
// the writer lock and fails fast if the index root is held exclusively.
func OpenReadOnly(dir string) (bleve.Index, error) {
	if !Exists(dir) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
	}

	index, err := bleve.OpenUsing(IndexPath(dir), map[string]any{
		"read_only":    true,
		"bolt_timeout": boltTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	if err := checkSchema(index); err != nil {
		_ = index.Close()
		return nil, err
	}
	return index, nil
}

// openOrCreate opens the index in dir for writing, creating dir and the
// index when missing. budget is the persister memory-pressure threshold.
func openOrCreate(dir string, budget uint64) (bleve.Index, error) {
	config := map[string]any{
		"bolt_timeout": boltTimeout,
		"scorchPersisterOptions": map[string]any{
			"MemoryPressurePauseThreshold": budget,
		},
	}

	if Exists(dir) {
		index, err := bleve.OpenUsing(IndexPath(dir), config)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		if err := checkSchema(index); err != nil {
			_ = index.Close()
			return nil, err
		}
		return index, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	indexMapping, err := NewIndexMapping()
	if err != nil {
		return nil, err
	}

	index, err := bleve.NewUsing(IndexPath(dir), indexMapping, scorch.Name, scorch.Name, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	if err := index.SetInternal(schemaVersionKey, []byte(SchemaVersion)); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to stamp schema version: %w", err)
	}
	return index, nil
}

// checkSchema verifies the schema version stamped on the index.
func checkSchema(index bleve.Index) error {
	version, err := ReadSchemaVersion(index)
	if err != nil {
		return err
	}
	if version != SchemaVersion {
		return fmt.Errorf("%w: have %q, want %q", ErrSchemaMismatch, version, SchemaVersion)
	}
	return nil
}

// ReadSchemaVersion returns the schema version recorded in an open index,
// or an empty string when none was stamped.
func ReadSchemaVersion(index bleve.Index) (string, error) {
	version, err := index.GetInternal(schemaVersionKey)
	if err != nil {
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}
	return string(version), nil
}
