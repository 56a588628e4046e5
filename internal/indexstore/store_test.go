package indexstore

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/sha1n/search-every/internal/domain"
)

func TestIndexPath(t *testing.T) {
	if got := IndexPath("/data/idx"); got != filepath.Join("/data/idx", IndexName) {
		t.Errorf("IndexPath = %q", got)
	}
}

func TestExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	if Exists(dir) {
		t.Error("Expected missing index")
	}

	w, err := OpenWriter(dir, MinWriterBudget)
	if err != nil {
		t.Fatalf("OpenWriter failed: %v", err)
	}
	_ = w.Close()

	if !Exists(dir) {
		t.Error("Expected index to exist")
	}
}

func TestOpenReadOnly_NotFound(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("Expected ErrIndexNotFound, got %v", err)
	}
}

func TestOpenReadOnly_AfterWriterClosed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	w, err := OpenWriter(dir, MinWriterBudget)
	if err != nil {
		t.Fatalf("OpenWriter failed: %v", err)
	}
	if err := w.Upsert(testDoc("/a.txt", "india", 1)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	_ = w.Close()

	index, err := OpenReadOnly(dir)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer func() { _ = index.Close() }()

	count, err := index.DocCount()
	if err != nil || count != 1 {
		t.Errorf("DocCount = %d, %v; want 1", count, err)
	}
}

func TestNewIndexMapping_Fields(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	w, err := OpenWriter(dir, MinWriterBudget)
	if err != nil {
		t.Fatalf("OpenWriter failed: %v", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Upsert(testDoc("/a.txt", "juliet", 1)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	fields, err := w.Index().Fields()
	if err != nil {
		t.Fatalf("Fields failed: %v", err)
	}
	for _, f := range []string{domain.FieldPath, domain.FieldName, domain.FieldContent} {
		if !slices.Contains(fields, f) {
			t.Errorf("Expected field %q in %v", f, fields)
		}
	}
}

func TestStoredFields(t *testing.T) {
	stored := StoredFields()
	if slices.Contains(stored, domain.FieldContent) {
		t.Error("content must not be a stored field")
	}
	if !slices.Contains(stored, domain.FieldSummary) {
		t.Error("summary must be a stored field")
	}
	if !slices.Contains(IndexedFields(), domain.FieldContent) {
		t.Error("content must be an indexed field")
	}
}

func TestTextAnalyzer_SplitsFileNames(t *testing.T) {
	w := openTestWriter(t)
	doc := domain.NewIndexDocument(domain.FileRecord{
		Path:     "/docs/Q3-Report_final.TXT",
		FileName: "Q3-Report_final.TXT",
		Ext:      "txt",
	}, "the minutes of a meeting")
	if err := w.Upsert(doc); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	tests := []struct {
		query string
		want  uint64
	}{
		{"q3", 1},
		{"report", 1},
		{"final", 1},
		{"txt", 1},
		{"the", 1},
		{"a", 1},
		{"docs", 0},
	}
	for _, tt := range tests {
		if got := searchCount(t, w.Index(), tt.query); got != tt.want {
			t.Errorf("%q matches = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestSchemaFields(t *testing.T) {
	fields := SchemaFields()
	if len(fields) != 7 {
		t.Fatalf("Expected 7 fields, got %v", fields)
	}
	for _, f := range append(StoredFields(), IndexedFields()...) {
		if !slices.Contains(fields, f) {
			t.Errorf("Field %q missing from SchemaFields", f)
		}
	}
}
