package search

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/indexstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func doc(path, content string, size uint64) domain.IndexDocument {
	base := filepath.Base(path)
	return domain.NewIndexDocument(domain.FileRecord{
		Path:       path,
		FileName:   base,
		Ext:        filepath.Ext(base)[1:],
		Size:       size,
		ModifiedTS: 1700000000,
	}, content)
}

// buildIndex writes docs into a fresh index and closes the writer.
func buildIndex(t *testing.T, docs ...domain.IndexDocument) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "index")
	w, err := indexstore.OpenWriter(dir, indexstore.MinWriterBudget)
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, w.Stage(d))
	}
	require.NoError(t, w.Close())
	return dir
}

func paths(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Path
	}
	return out
}

func TestQuery_MatchesNameAndContent(t *testing.T) {
	dir := buildIndex(t,
		doc("/data/budget.txt", "quarterly numbers", 10),
		doc("/data/notes.md", "budget review", 20),
		doc("/data/other.md", "unrelated", 30),
	)

	results, err := NewEngine(nil).Query(context.Background(), Request{Query: "budget", IndexDir: dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/data/budget.txt", "/data/notes.md"}, paths(results))
}

func TestQuery_ResultFields(t *testing.T) {
	dir := buildIndex(t,
		doc("/data/report.txt", "annual report text", 42),
		doc("/data/report.bin", "", 7),
	)

	results, err := NewEngine(nil).Query(context.Background(), Request{Query: "report", IndexDir: dir})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byPath := map[string]domain.SearchResult{}
	for _, r := range results {
		byPath[r.Path] = r
	}

	txt := byPath["/data/report.txt"]
	assert.Equal(t, "report.txt", txt.Name)
	assert.Equal(t, "txt", txt.Ext)
	assert.Greater(t, txt.Score, 0.0)
	require.NotNil(t, txt.Size)
	assert.Equal(t, uint64(42), *txt.Size)
	require.NotNil(t, txt.ModifiedTS)
	assert.Equal(t, int64(1700000000), *txt.ModifiedTS)
	require.NotNil(t, txt.Summary)
	assert.Equal(t, "annual report text", *txt.Summary)

	bin := byPath["/data/report.bin"]
	assert.Nil(t, bin.Summary)
	require.NotNil(t, bin.Size)
	assert.Equal(t, uint64(7), *bin.Size)
}

func TestQuery_Filters(t *testing.T) {
	dir := buildIndex(t,
		doc("/data/a/small.TXT", "echo", 5),
		doc("/data/a/large.txt", "echo", 5000),
		doc("/data/b/mid.md", "echo", 500),
		doc("/data/b/mid.go", "echo", 500),
	)
	engine := NewEngine(nil)

	tests := []struct {
		name    string
		filters *Filters
		want    []string
	}{
		{
			name:    "no filters",
			filters: nil,
			want:    []string{"/data/a/small.TXT", "/data/a/large.txt", "/data/b/mid.md", "/data/b/mid.go"},
		},
		{
			name:    "ext case insensitive",
			filters: &Filters{Ext: []string{"txt"}},
			want:    []string{"/data/a/small.TXT", "/data/a/large.txt"},
		},
		{
			name:    "ext with dot",
			filters: &Filters{Ext: []string{".md", "go"}},
			want:    []string{"/data/b/mid.md", "/data/b/mid.go"},
		},
		{
			name:    "min size",
			filters: &Filters{MinSize: ptr[uint64](500)},
			want:    []string{"/data/a/large.txt", "/data/b/mid.md", "/data/b/mid.go"},
		},
		{
			name:    "size range",
			filters: &Filters{MinSize: ptr[uint64](100), MaxSize: ptr[uint64](1000)},
			want:    []string{"/data/b/mid.md", "/data/b/mid.go"},
		},
		{
			name:    "path glob",
			filters: &Filters{PathGlob: "/data/a/**"},
			want:    []string{"/data/a/small.TXT", "/data/a/large.txt"},
		},
		{
			name:    "combined",
			filters: &Filters{Ext: []string{"md", "txt"}, MaxSize: ptr[uint64](1000), PathGlob: "/**/b/*"},
			want:    []string{"/data/b/mid.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := engine.Query(context.Background(), Request{Query: "echo", Filters: tt.filters, IndexDir: dir})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, paths(results))
		})
	}
}

func TestQuery_FiltersApplyAfterWindow(t *testing.T) {
	docs := make([]domain.IndexDocument, 0, 60)
	for i := range 60 {
		docs = append(docs, doc(fmt.Sprintf("/data/file%02d.md", i), "tango", uint64(i)))
	}
	dir := buildIndex(t, docs...)

	results, err := NewEngine(nil).Query(context.Background(), Request{
		Query:    "tango",
		Filters:  &Filters{Ext: []string{"md"}},
		IndexDir: dir,
	})
	require.NoError(t, err)
	// All 60 documents qualify but only the top window is filtered.
	assert.Len(t, results, MaxResults)
}

func TestQuery_InvalidQuery(t *testing.T) {
	dir := buildIndex(t, doc("/data/x.txt", "x", 1))
	engine := NewEngine(nil)

	for _, q := range []string{"", "   ", "^5"} {
		t.Run(fmt.Sprintf("%q", q), func(t *testing.T) {
			_, err := engine.Query(context.Background(), Request{Query: q, IndexDir: dir})
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestQuery_InvalidGlob(t *testing.T) {
	dir := buildIndex(t, doc("/data/x.txt", "x", 1))

	_, err := NewEngine(nil).Query(context.Background(), Request{
		Query:    "x",
		Filters:  &Filters{PathGlob: "[unclosed"},
		IndexDir: dir,
	})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQuery_MissingIndex(t *testing.T) {
	_, err := NewEngine(nil).Query(context.Background(), Request{
		Query:    "anything",
		IndexDir: filepath.Join(t.TempDir(), "nope"),
	})
	assert.ErrorIs(t, err, indexstore.ErrIndexNotFound)
}

func TestQuery_BorrowsOpenWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	reg := indexstore.NewRegistry(indexstore.MinWriterBudget)
	t.Cleanup(func() { _ = reg.Close() })

	w, err := reg.Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = reg.Release(w) }()
	require.NoError(t, w.Upsert(doc("/data/live.txt", "uniform", 3)))

	results, err := NewEngine(reg).Query(context.Background(), Request{Query: "uniform", IndexDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/live.txt"}, paths(results))
	assert.True(t, reg.Open(dir))
}
