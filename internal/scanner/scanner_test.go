package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"

	"github.com/sha1n/search-every/internal/domain"
	"github.com/sha1n/search-every/internal/events"
)

// writeFile creates a file with the given size under dir.
func writeFile(t *testing.T, dir, rel string, size int) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	return path
}

func paths(records []domain.FileRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Path
	}
	slices.Sort(out)
	return out
}

func TestScan_BasicMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "docs/Notes.MD", 12)
	mtime := time.Unix(1700000000, 0)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	records, err := Scan(context.Background(), Options{Roots: []string{dir}})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Path != path {
		t.Errorf("Path = %q, want %q", rec.Path, path)
	}
	if rec.FileName != "Notes.MD" {
		t.Errorf("FileName = %q", rec.FileName)
	}
	if rec.Ext != "md" {
		t.Errorf("Ext = %q, want lowercased 'md'", rec.Ext)
	}
	if rec.Size != 12 {
		t.Errorf("Size = %d, want 12", rec.Size)
	}
	if rec.ModifiedTS != 1700000000 {
		t.Errorf("ModifiedTS = %d, want 1700000000", rec.ModifiedTS)
	}
}

func TestScan_ExcludeAndSizeCap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep/a.txt", 10)
	writeFile(t, dir, "node_modules/pkg/b.js", 10)
	writeFile(t, dir, "big.bin", 2*1024*1024)
	writeFile(t, dir, "exact.bin", 1024*1024)

	records, err := Scan(context.Background(), Options{
		Roots:           []string{dir},
		ExcludePatterns: []string{"node_modules"},
		MaxFileSizeMB:   u64(1),
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	got := paths(records)
	want := []string{filepath.Join(dir, "exact.bin"), filepath.Join(dir, "keep/a.txt")}
	if !slices.Equal(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestScan_HugeSizeCapKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "small.txt", 5)

	records, err := Scan(context.Background(), Options{
		Roots:         []string{dir},
		MaxFileSizeMB: u64(1 << 44),
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got := paths(records); !slices.Equal(got, []string{path}) {
		t.Errorf("paths = %v, want [%s]", got, path)
	}
}

func TestScan_EmptyAndMissingRoots(t *testing.T) {
	records, err := Scan(context.Background(), Options{})
	if err != nil || len(records) != 0 {
		t.Errorf("Expected empty result for no roots, got %v, %v", records, err)
	}

	records, err = Scan(context.Background(), Options{Roots: []string{filepath.Join(t.TempDir(), "missing")}})
	if err != nil || len(records) != 0 {
		t.Errorf("Expected empty result for missing root, got %v, %v", records, err)
	}
}

func TestScan_RelativeRootMadeAbsolute(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", 1)
	t.Chdir(dir)

	records, err := Scan(context.Background(), Options{Roots: []string{"."}})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if !filepath.IsAbs(records[0].Path) {
		t.Errorf("Expected absolute path, got %q", records[0].Path)
	}
}

func TestScan_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, root, "real.txt", 1)
	writeFile(t, outside, "linked.txt", 1)
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}
	// A loop back to the root must not be followed forever.
	if err := os.Symlink(root, filepath.Join(root, "loop")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	records, err := Scan(context.Background(), Options{Roots: []string{root}})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got := paths(records); !slices.Equal(got, []string{filepath.Join(root, "real.txt")}) {
		t.Errorf("Without following, got %v", got)
	}

	records, err = Scan(context.Background(), Options{Roots: []string{root}, FollowSymlinks: true})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	want := []string{filepath.Join(root, "link", "linked.txt"), filepath.Join(root, "real.txt")}
	if got := paths(records); !slices.Equal(got, want) {
		t.Errorf("With following, got %v, want %v", got, want)
	}
}

func TestWalk_StopsEarly(t *testing.T) {
	dir := t.TempDir()
	for i := range 5 {
		writeFile(t, dir, filepath.Join("d", string(rune('a'+i))+".txt"), 1)
	}

	n := 0
	for range Walk(Options{Roots: []string{dir}}) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("Expected to stop after 2 records, got %d", n)
	}
}

func TestScanWithProgress_Events(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", 1)
	writeFile(t, dir, "b.txt", 1)
	rec := events.NewRecorder()

	records, err := ScanWithProgress(context.Background(), Options{Roots: []string{dir}}, rec)
	if err != nil {
		t.Fatalf("ScanWithProgress failed: %v", err)
	}

	names := rec.Names()
	if len(names) != 3 {
		t.Fatalf("Expected 3 events, got %v", names)
	}
	if names[2] != events.ScanDone {
		t.Errorf("Expected last event to be scan_done, got %s", names[2])
	}

	for i, p := range rec.Payloads(events.ScanProgress) {
		payload := p.(events.ScanProgressPayload)
		if payload.Current != uint64(i+1) {
			t.Errorf("Current = %d, want %d", payload.Current, i+1)
		}
		if payload.Path != records[i].Path {
			t.Errorf("Path = %q, want %q", payload.Path, records[i].Path)
		}
	}

	done := rec.Payloads(events.ScanDone)[0].(events.ScanDonePayload)
	if done.Total != 2 {
		t.Errorf("Total = %d, want 2", done.Total)
	}
}

func TestScan_ContextCanceled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Scan(ctx, Options{Roots: []string{dir}}); err == nil {
		t.Error("Expected context error")
	}
}
