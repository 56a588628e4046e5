package scanner

import (
	"math"
	"runtime"
	"slices"
	"testing"
)

func u64(v uint64) *uint64 { return &v }

func TestNewFilter(t *testing.T) {
	filter := NewFilter([]string{"node_modules", "", ".git"}, u64(2))

	if len(filter.Patterns()) != 2 {
		t.Errorf("Expected empty patterns to be dropped, got %v", filter.Patterns())
	}

	maxBytes, capped := filter.MaxBytes()
	if !capped {
		t.Fatal("Expected filter to be capped")
	}
	if maxBytes != 2*1024*1024 {
		t.Errorf("MaxBytes() = %d, want %d", maxBytes, 2*1024*1024)
	}
}

func TestNewFilter_Uncapped(t *testing.T) {
	filter := NewFilter(nil, nil)

	if _, capped := filter.MaxBytes(); capped {
		t.Error("Expected no cap")
	}
	if filter.ExceedsSize(1 << 40) {
		t.Error("Uncapped filter should never exceed size")
	}
}

func TestFilter_ShouldExclude(t *testing.T) {
	filter := NewFilter([]string{"node_modules", "/tmp/cache"}, nil)

	tests := []struct {
		path    string
		exclude bool
	}{
		{"/home/u/project/node_modules/pkg/index.js", true},
		{"/home/u/node_modules", true},
		{"/tmp/cache/file.txt", true},
		{"/tmp/cached/file.txt", true}, // substring, not path component
		{"/home/u/NODE_MODULES/x.js", false},
		{"/home/u/src/index.js", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := filter.ShouldExclude(tt.path); got != tt.exclude {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.exclude)
			}
		})
	}
}

func TestFilter_ExceedsSize(t *testing.T) {
	filter := NewFilter(nil, u64(1))
	limit := uint64(1024 * 1024)

	tests := []struct {
		size    uint64
		exceeds bool
	}{
		{0, false},
		{limit - 1, false},
		{limit, false},
		{limit + 1, true},
	}

	for _, tt := range tests {
		if got := filter.ExceedsSize(tt.size); got != tt.exceeds {
			t.Errorf("ExceedsSize(%d) = %v, want %v", tt.size, got, tt.exceeds)
		}
	}
}

func TestFilter_ZeroCapSkipsEverythingNonEmpty(t *testing.T) {
	filter := NewFilter(nil, u64(0))

	if filter.ExceedsSize(0) {
		t.Error("Empty file should pass a zero cap")
	}
	if !filter.ExceedsSize(1) {
		t.Error("Non-empty file should exceed a zero cap")
	}
}

func TestNewFilter_HugeCapSaturates(t *testing.T) {
	tests := []uint64{
		1 << 44,
		math.MaxUint64/bytesPerMB + 1,
		math.MaxUint64,
	}

	for _, mb := range tests {
		filter := NewFilter(nil, u64(mb))
		maxBytes, capped := filter.MaxBytes()
		if !capped || maxBytes != math.MaxUint64 {
			t.Errorf("NewFilter(%d MB): got %d bytes, capped=%v", mb, maxBytes, capped)
		}
		if filter.ExceedsSize(5) {
			t.Errorf("NewFilter(%d MB): small file should be kept", mb)
		}
	}

	// Largest cap that still fits is converted exactly
	mb := uint64(math.MaxUint64 / bytesPerMB)
	maxBytes, _ := NewFilter(nil, u64(mb)).MaxBytes()
	if maxBytes != mb*bytesPerMB {
		t.Errorf("Expected %d bytes, got %d", mb*bytesPerMB, maxBytes)
	}
}

func TestDefaultExcludePatterns(t *testing.T) {
	patterns := DefaultExcludePatterns()
	if len(patterns) == 0 {
		t.Fatal("Expected default patterns")
	}

	want := "/node_modules/"
	if runtime.GOOS == "windows" {
		want = `\node_modules`
	}
	if !slices.Contains(patterns, want) {
		t.Errorf("Expected %q in defaults, got %v", want, patterns)
	}

	patterns[0] = "mutated"
	if DefaultExcludePatterns()[0] == "mutated" {
		t.Error("DefaultExcludePatterns should return a copy")
	}
}

func TestFileExtension(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/a/readme.md", "md"},
		{"/a/REPORT.PDF", "pdf"},
		{"/a/archive.tar.gz", "gz"},
		{"/a/Makefile", ""},
		{"/a/.bashrc", ""},
		{"/a/.config.yaml", "yaml"},
		{"/a/trailing.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := FileExtension(tt.path); got != tt.want {
				t.Errorf("FileExtension(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
