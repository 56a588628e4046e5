package scanner

import (
	"math"
	"path/filepath"
	"runtime"
	"strings"
)

// bytesPerMB converts the configured megabyte cap to bytes.
const bytesPerMB = 1024 * 1024

// windowsExcludePatterns are system and tool directories that are never worth
// indexing on Windows hosts.
var windowsExcludePatterns = []string{
	`\Windows`,
	`\Program Files`,
	`\Program Files (x86)`,
	`\AppData`,
	`\ProgramData`,
	`\Temp`,
	`\$Recycle.Bin`,
	`\System Volume Information`,
	`\node_modules`,
}

// unixExcludePatterns cover virtual filesystems, caches and dependency trees.
var unixExcludePatterns = []string{
	"/proc/",
	"/sys/",
	"/dev/",
	"/.cache/",
	"/.Trash/",
	"/Library/Caches/",
	"/node_modules/",
	"/.git/",
	"/.search-every/",
}

// DefaultExcludePatterns returns the exclusion patterns for the current OS.
// Patterns are plain substrings of the absolute path, not globs.
func DefaultExcludePatterns() []string {
	src := unixExcludePatterns
	if runtime.GOOS == "windows" {
		src = windowsExcludePatterns
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Filter determines which discovered files are kept.
type Filter struct {
	patterns []string
	maxBytes uint64
	capped   bool
}

// NewFilter creates a filter from exclusion substrings and an optional size
// cap in megabytes. Empty patterns are ignored.
func NewFilter(patterns []string, maxFileSizeMB *uint64) *Filter {
	f := &Filter{}
	for _, p := range patterns {
		if p != "" {
			f.patterns = append(f.patterns, p)
		}
	}
	if maxFileSizeMB != nil {
		// Caps too large to express in bytes saturate instead of wrapping.
		f.maxBytes = math.MaxUint64
		if *maxFileSizeMB <= math.MaxUint64/bytesPerMB {
			f.maxBytes = *maxFileSizeMB * bytesPerMB
		}
		f.capped = true
	}
	return f
}

// ShouldExclude reports whether absPath contains any exclusion pattern.
// Matching is case-sensitive.
func (f *Filter) ShouldExclude(absPath string) bool {
	for _, p := range f.patterns {
		if strings.Contains(absPath, p) {
			return true
		}
	}
	return false
}

// ExceedsSize reports whether a file of the given size is over the cap.
// A file exactly at the cap is kept.
func (f *Filter) ExceedsSize(size uint64) bool {
	return f.capped && size > f.maxBytes
}

// MaxBytes returns the size cap in bytes and whether one is set.
func (f *Filter) MaxBytes() (uint64, bool) {
	return f.maxBytes, f.capped
}

// Patterns returns the active exclusion patterns.
func (f *Filter) Patterns() []string {
	return f.patterns
}

// FileExtension returns the lowercased extension of path without the
// leading dot, or an empty string when there is none. Dotfiles such as
// ".bashrc" have no extension.
func FileExtension(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == base {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
