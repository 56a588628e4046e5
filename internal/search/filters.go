package search

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sha1n/search-every/internal/domain"
)

// Filters narrows a result list after retrieval. Nil or empty fields do not
// filter.
type Filters struct {
	// Ext is an allow-list of extensions, compared case-insensitively. A
	// leading dot is ignored.
	Ext     []string `json:"ext,omitempty"`
	MinSize *uint64  `json:"min_size,omitempty"`
	MaxSize *uint64  `json:"max_size,omitempty"`
	// PathGlob is a doublestar pattern matched against the slash-separated
	// absolute path, e.g. "**/docs/*.md".
	PathGlob string `json:"path_glob,omitempty"`
}

func (f *Filters) validate() error {
	if f == nil || f.PathGlob == "" {
		return nil
	}
	if !doublestar.ValidatePattern(f.PathGlob) {
		return fmt.Errorf("%w: bad path glob %q", ErrInvalidQuery, f.PathGlob)
	}
	return nil
}

// accept reports whether r passes every filter. Size bounds only apply when
// the result carries a size.
func (f *Filters) accept(r domain.SearchResult) bool {
	if f == nil {
		return true
	}

	if len(f.Ext) > 0 && !extAllowed(f.Ext, r.Ext) {
		return false
	}
	if r.Size != nil {
		if f.MinSize != nil && *r.Size < *f.MinSize {
			return false
		}
		if f.MaxSize != nil && *r.Size > *f.MaxSize {
			return false
		}
	}
	if f.PathGlob != "" {
		matched, err := doublestar.Match(f.PathGlob, filepath.ToSlash(r.Path))
		if err != nil || !matched {
			return false
		}
	}
	return true
}

func extAllowed(allowed []string, ext string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return true
		}
	}
	return false
}
