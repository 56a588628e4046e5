package indexstore

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sha1n/search-every/internal/domain"
)

// MaxContentBytes is the most content read from a single file.
const MaxContentBytes = 1_000_000

// parseableExtensions lists the plain-text formats whose content is indexed.
var parseableExtensions = map[string]struct{}{
	"txt":  {},
	"md":   {},
	"csv":  {},
	"log":  {},
	"json": {},
	"xml":  {},
	"ini":  {},
	"conf": {},
	"yaml": {},
	"yml":  {},
}

// IsParseable reports whether files with ext have their content extracted.
func IsParseable(ext string) bool {
	_, ok := parseableExtensions[strings.ToLower(ext)]
	return ok
}

// ExtractContent reads up to MaxContentBytes of the file at path and decodes
// it as UTF-8. It returns false when the extension is not parseable, the file
// cannot be read, or the bytes are not valid UTF-8. A character split by the
// read cap is dropped rather than failing the decode.
func ExtractContent(path, ext string) (string, bool) {
	if !IsParseable(ext) {
		return "", false
	}

	f, err := os.Open(path)
	if err != nil {
		slog.Debug("Skipping content", "path", path, "error", err)
		return "", false
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, MaxContentBytes))
	if err != nil {
		slog.Debug("Skipping content", "path", path, "error", err)
		return "", false
	}

	if len(data) == MaxContentBytes {
		data = trimPartialRune(data)
	}

	if !utf8.Valid(data) {
		slog.Debug("Skipping non UTF-8 content", "path", path)
		return "", false
	}
	return string(data), true
}

// trimPartialRune drops an incomplete multi-byte sequence at the end of data.
func trimPartialRune(data []byte) []byte {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				return data[:i]
			}
			return data
		}
	}
	return data
}

// NewDocument builds the index document for rec, extracting content when
// parsing is enabled and the extension allows it.
func NewDocument(rec domain.FileRecord, enableContentParse bool) domain.IndexDocument {
	content := ""
	if enableContentParse {
		content, _ = ExtractContent(rec.Path, rec.Ext)
	}
	return domain.NewIndexDocument(rec, content)
}
