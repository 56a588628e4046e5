package domain

import "unicode/utf8"

// SummaryMaxRunes is the number of characters of parsed content kept as a
// display summary.
const SummaryMaxRunes = 300

// FileRecord describes a regular file discovered under a scan root.
// It is immutable once produced and discarded after indexing.
type FileRecord struct {
	// Path is the absolute file path and the logical unique key of the index.
	Path string `json:"path"`

	// FileName is the last path component.
	FileName string `json:"file_name"`

	// Ext is the lowercased extension without the leading dot.
	// Example: "md", "json", "" for files without an extension.
	Ext string `json:"ext"`

	// Size is the file size in bytes.
	Size uint64 `json:"size"`

	// ModifiedTS is the modification time in UNIX epoch seconds, 0 when unknown.
	ModifiedTS int64 `json:"modified_ts"`
}

// IndexDocument is a FileRecord enriched with optional parsed content.
// It is the unit written to the full-text index.
type IndexDocument struct {
	FileRecord

	// Content is the full parsed text. It is indexed but never stored.
	Content string `json:"content,omitempty"`

	// Summary is the first SummaryMaxRunes characters of Content.
	Summary string `json:"summary,omitempty"`
}

// NewIndexDocument builds a document for rec. An empty content leaves both
// content and summary unset.
func NewIndexDocument(rec FileRecord, content string) IndexDocument {
	return IndexDocument{
		FileRecord: rec,
		Content:    content,
		Summary:    Summarize(content),
	}
}

// ID returns the document identifier, which is the file path.
func (d IndexDocument) ID() string {
	return d.Path
}

// Fields returns the document as a field map keyed by the index field names.
// Optional fields are omitted when empty.
func (d IndexDocument) Fields() map[string]any {
	fields := map[string]any{
		FieldPath:       d.Path,
		FieldName:       d.FileName,
		FieldExt:        d.Ext,
		FieldSize:       d.Size,
		FieldModifiedTS: d.ModifiedTS,
	}
	if d.Content != "" {
		fields[FieldContent] = d.Content
	}
	if d.Summary != "" {
		fields[FieldSummary] = d.Summary
	}
	return fields
}

// Summarize returns the first SummaryMaxRunes characters of text.
func Summarize(text string) string {
	if utf8.RuneCountInString(text) <= SummaryMaxRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == SummaryMaxRunes {
			return text[:i]
		}
		n++
	}
	return text
}

// SearchResult is a single ranked hit returned by the query engine.
// Fields missing from the stored document are nil rather than an error.
type SearchResult struct {
	Path       string  `json:"path"`
	Name       string  `json:"name"`
	Ext        string  `json:"ext"`
	Score      float64 `json:"score"`
	Size       *uint64 `json:"size,omitempty"`
	ModifiedTS *int64  `json:"modified_ts,omitempty"`
	Summary    *string `json:"summary,omitempty"`
}

// DupKind tags the partition a duplicate group belongs to.
type DupKind string

const (
	// DupKindHash groups files with identical content digests.
	DupKindHash DupKind = "hash"
	// DupKindName groups files sharing a bare file name.
	DupKindName DupKind = "name"
)

// DupGroup is a set of two or more files considered duplicates of each other.
type DupGroup struct {
	Kind DupKind `json:"kind"`
	// Key is the hex digest for hash groups and the file name for name groups.
	Key   string   `json:"key"`
	Files []string `json:"files"`
}

// Index field name constants for consistent field references in mappings,
// documents and queries.
const (
	FieldPath       = "path"
	FieldName       = "name"
	FieldExt        = "ext"
	FieldContent    = "content"
	FieldSummary    = "summary"
	FieldSize       = "size"
	FieldModifiedTS = "modified_ts"
)
