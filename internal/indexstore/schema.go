package indexstore

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/sha1n/search-every/internal/domain"
)

// SchemaVersion identifies the field layout produced by NewIndexMapping.
// It must be bumped whenever a field is added, removed or changes options.
const SchemaVersion = "1"

// schemaVersionKey is the internal-storage key holding SchemaVersion.
var schemaVersionKey = []byte("search_every.schema_version")

// TextAnalyzer splits on every non alphanumeric rune, lowercases and drops
// tokens longer than maxTokenLen. File names like "q3-report.txt" yield
// "q3", "report" and "txt"; no stop words are removed.
const TextAnalyzer = "file_text"

const (
	alnumTokenizer  = "file_alnum"
	maxLengthFilter = "file_max_length"
	maxTokenLen     = 40
)

// NewIndexMapping creates the fixed mapping for file documents.
//
// Free-text queries run against the composite field, which only covers the
// file name and the parsed content. Fields missing from a document are left
// out rather than stored empty.
func NewIndexMapping() (mapping.IndexMapping, error) {
	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	// Path - exact term, stored, also the document ID
	pathField := bleve.NewKeywordFieldMapping()
	pathField.Store = true
	pathField.IncludeInAll = false
	docMapping.AddFieldMappingsAt(domain.FieldPath, pathField)

	// Name - tokenized and part of the default search field
	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = TextAnalyzer
	nameField.Store = true
	nameField.IncludeInAll = true
	docMapping.AddFieldMappingsAt(domain.FieldName, nameField)

	// Extension - stored for retrieval and post filtering only
	extField := bleve.NewTextFieldMapping()
	extField.Analyzer = keyword.Name
	extField.Store = true
	extField.Index = false
	extField.IncludeInAll = false
	docMapping.AddFieldMappingsAt(domain.FieldExt, extField)

	// Content - indexed for full-text search, never stored
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = TextAnalyzer
	contentField.Store = false
	contentField.IncludeTermVectors = false
	contentField.IncludeInAll = true
	docMapping.AddFieldMappingsAt(domain.FieldContent, contentField)

	// Summary - stored display text
	summaryField := bleve.NewTextFieldMapping()
	summaryField.Store = true
	summaryField.Index = false
	summaryField.IncludeTermVectors = false
	summaryField.IncludeInAll = false
	docMapping.AddFieldMappingsAt(domain.FieldSummary, summaryField)

	// Size and modification time - stored numerics
	sizeField := bleve.NewNumericFieldMapping()
	sizeField.Store = true
	sizeField.Index = false
	sizeField.IncludeInAll = false
	docMapping.AddFieldMappingsAt(domain.FieldSize, sizeField)

	mtimeField := bleve.NewNumericFieldMapping()
	mtimeField.Store = true
	mtimeField.Index = false
	mtimeField.IncludeInAll = false
	docMapping.AddFieldMappingsAt(domain.FieldModifiedTS, mtimeField)

	indexMapping := bleve.NewIndexMapping()
	if err := addTextAnalyzer(indexMapping); err != nil {
		return nil, err
	}
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = TextAnalyzer
	indexMapping.IndexDynamic = false
	indexMapping.StoreDynamic = false
	indexMapping.DocValuesDynamic = false

	return indexMapping, nil
}

func addTextAnalyzer(m *mapping.IndexMappingImpl) error {
	err := m.AddCustomTokenizer(alnumTokenizer, map[string]any{
		"type":   regexp.Name,
		"regexp": `[\p{L}\p{N}]+`,
	})
	if err != nil {
		return fmt.Errorf("failed to register tokenizer: %w", err)
	}

	err = m.AddCustomTokenFilter(maxLengthFilter, map[string]any{
		"type": length.Name,
		"min":  1.0,
		"max":  float64(maxTokenLen),
	})
	if err != nil {
		return fmt.Errorf("failed to register token filter: %w", err)
	}

	err = m.AddCustomAnalyzer(TextAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     alnumTokenizer,
		"token_filters": []any{lowercase.Name, maxLengthFilter},
	})
	if err != nil {
		return fmt.Errorf("failed to register analyzer: %w", err)
	}
	return nil
}

// IndexedFields lists the fields a query may reference explicitly.
func IndexedFields() []string {
	return []string{domain.FieldPath, domain.FieldName, domain.FieldContent}
}

// StoredFields lists the fields returned with every hit.
func StoredFields() []string {
	return []string{
		domain.FieldPath,
		domain.FieldName,
		domain.FieldExt,
		domain.FieldSize,
		domain.FieldModifiedTS,
		domain.FieldSummary,
	}
}

// SchemaFields lists every field in the mapping.
func SchemaFields() []string {
	return []string{
		domain.FieldPath,
		domain.FieldName,
		domain.FieldExt,
		domain.FieldContent,
		domain.FieldSummary,
		domain.FieldSize,
		domain.FieldModifiedTS,
	}
}
