package domain

import (
	"fmt"
	"unicode/utf8"
)

// TextType identifies which record text an embedding was computed from.
type TextType string

const (
	TextTypeSearch  TextType = "searchText"
	TextTypeSummary TextType = "summaryText"
)

// PreviewLength is the number of runes kept in SourceTextPreview.
const PreviewLength = 120

// EmbeddingEntry maps a record embedding to a slot in the vector index.
// There is at most one live entry per Key().
type EmbeddingEntry struct {
	// Position is the index-internal slot. It has no meaning outside the index.
	Position int64

	// Generation is the index generation the position belongs to.
	Generation int64

	SerialNumber      string
	Kind              DocumentKind
	ModelIdentifier   string
	TextType          TextType
	SourceTextPreview string
}

// Key returns the logical identity of the entry.
func (e EmbeddingEntry) Key() EmbeddingKey {
	return EmbeddingKey{
		Kind:            e.Kind,
		SerialNumber:    e.SerialNumber,
		ModelIdentifier: e.ModelIdentifier,
		TextType:        e.TextType,
	}
}

// EmbeddingKey is the replace-not-duplicate key for embeddings.
type EmbeddingKey struct {
	Kind            DocumentKind
	SerialNumber    string
	ModelIdentifier string
	TextType        TextType
}

func (k EmbeddingKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.Kind, k.SerialNumber, k.ModelIdentifier, k.TextType)
}

// Preview truncates text to PreviewLength runes.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewLength])
}

// IndexStats summarises one vector index.
type IndexStats struct {
	Kind        DocumentKind
	Generation  int64
	Dimensions  int
	Vectors     int
	LiveEntries int
	Tombstones  int
	Model       string
}
