// Package vectorstore provides interfaces and implementations for vector similarity search.
//
// Three stores cooperate here: a dense vector backend (Qdrant or the local
// flat index), a positional metadata store, and the Store wrapper that keeps
// the two ordinally aligned. The i-th chunk added to the backend lives at
// position i in the metadata store; the sparse index resolves results by
// that position, so insertion order is append-only and load-bearing.
package vectorstore

import (
	"context"
)

// Metadata holds the structured metadata attached to a chunk at ingestion.
type Metadata struct {
	Page            int      `json:"page"`
	Section         string   `json:"section,omitempty"`
	Subsection      string   `json:"subsection,omitempty"`
	DocumentTitle   string   `json:"document_title,omitempty"`
	CrimeTypes      []string `json:"crime_types,omitempty"`
	PunishmentTypes []string `json:"punishment_types,omitempty"`
	LegalConcepts   []string `json:"legal_concepts,omitempty"`
	SectionRefs     []string `json:"section_references,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	TextType        string   `json:"text_type,omitempty"`
}

// Chunk is the atomic retrievable unit: a span of cleaned statute text with
// its metadata. ID is the stable ordinal handle assigned at insertion time
// and is used to correlate results across the dense and sparse indices.
type Chunk struct {
	ID       int      `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// SearchResult is a chunk paired with a normalized similarity score
// (higher = more relevant, regardless of the backend's distance metric).
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// Filter restricts dense search to chunks whose metadata field Key contains
// (or equals, for scalar fields) Value.
type Filter struct {
	Key   string
	Value string
}

// Matches reports whether a chunk satisfies the filter.
func (f *Filter) Matches(c Chunk) bool {
	if f == nil {
		return true
	}
	switch f.Key {
	case "crime_types":
		return containsString(c.Metadata.CrimeTypes, f.Value)
	case "punishment_types":
		return containsString(c.Metadata.PunishmentTypes, f.Value)
	case "legal_concepts":
		return containsString(c.Metadata.LegalConcepts, f.Value)
	case "section_references":
		return containsString(c.Metadata.SectionRefs, f.Value)
	case "keywords":
		return containsString(c.Metadata.Keywords, f.Value)
	case "text_type":
		return c.Metadata.TextType == f.Value
	case "section":
		return c.Metadata.Section == f.Value
	case "subsection":
		return c.Metadata.Subsection == f.Value
	case "document_title":
		return c.Metadata.DocumentTitle == f.Value
	default:
		// Unknown keys match nothing rather than silently matching everything.
		return false
	}
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Backend defines the contract every dense vector backend satisfies.
type Backend interface {
	// Add indexes chunks with their embedding vectors. Callers guarantee
	// len(chunks) == len(vectors) and that chunk IDs continue the ordinal
	// sequence of previous insertions.
	Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error

	// Search returns up to k results ordered by descending similarity.
	// The filter, when non-nil, is applied at the index layer.
	Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]SearchResult, error)

	// Size returns the number of indexed chunks.
	Size(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
