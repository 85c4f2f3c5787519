package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// maxBatchSize is the ceiling on points per backend insert call. Large
// builds are split so a backend-imposed batch limit never rejects an add.
const maxBatchSize = 5000

// Options configures a Store.
type Options struct {
	// Type selects the preferred backend: "qdrant" or "flat".
	Type string

	// Path is the directory holding the flat index and the metadata store.
	Path string

	// Collection names the corpus; it scopes both the Qdrant collection and
	// the on-disk file names.
	Collection string

	// QdrantURL is the Qdrant gRPC address, used when Type is "qdrant".
	QdrantURL string

	// Dimension is the embedding dimension D, fixed per deployment.
	Dimension int

	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// Store pairs a dense vector backend with the positional metadata store and
// keeps the two ordinally aligned. All index builds and searches go through
// it; a search failure degrades to an empty result rather than surfacing.
type Store struct {
	backend Backend
	meta    *MetadataStore
	logger  *slog.Logger
}

// Open constructs the preferred backend, falling back to the local flat
// index when the preferred one fails to initialize. Initialization of the
// metadata store itself is fatal: without it no backend can be aligned.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metaPath := filepath.Join(opts.Path, opts.Collection+"_metadata.json")
	meta, err := OpenMetadataStore(metaPath)
	if err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}

	var backend Backend
	switch opts.Type {
	case "qdrant":
		backend, err = NewQdrantBackend(ctx, opts.QdrantURL, opts.Collection, opts.Dimension)
		if err != nil {
			logger.Warn("qdrant backend unavailable, falling back to flat index",
				"url", opts.QdrantURL,
				"error", err,
			)
			backend, err = NewFlatBackend(opts.Path, opts.Collection, opts.Dimension, meta)
		}
	case "flat":
		backend, err = NewFlatBackend(opts.Path, opts.Collection, opts.Dimension, meta)
	default:
		return nil, fmt.Errorf("unknown vector store type %q", opts.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing vector backend: %w", err)
	}

	logger.Info("vector store ready",
		"type", fmt.Sprintf("%T", backend),
		"collection", opts.Collection,
		"chunks", meta.Len(),
	)

	return &Store{backend: backend, meta: meta, logger: logger}, nil
}

// NewStore wires an explicit backend and metadata store together. Tests and
// callers that construct their own backend use this.
func NewStore(backend Backend, meta *MetadataStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, meta: meta, logger: logger}
}

// Add indexes chunks with their embeddings, assigning ordinal IDs that
// continue the metadata store's sequence. A count mismatch is rejected
// before any write. Insertion happens in batches; the metadata store is
// appended only after a batch lands in the backend, so a failed batch
// leaves earlier batches aligned and later ones unwritten.
func (s *Store) Add(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk count %d does not match embedding count %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	for start := 0; start < len(chunks); start += maxBatchSize {
		end := min(start+maxBatchSize, len(chunks))

		batch := make([]Chunk, end-start)
		copy(batch, chunks[start:end])
		base := s.meta.Len()
		for i := range batch {
			batch[i].ID = base + i
		}

		if err := s.backend.Add(ctx, batch, embeddings[start:end]); err != nil {
			return fmt.Errorf("adding batch starting at %d: %w", start, err)
		}
		if err := s.meta.Append(batch); err != nil {
			return fmt.Errorf("recording metadata for batch starting at %d: %w", start, err)
		}

		s.logger.Debug("indexed batch", "from", base, "count", len(batch))
	}

	s.logger.Info("indexed chunks", "count", len(chunks), "total", s.meta.Len())
	return nil
}

// Search delegates to the backend. Errors are logged and reported as an
// empty result: retrieval degrades, it never fails the query pipeline.
func (s *Store) Search(ctx context.Context, vector []float32, k int, filter *Filter) []SearchResult {
	results, err := s.backend.Search(ctx, vector, k, filter)
	if err != nil {
		s.logger.Error("vector search failed", "error", err)
		return []SearchResult{}
	}
	return results
}

// Size returns the number of indexed chunks, or zero when the backend
// cannot be reached.
func (s *Store) Size(ctx context.Context) int {
	n, err := s.backend.Size(ctx)
	if err != nil {
		s.logger.Error("vector store size check failed", "error", err)
		return 0
	}
	return n
}

// Metadata exposes the positional metadata store; the sparse index builds
// its corpus from it.
func (s *Store) Metadata() *MetadataStore {
	return s.meta
}

// Close releases backend resources.
func (s *Store) Close() error {
	return s.backend.Close()
}
