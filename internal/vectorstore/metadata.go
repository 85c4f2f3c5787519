package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// MetadataStore is a positional, append-only store of chunk records.
// It persists as a JSON object whose keys are stringified ordinals
// ("0", "1", ...) so an index can be reloaded without re-running ingestion.
// Position is identity: the chunk appended i-th is retrievable at i.
type MetadataStore struct {
	mu     sync.RWMutex
	path   string
	chunks []Chunk
}

// OpenMetadataStore loads the metadata store at path, creating an empty one
// if the file does not exist.
func OpenMetadataStore(path string) (*MetadataStore, error) {
	s := &MetadataStore{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata store: %w", err)
	}

	var byOrdinal map[string]Chunk
	if err := json.Unmarshal(data, &byOrdinal); err != nil {
		return nil, fmt.Errorf("parsing metadata store: %w", err)
	}

	s.chunks = make([]Chunk, len(byOrdinal))
	for key, chunk := range byOrdinal {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(byOrdinal) {
			return nil, fmt.Errorf("metadata store has non-positional key %q", key)
		}
		s.chunks[i] = chunk
	}

	return s, nil
}

// Append adds chunks at the end of the store and persists. The caller has
// already assigned ordinal IDs; Append verifies they continue the sequence
// so a bad caller cannot break positional alignment.
func (s *MetadataStore) Append(chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, chunk := range chunks {
		if want := len(s.chunks) + i; chunk.ID != want {
			return fmt.Errorf("chunk ID %d does not continue ordinal sequence (want %d)", chunk.ID, want)
		}
	}

	s.chunks = append(s.chunks, chunks...)
	if err := s.save(); err != nil {
		// Roll back the in-memory append so memory and disk stay consistent.
		s.chunks = s.chunks[:len(s.chunks)-len(chunks)]
		return err
	}
	return nil
}

// Get returns the chunk at ordinal position i.
func (s *MetadataStore) Get(i int) (Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.chunks) {
		return Chunk{}, false
	}
	return s.chunks[i], true
}

// All returns a copy of every stored chunk in ordinal order.
func (s *MetadataStore) All() []Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Len returns the number of stored chunks.
func (s *MetadataStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// save writes the store to disk atomically. Callers hold the write lock.
func (s *MetadataStore) save() error {
	byOrdinal := make(map[string]Chunk, len(s.chunks))
	for i, chunk := range s.chunks {
		byOrdinal[strconv.Itoa(i)] = chunk
	}

	data, err := json.MarshalIndent(byOrdinal, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing metadata store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing metadata store: %w", err)
	}
	return nil
}
