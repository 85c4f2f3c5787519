package vectorstore

import (
	"context"
	"path/filepath"
	"testing"
)

func newFlatFixture(t *testing.T) (*FlatBackend, *MetadataStore) {
	t.Helper()
	dir := t.TempDir()

	meta, err := OpenMetadataStore(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatalf("opening metadata store: %v", err)
	}
	backend, err := NewFlatBackend(dir, "test", 3, meta)
	if err != nil {
		t.Fatalf("opening flat backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend, meta
}

func TestFlatBackend_AddAndSearch(t *testing.T) {
	backend, meta := newFlatFixture(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: 0, Text: "robbery", Metadata: Metadata{CrimeTypes: []string{"robbery"}}},
		{ID: 1, Text: "kidnapping", Metadata: Metadata{CrimeTypes: []string{"kidnapping"}}},
		{ID: 2, Text: "fraud", Metadata: Metadata{CrimeTypes: []string{"fraud"}}},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	if err := backend.Add(ctx, chunks, vectors); err != nil {
		t.Fatalf("adding: %v", err)
	}
	if err := meta.Append(chunks); err != nil {
		t.Fatalf("appending metadata: %v", err)
	}

	results, err := backend.Search(ctx, []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != 0 {
		t.Errorf("expected exact match first, got chunk %d", results[0].Chunk.ID)
	}
	// Exact match has zero distance, similarity 1.
	if results[0].Score != 1 {
		t.Errorf("exact match score = %f, want 1", results[0].Score)
	}
	if results[1].Score >= results[0].Score {
		t.Error("results not ordered by descending similarity")
	}
}

func TestFlatBackend_SearchWithFilter(t *testing.T) {
	backend, meta := newFlatFixture(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: 0, Text: "bank robbery", Metadata: Metadata{CrimeTypes: []string{"robbery"}}},
		{ID: 1, Text: "mail fraud", Metadata: Metadata{CrimeTypes: []string{"fraud"}}},
	}
	vectors := [][]float32{{1, 0, 0}, {0.9, 0.1, 0}}
	if err := backend.Add(ctx, chunks, vectors); err != nil {
		t.Fatalf("adding: %v", err)
	}
	if err := meta.Append(chunks); err != nil {
		t.Fatalf("appending metadata: %v", err)
	}

	results, err := backend.Search(ctx, []float32{1, 0, 0}, 5, &Filter{Key: "crime_types", Value: "fraud"})
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != 1 {
		t.Errorf("filter crime_types=fraud returned %+v", results)
	}
}

func TestFlatBackend_DimensionMismatch(t *testing.T) {
	backend, _ := newFlatFixture(t)
	ctx := context.Background()

	err := backend.Add(ctx, []Chunk{{ID: 0}}, [][]float32{{1, 0}})
	if err == nil {
		t.Error("expected error for wrong vector dimension on Add")
	}
	if _, err := backend.Search(ctx, []float32{1, 0}, 5, nil); err == nil {
		t.Error("expected error for wrong query dimension")
	}
}

func TestFlatBackend_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	meta, err := OpenMetadataStore(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatalf("opening metadata store: %v", err)
	}
	backend, err := NewFlatBackend(dir, "test", 3, meta)
	if err != nil {
		t.Fatalf("opening flat backend: %v", err)
	}

	chunks := []Chunk{{ID: 0, Text: "robbery"}}
	if err := backend.Add(ctx, chunks, [][]float32{{0.5, 0.5, 0}}); err != nil {
		t.Fatalf("adding: %v", err)
	}
	if err := meta.Append(chunks); err != nil {
		t.Fatalf("appending metadata: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	meta2, err := OpenMetadataStore(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatalf("reloading metadata store: %v", err)
	}
	reopened, err := NewFlatBackend(dir, "test", 3, meta2)
	if err != nil {
		t.Fatalf("reopening flat backend: %v", err)
	}
	defer reopened.Close()

	n, err := reopened.Size(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Size after reopen = %d, %v", n, err)
	}
	results, err := reopened.Search(ctx, []float32{0.5, 0.5, 0}, 1, nil)
	if err != nil || len(results) != 1 {
		t.Fatalf("search after reopen: %v, %d results", err, len(results))
	}
	if results[0].Chunk.Text != "robbery" {
		t.Errorf("reloaded chunk text = %q", results[0].Chunk.Text)
	}
}

func TestFlatBackend_RejectsMisalignedIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	meta, err := OpenMetadataStore(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatalf("opening metadata store: %v", err)
	}
	backend, err := NewFlatBackend(dir, "test", 3, meta)
	if err != nil {
		t.Fatalf("opening flat backend: %v", err)
	}
	// Vector persisted without its metadata entry.
	if err := backend.Add(ctx, []Chunk{{ID: 0}}, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("adding: %v", err)
	}
	backend.Close()

	meta2, err := OpenMetadataStore(filepath.Join(dir, "meta.json"))
	if err != nil {
		t.Fatalf("reloading metadata store: %v", err)
	}
	if _, err := NewFlatBackend(dir, "test", 3, meta2); err == nil {
		t.Error("expected reopen to reject vector/metadata count mismatch")
	}
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75, 0}
	decoded, err := decodeVector(encodeVector(vec))
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(decoded) != len(vec) {
		t.Fatalf("length %d, want %d", len(decoded), len(vec))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Errorf("element %d = %f, want %f", i, decoded[i], vec[i])
		}
	}

	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated encoding")
	}
}
