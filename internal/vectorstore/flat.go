package vectorstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var flatVectorsBucket = []byte("vectors")

// FlatBackend is an exact brute-force vector index. Vectors live in memory
// for search and are persisted to a bbolt file keyed by ordinal, so the
// index survives restarts without re-embedding. It is the fallback backend
// when Qdrant is unreachable, and fast enough for a corpus of tens of
// thousands of chunks.
type FlatBackend struct {
	mu        sync.RWMutex
	db        *bolt.DB
	meta      *MetadataStore
	dimension int
	vectors   [][]float32
}

// NewFlatBackend opens (or creates) the flat index persisted under dir and
// loads all vectors into memory. Chunk lookup and filtering go through the
// shared metadata store.
func NewFlatBackend(dir, collection string, dimension int, meta *MetadataStore) (*FlatBackend, error) {
	path := filepath.Join(dir, collection+".index.db")
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("opening flat index: %w", err)
	}

	b := &FlatBackend{
		db:        db,
		meta:      meta,
		dimension: dimension,
	}

	if err := b.load(); err != nil {
		db.Close()
		return nil, err
	}

	if len(b.vectors) != meta.Len() {
		db.Close()
		return nil, fmt.Errorf("flat index holds %d vectors but metadata store holds %d chunks", len(b.vectors), meta.Len())
	}

	return b, nil
}

func (b *FlatBackend) load() error {
	return b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(flatVectorsBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			vec, err := decodeVector(v)
			if err != nil {
				return fmt.Errorf("vector %d: %w", ordinalFromKey(k), err)
			}
			b.vectors = append(b.vectors, vec)
			return nil
		})
	})
}

// Add appends vectors for the given chunks. The whole batch is written in a
// single transaction: either every vector lands or none do, so a failure
// cannot leave the index misaligned with the metadata store.
func (b *FlatBackend) Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk count %d does not match vector count %d", len(chunks), len(vectors))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, vec := range vectors {
		if len(vec) != b.dimension {
			return fmt.Errorf("vector for chunk %d has dimension %d, want %d", chunks[i].ID, len(vec), b.dimension)
		}
	}

	start := len(b.vectors)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(flatVectorsBucket)
		if err != nil {
			return err
		}
		for i, vec := range vectors {
			if err := bucket.Put(keyFromOrdinal(start+i), encodeVector(vec)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persisting vectors: %w", err)
	}

	b.vectors = append(b.vectors, vectors...)
	return nil
}

// Search scans every stored vector, converts L2 distance to a similarity in
// (0, 1] via 1/(1+d), applies the metadata filter, and returns the top k.
func (b *FlatBackend) Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != b.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, want %d", len(vector), b.dimension)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if k <= 0 || len(b.vectors) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(b.vectors))
	for i, stored := range b.vectors {
		chunk, ok := b.meta.Get(i)
		if !ok {
			return nil, fmt.Errorf("no metadata at position %d", i)
		}
		if !filter.Matches(chunk) {
			continue
		}
		similarity := 1.0 / (1.0 + l2Distance(vector, stored))
		results = append(results, SearchResult{Chunk: chunk, Score: similarity})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Size returns the number of indexed vectors.
func (b *FlatBackend) Size(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.vectors), nil
}

// Close closes the underlying bbolt file.
func (b *FlatBackend) Close() error {
	return b.db.Close()
}

func l2Distance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector encoding (%d bytes)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

func keyFromOrdinal(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}

func ordinalFromKey(key []byte) int {
	return int(binary.BigEndian.Uint64(key))
}

// Ensure FlatBackend implements Backend.
var _ Backend = (*FlatBackend)(nil)
