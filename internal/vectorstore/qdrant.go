package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantBackend implements Backend using Qdrant's approximate-neighbor index.
// Chunks are stored as points whose numeric ID is the chunk's ordinal, with
// the text and metadata carried in the payload so search results are
// self-contained. Collections use cosine distance, which Qdrant reports as
// a similarity score directly.
type QdrantBackend struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantBackend connects to Qdrant and ensures the collection exists.
// url should be in format "host:port" (e.g., "localhost:6334").
func NewQdrantBackend(ctx context.Context, url, collection string, dimension int) (*QdrantBackend, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	b := &QdrantBackend{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}

	if err := b.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return b, nil
}

func (b *QdrantBackend) ensureCollection(ctx context.Context) error {
	exists, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(b.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Close closes the Qdrant client connection.
func (b *QdrantBackend) Close() error {
	return b.client.Close()
}

// Add upserts chunks as points with ordinal IDs. Callers batch large
// insertions; a single call here is one atomic upsert.
func (b *QdrantBackend) Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk count %d does not match vector count %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(chunk.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: chunkPayload(chunk),
		}
	}

	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Search performs similarity search, applying the metadata filter at the
// index layer. Score thresholds are the caller's concern: the index filters
// by metadata and cardinality only.
func (b *QdrantBackend) Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]SearchResult, error) {
	if k <= 0 {
		return []SearchResult{}, nil
	}

	query := &qdrant.QueryPoints{
		CollectionName: b.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter != nil {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(filter.Key, filter.Value),
			},
		}
	}

	response, err := b.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0, len(response))
	for _, point := range response {
		results = append(results, SearchResult{
			Chunk: chunkFromPayload(int(point.Id.GetNum()), point.Payload),
			Score: point.Score,
		})
	}

	return results, nil
}

// Size returns the exact point count of the collection.
func (b *QdrantBackend) Size(ctx context.Context) (int, error) {
	count, err := b.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: b.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(count), nil
}

func chunkPayload(chunk Chunk) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"text": qdrant.NewValueString(chunk.Text),
		"page": qdrant.NewValueInt(int64(chunk.Metadata.Page)),
	}
	setString := func(key, value string) {
		if value != "" {
			payload[key] = qdrant.NewValueString(value)
		}
	}
	setList := func(key string, values []string) {
		if len(values) == 0 {
			return
		}
		items := make([]*qdrant.Value, len(values))
		for i, v := range values {
			items[i] = qdrant.NewValueString(v)
		}
		payload[key] = qdrant.NewValueList(&qdrant.ListValue{Values: items})
	}

	setString("section", chunk.Metadata.Section)
	setString("subsection", chunk.Metadata.Subsection)
	setString("document_title", chunk.Metadata.DocumentTitle)
	setString("text_type", chunk.Metadata.TextType)
	setList("crime_types", chunk.Metadata.CrimeTypes)
	setList("punishment_types", chunk.Metadata.PunishmentTypes)
	setList("legal_concepts", chunk.Metadata.LegalConcepts)
	setList("section_references", chunk.Metadata.SectionRefs)
	setList("keywords", chunk.Metadata.Keywords)

	return payload
}

func chunkFromPayload(id int, payload map[string]*qdrant.Value) Chunk {
	getString := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	getList := func(key string) []string {
		v, ok := payload[key]
		if !ok {
			return nil
		}
		values := v.GetListValue().GetValues()
		if len(values) == 0 {
			return nil
		}
		out := make([]string, 0, len(values))
		for _, item := range values {
			out = append(out, item.GetStringValue())
		}
		return out
	}

	chunk := Chunk{
		ID:   id,
		Text: getString("text"),
		Metadata: Metadata{
			Section:         getString("section"),
			Subsection:      getString("subsection"),
			DocumentTitle:   getString("document_title"),
			TextType:        getString("text_type"),
			CrimeTypes:      getList("crime_types"),
			PunishmentTypes: getList("punishment_types"),
			LegalConcepts:   getList("legal_concepts"),
			SectionRefs:     getList("section_references"),
			Keywords:        getList("keywords"),
		},
	}
	if v, ok := payload["page"]; ok {
		chunk.Metadata.Page = int(v.GetIntegerValue())
	}
	return chunk
}

// Ensure QdrantBackend implements Backend.
var _ Backend = (*QdrantBackend)(nil)
