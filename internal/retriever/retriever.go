// Package retriever implements hybrid retrieval: dense vector search and
// sparse TF-IDF search fused into one ranked result list.
package retriever

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lexrag/lexrag/internal/embedder"
	"github.com/lexrag/lexrag/internal/sparse"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

// DefaultFusionConstant is the RRF smoothing constant C. At 60 the rank
// weight 1/(C+rank) is flat enough that native scores still matter, while
// top ranks keep the largest share.
const DefaultFusionConstant = 60

// Result is a retrieved chunk with its fused relevance score. Result sets
// are ordered descending by score, ties broken by original signal rank.
type Result struct {
	Chunk vectorstore.Chunk
	Score float64
}

// Options configures a Retriever.
type Options struct {
	// K is the default result count when a caller passes k <= 0.
	K int

	// KMax caps the over-fetch breadth k' = min(2k, KMax) used to feed the
	// fusion step with enough candidates.
	KMax int

	// SimilarityThreshold drops dense results scoring below it. Applied
	// strictly after retrieval; the index never pre-filters by score.
	SimilarityThreshold float32

	// FusionConstant is the RRF constant C; zero means DefaultFusionConstant.
	FusionConstant float64

	// Hybrid enables the sparse signal. When false only dense search runs.
	Hybrid bool

	// MetadataFiltering gates the filtered entry point. When false,
	// RetrieveFiltered ignores the filter.
	MetadataFiltering bool

	// SparseMaxFeatures caps the TF-IDF vocabulary.
	SparseMaxFeatures int

	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// Retriever orchestrates dense search, sparse search, and rank fusion.
// Concurrent Retrieve calls are safe: the indices are read-only between
// rebuilds.
type Retriever struct {
	embedder embedder.Embedder
	store    *vectorstore.Store
	opts     Options
	logger   *slog.Logger

	sparseMu sync.RWMutex
	sparseIx *sparse.Index
}

// New creates a Retriever and builds the sparse index from the full current
// metadata store. The corpus is static between builds, so the sparse index
// is not incrementally maintained; RebuildSparse refreshes it after a batch
// index build.
func New(embed embedder.Embedder, store *vectorstore.Store, opts Options) *Retriever {
	if opts.FusionConstant <= 0 {
		opts.FusionConstant = DefaultFusionConstant
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Retriever{
		embedder: embed,
		store:    store,
		opts:     opts,
		logger:   opts.Logger,
	}
	r.RebuildSparse()
	return r
}

// RebuildSparse refits the TF-IDF index over the full current chunk corpus.
// The build pipeline calls this after indexing.
func (r *Retriever) RebuildSparse() {
	chunks := r.store.Metadata().All()
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	ix := sparse.NewIndex(texts, r.opts.SparseMaxFeatures)

	r.sparseMu.Lock()
	r.sparseIx = ix
	r.sparseMu.Unlock()

	r.logger.Info("built sparse index", "documents", ix.Size(), "vocabulary", ix.VocabularySize())
}

// CorpusSize returns the number of indexed chunks.
func (r *Retriever) CorpusSize() int {
	return r.store.Metadata().Len()
}

// Retrieve returns up to k chunks relevant to the query, ordered by
// descending relevance. In hybrid mode dense and sparse search each fetch
// k' = min(2k, KMax) candidates and the lists are fused; otherwise only
// dense results (threshold-filtered) are returned.
//
// Retrieval never fails the caller: a failing signal contributes nothing,
// and degenerate input (empty query or corpus) yields an empty list.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter *vectorstore.Filter) []Result {
	if k <= 0 {
		k = r.opts.K
	}
	if strings.TrimSpace(query) == "" {
		return []Result{}
	}

	if !r.opts.Hybrid {
		dense := r.denseSearch(ctx, query, k, filter)
		return truncate(denseToResults(dense), k)
	}

	kPrime := min(2*k, r.opts.KMax)

	// Dense and sparse are independent and read-only; run them in
	// parallel with fusion as the barrier. The filter applies to the
	// dense branch only.
	var (
		dense  []vectorstore.SearchResult
		sparse []Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dense = r.denseSearch(gctx, query, kPrime, filter)
		return nil
	})
	g.Go(func() error {
		sparse = r.sparseSearch(query, kPrime)
		return nil
	})
	_ = g.Wait() // sub-searches degrade internally, never error

	return truncate(r.fuse(dense, sparse), k)
}

// RetrieveFiltered restricts retrieval to chunks whose metadata field key
// contains value, e.g. key "crime_types", value "robbery". Filtering is
// enforced on the dense branch only. When metadata filtering is disabled
// by configuration the filter is ignored.
func (r *Retriever) RetrieveFiltered(ctx context.Context, query, key, value string, k int) []Result {
	var filter *vectorstore.Filter
	if r.opts.MetadataFiltering {
		filter = &vectorstore.Filter{Key: key, Value: value}
	}
	return r.Retrieve(ctx, query, k, filter)
}

// denseSearch embeds the query and searches the vector backend, dropping
// results below the similarity threshold. Any failure is logged and
// reported as an empty contribution.
func (r *Retriever) denseSearch(ctx context.Context, query string, k int, filter *vectorstore.Filter) []vectorstore.SearchResult {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Error("query embedding failed", "error", err)
		return []vectorstore.SearchResult{}
	}

	results := r.store.Search(ctx, vector, k, filter)

	filtered := results[:0]
	for _, res := range results {
		if res.Score >= r.opts.SimilarityThreshold {
			filtered = append(filtered, res)
		}
	}

	r.logger.Debug("dense search", "candidates", len(results), "kept", len(filtered))
	return filtered
}

// sparseSearch scores the query against the TF-IDF index and resolves
// document ordinals through the metadata store.
func (r *Retriever) sparseSearch(query string, k int) []Result {
	r.sparseMu.RLock()
	ix := r.sparseIx
	r.sparseMu.RUnlock()

	if ix == nil {
		return []Result{}
	}

	scored := ix.Search(query, k)
	results := make([]Result, 0, len(scored))
	for _, s := range scored {
		chunk, ok := r.store.Metadata().Get(s.DocID)
		if !ok {
			r.logger.Warn("sparse hit has no metadata entry", "doc_id", s.DocID)
			continue
		}
		results = append(results, Result{Chunk: chunk, Score: s.Score})
	}

	r.logger.Debug("sparse search", "results", len(results))
	return results
}

// fuse combines the two ranked lists with score-weighted reciprocal rank
// fusion: each list contributes native_score / (C + rank) per chunk, and a
// chunk ranked by both signals accumulates both contributions. Chunks are
// identified by their stable ID, never by text content, so distinct chunks
// sharing a prefix cannot collide.
func (r *Retriever) fuse(dense []vectorstore.SearchResult, sparseResults []Result) []Result {
	c := r.opts.FusionConstant

	scores := make(map[int]float64)
	chunks := make(map[int]vectorstore.Chunk)
	order := make([]int, 0, len(dense)+len(sparseResults))

	accumulate := func(id int, chunk vectorstore.Chunk, contribution float64) {
		if _, seen := scores[id]; !seen {
			order = append(order, id)
			chunks[id] = chunk
		}
		scores[id] += contribution
	}

	for rank, res := range dense {
		accumulate(res.Chunk.ID, res.Chunk, float64(res.Score)/(c+float64(rank)))
	}
	for rank, res := range sparseResults {
		accumulate(res.Chunk.ID, res.Chunk, res.Score/(c+float64(rank)))
	}

	fused := make([]Result, 0, len(order))
	for _, id := range order {
		fused = append(fused, Result{Chunk: chunks[id], Score: scores[id]})
	}
	// Stable sort keeps first-signal rank order among equal fused scores.
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}

func denseToResults(dense []vectorstore.SearchResult) []Result {
	results := make([]Result, len(dense))
	for i, res := range dense {
		results[i] = Result{Chunk: res.Chunk, Score: float64(res.Score)}
	}
	return results
}

func truncate(results []Result, k int) []Result {
	if len(results) > k {
		return results[:k]
	}
	return results
}
