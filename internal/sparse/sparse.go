// Package sparse implements a TF-IDF term index over the chunk corpus for
// keyword-overlap scoring. The index is built once from the full corpus and
// is read-only afterwards; it is rebuilt in batch whenever the corpus is.
package sparse

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// DefaultMaxFeatures caps the vocabulary size.
const DefaultMaxFeatures = 10000

// Scored pairs a document ordinal with its relevance score.
type Scored struct {
	DocID int
	Score float64
}

// Index is a fitted TF-IDF index. Documents are identified by their ordinal
// position in the corpus the index was built from, which by construction is
// the chunk's stable ID in the metadata store.
type Index struct {
	maxFeatures int
	vocab       map[string]int // term -> feature column
	idf         []float64
	docs        []map[int]float64 // L2-normalized tf-idf vectors, sparse
}

// NewIndex builds a TF-IDF index over the given document texts. Vocabulary
// is capped at maxFeatures terms (the most frequent corpus-wide), with
// english stop-words excluded. An empty corpus yields an index whose
// searches return no results.
func NewIndex(texts []string, maxFeatures int) *Index {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	idx := &Index{
		maxFeatures: maxFeatures,
		vocab:       make(map[string]int),
	}
	idx.fit(texts)
	return idx
}

func (idx *Index) fit(texts []string) {
	if len(texts) == 0 {
		return
	}

	// First pass: term counts for vocabulary selection and document
	// frequencies for IDF.
	tokenized := make([][]string, len(texts))
	totalCount := make(map[string]int)
	docFreq := make(map[string]int)
	for i, text := range texts {
		tokens := Tokenize(text)
		tokenized[i] = tokens
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			totalCount[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				docFreq[tok]++
			}
		}
	}

	terms := make([]string, 0, len(totalCount))
	for term := range totalCount {
		terms = append(terms, term)
	}
	// Keep the most frequent terms; alphabetical tie-break keeps the
	// vocabulary deterministic across rebuilds.
	sort.Slice(terms, func(i, j int) bool {
		if totalCount[terms[i]] != totalCount[terms[j]] {
			return totalCount[terms[i]] > totalCount[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > idx.maxFeatures {
		terms = terms[:idx.maxFeatures]
	}

	idx.idf = make([]float64, len(terms))
	n := float64(len(texts))
	for col, term := range terms {
		idx.vocab[term] = col
		// Smoothed IDF: ln((1+n)/(1+df)) + 1, never zero or negative.
		idx.idf[col] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	// Second pass: per-document tf-idf vectors, L2-normalized so the dot
	// product against a normalized query is cosine similarity.
	idx.docs = make([]map[int]float64, len(texts))
	for i, tokens := range tokenized {
		idx.docs[i] = idx.vectorize(tokens)
	}
}

// vectorize turns tokens into an L2-normalized sparse tf-idf vector.
func (idx *Index) vectorize(tokens []string) map[int]float64 {
	vec := make(map[int]float64)
	for _, tok := range tokens {
		if col, ok := idx.vocab[tok]; ok {
			vec[col]++
		}
	}
	if len(vec) == 0 {
		return vec
	}

	var norm float64
	for col, tf := range vec {
		w := tf * idx.idf[col]
		vec[col] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for col := range vec {
		vec[col] /= norm
	}
	return vec
}

// Search scores every indexed document against the query by dot product of
// tf-idf vectors and returns the top k, descending, ties broken by document
// order. Documents with zero score are excluded. An empty corpus or a query
// with no in-vocabulary terms returns an empty list, never an error.
func (idx *Index) Search(query string, k int) []Scored {
	if k <= 0 || len(idx.docs) == 0 {
		return []Scored{}
	}

	queryVec := idx.vectorize(Tokenize(query))
	if len(queryVec) == 0 {
		return []Scored{}
	}

	results := make([]Scored, 0, len(idx.docs))
	for docID, docVec := range idx.docs {
		var score float64
		for col, qw := range queryVec {
			if dw, ok := docVec[col]; ok {
				score += qw * dw
			}
		}
		if score > 0 {
			results = append(results, Scored{DocID: docID, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Size returns the number of indexed documents.
func (idx *Index) Size() int {
	return len(idx.docs)
}

// VocabularySize returns the number of terms in the fitted vocabulary.
func (idx *Index) VocabularySize() int {
	return len(idx.vocab)
}

// Tokenize lowercases text and splits it into alphanumeric terms, dropping
// single characters and stop-words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || isStopWord(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
