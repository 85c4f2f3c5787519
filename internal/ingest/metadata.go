package ingest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lexrag/lexrag/internal/sparse"
	"github.com/lexrag/lexrag/internal/vectorstore"
)

// Keyword sets scanned during metadata extraction. These drive the
// metadata filters at query time, so additions here widen the filterable
// vocabulary without touching the retriever.
var (
	crimeKeywords = []string{
		"arson", "assault", "battery", "blackmail", "bribery", "burglary",
		"conspiracy", "corruption", "counterfeiting", "drug", "embezzlement",
		"extortion", "forgery", "fraud", "homicide", "kidnapping", "larceny",
		"manslaughter", "murder", "rape", "robbery", "theft",
	}

	punishmentKeywords = []string{
		"confinement", "detention", "fine", "imprisonment", "incarceration",
		"penalty", "probation", "punishment", "restitution", "sentence",
	}

	legalConceptKeywords = []string{
		"convicted", "crime", "guilty", "may", "must", "offense", "person",
		"prohibited", "required", "shall", "unlawful", "violation",
	}
)

var (
	sectionRefPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:\d+\s+U\.S\.C\.\s*)?§\s*(\d+(?:\.\d+)?)`),
		regexp.MustCompile(`18\s+U\.S\.C\.\s+(\d+)`),
	}
	amountPattern = regexp.MustCompile(`\$\d+(?:,\d{3})*|\d+\s*(?:years?|months?|days?)`)
)

// maxChunkKeywords bounds the extracted keyword list per chunk.
const maxChunkKeywords = 10

// ExtractMetadata enriches a chunk's metadata with semantic tags scanned
// from its text: crime types, punishment types (including concrete fine and
// term amounts), legal concepts, statute section references, frequent
// keywords, and a coarse text-type classification. Positional fields
// already present (page, section, title) are preserved.
func ExtractMetadata(text string, meta vectorstore.Metadata) vectorstore.Metadata {
	lower := strings.ToLower(text)

	meta.CrimeTypes = matchKeywords(lower, crimeKeywords)
	meta.PunishmentTypes = extractPunishments(text, lower)
	meta.LegalConcepts = matchKeywords(lower, legalConceptKeywords)
	meta.SectionRefs = extractSectionRefs(text)
	meta.Keywords = topKeywords(text, maxChunkKeywords)
	meta.TextType = classifyTextType(lower)

	return meta
}

func matchKeywords(lower string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

func extractPunishments(text, lower string) []string {
	found := matchKeywords(lower, punishmentKeywords)
	found = append(found, amountPattern.FindAllString(text, -1)...)
	return dedupe(found)
}

func extractSectionRefs(text string) []string {
	var refs []string
	for _, pattern := range sectionRefPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			refs = append(refs, m[len(m)-1])
		}
	}
	return dedupe(refs)
}

// topKeywords returns the most frequent content terms of the chunk,
// ties broken alphabetically for determinism.
func topKeywords(text string, n int) []string {
	counts := make(map[string]int)
	for _, tok := range sparse.Tokenize(text) {
		if len(tok) > 3 {
			counts[tok]++
		}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func classifyTextType(lower string) string {
	switch {
	case strings.Contains(lower, "definition") || strings.Contains(lower, "means"):
		return "definition"
	case containsAny(lower, "prison", "fine", "penalty", "imprisonment"):
		return "punishment"
	case containsAny(lower, "guilty", "conviction", "offense", "crime"):
		return "crime_description"
	case strings.Contains(lower, "provided") || strings.Contains(lower, "except"):
		return "exception_clause"
	default:
		return "general"
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
