// Package query normalizes and analyzes user queries before retrieval:
// cleaning, keyword extraction, intent classification, and expansion.
// It feeds the retriever but performs no ranking itself.
package query

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lexrag/lexrag/internal/sparse"
)

// Intent classifies what a legal question is asking for.
type Intent string

const (
	IntentPunishment      Intent = "punishment"
	IntentCrimeDefinition Intent = "crime_definition"
	IntentElements        Intent = "elements"
	IntentExceptions      Intent = "exceptions"
	IntentReferences      Intent = "references"
	IntentGeneral         Intent = "general"
)

// Processed is the ephemeral result of query understanding. It is not
// persisted anywhere.
type Processed struct {
	Original    string
	Cleaned     string
	Keywords    []string
	Intent      Intent
	SectionRefs []string
	Expanded    []string
}

// intentCues maps each intent to the cue words scored against the query.
var intentCues = map[Intent][]string{
	IntentPunishment:      {"what", "how", "sentence", "penalty", "fine", "prison"},
	IntentCrimeDefinition: {"what", "define", "is", "criminal", "offense"},
	IntentElements:        {"element", "requires", "must", "need", "necessary"},
	IntentExceptions:      {"except", "unless", "provided", "exclude"},
	IntentReferences:      {"cite", "section", "statute", "usc", "code"},
}

// synonyms substituted during expansion to bridge statutory vocabulary.
var expansionSynonyms = map[string]string{
	"theft":   "larceny",
	"robbery": "18 U.S.C. § 2113",
}

var (
	uscPattern        = regexp.MustCompile(`U\.?\s?S\.?\s?C\.?`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	sectionRefPattern = regexp.MustCompile(`(?:\d+\s+U\.S\.C\.\s*)?§\s*(\d+(?:\.\d+)?)`)
)

// Options configures the processor.
type Options struct {
	// Expansion enables generation of query variants.
	Expansion bool

	// Classification enables intent classification; when disabled every
	// query is IntentGeneral.
	Classification bool
}

// Processor analyzes raw queries.
type Processor struct {
	opts Options
}

// NewProcessor creates a query processor.
func NewProcessor(opts Options) *Processor {
	return &Processor{opts: opts}
}

// Process cleans and analyzes a query. An empty or whitespace-only query
// yields a Processed with empty Cleaned text; the retriever treats that as
// degenerate input.
func (p *Processor) Process(raw string) Processed {
	cleaned := Clean(raw)
	if cleaned == "" {
		return Processed{Original: raw, Intent: IntentGeneral}
	}

	processed := Processed{
		Original:    raw,
		Cleaned:     cleaned,
		Keywords:    Keywords(cleaned),
		Intent:      IntentGeneral,
		SectionRefs: sectionRefs(cleaned),
	}
	if p.opts.Classification {
		processed.Intent = classifyIntent(cleaned)
	}
	if p.opts.Expansion {
		processed.Expanded = expand(cleaned, processed.Keywords)
	}
	return processed
}

// Clean normalizes whitespace and common citation spellings ("U. S. C.",
// "USC" -> "U.S.C.").
func Clean(raw string) string {
	q := whitespacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
	q = uscPattern.ReplaceAllString(q, "U.S.C.")
	return q
}

// Keywords extracts the content-bearing terms of the query, stop-words and
// single characters excluded, deduplicated in first-seen order.
func Keywords(cleaned string) []string {
	tokens := sparse.Tokenize(cleaned)
	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}

func classifyIntent(cleaned string) Intent {
	lower := strings.ToLower(cleaned)

	best := IntentGeneral
	bestScore := 0
	// Deterministic iteration order for stable tie-breaking.
	intents := make([]Intent, 0, len(intentCues))
	for intent := range intentCues {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })

	for _, intent := range intents {
		score := 0
		for _, cue := range intentCues[intent] {
			if strings.Contains(lower, cue) {
				score++
			}
		}
		if score > bestScore {
			best = intent
			bestScore = score
		}
	}
	return best
}

func sectionRefs(cleaned string) []string {
	matches := sectionRefPattern.FindAllStringSubmatch(cleaned, -1)
	refs := make([]string, 0, len(matches))
	seen := make(map[string]struct{})
	for _, m := range matches {
		ref := m[1]
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

// expand produces query variants: legal-context suffixes, statutory synonym
// substitutions, and keyword recombinations. Duplicates are removed while
// preserving generation order.
func expand(cleaned string, keywords []string) []string {
	variants := []string{
		cleaned + " law",
		cleaned + " statute",
		cleaned + " legal",
	}

	lower := strings.ToLower(cleaned)
	for term, replacement := range expansionSynonyms {
		if strings.Contains(lower, term) {
			variants = append(variants, strings.ReplaceAll(lower, term, replacement))
		}
	}

	if len(keywords) > 0 {
		joined := strings.Join(keywords, " ")
		variants = append(variants, joined+" punishment", joined+" offense")
	}

	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
