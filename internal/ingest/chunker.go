package ingest

import (
	"regexp"
	"strings"
)

// ChunkerConfig bounds chunk sizes in characters.
type ChunkerConfig struct {
	// Size is the target maximum characters per chunk.
	Size int

	// Overlap is the number of trailing characters from the previous chunk
	// prepended to the next for context continuity.
	Overlap int

	// MinSize drops fragments smaller than this.
	MinSize int
}

// DefaultChunkerConfig matches the deployment defaults for statutory text.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{Size: 500, Overlap: 100, MinSize: 50}
}

// Chunker splits cleaned statute text into retrieval-sized pieces, cutting
// at section markers first and sentence boundaries second.
type Chunker struct {
	config ChunkerConfig
}

// NewChunker creates a chunker, applying defaults for zero values.
func NewChunker(config ChunkerConfig) *Chunker {
	def := DefaultChunkerConfig()
	if config.Size <= 0 {
		config.Size = def.Size
	}
	if config.Overlap < 0 || config.Overlap >= config.Size {
		config.Overlap = def.Overlap
	}
	if config.MinSize <= 0 {
		config.MinSize = def.MinSize
	}
	return &Chunker{config: config}
}

// sectionMarker matches statute section headers like "§ 2113" or "§ 2113.1(a)".
var sectionMarker = regexp.MustCompile(`§\s*\d+(?:\.\d+)?(?:\s*\([a-zA-Z0-9]+\))?`)

// Chunk splits text into chunks. Sections small enough to fit stay whole;
// oversized sections are split at sentence boundaries and recombined up to
// the size bound, with overlap between consecutive pieces. Empty input
// yields nil.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for _, section := range splitBySections(text) {
		if len(section) <= c.config.Size {
			if len(section) >= c.config.MinSize {
				chunks = append(chunks, section)
			}
			continue
		}
		chunks = append(chunks, c.splitBySentences(section)...)
	}

	// A short document with no section markers still becomes one chunk.
	if chunks == nil && len(text) >= c.config.MinSize {
		chunks = []string{text}
	}
	return chunks
}

// splitBySections splits at section markers, keeping each marker attached
// to the text that follows it. Text before the first marker is kept as its
// own piece; text without markers comes back whole.
func splitBySections(text string) []string {
	locs := sectionMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	var parts []string
	if lead := strings.TrimSpace(text[:locs[0][0]]); lead != "" {
		parts = append(parts, lead)
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if part := strings.TrimSpace(text[loc[0]:end]); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func (c *Chunker) splitBySentences(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		if len(text) >= c.config.MinSize {
			return []string{text}
		}
		return nil
	}

	var chunks []string
	var current string
	for _, sentence := range sentences {
		candidate := sentence
		if current != "" {
			candidate = current + " " + sentence
		}
		if len(candidate) <= c.config.Size {
			current = candidate
			continue
		}
		if len(current) >= c.config.MinSize {
			chunks = append(chunks, current)
		}
		current = sentence
	}
	if len(current) >= c.config.MinSize {
		chunks = append(chunks, current)
	}

	return c.addOverlap(chunks)
}

// addOverlap prepends the tail of each previous chunk to the next.
func (c *Chunker) addOverlap(chunks []string) []string {
	if c.config.Overlap <= 0 || len(chunks) < 2 {
		return chunks
	}

	overlapped := make([]string, len(chunks))
	overlapped[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		n := min(c.config.Overlap, len(prev))
		overlapped[i] = prev[len(prev)-n:] + " " + chunks[i]
	}
	return overlapped
}

// splitSentences splits text on terminal punctuation followed by
// whitespace, keeping common abbreviations ("U.S.C.", "Sec.", "e.g.")
// inside a sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' {
			continue
		}
		candidate := strings.TrimSpace(text[start : i+1])
		if ch == '.' && endsWithAbbreviation(candidate) {
			continue
		}
		if candidate != "" {
			sentences = append(sentences, candidate)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

var abbreviations = []string{"U.S.C.", "Sec.", "Dr.", "Mr.", "Mrs.", "e.g.", "i.e.", "etc.", "et seq.", "No.", "v."}

func endsWithAbbreviation(s string) bool {
	for _, abbr := range abbreviations {
		if strings.HasSuffix(s, abbr) {
			return true
		}
	}
	return false
}
