package generate

import (
	"regexp"
	"strings"

	"github.com/lexrag/lexrag/internal/retriever"
)

// Citation is a statute reference found in a generated answer, linked back
// to the retrieved chunk that supports it when one matches.
type Citation struct {
	Statute string `json:"statute"`
	Section string `json:"section,omitempty"`
	Page    int    `json:"page,omitempty"`
}

// citationPattern matches statute references as models write them:
// "18 U.S.C. § 2113", "U.S.C. 2113(a)", "§ 2113.1".
var citationPattern = regexp.MustCompile(`(?:18\s+)?U\.S\.C\.?\s*(?:§\s*)?(\d+(?:\.\d+)?(?:\s*\([a-zA-Z0-9]+\))?)`)

// ExtractCitations scans the answer for statute references and links each
// to the first retrieved chunk whose section mentions it. References the
// model invented still appear, just without a source link; the caller can
// surface that distinction.
func ExtractCitations(answer string, results []retriever.Result) []Citation {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var citations []Citation
	for _, m := range matches {
		number := strings.TrimSpace(m[1])
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}

		citation := Citation{Statute: "18 U.S.C. § " + number}
		for _, res := range results {
			if sectionMentions(res.Chunk.Metadata.Section, number) {
				citation.Section = res.Chunk.Metadata.Section
				citation.Page = res.Chunk.Metadata.Page
				break
			}
		}
		citations = append(citations, citation)
	}
	return citations
}

// sectionMentions reports whether a chunk's section header covers the cited
// number, comparing on the bare number so "§ 2113(a)" matches "2113".
func sectionMentions(section, number string) bool {
	if section == "" {
		return false
	}
	base := number
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	return strings.Contains(section, base)
}

// normalizeStatute turns a section header like "§ 2113(a)" into the full
// citation form.
func normalizeStatute(section string) string {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(section), "§"))
	return "18 U.S.C. § " + trimmed
}
