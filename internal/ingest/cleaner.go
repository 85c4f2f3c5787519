// Package ingest turns extracted statute text into embedded, metadata-rich
// chunks and drives the batch index build. PDF text extraction itself is an
// external concern; this package consumes the extracted text.
package ingest

import (
	"regexp"
	"strings"
)

var (
	multipleSpaces  = regexp.MustCompile(`[ \t]{2,}`)
	blankLines      = regexp.MustCompile(`\n\s*\n`)
	lineNumbers     = regexp.MustCompile(`(?m)^\s*\d+\s+`)
	urls            = regexp.MustCompile(`https?://\S+`)
	uscVariants     = regexp.MustCompile(`U\.?\s?S\.?\s?C\.?`)
	sectionSpelling = regexp.MustCompile(`&sect;|Sec\.|Section\s+(?:§\s*)?`)
)

// CleanText normalizes extracted page text: collapses whitespace, strips
// line numbers and URLs left by PDF extraction, drops control characters,
// and normalizes legal citation spellings so downstream regexes see a
// single form.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\f", " ")
	text = lineNumbers.ReplaceAllString(text, "")
	text = urls.ReplaceAllString(text, "")
	text = stripControlChars(text)
	text = multipleSpaces.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")

	text = uscVariants.ReplaceAllString(text, "U.S.C.")
	text = sectionSpelling.ReplaceAllString(text, "§ ")

	return strings.TrimSpace(text)
}

func stripControlChars(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r >= 32 || r == '\n' || r == '\t' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
