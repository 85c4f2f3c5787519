package ingest

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Page is one page of extracted statute text with its positional metadata.
type Page struct {
	Number     int
	Text       string
	Section    string
	Subsection string
}

var subsectionMarker = regexp.MustCompile(`\(([a-zA-Z0-9]+)\)`)

// ReadPages loads a pre-extracted statute text file. Pages are separated by
// form-feed characters, the convention of the PDF extraction step. The
// section and subsection of a page are taken from the first markers
// appearing on it; pages before the first marker carry none.
func ReadPages(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source document: %w", err)
	}

	raw := strings.Split(string(data), "\f")
	pages := make([]Page, 0, len(raw))
	var lastSection, lastSubsection string

	for i, text := range raw {
		if strings.TrimSpace(text) == "" {
			continue
		}

		// Carry the running section forward: most pages continue the
		// section opened on an earlier page.
		if m := sectionMarker.FindString(text); m != "" {
			lastSection = strings.TrimSpace(m)
			lastSubsection = ""
		}
		if m := subsectionMarker.FindStringSubmatch(text); m != nil {
			lastSubsection = m[1]
		}

		pages = append(pages, Page{
			Number:     i + 1,
			Text:       text,
			Section:    lastSection,
			Subsection: lastSubsection,
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("source document %s contains no text", path)
	}
	return pages, nil
}
