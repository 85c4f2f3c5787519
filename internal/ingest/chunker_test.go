package ingest

import (
	"strings"
	"testing"
)

func TestChunker_EmptyText(t *testing.T) {
	chunker := NewChunker(DefaultChunkerConfig())

	if chunks := chunker.Chunk(""); chunks != nil {
		t.Errorf("expected nil for empty text, got %v", chunks)
	}
	if chunks := chunker.Chunk("   \n  "); chunks != nil {
		t.Errorf("expected nil for whitespace text, got %v", chunks)
	}
}

func TestChunker_Defaults(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{})

	if chunker.config.Size != 500 {
		t.Errorf("default Size = %d, want 500", chunker.config.Size)
	}
	if chunker.config.Overlap != 100 {
		t.Errorf("default Overlap = %d, want 100", chunker.config.Overlap)
	}
	if chunker.config.MinSize != 50 {
		t.Errorf("default MinSize = %d, want 50", chunker.config.MinSize)
	}
}

func TestChunker_SmallSectionsStayWhole(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{Size: 200, Overlap: 20, MinSize: 10})

	text := "§ 2113 Whoever takes property from a bank commits robbery. " +
		"§ 2114 Whoever assaults a mail carrier commits an offense."
	chunks := chunker.Chunk(text)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 section chunks, got %d: %v", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0], "§ 2113") {
		t.Errorf("first chunk does not start at its section marker: %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "§ 2114") {
		t.Errorf("second chunk does not start at its section marker: %q", chunks[1])
	}
}

func TestChunker_OversizedSectionSplitsAtSentences(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{Size: 120, Overlap: 20, MinSize: 10})

	var sb strings.Builder
	sb.WriteString("§ 2113 ")
	for i := 0; i < 6; i++ {
		sb.WriteString("Whoever commits the offense described here shall be fined under this title. ")
	}
	chunks := chunker.Chunk(sb.String())

	if len(chunks) < 2 {
		t.Fatalf("expected oversized section to split, got %d chunk(s)", len(chunks))
	}
	for i, chunk := range chunks {
		// Overlap may push a chunk past Size by at most Overlap+1 characters.
		if len(chunk) > 120+21 {
			t.Errorf("chunk %d length %d exceeds size plus overlap", i, len(chunk))
		}
	}
}

func TestChunker_OverlapCarriesPreviousTail(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{Size: 80, Overlap: 15, MinSize: 5})

	text := "First sentence about the robbery statute goes here. " +
		"Second sentence about the punishment follows immediately after. " +
		"Third sentence closes out the provision entirely."
	chunks := chunker.Chunk(text)
	if len(chunks) < 2 {
		t.Skipf("text produced %d chunk(s), need 2 for overlap check", len(chunks))
	}

	tail := chunks[0][len(chunks[0])-15:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("chunk 1 %q does not open with tail of chunk 0 %q", chunks[1], tail)
	}
}

func TestChunker_DropsFragmentsBelowMinSize(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{Size: 200, Overlap: 20, MinSize: 50})

	chunks := chunker.Chunk("§ 18 Too short.")
	if len(chunks) != 0 {
		t.Errorf("expected sub-minimum fragment dropped, got %v", chunks)
	}
}

func TestSplitSentences_AbbreviationsDoNotSplit(t *testing.T) {
	sentences := splitSentences("See 18 U.S.C. § 2113 for details. The penalty is severe.")

	if len(sentences) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(sentences), sentences)
	}
	if !strings.Contains(sentences[0], "U.S.C.") {
		t.Errorf("abbreviation split a sentence: %v", sentences)
	}
}

func TestCleanText(t *testing.T) {
	raw := "  Section 2113   robbery\fof banks\n\n\n visit https://example.com/law now  "
	cleaned := CleanText(raw)

	if strings.Contains(cleaned, "http") {
		t.Errorf("URL survived cleaning: %q", cleaned)
	}
	if strings.Contains(cleaned, "\f") {
		t.Errorf("form feed survived cleaning: %q", cleaned)
	}
	if strings.Contains(cleaned, "  ") {
		t.Errorf("whitespace not collapsed: %q", cleaned)
	}
	if !strings.Contains(cleaned, "§ 2113") {
		t.Errorf("section spelling not normalized: %q", cleaned)
	}
}

func TestCleanText_NormalizesUSC(t *testing.T) {
	for _, variant := range []string{"U. S. C.", "USC", "U.S.C."} {
		cleaned := CleanText("18 " + variant + " 2113")
		if !strings.Contains(cleaned, "U.S.C.") {
			t.Errorf("variant %q not normalized: %q", variant, cleaned)
		}
	}
}
