package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/docwise-ai/docgraph/pkg/common"
)

func doc(text string) common.Document {
	return common.Document{
		ID:       "doc-1",
		Text:     text,
		Metadata: map[string]string{"format": "txt"},
	}
}

func mustChunker(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestChunkEmptyDocument(t *testing.T) {
	c := mustChunker(t, Config{MaxChunkSize: 64})

	_, err := c.Chunk(doc("  \n\n  "))
	var emptyErr *common.EmptyDocumentError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyDocumentError, got %v", err)
	}
}

func TestChunkInvalidOverlap(t *testing.T) {
	if _, err := New(Config{MaxChunkSize: 64, Overlap: 64}); err == nil {
		t.Error("overlap equal to chunk size accepted")
	}
	if _, err := New(Config{MaxChunkSize: 64, Overlap: -1}); err == nil {
		t.Error("negative overlap accepted")
	}
}

func TestChunkTextIsLiteralSlice(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	c := mustChunker(t, Config{MaxChunkSize: 64, Overlap: 16})

	chunks, err := c.Chunk(doc(text))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	runes := []rune(strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n")))
	for _, chunk := range chunks {
		if chunk.EndOffset <= chunk.StartOffset {
			t.Fatalf("chunk %d has empty span [%d,%d)", chunk.SequenceIndex, chunk.StartOffset, chunk.EndOffset)
		}
		want := string(runes[chunk.StartOffset:chunk.EndOffset])
		if chunk.Text != want {
			t.Errorf("chunk %d text is not the literal span", chunk.SequenceIndex)
		}
	}
}

func TestChunkCoverageAndOrdering(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("Paragraph number content with several words to fill the token budget quickly.\n\n")
	}
	c := mustChunker(t, Config{MaxChunkSize: 48, Overlap: 8})

	chunks, err := c.Chunk(doc(b.String()))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if chunk.SequenceIndex != i {
			t.Errorf("chunk %d has sequence index %d", i, chunk.SequenceIndex)
		}
		if chunk.DocumentID != "doc-1" {
			t.Errorf("chunk %d lost document id", i)
		}
		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		if chunk.StartOffset > prev.EndOffset {
			t.Errorf("gap between chunk %d and %d: %d > %d", i-1, i, chunk.StartOffset, prev.EndOffset)
		}
		if chunk.StartOffset <= prev.StartOffset {
			t.Errorf("chunk %d does not advance: start %d after previous start %d", i, chunk.StartOffset, prev.StartOffset)
		}
	}

	last := chunks[len(chunks)-1]
	normalized := strings.TrimSpace(b.String())
	if last.EndOffset != len([]rune(normalized)) {
		t.Errorf("final chunk ends at %d, text has %d runes", last.EndOffset, len([]rune(normalized)))
	}
	if chunks[0].StartOffset != 0 {
		t.Errorf("first chunk starts at %d", chunks[0].StartOffset)
	}
}

func TestChunkOverlapBounded(t *testing.T) {
	text := strings.Repeat("Sentences pile up one after the other in this document. ", 60)
	overlap := 12
	c := mustChunker(t, Config{MaxChunkSize: 48, Overlap: overlap})

	chunks, err := c.Chunk(doc(text))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	for i := 1; i < len(chunks); i++ {
		got := chunks[i-1].EndOffset - chunks[i].StartOffset
		if got > overlap {
			t.Errorf("overlap between chunk %d and %d is %d runes, configured %d", i-1, i, got, overlap)
		}
	}
}

func TestChunkSingleSmallDocument(t *testing.T) {
	c := mustChunker(t, Config{MaxChunkSize: 512})

	chunks, err := c.Chunk(doc("Just one short paragraph."))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "Just one short paragraph." {
		t.Errorf("text = %q", chunks[0].Text)
	}
}

func TestChunkOversizedParagraphSplits(t *testing.T) {
	// one paragraph far beyond the budget must split at sentences
	text := strings.Repeat("This sentence repeats itself to exhaust the budget. ", 50)
	c := mustChunker(t, Config{MaxChunkSize: 32})

	chunks, err := c.Chunk(doc(text))
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("oversized paragraph not split, got %d chunks", len(chunks))
	}
}

func TestChunkCSVRepeatsHeader(t *testing.T) {
	var b strings.Builder
	b.WriteString("name,email,team\n")
	for i := 0; i < 120; i++ {
		b.WriteString("alice,alice@example.com,platform\n")
	}
	csvDoc := common.Document{
		ID:       "doc-csv",
		Text:     b.String(),
		Metadata: map[string]string{"format": "csv"},
	}
	c := mustChunker(t, Config{MaxChunkSize: 64})

	chunks, err := c.Chunk(csvDoc)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple csv chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !strings.HasPrefix(chunk.Text, "name,email,team\n") {
			t.Errorf("chunk %d missing repeated header", i)
		}
		if i > 0 && chunk.StartOffset != chunks[i-1].EndOffset {
			t.Errorf("csv chunks must tile the data rows: chunk %d starts at %d, previous ends at %d",
				i, chunk.StartOffset, chunks[i-1].EndOffset)
		}
	}
}
