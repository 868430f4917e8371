// Package chunker splits documents into overlapping, token-bounded chunks
// sized for the embedding model's context limit. Splitting prefers
// paragraph boundaries, falls back to sentence boundaries, and cuts at
// raw size only as a last resort, so chunks keep semantic locality.
package chunker

import (
	"fmt"
	"strings"

	"github.com/docwise-ai/docgraph/internal/util"
	"github.com/docwise-ai/docgraph/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkoukk/tiktoken-go"
)

// Config controls the chunking behaviour. MaxChunkSize is a token budget
// measured with the configured tiktoken encoder; Overlap is the number of
// runes a chunk reaches back into its predecessor.
type Config struct {
	MaxChunkSize int
	Overlap      int
	Encoder      string
}

// Chunker converts a Document into an ordered sequence of Chunks.
type Chunker struct {
	cfg Config
	enc *tiktoken.Tiktoken
}

// New returns a Chunker for the given configuration. It fails when the
// overlap is negative, not smaller than the chunk budget, or the encoder
// is unknown.
func New(cfg Config) (*Chunker, error) {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 512
	}
	if cfg.Encoder == "" {
		cfg.Encoder = "cl100k_base"
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("invalid overlap %d for chunk size %d", cfg.Overlap, cfg.MaxChunkSize)
	}

	enc, err := tiktoken.GetEncoding(cfg.Encoder)
	if err != nil {
		return nil, fmt.Errorf("unknown token encoder %q: %w", cfg.Encoder, err)
	}

	return &Chunker{cfg: cfg, enc: enc}, nil
}

// Chunk splits doc into chunks. Offsets are rune positions into the
// normalized document text; every chunk's text is the literal slice
// [StartOffset, EndOffset). Consecutive chunks overlap by up to
// cfg.Overlap runes and never skip content. CSV documents use a
// header-preserving row-batch policy instead (see chunkCSV).
func (c *Chunker) Chunk(doc common.Document) ([]common.Chunk, error) {
	text := util.NormalizeDocumentText(doc.Text)
	if text == "" {
		return nil, &common.EmptyDocumentError{DocumentID: doc.ID}
	}

	if doc.Metadata["format"] == "csv" {
		return c.chunkCSV(doc, text)
	}

	runes := []rune(text)
	segments := c.segment(runes)

	var chunks []common.Chunk
	segStart := -1
	segEnd := -1

	flush := func() error {
		if segStart < 0 || segEnd <= segStart {
			return nil
		}
		start := segStart
		if len(chunks) > 0 {
			prev := chunks[len(chunks)-1]
			overlapStart := prev.EndOffset - c.cfg.Overlap
			// Reaching back must never swallow the whole previous chunk.
			if overlapStart <= prev.StartOffset {
				overlapStart = prev.StartOffset + 1
			}
			if overlapStart < start {
				start = overlapStart
			}
		}
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		chunks = append(chunks, common.Chunk{
			ID:            id,
			DocumentID:    doc.ID,
			Text:          string(runes[start:segEnd]),
			StartOffset:   start,
			EndOffset:     segEnd,
			SequenceIndex: len(chunks),
		})
		segStart = -1
		segEnd = -1
		return nil
	}

	for _, seg := range segments {
		if segStart < 0 {
			segStart = seg.start
			segEnd = seg.end
			continue
		}
		if c.tokenCount(string(runes[segStart:seg.end])) <= c.cfg.MaxChunkSize {
			segEnd = seg.end
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		segStart = seg.start
		segEnd = seg.end
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return chunks, nil
}

type segment struct {
	start int
	end   int
}

// segment slices the text into units that each fit the token budget:
// paragraphs first, oversized paragraphs by sentence, oversized
// sentences by raw size.
func (c *Chunker) segment(runes []rune) []segment {
	var out []segment
	for _, p := range splitParagraphs(runes) {
		if c.tokenCount(string(runes[p.start:p.end])) <= c.cfg.MaxChunkSize {
			out = append(out, p)
			continue
		}
		for _, s := range splitSentences(runes, p.start, p.end) {
			if c.tokenCount(string(runes[s.start:s.end])) <= c.cfg.MaxChunkSize {
				out = append(out, s)
				continue
			}
			out = append(out, c.splitRaw(runes, s.start, s.end)...)
		}
	}
	return out
}

// splitRaw cuts [start, end) into the largest prefixes that fit the
// token budget, found by binary search over rune length.
func (c *Chunker) splitRaw(runes []rune, start, end int) []segment {
	var out []segment
	for start < end {
		lo, hi := 1, end-start
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if c.tokenCount(string(runes[start:start+mid])) <= c.cfg.MaxChunkSize {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		out = append(out, segment{start: start, end: start + lo})
		start += lo
	}
	return out
}

func (c *Chunker) tokenCount(s string) int {
	return len(c.enc.Encode(s, nil, nil))
}

// splitParagraphs returns the regions between blank lines. Separator
// whitespace is attached to the preceding paragraph so the regions tile
// the whole text with no gaps.
func splitParagraphs(runes []rune) []segment {
	var out []segment
	start := 0
	i := 0
	for i < len(runes) {
		if runes[i] == '\n' && blankLineAt(runes, i) {
			for i < len(runes) && (runes[i] == '\n' || runes[i] == ' ' || runes[i] == '\t') {
				i++
			}
			if i > start {
				out = append(out, segment{start: start, end: i})
			}
			start = i
			continue
		}
		i++
	}
	if start < len(runes) {
		out = append(out, segment{start: start, end: len(runes)})
	}
	return out
}

func blankLineAt(runes []rune, i int) bool {
	j := i + 1
	for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t') {
		j++
	}
	return j < len(runes) && runes[j] == '\n'
}

// splitSentences returns sentence regions of [start, end). A sentence
// ends after '.', '!' or '?' (plus trailing closers) followed by
// whitespace, except when the terminator follows a digit and precedes a
// space, which marks a numeric listing.
func splitSentences(runes []rune, start, end int) []segment {
	var out []segment
	segStart := start
	i := start
	for i < end {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' {
			if r == '.' && i > start && isDigit(runes[i-1]) && i+1 < end && runes[i+1] == ' ' {
				i++
				continue
			}
			j := i + 1
			for j < end && (runes[j] == '.' || runes[j] == '!' || runes[j] == '?') {
				j++
			}
			for j < end && isCloser(runes[j]) {
				j++
			}
			// Trailing whitespace rides with the sentence.
			for j < end && (runes[j] == ' ' || runes[j] == '\n' || runes[j] == '\t') {
				j++
			}
			out = append(out, segment{start: segStart, end: j})
			segStart = j
			i = j
			continue
		}
		i++
	}
	if segStart < end {
		out = append(out, segment{start: segStart, end: end})
	}
	return out
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}':
		return true
	}
	return false
}

// chunkCSV batches data rows under the token budget, repeating a
// detected header row at the top of every chunk. Offsets cover the data
// rows only; the repeated header is not part of the span.
func (c *Chunker) chunkCSV(doc common.Document, text string) ([]common.Chunk, error) {
	rows := strings.Split(text, "\n")

	header := ""
	dataRows := rows
	rowOffset := 0
	if len(rows) > 1 && isCSVHeader(rows) {
		header = rows[0]
		dataRows = rows[1:]
		rowOffset = len([]rune(rows[0])) + 1
	}

	headerTokens := 0
	if header != "" {
		headerTokens = c.tokenCount(header) + 1
	}

	textLen := len([]rune(text))
	var chunks []common.Chunk
	var current []string
	currentTokens := headerTokens
	chunkStart := rowOffset

	flush := func(end int) error {
		if len(current) == 0 {
			return nil
		}
		if end > textLen {
			end = textLen
		}
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		var b strings.Builder
		if header != "" {
			b.WriteString(header)
			b.WriteString("\n")
		}
		b.WriteString(strings.Join(current, "\n"))
		chunks = append(chunks, common.Chunk{
			ID:            id,
			DocumentID:    doc.ID,
			Text:          b.String(),
			StartOffset:   chunkStart,
			EndOffset:     end,
			SequenceIndex: len(chunks),
		})
		current = nil
		currentTokens = headerTokens
		chunkStart = end
		return nil
	}

	offset := rowOffset
	for _, row := range dataRows {
		rowLen := len([]rune(row)) + 1
		rowTokens := c.tokenCount(row) + 1
		if currentTokens+rowTokens > c.cfg.MaxChunkSize && len(current) > 0 {
			if err := flush(offset); err != nil {
				return nil, err
			}
		}
		current = append(current, row)
		currentTokens += rowTokens
		offset += rowLen
	}
	if err := flush(offset); err != nil {
		return nil, err
	}

	return chunks, nil
}
