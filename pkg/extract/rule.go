package extract

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/docwise-ai/docgraph/pkg/common"
)

// relationCue is a syntactic pattern that licenses a relation between
// the noun phrase before it and the noun phrase after it.
type relationCue struct {
	phrase     string
	relType    common.RelationType
	confidence float64
	// reversed means the grammatical subject is the relation target,
	// as in passive constructions ("X is used in Y" means Y uses X).
	reversed bool
}

var relationCues = []relationCue{
	{phrase: "is a subset of", relType: common.RelationPartOf, confidence: 0.9},
	{phrase: "are a subset of", relType: common.RelationPartOf, confidence: 0.9},
	{phrase: "is a branch of", relType: common.RelationPartOf, confidence: 0.9},
	{phrase: "is part of", relType: common.RelationPartOf, confidence: 0.9},
	{phrase: "are part of", relType: common.RelationPartOf, confidence: 0.9},
	{phrase: "is a component of", relType: common.RelationPartOf, confidence: 0.85},
	{phrase: "belongs to", relType: common.RelationPartOf, confidence: 0.8},

	{phrase: "is used in", relType: common.RelationUses, confidence: 0.85, reversed: true},
	{phrase: "are used in", relType: common.RelationUses, confidence: 0.85, reversed: true},
	{phrase: "is used by", relType: common.RelationUses, confidence: 0.85, reversed: true},
	{phrase: "are used by", relType: common.RelationUses, confidence: 0.85, reversed: true},
	{phrase: "relies on", relType: common.RelationUses, confidence: 0.8},
	{phrase: "rely on", relType: common.RelationUses, confidence: 0.8},
	{phrase: "is built on", relType: common.RelationUses, confidence: 0.8},
	{phrase: "are built on", relType: common.RelationUses, confidence: 0.8},
	{phrase: "depends on", relType: common.RelationUses, confidence: 0.8},
	{phrase: "uses", relType: common.RelationUses, confidence: 0.75},
	{phrase: "use", relType: common.RelationUses, confidence: 0.6},

	{phrase: "is defined as", relType: common.RelationDefinedBy, confidence: 0.85},
	{phrase: "is defined by", relType: common.RelationDefinedBy, confidence: 0.85},
	{phrase: "is known as", relType: common.RelationDefinedBy, confidence: 0.7},
	{phrase: "refers to", relType: common.RelationDefinedBy, confidence: 0.7},
}

// coOccurrenceConfidence is assigned to relations licensed only by two
// mentions sharing a sentence without a matching cue.
const coOccurrenceConfidence = 0.3

var organizationSuffixes = []string{
	"inc", "corp", "ltd", "gmbh", "foundation", "university",
	"institute", "laboratory", "labs", "group", "company",
}

var technologyTerms = []string{
	"learning", "intelligence", "network", "networks", "algorithm",
	"algorithms", "model", "models", "database", "databases", "system",
	"systems", "protocol", "framework", "language", "compiler",
	"software", "hardware", "api", "engine", "processor", "cache",
}

// RuleExtractor is a deterministic pattern-based extractor. It finds
// mentions around relation cue phrases and capitalized noun sequences,
// and proposes relations from the cue table plus sentence-level
// co-occurrence.
type RuleExtractor struct {
	confidenceFloor float64
}

// NewRuleExtractor creates a rule-based extractor that discards
// relation candidates with confidence below floor.
func NewRuleExtractor(floor float64) *RuleExtractor {
	return &RuleExtractor{confidenceFloor: floor}
}

// Extract scans the chunk text sentence by sentence. It never calls an
// external capability and only fails on a malformed chunk.
func (e *RuleExtractor) Extract(ctx context.Context, chunk common.Chunk) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return Extraction{}, &common.ExtractionError{ChunkID: chunk.ID, Err: errEmptyChunk}
	}

	var (
		mentions  []common.Mention
		relations []common.RelationCandidate
		seen      = map[string]common.Mention{}
	)

	record := func(m common.Mention) common.Mention {
		key := strings.ToLower(strings.TrimSpace(m.Text))
		if prev, ok := seen[key]; ok {
			return prev
		}
		seen[key] = m
		mentions = append(mentions, m)
		return m
	}

	for _, sent := range sentences(chunk.Text) {
		var sentMentions []common.Mention

		cueFound := false
		lower := strings.ToLower(sent.text)
		for _, cue := range relationCues {
			idx := indexOfCue(lower, cue.phrase)
			if idx < 0 {
				continue
			}

			subject := trailingNounPhrase(sent.text[:idx])
			object := leadingNounPhrase(sent.text[idx+len(cue.phrase):])
			if subject == "" || object == "" {
				continue
			}

			src := record(e.mention(chunk, sent, subject))
			tgt := record(e.mention(chunk, sent, object))
			if cue.reversed {
				src, tgt = tgt, src
			}

			relations = append(relations, common.RelationCandidate{
				Source:     src,
				Target:     tgt,
				Type:       cue.relType,
				Confidence: cue.confidence,
				ChunkID:    chunk.ID,
			})
			sentMentions = append(sentMentions, src, tgt)
			cueFound = true
			break
		}

		for _, phrase := range capitalizedSequences(sent.text) {
			m := record(e.mention(chunk, sent, phrase))
			sentMentions = append(sentMentions, m)
		}

		if !cueFound {
			relations = append(relations, coOccurrences(chunk.ID, sentMentions)...)
		}
	}

	return Extraction{
		Mentions:  mentions,
		Relations: filterRelations(relations, e.confidenceFloor),
	}, nil
}

func (e *RuleExtractor) mention(chunk common.Chunk, sent sentence, phrase string) common.Mention {
	byteIdx := strings.Index(sent.text, phrase)
	start := sent.runeStart
	if byteIdx >= 0 {
		start += utf8.RuneCountInString(sent.text[:byteIdx])
	}
	return common.Mention{
		Text:      phrase,
		Type:      guessEntityType(phrase),
		ChunkID:   chunk.ID,
		SpanStart: start,
		SpanEnd:   start + utf8.RuneCountInString(phrase),
	}
}

// coOccurrences proposes weak related_to candidates for every pair of
// distinct mentions that share a sentence.
func coOccurrences(chunkID string, ms []common.Mention) []common.RelationCandidate {
	var out []common.RelationCandidate
	for i := 0; i < len(ms); i++ {
		for j := i + 1; j < len(ms); j++ {
			if strings.EqualFold(ms[i].Text, ms[j].Text) {
				continue
			}
			out = append(out, common.RelationCandidate{
				Source:     ms[i],
				Target:     ms[j],
				Type:       common.RelationRelatedTo,
				Confidence: coOccurrenceConfidence,
				ChunkID:    chunkID,
			})
		}
	}
	return out
}

func guessEntityType(phrase string) common.EntityType {
	lower := strings.ToLower(strings.TrimRight(phrase, "."))
	for _, suffix := range organizationSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return common.EntityTypeOrganization
		}
	}
	for _, term := range technologyTerms {
		if lower == term || strings.HasSuffix(lower, " "+term) {
			return common.EntityTypeTechnology
		}
	}
	return common.EntityTypeConcept
}

// indexOfCue finds the cue phrase on word boundaries in the lowercased
// sentence, so "uses" does not match inside "causes".
func indexOfCue(lower string, phrase string) int {
	from := 0
	for {
		idx := strings.Index(lower[from:], phrase)
		if idx < 0 {
			return -1
		}
		idx += from
		beforeOK := idx == 0 || !isWordByte(lower[idx-1])
		end := idx + len(phrase)
		afterOK := end == len(lower) || !isWordByte(lower[end])
		if beforeOK && afterOK {
			return idx
		}
		from = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// trailingNounPhrase extracts the noun phrase ending a clause, dropping
// leading articles and clause boundaries.
func trailingNounPhrase(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexAny(s, ",;:"); idx >= 0 {
		s = s[idx+1:]
	}
	words := strings.Fields(s)
	// take capitalized or content words from the end until a stop word
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		if isStopWord(words[i]) {
			break
		}
		start = i
	}
	return strings.TrimSpace(strings.Join(words[start:], " "))
}

// leadingNounPhrase extracts the noun phrase opening a clause.
func leadingNounPhrase(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ",;:.!?"); idx >= 0 {
		s = s[:idx]
	}
	words := strings.Fields(s)
	for len(words) > 0 && isArticle(words[0]) {
		words = words[1:]
	}
	end := 0
	for end < len(words) && !isStopWord(words[end]) {
		end++
	}
	return strings.TrimRight(strings.Join(words[:end], " "), ".!?")
}

func isArticle(w string) bool {
	switch strings.ToLower(w) {
	case "a", "an", "the":
		return true
	}
	return false
}

func isStopWord(w string) bool {
	switch strings.ToLower(strings.Trim(w, ".,;:!?")) {
	case "a", "an", "the", "and", "or", "but", "which", "that", "this",
		"these", "those", "it", "its", "of", "in", "on", "for", "with",
		"to", "by", "as", "is", "are", "was", "were", "be", "been":
		return true
	}
	return false
}

// capitalizedSequences finds runs of two or more capitalized words, and
// single capitalized words not at sentence start. Sentence-initial
// single words are skipped because ordinary prose capitalizes them.
func capitalizedSequences(sent string) []string {
	words := strings.Fields(sent)
	var out []string
	i := 0
	for i < len(words) {
		if !startsUpper(words[i]) {
			i++
			continue
		}
		j := i
		for j < len(words) && startsUpper(words[j]) && !isStopWord(words[j]) {
			j++
		}
		phrase := strings.Trim(strings.Join(words[i:j], " "), ".,;:!?\"'()")
		if phrase != "" && (j-i >= 2 || i > 0) {
			out = append(out, phrase)
		}
		if j == i {
			j = i + 1
		}
		i = j
	}
	return out
}

func startsUpper(w string) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimLeft(w, "\"'("))
	return unicode.IsUpper(r)
}

type sentence struct {
	text      string
	runeStart int
}

// sentences splits text on sentence-final punctuation, tracking the
// rune offset of each sentence within the original text.
func sentences(text string) []sentence {
	var out []sentence
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			// keep abbreviating dots inside tokens like "v1.2" together
			if r == '.' && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				continue
			}
			seg := strings.TrimSpace(string(runes[start : i+1]))
			if seg != "" {
				lead := start
				for lead < i+1 && unicode.IsSpace(runes[lead]) {
					lead++
				}
				out = append(out, sentence{text: seg, runeStart: lead})
			}
			start = i + 1
		}
	}
	if seg := strings.TrimSpace(string(runes[start:])); seg != "" {
		lead := start
		for lead < len(runes) && unicode.IsSpace(runes[lead]) {
			lead++
		}
		out = append(out, sentence{text: seg, runeStart: lead})
	}
	return out
}
