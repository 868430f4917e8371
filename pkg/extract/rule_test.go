package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docwise-ai/docgraph/pkg/common"
)

func chunkOf(text string) common.Chunk {
	return common.Chunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Text:       text,
		EndOffset:  len([]rune(text)),
	}
}

func findMention(ms []common.Mention, text string) (common.Mention, bool) {
	for _, m := range ms {
		if strings.EqualFold(m.Text, text) {
			return m, true
		}
	}
	return common.Mention{}, false
}

func TestRuleExtractorSubsetAndUsage(t *testing.T) {
	e := NewRuleExtractor(0.25)
	text := "Machine learning is a subset of artificial intelligence. Neural networks are used in machine learning."

	res, err := e.Extract(context.Background(), chunkOf(text))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	for _, want := range []string{"Machine learning", "artificial intelligence", "Neural networks"} {
		if _, ok := findMention(res.Mentions, want); !ok {
			t.Errorf("missing mention %q, got %v", want, res.Mentions)
		}
	}

	var partOf, uses bool
	for _, rel := range res.Relations {
		switch rel.Type {
		case common.RelationPartOf:
			if strings.EqualFold(rel.Source.Text, "machine learning") &&
				strings.EqualFold(rel.Target.Text, "artificial intelligence") {
				partOf = true
			}
		case common.RelationUses:
			if strings.EqualFold(rel.Source.Text, "machine learning") &&
				strings.EqualFold(rel.Target.Text, "neural networks") {
				uses = true
			}
		}
	}
	if !partOf {
		t.Errorf("expected part_of relation machine learning -> artificial intelligence, got %v", res.Relations)
	}
	if !uses {
		t.Errorf("expected uses relation machine learning -> neural networks, got %v", res.Relations)
	}
}

func TestRuleExtractorSpans(t *testing.T) {
	e := NewRuleExtractor(0)
	text := "Machine learning is a subset of artificial intelligence."

	res, err := e.Extract(context.Background(), chunkOf(text))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	runes := []rune(text)
	for _, m := range res.Mentions {
		if m.SpanStart < 0 || m.SpanEnd > len(runes) || m.SpanStart >= m.SpanEnd {
			t.Fatalf("mention %q has invalid span [%d,%d)", m.Text, m.SpanStart, m.SpanEnd)
		}
		got := string(runes[m.SpanStart:m.SpanEnd])
		if !strings.EqualFold(got, m.Text) {
			t.Errorf("span of %q resolves to %q", m.Text, got)
		}
	}
}

func TestRuleExtractorRelationCases(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantType   common.RelationType
		wantSource string
		wantTarget string
	}{
		{
			name:       "part of",
			text:       "The scheduler is part of the kernel.",
			wantType:   common.RelationPartOf,
			wantSource: "scheduler",
			wantTarget: "kernel",
		},
		{
			name:       "active uses",
			text:       "The compiler uses static analysis.",
			wantType:   common.RelationUses,
			wantSource: "compiler",
			wantTarget: "static analysis",
		},
		{
			name:       "defined by",
			text:       "Latency is defined as the time between request and response.",
			wantType:   common.RelationDefinedBy,
			wantSource: "Latency",
			wantTarget: "time between request",
		},
	}

	e := NewRuleExtractor(0.25)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Extract(context.Background(), chunkOf(tt.text))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			found := false
			for _, rel := range res.Relations {
				if rel.Type == tt.wantType &&
					strings.EqualFold(rel.Source.Text, tt.wantSource) &&
					strings.Contains(strings.ToLower(rel.Target.Text), strings.ToLower(tt.wantTarget)) {
					found = true
				}
			}
			if !found {
				t.Errorf("want %s(%q -> %q), got %v", tt.wantType, tt.wantSource, tt.wantTarget, res.Relations)
			}
		})
	}
}

func TestRuleExtractorConfidenceFloor(t *testing.T) {
	// co-occurrence candidates sit below a high floor and must vanish
	e := NewRuleExtractor(0.5)
	text := "Kubernetes and Docker appeared in the survey."

	res, err := e.Extract(context.Background(), chunkOf(text))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	for _, rel := range res.Relations {
		if rel.Confidence < 0.5 {
			t.Errorf("relation %v below floor survived", rel)
		}
	}
}

func TestRuleExtractorEmptyChunk(t *testing.T) {
	e := NewRuleExtractor(0.25)
	_, err := e.Extract(context.Background(), chunkOf("   \n"))
	if err == nil {
		t.Fatal("expected error for empty chunk")
	}
	var xerr *common.ExtractionError
	if !errors.As(err, &xerr) {
		t.Fatalf("expected ExtractionError, got %T", err)
	}
}
