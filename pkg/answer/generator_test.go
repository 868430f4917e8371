package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/docwise-ai/docgraph/pkg/ai"
	"github.com/docwise-ai/docgraph/pkg/common"
)

type fakeClient struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (f *fakeClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.calls++
	options := ai.GenerateOptions{}
	for _, o := range opts {
		o(&options)
	}
	f.prompts = append(f.prompts, strings.Join(options.SystemPrompts, "\n"))
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return errors.New("not implemented")
}

func (f *fakeClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func results(texts map[string]string) []common.RetrievalResult {
	var out []common.RetrievalResult
	score := 1.0
	for _, id := range []string{"c1", "c2", "c3"} {
		if text, ok := texts[id]; ok {
			out = append(out, common.RetrievalResult{ChunkID: id, Score: score, Text: text})
			score -= 0.1
		}
	}
	return out
}

func TestAnswerInsufficientContextSkipsModel(t *testing.T) {
	client := &fakeClient{response: "should never be used"}
	g, err := New(client, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ans, err := g.Answer(context.Background(), "Explain quantum teleportation protocols", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if !ans.InsufficientContext {
		t.Error("expected insufficient-context flag")
	}
	if ans.Text != ai.InsufficientContextAnswer {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.CitedChunkIDs) != 0 {
		t.Errorf("citations = %v, want none", ans.CitedChunkIDs)
	}
	if client.calls != 0 {
		t.Errorf("model was called %d times", client.calls)
	}
}

func TestAnswerCitations(t *testing.T) {
	client := &fakeClient{
		response: "Machine learning is a subset of artificial intelligence [[c1]]. It powers many systems [[c2]] [[c1]].",
	}
	g, err := New(client, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ans, err := g.Answer(context.Background(), "What is machine learning?", results(map[string]string{
		"c1": "Machine learning is a subset of artificial intelligence.",
		"c2": "Neural networks are used in machine learning.",
	}))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	want := []string{"c1", "c2"}
	if len(ans.CitedChunkIDs) != len(want) {
		t.Fatalf("citations = %v, want %v", ans.CitedChunkIDs, want)
	}
	for i := range want {
		if ans.CitedChunkIDs[i] != want[i] {
			t.Errorf("citations = %v, want %v", ans.CitedChunkIDs, want)
		}
	}
}

func TestAnswerDropsUnknownCitations(t *testing.T) {
	client := &fakeClient{
		response: "Grounded claim [[c1]]. Fabricated claim [[bogus]].",
	}
	g, err := New(client, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ans, err := g.Answer(context.Background(), "q", results(map[string]string{"c1": "some text"}))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(ans.CitedChunkIDs) != 1 || ans.CitedChunkIDs[0] != "c1" {
		t.Errorf("citations = %v, want [c1]", ans.CitedChunkIDs)
	}
	if strings.Contains(ans.Text, "bogus") {
		t.Errorf("unknown citation survived in text: %q", ans.Text)
	}
}

func TestAnswerGenerationError(t *testing.T) {
	client := &fakeClient{err: errors.New("model down")}
	g, err := New(client, Config{Retries: 2, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = g.Answer(context.Background(), "q", results(map[string]string{"c1": "text"}))
	var genErr *common.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if client.calls != 2 {
		t.Errorf("model called %d times, want 2 retries", client.calls)
	}
}

func TestAnswerPromptBudgetDropsLowestRanked(t *testing.T) {
	client := &fakeClient{response: "ok [[c1]]"}
	g, err := New(client, Config{MaxPromptTokens: 300})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	long := strings.Repeat("filler words for the context block ", 20)
	_, err = g.Answer(context.Background(), "q", results(map[string]string{
		"c1": long,
		"c2": long,
		"c3": long,
	}))
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	prompt := client.prompts[len(client.prompts)-1]
	if !strings.Contains(prompt, "[[c1]]") {
		t.Error("highest-ranked chunk missing from prompt")
	}
	if strings.Contains(prompt, "[[c3]]") {
		t.Error("lowest-ranked chunk should have been dropped")
	}
}

func TestNormalizeCitations(t *testing.T) {
	valid := map[string]bool{"c1": true}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold token", "claim **[[c1]]**", "claim [[c1]]"},
		{"single bracket upgrade", "claim [c1]", "claim [[c1]]"},
		{"unknown single bracket kept", "see [figure 3]", "see [figure 3]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeCitations(tt.in, valid); got != tt.want {
				t.Errorf("normalizeCitations(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
