// Package answer turns a query and its retrieved context into a
// grounded, cited natural-language answer.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docwise-ai/docgraph/internal/util"
	"github.com/docwise-ai/docgraph/pkg/ai"
	"github.com/docwise-ai/docgraph/pkg/common"
	"github.com/docwise-ai/docgraph/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
)

// Config tunes answer generation.
type Config struct {
	// Model overrides the client's default chat model. May be empty.
	Model string
	// MaxPromptTokens bounds the assembled prompt. Context chunks are
	// dropped lowest-ranked first until the prompt fits.
	MaxPromptTokens int
	// Encoder is the tiktoken encoding used for budgeting.
	Encoder string
	// Retries and Backoff bound the generative-model retry loop.
	Retries int
	Backoff time.Duration

	Temperature float64
}

// Generator composes bounded prompts and calls the generative model.
type Generator struct {
	client ai.ModelClient
	enc    *tiktoken.Tiktoken
	cfg    Config
}

// New creates a Generator. The token encoder is resolved eagerly so a
// bad encoder name fails at construction, not per query.
func New(client ai.ModelClient, cfg Config) (*Generator, error) {
	if cfg.MaxPromptTokens <= 0 {
		cfg.MaxPromptTokens = 8192
	}
	if cfg.Encoder == "" {
		cfg.Encoder = "cl100k_base"
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}

	enc, err := tiktoken.GetEncoding(cfg.Encoder)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoder %q: %w", cfg.Encoder, err)
	}
	return &Generator{client: client, enc: enc, cfg: cfg}, nil
}

// Answer generates a grounded answer for the query from the retrieved
// results. An empty result sequence short-circuits to the explicit
// insufficient-context response without calling the model.
func (g *Generator) Answer(
	ctx context.Context,
	query string,
	results []common.RetrievalResult,
) (common.Answer, error) {
	if len(results) == 0 {
		return common.Answer{
			Text:                 ai.InsufficientContextAnswer,
			CitedChunkIDs:        []string{},
			InsufficientContext: true,
		}, nil
	}

	included := g.fitToBudget(query, results)
	if len(included) == 0 {
		// even the single best chunk blows the budget
		return common.Answer{
			Text:                 ai.InsufficientContextAnswer,
			CitedChunkIDs:        []string{},
			InsufficientContext: true,
		}, nil
	}

	systemPrompt := fmt.Sprintf(ai.AnswerPrompt, included[0].ChunkID, contextBlock(included))

	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(systemPrompt),
		ai.WithTemperature(g.cfg.Temperature),
	}
	if g.cfg.Model != "" {
		opts = append(opts, ai.WithModel(g.cfg.Model))
	}

	response, err := util.RetryBackoffWithContext(
		ctx,
		g.cfg.Retries,
		g.cfg.Backoff,
		func(ctx context.Context) (string, error) {
			return g.client.GenerateCompletion(ctx, query, opts...)
		},
	)
	if err != nil {
		return common.Answer{}, &common.GenerationError{Err: err}
	}

	valid := make(map[string]bool, len(included))
	for _, res := range included {
		valid[res.ChunkID] = true
	}
	text, cited := extractCitations(normalizeCitations(response, valid), valid)

	return common.Answer{
		Text:          text,
		CitedChunkIDs: cited,
	}, nil
}

// fitToBudget keeps the highest-ranked prefix of results whose combined
// prompt stays under the token budget.
func (g *Generator) fitToBudget(query string, results []common.RetrievalResult) []common.RetrievalResult {
	overhead := len(g.enc.Encode(ai.AnswerPrompt, nil, nil)) + len(g.enc.Encode(query, nil, nil))
	budget := g.cfg.MaxPromptTokens - overhead

	var included []common.RetrievalResult
	used := 0
	for _, res := range results {
		cost := len(g.enc.Encode(res.Text, nil, nil)) + len(g.enc.Encode(res.ChunkID, nil, nil)) + 8
		if used+cost > budget {
			break
		}
		included = append(included, res)
		used += cost
	}
	if len(included) < len(results) {
		logger.Debug("[Answer] context truncated to fit prompt budget",
			"kept", len(included), "dropped", len(results)-len(included))
	}
	return included
}

func contextBlock(results []common.RetrievalResult) string {
	var b strings.Builder
	for _, res := range results {
		fmt.Fprintf(&b, "[[%s]]\n%s\n\n", res.ChunkID, res.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
