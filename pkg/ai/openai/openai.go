// Package openai implements ai.ModelClient against any OpenAI-compatible
// API, with separate endpoints for chat and embeddings.
package openai

import (
	"sync"

	"github.com/docwise-ai/docgraph/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// Client implements ai.ModelClient using the OpenAI API. It manages
// separate API clients for embeddings and chat so the two capabilities
// can point at different endpoints.
type Client struct {
	embeddingModel string
	chatModel      string

	chatURL      string
	embeddingURL string

	embeddingDimensions int
	timeoutMin          int

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewClientParams configures a new Client. EmbeddingDimensions must
// match the embedding model's output size; it is also used to produce
// zero vectors for empty input.
type NewClientParams struct {
	EmbeddingModel string
	ChatModel      string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	EmbeddingDimensions   int
	RequestTimeoutMinutes int
	MaxConcurrentRequests int64
}

// NewClient creates a Client for the given endpoints and models.
func NewClient(params NewClientParams) *Client {
	dims := params.EmbeddingDimensions
	if dims <= 0 {
		dims = 1536
	}
	timeout := params.RequestTimeoutMinutes
	if timeout <= 0 {
		timeout = 2
	}
	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 8
	}

	return &Client{
		embeddingModel: params.EmbeddingModel,
		chatModel:      params.ChatModel,

		chatURL:      params.ChatURL,
		embeddingURL: params.EmbeddingURL,

		embeddingDimensions: dims,
		timeoutMin:          timeout,

		reqLock: semaphore.NewWeighted(maxReq),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)
	return &client
}

// ResetMetrics clears all accumulated token and timing metrics.
func (c *Client) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns accumulated token usage and timing since the last reset.
func (c *Client) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *Client) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs

	if c.metrics.DurationMs > 0 {
		tokensPerSecond := (float64(c.metrics.TotalTokens) * 1000.0) / float64(c.metrics.DurationMs)
		c.metrics.TokenPerSecond = float32(tokensPerSecond)
	}
}
