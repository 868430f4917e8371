// Package ollama implements ai.ModelClient against a locally or remotely
// hosted Ollama server.
package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/docwise-ai/docgraph/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// Client implements ai.ModelClient using the Ollama API.
type Client struct {
	embeddingModel string
	chatModel      string

	embeddingDimensions int
	timeoutMin          int

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL    *url.URL
	httpClient *http.Client

	Client *api.Client
}

// NewClientParams configures a new Client. BaseURL may be empty to use
// the Ollama default, and ApiKey may be empty for unauthenticated servers.
type NewClientParams struct {
	EmbeddingModel string
	ChatModel      string

	BaseURL string
	ApiKey  string

	EmbeddingDimensions   int
	RequestTimeoutMinutes int
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewClient creates a Client connected to the Ollama server at BaseURL,
// using the configured models for chat and embeddings.
func NewClient(params NewClientParams) (*Client, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.ApiKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.ApiKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	dims := params.EmbeddingDimensions
	if dims <= 0 {
		dims = 4096
	}
	timeout := params.RequestTimeoutMinutes
	if timeout <= 0 {
		timeout = 5
	}
	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 4
	}

	return &Client{
		embeddingModel: params.EmbeddingModel,
		chatModel:      params.ChatModel,

		embeddingDimensions: dims,
		timeoutMin:          timeout,

		reqLock: semaphore.NewWeighted(maxReq),

		baseURL:    u,
		httpClient: httpClient,

		Client: api.NewClient(u, httpClient),
	}, nil
}
