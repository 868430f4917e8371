package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docwise-ai/docgraph/pkg/ai"

	"github.com/openai/openai-go/v3"
	"golang.org/x/sync/errgroup"
)

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model. Empty input yields a zero
// vector of the configured dimensionality.
func (c *Client) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	res, err := c.GenerateEmbeddings(ctx, [][]byte{input})
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(res))
	}
	return res[0], nil
}

// GenerateEmbeddings creates embeddings for multiple inputs in a single
// request, preserving input order.
func (c *Client) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if c.EmbeddingClient == nil {
		return nil, errors.New("openai embedding client not configured")
	}

	idxMap, stringsIn, out := normalizeEmbeddingInputs(inputs, c.embeddingDimensions)
	if len(stringsIn) == 0 {
		return out, nil
	}

	stringsOut, err := c.embedStringsBatched(ctx, stringsIn)
	if err != nil {
		return nil, err
	}
	if len(stringsOut) != len(stringsIn) {
		return nil, fmt.Errorf("embedding result size mismatch: got %d want %d", len(stringsOut), len(stringsIn))
	}
	for i := range stringsOut {
		out[idxMap[i]] = stringsOut[i]
	}
	return out, nil
}

// The embeddings endpoint accepts at most 2048 inputs per request.
const maxEmbeddingBatch = 2048

// embedStringsBatched splits oversized input sets into request-sized
// batches embedded concurrently, preserving input order. The client's
// semaphore bounds actual parallelism.
func (c *Client) embedStringsBatched(ctx context.Context, inputs []string) ([][]float32, error) {
	batches := splitBatches(inputs, maxEmbeddingBatch)
	if len(batches) == 1 {
		return c.generateEmbeddingsForStrings(ctx, batches[0])
	}

	outBatches := make([][][]float32, len(batches))
	eg, ectx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		eg.Go(func() error {
			res, err := c.generateEmbeddingsForStrings(ectx, batch)
			if err != nil {
				return err
			}
			outBatches[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(inputs))
	for _, b := range outBatches {
		out = append(out, b...)
	}
	return out, nil
}

func splitBatches(inputs []string, size int) [][]string {
	if len(inputs) <= size {
		return [][]string{inputs}
	}
	batches := make([][]string, 0, (len(inputs)+size-1)/size)
	for start := 0; start < len(inputs); start += size {
		end := min(start+size, len(inputs))
		batches = append(batches, inputs[start:end])
	}
	return batches
}

func normalizeEmbeddingInputs(inputs [][]byte, dim int) (idxMap []int, stringsIn []string, out [][]float32) {
	idxMap = make([]int, 0, len(inputs))
	stringsIn = make([]string, 0, len(inputs))
	out = make([][]float32, len(inputs))
	for i, in := range inputs {
		if len(in) == 0 || len(strings.TrimSpace(string(in))) == 0 {
			out[i] = make([]float32, dim)
			continue
		}
		idxMap = append(idxMap, i)
		stringsIn = append(stringsIn, string(in))
	}
	return idxMap, stringsIn, out
}

func (c *Client) generateEmbeddingsForStrings(ctx context.Context, inputs []string) ([][]float32, error) {
	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: c.embeddingModel,
	}

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	start := time.Now()
	response, err := c.EmbeddingClient.Embeddings.New(rCtx, body)
	if err != nil {
		return nil, err
	}

	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(response.Data), len(inputs))
	}

	out := make([][]float32, len(inputs))
	for _, d := range response.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}
