// Package index stores chunk embeddings and serves nearest-neighbor
// queries. Two backends are available: an in-memory index and a
// PostgreSQL/pgvector index. The similarity metric is fixed when the
// index is built; querying with a different metric is a configuration
// error, which the in-process API makes unrepresentable by binding the
// metric to the index instance.
package index

import (
	"context"
	"fmt"
	"math"

	"github.com/docwise-ai/docgraph/pkg/common"
)

// Metric is the similarity measure used for ranking.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
)

// ParseMetric validates a metric label from configuration.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricL2:
		return MetricL2, nil
	default:
		return "", fmt.Errorf("unknown similarity metric %q", s)
	}
}

// VectorIndex stores one vector record per chunk and returns the k
// nearest records by descending similarity. Implementations must be
// safe for concurrent use; upserts may run concurrently with graph
// building since the two touch disjoint state.
type VectorIndex interface {
	Upsert(ctx context.Context, records []common.VectorRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]common.RetrievalResult, error)
	// Fetch returns the stored records for the given chunk ids, in the
	// given order, silently skipping unknown ids.
	Fetch(ctx context.Context, chunkIDs []string) ([]common.VectorRecord, error)
	Metric() Metric
}

// DimensionMismatchError reports a vector whose length differs from the
// dimensionality the index was built with.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: index built with %d, got %d", e.Want, e.Got)
}

// score converts a metric-specific distance or product into a
// descending-is-better similarity score.
func score(metric Metric, query []float32, candidate []float32) float64 {
	switch metric {
	case MetricL2:
		return 1.0 / (1.0 + l2Distance(query, candidate))
	default:
		return cosineSimilarity(query, candidate)
	}
}

func cosineSimilarity(a []float32, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func l2Distance(a []float32, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
