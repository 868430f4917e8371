package index

import (
	"context"
	"sort"
	"sync"

	"github.com/docwise-ai/docgraph/pkg/common"
)

// MemoryIndex is an in-process vector index backed by a map. It is the
// default backend when no database is configured.
type MemoryIndex struct {
	mu      sync.RWMutex
	metric  Metric
	dim     int
	records map[string]common.VectorRecord
}

// NewMemoryIndex creates an empty in-memory index using the given metric.
func NewMemoryIndex(metric Metric) *MemoryIndex {
	return &MemoryIndex{
		metric:  metric,
		records: map[string]common.VectorRecord{},
	}
}

// Metric reports the similarity metric the index was built with.
func (m *MemoryIndex) Metric() Metric { return m.metric }

// Upsert stores the records, replacing any previous record for the
// same chunk id. The first record fixes the index dimensionality.
func (m *MemoryIndex) Upsert(ctx context.Context, records []common.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		if m.dim == 0 {
			m.dim = len(rec.Vector)
		}
		if len(rec.Vector) != m.dim {
			return &DimensionMismatchError{Want: m.dim, Got: len(rec.Vector)}
		}
		m.records[rec.ChunkID] = rec
	}
	return nil
}

// Query returns up to k records by descending similarity. Equal scores
// order by chunk id so results are reproducible.
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, k int) ([]common.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dim != 0 && len(vector) != m.dim {
		return nil, &DimensionMismatchError{Want: m.dim, Got: len(vector)}
	}

	results := make([]common.RetrievalResult, 0, len(m.records))
	for _, rec := range m.records {
		results = append(results, common.RetrievalResult{
			ChunkID: rec.ChunkID,
			Score:   score(m.metric, vector, rec.Vector),
			Text:    rec.Text,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Len reports the number of stored records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Fetch returns stored records for the given chunk ids, skipping ids
// the index does not hold.
func (m *MemoryIndex) Fetch(ctx context.Context, chunkIDs []string) ([]common.VectorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]common.VectorRecord, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if rec, ok := m.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
