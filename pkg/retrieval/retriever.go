// Package retrieval ranks indexed chunks for a query by combining
// vector similarity with evidence from the knowledge graph
// neighborhood of entities mentioned in the query.
package retrieval

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docwise-ai/docgraph/internal/util"
	"github.com/docwise-ai/docgraph/pkg/ai"
	"github.com/docwise-ai/docgraph/pkg/common"
	"github.com/docwise-ai/docgraph/pkg/extract"
	"github.com/docwise-ai/docgraph/pkg/graph"
	"github.com/docwise-ai/docgraph/pkg/index"
	"github.com/docwise-ai/docgraph/pkg/logger"
)

// Config tunes retrieval behavior.
type Config struct {
	// K is the number of results returned to the answer generator.
	K int
	// KVec is the number of nearest-neighbor candidates pulled from the
	// vector index before graph expansion and re-ranking.
	KVec int
	// SimilarityFloor is the minimum combined score a chunk must clear.
	// When nothing clears it, Retrieve returns an empty sequence, which
	// is the explicit "no relevant context" signal.
	SimilarityFloor float64
	// GraphBoostWeight is added to the score of chunks that appear in
	// the graph neighborhood of entities mentioned in the query.
	GraphBoostWeight float64
	// EmbedRetries bounds retry attempts for query embedding.
	EmbedRetries int
	// EmbedBackoff is the initial backoff delay between embed retries.
	EmbedBackoff time.Duration
}

// Retriever answers "which chunks are relevant" for a query. Graph and
// extractor are optional; without them retrieval is purely vector-based.
type Retriever struct {
	client    ai.ModelClient
	index     index.VectorIndex
	graph     *graph.Store
	extractor extract.Extractor
	cfg       Config
}

// New creates a Retriever. graphStore and extractor may be nil to
// disable graph expansion.
func New(
	client ai.ModelClient,
	idx index.VectorIndex,
	graphStore *graph.Store,
	extractor extract.Extractor,
	cfg Config,
) *Retriever {
	if cfg.K <= 0 {
		cfg.K = 4
	}
	if cfg.KVec < cfg.K {
		cfg.KVec = cfg.K * 4
	}
	if cfg.EmbedRetries <= 0 {
		cfg.EmbedRetries = 3
	}
	if cfg.EmbedBackoff <= 0 {
		cfg.EmbedBackoff = 500 * time.Millisecond
	}
	return &Retriever{
		client:    client,
		index:     idx,
		graph:     graphStore,
		extractor: extractor,
		cfg:       cfg,
	}
}

type candidate struct {
	result   common.RetrievalResult
	seqIndex int
}

// Retrieve embeds the query, pulls nearest neighbors, expands through
// the graph neighborhood of query entities, and returns up to K merged
// results by descending combined score. An empty result is not an
// error; it means no chunk cleared the similarity floor.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]common.RetrievalResult, error) {
	queryVec, err := util.RetryBackoffWithContext(
		ctx,
		r.cfg.EmbedRetries,
		r.cfg.EmbedBackoff,
		func(ctx context.Context) ([]float32, error) {
			return r.client.GenerateEmbedding(ctx, []byte(query))
		},
	)
	if err != nil {
		return nil, &common.RetrievalUnavailableError{Err: err}
	}

	results, err := r.index.Query(ctx, queryVec, r.cfg.KVec)
	if err != nil {
		return nil, &common.RetrievalUnavailableError{Err: err}
	}

	merged := make(map[string]*candidate, len(results))
	order := make([]string, 0, len(results))
	for _, res := range results {
		merged[res.ChunkID] = &candidate{result: res, seqIndex: -1}
		order = append(order, res.ChunkID)
	}

	if r.graph != nil && r.extractor != nil {
		boosted, extra := r.graphExpansion(ctx, query, merged)
		logger.Debug("[Retrieval] graph expansion", "boosted", boosted, "added", len(extra))
		order = append(order, extra...)
	}

	if err := r.attachSequenceIndexes(ctx, merged, order); err != nil {
		return nil, &common.RetrievalUnavailableError{Err: err}
	}

	final := make([]*candidate, 0, len(order))
	for _, id := range order {
		c := merged[id]
		if c.result.Score < r.cfg.SimilarityFloor {
			continue
		}
		final = append(final, c)
	}

	sort.SliceStable(final, func(i, j int) bool {
		if final[i].result.Score != final[j].result.Score {
			return final[i].result.Score > final[j].result.Score
		}
		if final[i].seqIndex != final[j].seqIndex {
			return final[i].seqIndex < final[j].seqIndex
		}
		return final[i].result.ChunkID < final[j].result.ChunkID
	})

	out := make([]common.RetrievalResult, 0, r.cfg.K)
	for _, c := range final {
		if len(out) == r.cfg.K {
			break
		}
		out = append(out, c.result)
	}
	return out, nil
}

// graphExpansion finds entities mentioned in the query, walks their
// 1-hop graph neighborhood, and boosts or adds the evidence chunks.
// Failures here degrade to pure vector retrieval rather than erroring.
func (r *Retriever) graphExpansion(
	ctx context.Context,
	query string,
	merged map[string]*candidate,
) (boosted int, added []string) {
	names := queryNGrams(query)
	ext, err := r.extractor.Extract(ctx, common.Chunk{
		ID:        "query",
		Text:      query,
		EndOffset: len([]rune(query)),
	})
	if err != nil {
		logger.Warn("[Retrieval] query entity extraction failed", "error", err)
	} else {
		for _, m := range ext.Mentions {
			names = append(names, m.Text)
		}
	}

	evidence := map[string]bool{}
	matched := map[string]bool{}
	for _, name := range names {
		node, ok := r.graph.FindNode(name)
		if !ok || matched[node.ID] {
			continue
		}
		matched[node.ID] = true
		for _, chunkID := range r.graph.NeighborhoodEvidence(node.ID) {
			evidence[chunkID] = true
		}
	}

	for chunkID := range evidence {
		if c, ok := merged[chunkID]; ok {
			c.result.Score += r.cfg.GraphBoostWeight
			boosted++
			continue
		}
		merged[chunkID] = &candidate{
			result: common.RetrievalResult{
				ChunkID: chunkID,
				Score:   r.cfg.GraphBoostWeight,
			},
			seqIndex: -1,
		}
		added = append(added, chunkID)
	}
	sort.Strings(added)
	return boosted, added
}

// attachSequenceIndexes loads chunk texts for graph-added results and
// sequence indexes for tie-breaking from the index metadata.
func (r *Retriever) attachSequenceIndexes(
	ctx context.Context,
	merged map[string]*candidate,
	order []string,
) error {
	records, err := r.index.Fetch(ctx, order)
	if err != nil {
		return err
	}
	for _, rec := range records {
		c, ok := merged[rec.ChunkID]
		if !ok {
			continue
		}
		if c.result.Text == "" {
			c.result.Text = rec.Text
		}
		if s, ok := rec.Metadata[common.MetadataKeySequenceIndex]; ok {
			if n, convErr := strconv.Atoi(s); convErr == nil {
				c.seqIndex = n
			}
		}
	}
	return nil
}

// queryNGrams lists word n-grams of the query up to four words long.
// Graph lookup normalizes case and punctuation, so raw windows suffice
// to catch entity names the extractor misses in question phrasing.
func queryNGrams(query string) []string {
	words := strings.Fields(query)
	var out []string
	for n := 4; n >= 1; n-- {
		for i := 0; i+n <= len(words); i++ {
			out = append(out, strings.Join(words[i:i+n], " "))
		}
	}
	return out
}
