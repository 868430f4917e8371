// Package pipeline wires the ingestion and query flows: documents run
// through loading, chunking, extraction, graph building and embedding;
// queries run through retrieval and answer generation.
package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/docwise-ai/docgraph/internal/timing"
	"github.com/docwise-ai/docgraph/internal/util"
	"github.com/docwise-ai/docgraph/pkg/ai"
	"github.com/docwise-ai/docgraph/pkg/answer"
	"github.com/docwise-ai/docgraph/pkg/chunker"
	"github.com/docwise-ai/docgraph/pkg/common"
	"github.com/docwise-ai/docgraph/pkg/extract"
	"github.com/docwise-ai/docgraph/pkg/graph"
	"github.com/docwise-ai/docgraph/pkg/index"
	"github.com/docwise-ai/docgraph/pkg/loader"
	"github.com/docwise-ai/docgraph/pkg/logger"
	"github.com/docwise-ai/docgraph/pkg/retrieval"

	"golang.org/x/sync/errgroup"
)

// Pipeline owns the full document-to-answer flow. Construct once, call
// Ingest for each corpus directory, then serve Ask calls concurrently;
// after ingestion the graph and index are treated as read-only.
type Pipeline struct {
	loader    *loader.DirectoryLoader
	chunker   *chunker.Chunker
	extractor extract.Extractor
	graph     *graph.Store
	index     index.VectorIndex
	client    ai.ModelClient
	retriever *retrieval.Retriever
	generator *answer.Generator

	concurrency     int
	retrieveTimeout time.Duration
	generateTimeout time.Duration
}

// New assembles a pipeline from a model client, a vector index and the
// configuration. The graph store starts empty.
func New(client ai.ModelClient, idx index.VectorIndex, cfg Config) (*Pipeline, error) {
	chk, err := chunker.New(chunker.Config{
		MaxChunkSize: cfg.MaxChunkSize,
		Overlap:      cfg.Overlap,
		Encoder:      cfg.Encoder,
	})
	if err != nil {
		return nil, err
	}

	ext, err := extract.New(extract.Config{
		Mode:            cfg.ExtractionMode,
		ConfidenceFloor: cfg.ConfidenceFloor,
		Client:          client,
		Model:           cfg.ExtractionModel,
	})
	if err != nil {
		return nil, err
	}

	graphStore := graph.NewStore(graph.Config{ResolutionDistance: cfg.ResolutionDistance})

	// query-side entity matching is always rule-based so queries never
	// cost a model call before retrieval
	queryExtractor := extract.NewRuleExtractor(cfg.ConfidenceFloor)

	retriever := retrieval.New(client, idx, graphStore, queryExtractor, retrieval.Config{
		K:                cfg.K,
		KVec:             cfg.KVec,
		SimilarityFloor:  cfg.SimilarityFloor,
		GraphBoostWeight: cfg.GraphBoostWeight,
	})

	generator, err := answer.New(client, answer.Config{
		Model:           cfg.AnswerModel,
		MaxPromptTokens: cfg.MaxPromptTokens,
		Encoder:         cfg.Encoder,
	})
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	retrieveTimeout := cfg.RetrieveTimeout
	if retrieveTimeout <= 0 {
		retrieveTimeout = 30 * time.Second
	}
	generateTimeout := cfg.GenerateTimeout
	if generateTimeout <= 0 {
		generateTimeout = 2 * time.Minute
	}

	return &Pipeline{
		loader:          loader.NewDirectoryLoader(),
		chunker:         chk,
		extractor:       ext,
		graph:           graphStore,
		index:           idx,
		client:          client,
		retriever:       retriever,
		generator:       generator,
		concurrency:     concurrency,
		retrieveTimeout: retrieveTimeout,
		generateTimeout: generateTimeout,
	}, nil
}

// Graph exposes the knowledge graph for export and inspection.
func (p *Pipeline) Graph() *graph.Store { return p.graph }

// IngestStats summarizes one ingestion run. Per-document and per-chunk
// failures are counted here rather than failing the batch.
type IngestStats struct {
	Documents       int
	DocumentsFailed int
	Chunks          int
	ChunksFailed    int
	LoadErrors      []error
}

// Ingest loads every document under dir and runs chunking, extraction,
// graph building and embedding. Documents are processed on a bounded
// worker pool; vector upserts run concurrently with graph building,
// while graph merges serialize inside the store.
func (p *Pipeline) Ingest(ctx context.Context, dir string) (IngestStats, error) {
	tracker := &timing.Tracker{}

	stopLoad := tracker.Track("load")
	docs, loadErrs := p.loader.Load(ctx, dir)
	stopLoad()

	var (
		statsMu sync.Mutex
		stats   = IngestStats{LoadErrors: loadErrs}
	)
	for _, err := range loadErrs {
		logger.Warn("[Pipeline] skipping unreadable document", "error", err)
	}

	progress := util.NewIngestProgress(len(docs))

	stopProcess := tracker.Track("process")
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)

	for _, doc := range docs {
		eg.Go(func() error {
			err := p.ingestDocument(ectx, doc, progress, &statsMu, &stats)
			if err != nil {
				// graph invariant violations abort the whole run;
				// everything else stays scoped to the document
				var consistency *common.GraphConsistencyError
				if errors.As(err, &consistency) {
					return err
				}
				progress.MarkFailed()
				statsMu.Lock()
				stats.DocumentsFailed++
				statsMu.Unlock()
				logger.Error("[Pipeline] document failed", "document", doc.SourcePath, "error", err)
			}
			logger.Info("[Pipeline] ingest progress",
				"done", progress.String(), "percent", progress.Percentage())
			// per-document failures do not abort the batch
			return ectx.Err()
		})
	}
	err := eg.Wait()
	stopProcess()
	if err != nil {
		return stats, err
	}

	statsMu.Lock()
	defer statsMu.Unlock()
	logger.Info("[Pipeline] ingestion finished",
		"documents", stats.Documents,
		"documents_failed", stats.DocumentsFailed,
		"chunks", stats.Chunks,
		"chunks_failed", stats.ChunksFailed,
		"duration", tracker.Total(),
	)
	for _, stage := range tracker.Stages() {
		logger.Debug("[Pipeline] stage timing", "stage", stage.Name, "duration", stage.Duration)
	}
	return stats, nil
}

func (p *Pipeline) ingestDocument(
	ctx context.Context,
	doc common.Document,
	progress *util.IngestProgress,
	statsMu *sync.Mutex,
	stats *IngestStats,
) error {
	chunks, err := p.chunker.Chunk(doc)
	if err != nil {
		return &common.IngestionError{DocumentID: doc.ID, Err: err}
	}
	progress.MarkChunked()

	eg, ectx := errgroup.WithContext(ctx)

	// embedding and indexing touch state disjoint from the graph
	eg.Go(func() error {
		if err := p.embedChunks(ectx, doc, chunks); err != nil {
			return &common.IngestionError{DocumentID: doc.ID, Err: err}
		}
		progress.MarkEmbedded()
		return nil
	})

	eg.Go(func() error {
		for _, chunk := range chunks {
			ext, err := p.extractor.Extract(ectx, chunk)
			if err != nil {
				statsMu.Lock()
				stats.ChunksFailed++
				statsMu.Unlock()
				logger.Warn("[Pipeline] extraction failed, skipping chunk",
					"chunk", chunk.ID, "error", err)
				continue
			}
			if err := p.graph.Observe(ext.Mentions, ext.Relations); err != nil {
				return err
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	progress.MarkCompleted()
	statsMu.Lock()
	stats.Documents++
	stats.Chunks += len(chunks)
	statsMu.Unlock()
	return nil
}

func (p *Pipeline) embedChunks(ctx context.Context, doc common.Document, chunks []common.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	inputs := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		inputs[i] = []byte(chunk.Text)
	}
	vectors, err := p.client.GenerateEmbeddings(ctx, inputs)
	if err != nil {
		return err
	}

	records := make([]common.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = common.VectorRecord{
			ChunkID: chunk.ID,
			Vector:  vectors[i],
			Text:    chunk.Text,
			Metadata: map[string]string{
				common.MetadataKeyDocumentID:    doc.ID,
				common.MetadataKeySequenceIndex: strconv.Itoa(chunk.SequenceIndex),
				common.MetadataKeyFilename:      doc.Metadata[common.MetadataKeyFilename],
			},
		}
	}
	return p.index.Upsert(ctx, records)
}

// Ask runs the query flow: retrieval under its own timeout, then answer
// generation. Cancellation is observed between the stages so a dropped
// client never triggers the generative-model call.
func (p *Pipeline) Ask(ctx context.Context, query string) (common.Answer, error) {
	tracker := &timing.Tracker{}

	stopRetrieve := tracker.Track("retrieve")
	rCtx, cancel := context.WithTimeout(ctx, p.retrieveTimeout)
	results, err := p.retriever.Retrieve(rCtx, query)
	cancel()
	stopRetrieve()
	if err != nil {
		return common.Answer{}, err
	}

	if err := ctx.Err(); err != nil {
		return common.Answer{}, err
	}

	stopGenerate := tracker.Track("generate")
	gCtx, cancel := context.WithTimeout(ctx, p.generateTimeout)
	defer cancel()
	ans, err := p.generator.Answer(gCtx, query, results)
	stopGenerate()
	if err != nil {
		return common.Answer{}, err
	}

	logger.Debug("[Pipeline] question answered",
		"chunks", len(results), "duration", tracker.Total())
	return ans, nil
}
