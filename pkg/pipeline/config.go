package pipeline

import (
	"time"

	"github.com/docwise-ai/docgraph/internal/util"
	"github.com/docwise-ai/docgraph/pkg/extract"
	"github.com/docwise-ai/docgraph/pkg/index"
)

// Config carries every tunable of the ingestion and query pipeline.
// Zero values mean "use the default".
type Config struct {
	// Chunking
	MaxChunkSize int    // token budget per chunk
	Overlap      int    // runes of backward overlap between chunks
	Encoder      string // tiktoken encoding for all token budgeting

	// Extraction
	ExtractionMode  extract.Mode
	ConfidenceFloor float64
	ExtractionModel string // override for model-backed extraction

	// Graph
	ResolutionDistance int

	// Index / retrieval
	Metric           index.Metric
	K                int
	KVec             int
	SimilarityFloor  float64
	GraphBoostWeight float64

	// Answering
	AnswerModel     string
	MaxPromptTokens int

	// Concurrency and timeouts
	Concurrency     int
	RetrieveTimeout time.Duration
	GenerateTimeout time.Duration
}

// FromEnv reads the pipeline configuration from the environment,
// falling back to defaults chosen for technical documentation corpora.
func FromEnv() Config {
	metric, err := index.ParseMetric(util.GetEnvString("SIMILARITY_METRIC", "cosine"))
	if err != nil {
		metric = index.MetricCosine
	}
	return Config{
		MaxChunkSize: int(util.GetEnvNumeric("CHUNK_MAX_TOKENS", 512)),
		Overlap:      int(util.GetEnvNumeric("CHUNK_OVERLAP", 64)),
		Encoder:      util.GetEnvString("TOKEN_ENCODER", "cl100k_base"),

		ExtractionMode:  extract.Mode(util.GetEnvString("EXTRACTION_MODE", string(extract.ModeRule))),
		ConfidenceFloor: util.GetEnvFloat("CONFIDENCE_FLOOR", 0.25),
		ExtractionModel: util.GetEnvString("EXTRACTION_MODEL", ""),

		ResolutionDistance: int(util.GetEnvNumeric("RESOLUTION_DISTANCE", 1)),

		Metric:           metric,
		K:                int(util.GetEnvNumeric("RETRIEVAL_K", 4)),
		KVec:             int(util.GetEnvNumeric("RETRIEVAL_K_VEC", 16)),
		SimilarityFloor:  util.GetEnvFloat("SIMILARITY_FLOOR", 0.15),
		GraphBoostWeight: util.GetEnvFloat("GRAPH_BOOST_WEIGHT", 0.25),

		AnswerModel:     util.GetEnvString("ANSWER_MODEL", ""),
		MaxPromptTokens: int(util.GetEnvNumeric("ANSWER_MAX_PROMPT_TOKENS", 8192)),

		Concurrency:     int(util.GetEnvNumeric("INGEST_CONCURRENCY", 4)),
		RetrieveTimeout: time.Duration(util.GetEnvNumeric("RETRIEVE_TIMEOUT_SEC", 30)) * time.Second,
		GenerateTimeout: time.Duration(util.GetEnvNumeric("GENERATE_TIMEOUT_SEC", 120)) * time.Second,
	}
}
