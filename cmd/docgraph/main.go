package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/docwise-ai/docgraph/internal/util"
	"github.com/docwise-ai/docgraph/pkg/ai"
	"github.com/docwise-ai/docgraph/pkg/ai/ollama"
	"github.com/docwise-ai/docgraph/pkg/ai/openai"
	"github.com/docwise-ai/docgraph/pkg/common"
	"github.com/docwise-ai/docgraph/pkg/index"
	"github.com/docwise-ai/docgraph/pkg/leaselock"
	"github.com/docwise-ai/docgraph/pkg/logger"
	"github.com/docwise-ai/docgraph/pkg/logger/console"
	"github.com/docwise-ai/docgraph/pkg/pipeline"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "docgraph",
	})
	logger.Init(consoleLogger)

	docsDir := util.GetEnvString("DOCS_DIR", "./docs")
	if len(os.Args) > 1 {
		docsDir = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newModelClient()
	if err != nil {
		logger.Fatal("[Main] failed to configure model client", "error", err)
	}

	cfg := pipeline.FromEnv()
	idx, pool, cleanup, err := newVectorIndex(ctx, cfg)
	if err != nil {
		logger.Fatal("[Main] failed to open vector index", "error", err)
	}
	defer cleanup()

	p, err := pipeline.New(client, idx, cfg)
	if err != nil {
		logger.Fatal("[Main] failed to build pipeline", "error", err)
	}

	logger.Info("[Main] ingesting documents", "dir", docsDir)
	var stats pipeline.IngestStats
	ingest := func(ctx context.Context) error {
		var err error
		stats, err = p.Ingest(ctx, docsDir)
		return err
	}
	if pool != nil {
		// shared database, keep concurrent ingesters off the same table
		locks := leaselock.New(pool)
		if err := locks.EnsureSchema(ctx); err != nil {
			logger.Fatal("[Main] failed to prepare lock table", "error", err)
		}
		key := "ingest:" + util.GetEnvString("EMBEDDINGS_TABLE", "chunk_embeddings")
		err = locks.WithLease(ctx, key, leaselock.Options{Wait: true}, ingest)
	} else {
		err = ingest(ctx)
	}
	if err != nil {
		logger.Fatal("[Main] ingestion failed", "error", err)
	}

	fmt.Printf("Indexed %d documents (%d chunks). Type a question, or one of: docs, graph, export <file>, exit\n",
		stats.Documents, stats.Chunks)

	repl(ctx, p, stats)
}

func repl(ctx context.Context, p *pipeline.Pipeline, stats pipeline.IngestStats) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "exit" || line == "quit":
			return
		case line == "docs":
			fmt.Printf("%d documents, %d chunks indexed (%d documents failed, %d chunks skipped)\n",
				stats.Documents, stats.Chunks, stats.DocumentsFailed, stats.ChunksFailed)
		case line == "graph":
			fmt.Print(p.Graph().Export().Summary())
		case strings.HasPrefix(line, "export "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "export "))
			if err := writeExport(p, path); err != nil {
				fmt.Printf("export failed: %v\n", err)
				continue
			}
			fmt.Printf("graph written to %s\n", path)
		default:
			answerQuestion(ctx, p, line)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func answerQuestion(ctx context.Context, p *pipeline.Pipeline, query string) {
	ans, err := p.Ask(ctx, query)
	if err != nil {
		var unavailable *common.RetrievalUnavailableError
		if errors.As(err, &unavailable) {
			fmt.Println("retrieval is currently unavailable, try again later")
			return
		}
		fmt.Printf("failed to answer: %v\n", err)
		return
	}

	fmt.Println(ans.Text)
	if len(ans.CitedChunkIDs) > 0 {
		fmt.Printf("cited chunks: %s\n", strings.Join(ans.CitedChunkIDs, ", "))
	}
}

func writeExport(p *pipeline.Pipeline, path string) error {
	data, err := json.MarshalIndent(p.Graph().Export(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func newModelClient() (ai.ModelClient, error) {
	backend := util.GetEnvString("AI_BACKEND", "ollama")
	switch backend {
	case "openai":
		key := util.GetEnv("OPENAI_API_KEY")
		if key == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai backend")
		}
		return openai.NewClient(openai.NewClientParams{
			ChatModel:      util.GetEnvString("AI_CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel: util.GetEnvString("AI_EMBED_MODEL", "text-embedding-3-small"),

			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      key,
			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnvString("AI_EMBED_KEY", key),

			EmbeddingDimensions:   int(util.GetEnvNumeric("AI_EMBED_DIM", 1536)),
			RequestTimeoutMinutes: int(util.GetEnvNumeric("AI_TIMEOUT_MIN", 2)),
			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_MAX_CONCURRENT", 8)),
		}), nil
	case "ollama":
		return ollama.NewClient(ollama.NewClientParams{
			ChatModel:      util.GetEnvString("AI_CHAT_MODEL", "llama3.1"),
			EmbeddingModel: util.GetEnvString("AI_EMBED_MODEL", "nomic-embed-text"),

			BaseURL: util.GetEnv("OLLAMA_URL"),
			ApiKey:  util.GetEnv("OLLAMA_API_KEY"),

			EmbeddingDimensions:   int(util.GetEnvNumeric("AI_EMBED_DIM", 768)),
			RequestTimeoutMinutes: int(util.GetEnvNumeric("AI_TIMEOUT_MIN", 5)),
			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_MAX_CONCURRENT", 4)),
		})
	default:
		return nil, fmt.Errorf("unknown AI_BACKEND %q", backend)
	}
}

func newVectorIndex(ctx context.Context, cfg pipeline.Config) (index.VectorIndex, *pgxpool.Pool, func(), error) {
	dbURL := util.GetEnv("DATABASE_URL")
	if dbURL == "" {
		logger.Info("[Main] no DATABASE_URL set, using in-memory vector index")
		return index.NewMemoryIndex(cfg.Metric), nil, func() {}, nil
	}

	idx, err := index.NewPgvectorIndex(ctx, index.PgvectorConfig{
		DatabaseURL: dbURL,
		Metric:      cfg.Metric,
		Dimensions:  int(util.GetEnvNumeric("AI_EMBED_DIM", 768)),
		Table:       util.GetEnvString("EMBEDDINGS_TABLE", "chunk_embeddings"),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return idx, idx.Pool(), idx.Close, nil
}
