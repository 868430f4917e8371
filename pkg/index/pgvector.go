package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docwise-ai/docgraph/internal/util"
	"github.com/docwise-ai/docgraph/pkg/common"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgvectorIndex stores chunk embeddings in PostgreSQL with the pgvector
// extension. The table is created on first use; the metric and
// dimensionality are fixed at construction.
type PgvectorIndex struct {
	pool   *pgxpool.Pool
	metric Metric
	dim    int
	table  string
}

// PgvectorConfig configures a PgvectorIndex.
type PgvectorConfig struct {
	DatabaseURL string
	Metric      Metric
	Dimensions  int
	Table       string // defaults to "chunk_embeddings"
}

// NewPgvectorIndex connects to PostgreSQL, ensures the vector extension
// and the embeddings table exist, and returns a ready index.
func NewPgvectorIndex(ctx context.Context, cfg PgvectorConfig) (*PgvectorIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("pgvector index requires a positive dimensionality")
	}
	table := cfg.Table
	if table == "" {
		table = "chunk_embeddings"
	}
	metric := cfg.Metric
	if metric == "" {
		metric = MetricCosine
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	idx := &PgvectorIndex{
		pool:   pool,
		metric: metric,
		dim:    cfg.Dimensions,
		table:  table,
	}
	if err := idx.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

func (p *PgvectorIndex) ensureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector extension: %w", err)
	}
	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			chunk_id  TEXT PRIMARY KEY,
			embedding VECTOR(%d) NOT NULL,
			content   TEXT NOT NULL,
			metadata  JSONB
		)`, p.table, p.dim)
	if _, err := p.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("failed to create embeddings table: %w", err)
	}
	return nil
}

// Metric reports the similarity metric the index was built with.
func (p *PgvectorIndex) Metric() Metric { return p.metric }

// Pool exposes the underlying connection pool so callers can share the
// database connection, for example for ingest locking.
func (p *PgvectorIndex) Pool() *pgxpool.Pool { return p.pool }

// Close releases the connection pool.
func (p *PgvectorIndex) Close() {
	p.pool.Close()
}

// Upsert writes the records in one batch, replacing rows that already
// exist for a chunk id.
func (p *PgvectorIndex) Upsert(ctx context.Context, records []common.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	sql := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, embedding, content, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chunk_id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
		    content = EXCLUDED.content,
		    metadata = EXCLUDED.metadata`, p.table)

	for _, rec := range records {
		if len(rec.Vector) != p.dim {
			return &DimensionMismatchError{Want: p.dim, Got: len(rec.Vector)}
		}
		var meta []byte
		if rec.Metadata != nil {
			var err error
			meta, err = json.Marshal(rec.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata for chunk %s: %w", rec.ChunkID, err)
			}
		}
		batch.Queue(sql,
			rec.ChunkID,
			pgvector.NewVector(rec.Vector),
			util.SanitizePostgresText(rec.Text),
			meta,
		)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert embedding: %w", err)
		}
	}
	return nil
}

// Query returns up to k records by descending similarity.
func (p *PgvectorIndex) Query(ctx context.Context, vector []float32, k int) ([]common.RetrievalResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != p.dim {
		return nil, &DimensionMismatchError{Want: p.dim, Got: len(vector)}
	}

	// <=> is cosine distance, <-> is L2 distance
	var sql string
	switch p.metric {
	case MetricL2:
		sql = fmt.Sprintf(`
			SELECT chunk_id, content, 1.0 / (1.0 + (embedding <-> $1)) AS score
			FROM %s
			ORDER BY embedding <-> $1, chunk_id
			LIMIT $2`, p.table)
	default:
		sql = fmt.Sprintf(`
			SELECT chunk_id, content, 1.0 - (embedding <=> $1) AS score
			FROM %s
			ORDER BY embedding <=> $1, chunk_id
			LIMIT $2`, p.table)
	}

	rows, err := p.pool.Query(ctx, sql, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var out []common.RetrievalResult
	for rows.Next() {
		var r common.RetrievalResult
		if err := rows.Scan(&r.ChunkID, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Fetch returns stored records for the given chunk ids, skipping ids
// the index does not hold. Embeddings are not rehydrated.
func (p *PgvectorIndex) Fetch(ctx context.Context, chunkIDs []string) ([]common.VectorRecord, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	sql := fmt.Sprintf(`
		SELECT chunk_id, content, metadata
		FROM %s
		WHERE chunk_id = ANY($1)`, p.table)

	rows, err := p.pool.Query(ctx, sql, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch embeddings: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]common.VectorRecord, len(chunkIDs))
	for rows.Next() {
		var (
			rec  common.VectorRecord
			meta []byte
		)
		if err := rows.Scan(&rec.ChunkID, &rec.Text, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata for chunk %s: %w", rec.ChunkID, err)
			}
		}
		byID[rec.ChunkID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]common.VectorRecord, 0, len(byID))
	for _, id := range chunkIDs {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
