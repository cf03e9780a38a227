package knowledge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/petrijr/resposta/pkg/api"
)

const pgvectorSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS knowledge_documents (
	id        BIGSERIAL PRIMARY KEY,
	content   TEXT NOT NULL,
	metadata  JSONB,
	embedding vector(768) NOT NULL
);
`

// PgvectorSource is a KnowledgeSource backed by Postgres with the
// pgvector extension. Queries are embedded with the configured Embedder
// and matched by L2 distance; the similarity score reported on each
// passage is 1/(1+distance), so identical vectors score 1.0.
type PgvectorSource struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

var (
	_ api.KnowledgeSource = (*PgvectorSource)(nil)
	_ api.KnowledgeWriter = (*PgvectorSource)(nil)
)

// NewPgvectorSource connects to url, installs the schema if needed and
// returns a ready source. The caller owns the embedder's lifecycle.
func NewPgvectorSource(ctx context.Context, url string, embedder Embedder) (*PgvectorSource, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgvectorSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init pgvector schema: %w", err)
	}
	return &PgvectorSource{pool: pool, embedder: embedder}, nil
}

// Close releases the connection pool.
func (s *PgvectorSource) Close() {
	s.pool.Close()
}

// Add embeds and inserts documents one at a time. The first failure
// aborts the batch; already inserted documents stay.
func (s *PgvectorSource) Add(ctx context.Context, docs []api.KnowledgeDocument) error {
	for _, doc := range docs {
		emb, err := s.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return fmt.Errorf("embed document: %w", err)
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		_, err = s.pool.Exec(ctx,
			"INSERT INTO knowledge_documents (content, metadata, embedding) VALUES ($1, $2, $3)",
			doc.Text, meta, pgvector.NewVector(emb))
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return nil
}

// Search embeds the query and returns the topK nearest documents.
func (s *PgvectorSource) Search(ctx context.Context, query string, topK int) ([]api.SourcePassage, error) {
	if topK <= 0 {
		return nil, nil
	}
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT content, metadata, embedding <-> $1 AS distance FROM knowledge_documents ORDER BY distance LIMIT $2",
		pgvector.NewVector(emb), topK)
	if err != nil {
		return nil, fmt.Errorf("query similar: %w", err)
	}
	defer rows.Close()

	var passages []api.SourcePassage
	for rows.Next() {
		var (
			content  string
			meta     []byte
			distance float64
		)
		if err := rows.Scan(&content, &meta, &distance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		p := api.SourcePassage{
			Text:  content,
			Score: 1 / (1 + distance),
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &p.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		passages = append(passages, p)
	}
	return passages, rows.Err()
}
