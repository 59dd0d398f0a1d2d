// Package vectorstore implements retrieval.VectorStore over Postgres with
// the pgvector extension, against the documents/chunks schema.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/jacobkus/intelligent-hr-assistant/internal/model"
	"github.com/jacobkus/intelligent-hr-assistant/internal/retrieval"
)

// NewPool creates a connection pool configured to register the pgvector
// wire types on every new connection.
func NewPool(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("vectorstore.NewPool: parse config: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MinConns = 2
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.AfterConnect = pgxvector.RegisterTypes

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorstore.NewPool: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("vectorstore.NewPool: ping: %w", err)
	}

	return pool, nil
}

// Store queries the chunks table for nearest neighbors by cosine distance.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store over pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Compile-time check that Store satisfies retrieval.VectorStore.
var _ retrieval.VectorStore = (*Store)(nil)

// Search implements retrieval.VectorStore. Ordering is by ascending cosine
// distance; no threshold is applied here, since similarity-floor filtering
// is the retrieval service's responsibility.
func (s *Store) Search(ctx context.Context, queryVec []float32, topK int, filter retrieval.SearchFilter) ([]retrieval.SearchHit, error) {
	embedding := pgvector.NewVector(queryVec)

	query := `
		SELECT
			c.id, c.document_id, c.chunk_index, c.content, c.section_title,
			c.embedding <=> $1::vector AS distance,
			d.id, d.checksum, d.source_file, d.title, d.created_at
		FROM chunks c
		JOIN documents d ON c.document_id = d.id
		WHERE c.embedding IS NOT NULL`

	args := []any{embedding}
	if filter.DocumentID != "" {
		query += fmt.Sprintf(" AND c.document_id = $%d", len(args)+1)
		args = append(args, filter.DocumentID)
	}

	query += fmt.Sprintf(" ORDER BY c.embedding <=> $1::vector LIMIT $%d", len(args)+1)
	args = append(args, topK)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorstore.Search: %w", err)
	}
	defer rows.Close()

	var hits []retrieval.SearchHit
	for rows.Next() {
		var hit retrieval.SearchHit
		var sectionTitle, title, sourceFile *string
		err := rows.Scan(
			&hit.Chunk.ID, &hit.Chunk.DocumentID, &hit.Chunk.ChunkIndex, &hit.Chunk.Content, &sectionTitle,
			&hit.Distance,
			&hit.Document.ID, &hit.Document.Checksum, &sourceFile, &title, &hit.Document.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("vectorstore.Search: scan: %w", err)
		}
		if sectionTitle != nil {
			hit.Chunk.SectionTitle = *sectionTitle
		}
		if title != nil {
			hit.Document.Title = *title
		}
		if sourceFile != nil {
			hit.Document.SourceFile = *sourceFile
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore.Search: %w", err)
	}

	return hits, nil
}

// Ping verifies the pool can reach the database, for the health endpoint's
// store probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// HasVectorExtension reports whether the pgvector extension is installed
// in the connected database, for the health endpoint's extension probe.
func (s *Store) HasVectorExtension(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("vectorstore.HasVectorExtension: %w", err)
	}
	return exists, nil
}

// InsertDocument and InsertChunks support the offline ingestion path that
// populates the schema this service searches; the chat and retrieve
// endpoints never write. Kept here, rather than in a separate package,
// because both operate over the same pool and tables.

// InsertDocument upserts a document by checksum.
func (s *Store) InsertDocument(ctx context.Context, doc model.Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, checksum, source_file, title, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (checksum) DO UPDATE SET source_file = EXCLUDED.source_file, title = EXCLUDED.title`,
		doc.ID, doc.Checksum, doc.SourceFile, doc.Title, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("vectorstore.InsertDocument: %w", err)
	}
	return nil
}

// InsertChunks bulk-inserts chunks and their embeddings for one document.
func (s *Store) InsertChunks(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		embedding := pgvector.NewVector(c.Embedding)
		batch.Queue(
			`INSERT INTO chunks (id, document_id, chunk_index, content, section_title, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (document_id, chunk_index) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			c.ID, c.DocumentID, c.ChunkIndex, c.Content, c.SectionTitle, embedding,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("vectorstore.InsertChunks: chunk %d: %w", i, err)
		}
	}
	return nil
}
