package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nkwachiabel/docdocgo-core/embeddings"
)

// PgCollection is a named collection of embedded chunks in Postgres. The query
// text is embedded with the same embedder that produced the stored vectors.
type PgCollection struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	id       uuid.UUID
	name     string
}

func (c *PgCollection) Name() string {
	return c.name
}

func (c *PgCollection) Count(ctx context.Context) (int, error) {
	var count int
	err := c.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks WHERE collection_id = $1", c.id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

func (c *PgCollection) SimilaritySearch(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}

	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := k * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT
            c.id,
            c.chunk_index,
            c.source,
            c.content,
            COALESCE(d.title, ''),
            (c.embedding <-> $2::vector) AS distance
        FROM chunks c
        LEFT JOIN documents d ON d.id = c.document_id
        WHERE c.collection_id = $1
        ORDER BY c.embedding <-> $2::vector
        LIMIT $3
    `, c.id, pgvector.NewVector(vectors[0]), k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, k)
	for rows.Next() {
		var (
			chunkID    uuid.UUID
			chunkIndex int
			title      string
			distance   float64
			hit        Hit
		)
		if err := rows.Scan(&chunkID, &chunkIndex, &hit.Source, &hit.Text, &title, &distance); err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		hit.Score = 1 / (1 + distance)
		hit.Metadata = map[string]string{
			"chunk_id":    chunkID.String(),
			"chunk_index": strconv.Itoa(chunkIndex),
		}
		if title != "" {
			hit.Metadata["title"] = title
		}
		hits = append(hits, hit)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return hits, nil
}

// Entry is one chunk queued for insertion.
type Entry struct {
	Text       string
	Source     string
	DocumentID uuid.UUID // zero when the chunk has no backing document row
	ChunkIndex int
}

// AddTexts embeds the entries and inserts them in a single transaction.
func (c *PgCollection) AddTexts(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Text
	}

	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(entries) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(entries))
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, entry := range entries {
		var docID any
		if entry.DocumentID != uuid.Nil {
			docID = entry.DocumentID
		}
		_, err := tx.Exec(ctx, `
            INSERT INTO chunks (id, collection_id, document_id, chunk_index, source, content, embedding)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `, uuid.New(), c.id, docID, entry.ChunkIndex, entry.Source, entry.Text, pgvector.NewVector(vectors[i]))
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

// UpsertDocument records a document row and returns its id, replacing any
// previous chunks for the same source within the collection.
func (c *PgCollection) UpsertDocument(ctx context.Context, source, title, sha string) (uuid.UUID, error) {
	var existing uuid.UUID
	err := c.pool.QueryRow(ctx,
		"SELECT id FROM documents WHERE collection_id = $1 AND source = $2", c.id, source,
	).Scan(&existing)
	switch {
	case err == nil && existing != uuid.Nil:
		if _, err := c.pool.Exec(ctx, "DELETE FROM chunks WHERE document_id = $1", existing); err != nil {
			return uuid.Nil, fmt.Errorf("delete stale chunks: %w", err)
		}
		if _, err := c.pool.Exec(ctx,
			"UPDATE documents SET title = $2, sha256 = $3 WHERE id = $1", existing, title, sha,
		); err != nil {
			return uuid.Nil, fmt.Errorf("update document: %w", err)
		}
		return existing, nil
	case errors.Is(err, pgx.ErrNoRows):
		id := uuid.New()
		if _, err := c.pool.Exec(ctx, `
            INSERT INTO documents (id, collection_id, source, title, sha256)
            VALUES ($1, $2, $3, $4, $5)
        `, id, c.id, source, title, sha); err != nil {
			return uuid.Nil, fmt.Errorf("insert document: %w", err)
		}
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("look up document: %w", err)
	}
}

var _ Collection = (*PgCollection)(nil)
