package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

// Document mirrors an ingested document as a graph node, keyed by the Postgres
// document id so both stores can be joined by it.
type Document struct {
	ID         string
	Collection string
	Source     string
	Title      string
	SHA        string
	ChunkCount int
}

// Insight is the graph-side metadata shown next to a cited source.
type Insight struct {
	Title      string
	ChunkCount int
}

// Store maintains a lightweight graph of documents and collections in Neo4j.
// A nil Store is valid and turns every method into a no-op, so callers running
// without Neo4j configured need no branching.
type Store struct {
	driver neo4j.DriverWithContext
	logger *logrus.Logger
}

func NewStore(driver neo4j.DriverWithContext, logger *logrus.Logger) *Store {
	if driver == nil {
		return nil
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{driver: driver, logger: logger}
}

// SyncDocument upserts the document node and its collection membership.
func (s *Store) SyncDocument(ctx context.Context, doc Document) error {
	if s == nil {
		return nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"id":          doc.ID,
		"collection":  doc.Collection,
		"source":      doc.Source,
		"title":       doc.Title,
		"sha":         doc.SHA,
		"chunk_count": doc.ChunkCount,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (d:Document {id: $id})
			SET d.source = $source,
			    d.title = $title,
			    d.sha256 = $sha,
			    d.chunk_count = $chunk_count,
			    d.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert document node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[r:IN_COLLECTION]->(:Collection)
			DELETE r
		`, params); err != nil {
			return nil, fmt.Errorf("remove stale collection relation: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})
			MERGE (c:Collection {name: $collection})
			MERGE (d)-[:IN_COLLECTION]->(c)
		`, params); err != nil {
			return nil, fmt.Errorf("upsert collection relation: %w", err)
		}

		return nil, nil
	})

	return err
}

// Insights looks up graph metadata for the given sources within a collection.
// Sources without a matching document node are absent from the result.
func (s *Store) Insights(ctx context.Context, collection string, sources []string) (map[string]Insight, error) {
	if s == nil || len(sources) == 0 {
		return nil, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (d:Document)-[:IN_COLLECTION]->(c:Collection {name: $collection})
		WHERE d.source IN $sources
		RETURN d.source AS source, d.title AS title, d.chunk_count AS chunk_count
	`, map[string]any{"collection": collection, "sources": sources})
	if err != nil {
		return nil, fmt.Errorf("query document insights: %w", err)
	}

	insights := make(map[string]Insight)
	for result.Next(ctx) {
		record := result.Record()
		source, _ := record.Get("source")
		title, _ := record.Get("title")
		chunkCount, _ := record.Get("chunk_count")

		src, ok := source.(string)
		if !ok || src == "" {
			continue
		}
		insight := Insight{}
		if t, ok := title.(string); ok {
			insight.Title = t
		}
		if n, ok := chunkCount.(int64); ok {
			insight.ChunkCount = int(n)
		}
		insights[src] = insight
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read document insights: %w", err)
	}

	return insights, nil
}
