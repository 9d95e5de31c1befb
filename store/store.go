// Package store implements document collections backed by Postgres with
// pgvector. A Collection is the handle a conversation holds onto; it is
// read-mostly and safe for concurrent use, and switching collections means
// replacing the handle, never mutating one.
package store

import "context"

// Hit is one similarity-search candidate: raw passage text, a score where
// higher means more relevant, and the stable source identifier of the passage's
// origin (e.g. "guides/setup.md").
type Hit struct {
	Text     string
	Score    float64
	Source   string
	Metadata map[string]string
}

type Collection interface {
	Name() string
	Count(ctx context.Context) (int, error)
	SimilaritySearch(ctx context.Context, query string, k int) ([]Hit, error)
}
