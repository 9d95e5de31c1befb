package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkwachiabel/docdocgo-core/store"
)

func retrieveWith(t *testing.T, collection store.Collection, opts Options, params SearchParams) []Passage {
	t.Helper()
	engine := newTestEngine(&stubLLM{}, Collaborators{}, opts)
	return engine.retrievePassages(context.Background(), "query", State{
		Collection: collection,
		Params:     params,
	})
}

func TestRetrievePassagesNilCollection(t *testing.T) {
	assert.Nil(t, retrieveWith(t, nil, Options{}, SearchParams{}))
}

func TestRetrievePassagesSearchFailureIsEmptyNotError(t *testing.T) {
	collection := &stubCollection{name: "docs", err: errors.New("connection refused")}
	assert.Empty(t, retrieveWith(t, collection, Options{}, SearchParams{}))
}

func TestRetrievePassagesDeduplicatesKeepingHighestScore(t *testing.T) {
	collection := &stubCollection{name: "docs", hits: []store.Hit{
		{Text: "same text", Source: "a.md", Score: 0.5},
		{Text: "same text", Source: "a.md", Score: 0.9},
		{Text: "other text", Source: "b.md", Score: 0.7},
	}}

	passages := retrieveWith(t, collection, Options{}, SearchParams{})
	require.Len(t, passages, 2)
	assert.Equal(t, "same text", passages[0].Text)
	assert.Equal(t, 0.9, passages[0].Score)
	assert.Equal(t, "other text", passages[1].Text)
}

func TestRetrievePassagesDedupKeepsWinningHitMetadata(t *testing.T) {
	collection := &stubCollection{name: "docs", hits: []store.Hit{
		{Text: "same text", Source: "a.md", Score: 0.5, Metadata: map[string]string{"chunk_index": "7"}},
		{Text: "same text", Source: "a.md", Score: 0.9, Metadata: map[string]string{"chunk_index": "2"}},
	}}

	passages := retrieveWith(t, collection, Options{}, SearchParams{})
	require.Len(t, passages, 1)
	assert.Equal(t, 0.9, passages[0].Score)
	// The surviving passage is the higher-scored hit in full, metadata included.
	assert.Equal(t, "2", passages[0].Metadata["chunk_index"])
}

func TestRetrievePassagesOrderIsDeterministic(t *testing.T) {
	collection := &stubCollection{name: "docs", hits: []store.Hit{
		{Text: "t1", Source: "zeta.md", Score: 0.8},
		{Text: "t2", Source: "alpha.md", Score: 0.8},
		{Text: "t3", Source: "mid.md", Score: 0.9},
	}}

	passages := retrieveWith(t, collection, Options{}, SearchParams{})
	require.Len(t, passages, 3)
	assert.Equal(t, "mid.md", passages[0].Source)
	// Equal scores break ties on the source identifier.
	assert.Equal(t, "alpha.md", passages[1].Source)
	assert.Equal(t, "zeta.md", passages[2].Source)
}

func TestRetrievePassagesAppliesThreshold(t *testing.T) {
	collection := &stubCollection{name: "docs", hits: []store.Hit{
		{Text: "good", Source: "a.md", Score: 0.9},
		{Text: "weak", Source: "b.md", Score: 0.1},
	}}

	passages := retrieveWith(t, collection, Options{RelevanceThreshold: 0.5}, SearchParams{})
	require.Len(t, passages, 1)
	assert.Equal(t, "good", passages[0].Text)
}

func TestRetrievePassagesPerTurnOverrides(t *testing.T) {
	collection := &stubCollection{name: "docs", hits: []store.Hit{
		{Text: "a", Source: "a.md", Score: 0.9},
		{Text: "b", Source: "b.md", Score: 0.8},
		{Text: "c", Source: "c.md", Score: 0.7},
	}}

	passages := retrieveWith(t, collection, Options{}, SearchParams{MaxDocs: 2})
	assert.Len(t, passages, 2)

	// An explicit zero threshold overrides a configured one.
	passages = retrieveWith(t, collection,
		Options{RelevanceThreshold: 0.95},
		SearchParams{RelevanceThreshold: 0, HasThreshold: true})
	assert.Len(t, passages, 3)
}

func TestRetrievePassagesRespectsTokenBudget(t *testing.T) {
	// byteTokenizer charges one token per byte; each text is ten bytes.
	collection := &stubCollection{name: "docs", hits: []store.Hit{
		{Text: "aaaaaaaaaa", Source: "a.md", Score: 0.9},
		{Text: "bbbbbbbbbb", Source: "b.md", Score: 0.8},
		{Text: "cccccccccc", Source: "c.md", Score: 0.7},
	}}

	passages := retrieveWith(t, collection, Options{ContextTokenBudget: 25}, SearchParams{})
	require.Len(t, passages, 2)
	assert.Equal(t, "a.md", passages[0].Source)
	assert.Equal(t, "b.md", passages[1].Source)
}

func TestRetrievePassagesEmptyCollection(t *testing.T) {
	assert.Empty(t, retrieveWith(t, &stubCollection{name: "docs"}, Options{}, SearchParams{}))
}
