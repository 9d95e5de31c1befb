package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A nil Store is the documented "no Neo4j configured" state; every method must
// be a safe no-op on it.

func TestNewStoreNilDriver(t *testing.T) {
	assert.Nil(t, NewStore(nil, nil))
}

func TestNilStoreSyncDocumentIsNoOp(t *testing.T) {
	var s *Store
	require.NoError(t, s.SyncDocument(context.Background(), Document{ID: "d1"}))
}

func TestNilStoreInsightsIsEmpty(t *testing.T) {
	var s *Store
	insights, err := s.Insights(context.Background(), "docs", []string{"a.md"})
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestInsightsNoSourcesShortCircuits(t *testing.T) {
	var s *Store
	insights, err := s.Insights(context.Background(), "docs", nil)
	require.NoError(t, err)
	assert.Nil(t, insights)
}
