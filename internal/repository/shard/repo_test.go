package shard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/vecgather/internal/db"
	"github.com/kailas-cloud/vecgather/internal/domain/search/mode"
	searchuc "github.com/kailas-cloud/vecgather/internal/usecase/search"
)

// --- Mocks ---

type mockStore struct {
	result  *db.SearchResult
	err     error
	lastKNN *db.KNNQuery
	lastBM  *db.TextQuery
}

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.lastKNN = q
	return m.result, m.err
}

func (m *mockStore) SearchBM25(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	m.lastBM = q
	return m.result, m.err
}

// --- Tests ---

func TestSearch_Keyword(t *testing.T) {
	s := &mockStore{result: &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
		{Key: "docs:b", Score: 0.4},
		{Key: "docs:a", Score: 0.9},
	}}}
	repo := New("shard-1", s, "docs:idx", "docs:")

	set, err := repo.Search(context.Background(), searchuc.ShardQuery{
		Mode: mode.Keyword, Text: "hello", TopK: 5, Tags: map[string]string{"lang": "go"},
	})
	require.NoError(t, err)

	require.NotNil(t, s.lastBM)
	assert.Nil(t, s.lastKNN)
	assert.Equal(t, "docs:idx", s.lastBM.IndexName)
	assert.Equal(t, "hello", s.lastBM.Query)
	assert.Equal(t, 5, s.lastBM.TopK)
	assert.Equal(t, "go", s.lastBM.Tags["lang"])

	assert.Equal(t, []string{"a", "b"}, set.Snapshot().Keys())
}

func TestSearch_Semantic(t *testing.T) {
	s := &mockStore{result: &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{Key: "docs:x", Score: 0.8}}}}
	repo := New("shard-2", s, "docs:idx", "docs:")

	vec := []float32{0.1, 0.2}
	set, err := repo.Search(context.Background(), searchuc.ShardQuery{Mode: mode.Semantic, Vector: vec, TopK: 3})
	require.NoError(t, err)

	require.NotNil(t, s.lastKNN)
	assert.Equal(t, vec, s.lastKNN.Vector)
	assert.Equal(t, 3, s.lastKNN.K)
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, "shard-2", repo.ID())
}

func TestSearch_StoreError(t *testing.T) {
	boom := errors.New("conn reset")
	repo := New("shard-1", &mockStore{err: boom}, "idx", "")

	_, err := repo.Search(context.Background(), searchuc.ShardQuery{Mode: mode.Keyword, Text: "q", TopK: 1})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "shard-1")
}

func TestSearch_NilResult(t *testing.T) {
	repo := New("shard-1", &mockStore{}, "idx", "")

	set, err := repo.Search(context.Background(), searchuc.ShardQuery{Mode: mode.Keyword, Text: "q", TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestSearch_UnknownMode(t *testing.T) {
	repo := New("shard-1", &mockStore{}, "idx", "")

	_, err := repo.Search(context.Background(), searchuc.ShardQuery{Mode: "geo"})
	assert.Error(t, err)
}
