package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragtutor/internal/domain"
	"ragtutor/internal/vectorstore"
)

func entry(pos int, id string, vec ...float32) domain.IndexEntry {
	return domain.IndexEntry{Position: pos, Chunk: domain.Chunk{ChunkID: id, Text: id}, Embedding: vec}
}

func ids(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.ChunkID
	}
	return out
}

func TestCosineRanking(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(vectorstore.MetricCosine)
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{
		entry(0, "x", 1, 0),
		entry(1, "y", 0, 1),
		entry(2, "xy", 1, 1),
	}))
	assert.Equal(t, 3, s.Len())

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "xy", "y"}, ids(results))
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
	assert.InDelta(t, 1-0.70710678, results[1].Distance, 1e-4)
	assert.InDelta(t, 1, results[2].Distance, 1e-6)
}

func TestTiesBrokenByPosition(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(vectorstore.MetricCosine)
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{
		entry(2, "c", 2, 0),
		entry(0, "a", 1, 0),
		entry(1, "b", 3, 0),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(results))
}

func TestZeroVectorHasUnitDistance(t *testing.T) {
	ctx := context.Background()
	s := NewStorage("")
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{entry(0, "zero", 0, 0)}))

	results, err := s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].Distance)
}

func TestEuclideanRanking(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(vectorstore.MetricL2)
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{
		entry(0, "far", 3, 4),
		entry(1, "near", 1, 0),
	}))

	results, err := s.Search(ctx, []float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "far"}, ids(results))
	assert.InDelta(t, 1, results[0].Distance, 1e-5)
	assert.InDelta(t, 5, results[1].Distance, 1e-5)
}

func TestDimensionChecks(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(vectorstore.MetricCosine)
	require.Error(t, s.Upsert(ctx, []domain.IndexEntry{entry(0, "a", 1)}))
	require.Error(t, s.Init(ctx, 0))
	require.NoError(t, s.Init(ctx, 3))
	require.Error(t, s.Upsert(ctx, []domain.IndexEntry{entry(0, "a", 1, 2)}))
	_, err := s.Search(ctx, []float32{1}, 1)
	require.Error(t, err)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(vectorstore.MetricCosine)
	require.NoError(t, s.Init(ctx, 1))
	require.NoError(t, s.Upsert(ctx, []domain.IndexEntry{entry(0, "a", 1)}))
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
}
