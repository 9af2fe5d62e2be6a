package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/viant/vec/search"

	"ragtutor/internal/domain"
	"ragtutor/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Storage is an in-memory vector store doing an exhaustive scan per query.
type Storage struct {
	mu         sync.RWMutex
	metric     vectorstore.Metric
	dimension  int
	entries    []domain.IndexEntry
	magnitudes []float32
}

func NewStorage(metric vectorstore.Metric) *Storage {
	if metric == "" {
		metric = vectorstore.MetricCosine
	}
	return &Storage{metric: metric}
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	switch s.metric {
	case vectorstore.MetricCosine, vectorstore.MetricL2:
	default:
		return fmt.Errorf("unsupported metric %q", s.metric)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.entries = nil
	s.magnitudes = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, entries []domain.IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("storage not initialised")
	}
	for _, e := range entries {
		if len(e.Embedding) != s.dimension {
			return fmt.Errorf("vector dimension mismatch for %s: %d != %d", e.Chunk.ChunkID, len(e.Embedding), s.dimension)
		}
	}
	for _, e := range entries {
		s.entries = append(s.entries, e)
		s.magnitudes = append(s.magnitudes, search.Float32s(e.Embedding).Magnitude())
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension %d != %d", len(vector), s.dimension)
	}
	if topK <= 0 || len(s.entries) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := search.Float32s(vector)
	queryMag := query.Magnitude()
	scored := make([]domain.SearchResult, len(s.entries))
	positions := make([]int, len(s.entries))
	for i, e := range s.entries {
		scored[i] = domain.SearchResult{Chunk: e.Chunk, Distance: s.distance(query, queryMag, e.Embedding, s.magnitudes[i])}
		positions[i] = e.Position
	}
	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		da, db := scored[order[a]].Distance, scored[order[b]].Distance
		if da != db {
			return da < db
		}
		return positions[order[a]] < positions[order[b]]
	})
	if topK > len(order) {
		topK = len(order)
	}
	results := make([]domain.SearchResult, topK)
	for i := 0; i < topK; i++ {
		results[i] = scored[order[i]]
	}
	return results, nil
}

func (s *Storage) distance(query search.Float32s, queryMag float32, v []float32, mag float32) float64 {
	if s.metric == vectorstore.MetricL2 {
		return float64(query.EuclideanDistance(v))
	}
	if queryMag == 0 || mag == 0 {
		return 1
	}
	return float64(query.CosineDistanceWithMagnitudesNeon(v, queryMag, mag))
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.magnitudes = nil
	return nil
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
