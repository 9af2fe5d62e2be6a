package vectorstore

import (
	"context"

	"ragtutor/internal/domain"
)

// Metric names the distance used to rank entries. Lower distance is closer.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
)

// Storage persists index entries and supports nearest-neighbour search.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, entries []domain.IndexEntry) error
	// Search returns up to topK entries ordered by increasing distance,
	// ties broken by entry position.
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	Clear(ctx context.Context) error
	Len() int
}
