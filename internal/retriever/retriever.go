package retriever

import (
	"context"
	"fmt"

	"ragtutor/internal/domain"
)

// Searcher is the part of the vector index the retriever needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// Retriever returns the texts of the k chunks nearest to a query, in rank order.
type Retriever struct {
	index Searcher
	k     int
}

func New(index Searcher, k int) (*Retriever, error) {
	if k <= 0 {
		return nil, domain.ConfigurationError("retriever", fmt.Errorf("k must be positive, got %d", k))
	}
	return &Retriever{index: index, k: k}, nil
}

func (r *Retriever) K() int { return r.k }

func (r *Retriever) Retrieve(ctx context.Context, query string) ([]string, error) {
	results, err := r.index.Search(ctx, query, r.k)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			err = domain.RetrievalError("retrieve", err)
		}
		return nil, err
	}
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Chunk.Text
	}
	return texts, nil
}
