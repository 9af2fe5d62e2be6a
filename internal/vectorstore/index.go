package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"ragtutor/internal/domain"
	"ragtutor/internal/embedding"
)

// BuildOptions tunes index construction.
type BuildOptions struct {
	BatchSize int
	Logger    log.FieldLogger
}

// Index is the sealed, read-only view over a populated storage.
// It is safe for concurrent searches.
type Index struct {
	embedder domain.Embedder
	storage  Storage
	size     int
	dim      int
}

// Build embeds every chunk and stores it. Any embedding or storage failure
// fails the whole build.
func Build(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder, storage Storage, opts BuildOptions) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	if len(chunks) == 0 {
		return nil, domain.ConfigurationError("build index", errors.New("no chunks to index"))
	}
	started := time.Now()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	if err := embedder.Prepare(ctx, texts); err != nil {
		return nil, domain.ConfigurationError("prepare embedder", err)
	}
	vectors, err := embedding.EmbedBatched(ctx, embedder, texts, opts.BatchSize)
	if err != nil {
		return nil, domain.ConfigurationError("embed chunks", err)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, domain.ConfigurationError("embed chunks", errors.New("embedder returned empty vectors"))
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i := range chunks {
		if len(vectors[i]) != dim {
			return nil, domain.ConfigurationError("embed chunks", fmt.Errorf("chunk %s has dimension %d, want %d", chunks[i].ChunkID, len(vectors[i]), dim))
		}
		entries[i] = domain.IndexEntry{Position: i, Chunk: chunks[i], Embedding: vectors[i]}
	}

	if err := storage.Init(ctx, dim); err != nil {
		return nil, domain.ConfigurationError("init vector store", err)
	}
	if err := storage.Upsert(ctx, entries); err != nil {
		_ = storage.Clear(ctx)
		return nil, domain.ConfigurationError("store vectors", err)
	}

	logger.WithFields(log.Fields{
		"embedder":  embedder.Name(),
		"chunks":    len(entries),
		"dimension": dim,
		"took":      time.Since(started).String(),
	}).Info("index built")
	return &Index{embedder: embedder, storage: storage, size: len(entries), dim: dim}, nil
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int { return x.size }

// Dimension returns the embedding dimension.
func (x *Index) Dimension() int { return x.dim }

// Search embeds query with the build embedder and returns the k nearest chunks.
// k is clamped to the index size.
func (x *Index) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, domain.RetrievalError("search", fmt.Errorf("k must be positive, got %d", k))
	}
	if k > x.size {
		k = x.size
	}
	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, domain.RetrievalError("embed query", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != x.dim {
		return nil, domain.RetrievalError("embed query", errors.New("query embedding has unexpected shape"))
	}
	results, err := x.storage.Search(ctx, vecs[0], k)
	if err != nil {
		return nil, domain.RetrievalError("search", err)
	}
	return results, nil
}
