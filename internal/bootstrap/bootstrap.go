// Package bootstrap assembles the answering pipeline from configuration.
package bootstrap

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"ragtutor/internal/chunker"
	"ragtutor/internal/config"
	"ragtutor/internal/domain"
	"ragtutor/internal/embedding"
	embopenai "ragtutor/internal/embedding/openai"
	"ragtutor/internal/embedding/tfidf"
	"ragtutor/internal/generator"
	llmopenai "ragtutor/internal/llm/openai"
	"ragtutor/internal/loader"
	"ragtutor/internal/prompt"
	"ragtutor/internal/service"
	"ragtutor/internal/summarizer"
	"ragtutor/internal/vectorstore"
	"ragtutor/internal/vectorstore/memory"
	"ragtutor/internal/vectorstore/qdrant"
)

// NewService validates cfg and wires every component. Errors are
// configuration errors and should stop the process.
func NewService(cfg *config.AppConfig, logger log.FieldLogger) (*service.RAGService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	ch, err := chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}
	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	st, err := NewStorage(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	comp, err := NewCompleter(cfg.Completer)
	if err != nil {
		return nil, err
	}
	asm, err := prompt.New(cfg.Prompt.Template, prompt.WithHistory(cfg.History.Mode == config.HistoryModePrompt))
	if err != nil {
		return nil, err
	}
	gen := generator.New(comp,
		generator.WithTemperature(cfg.Completer.Temperature),
		generator.WithHistoryMessages(cfg.History.Mode == config.HistoryModeMessages),
	)

	batch := 0
	if cfg.Embedder.OpenAI != nil {
		batch = cfg.Embedder.OpenAI.BatchSize
	}
	return service.NewRAGService(service.Components{
		Loader:     loader.New(loader.WithLogger(logger)),
		Chunker:    ch,
		Embedder:   emb,
		Storage:    st,
		Assembler:  asm,
		Generator:  gen,
		Summarizer: summarizer.NewFrequencySummarizer(),
	}, service.Options{
		K:                    cfg.Retriever.K,
		BatchSize:            batch,
		FallbackEmptyContext: cfg.Retriever.FallbackEmptyContext,
		Logger:               logger,
	}), nil
}

// NewEmbedder returns the configured embedder behind an LRU cache.
func NewEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Type {
	case "tfidf":
		emb = tfidf.NewEmbedder()
	case "openai":
		if cfg.OpenAI == nil {
			return nil, domain.ConfigurationError("embedder", fmt.Errorf("openai embedder config missing"))
		}
		key, err := cfg.OpenAI.APIKey()
		if err != nil {
			return nil, err
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKey:            key,
			Model:             cfg.OpenAI.Model,
			Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		})
		if err != nil {
			return nil, domain.ConfigurationError("embedder", err)
		}
		emb = client
	default:
		return nil, domain.ConfigurationError("embedder", fmt.Errorf("unknown embedder: %s", cfg.Type))
	}
	cached, err := embedding.NewCached(emb, cfg.CacheSize)
	if err != nil {
		return nil, domain.ConfigurationError("embedder cache", err)
	}
	return cached, nil
}

func NewStorage(cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	metric := vectorstore.Metric(cfg.Metric)
	switch cfg.Type {
	case "memory":
		return memory.NewStorage(metric), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, domain.ConfigurationError("vector store", fmt.Errorf("qdrant config missing"))
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Metric:     metric,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, domain.ConfigurationError("vector store", fmt.Errorf("unknown vector store: %s", cfg.Type))
	}
}

func NewCompleter(cfg config.CompleterConfig) (domain.Completer, error) {
	switch cfg.Type {
	case "openai":
		if cfg.OpenAI == nil {
			return nil, domain.ConfigurationError("completer", fmt.Errorf("openai completer config missing"))
		}
		key, err := cfg.OpenAI.APIKey()
		if err != nil {
			return nil, err
		}
		client, err := llmopenai.NewClient(llmopenai.Config{
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  key,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, domain.ConfigurationError("completer", err)
		}
		return client, nil
	default:
		return nil, domain.ConfigurationError("completer", fmt.Errorf("unknown completer: %s", cfg.Type))
	}
}
