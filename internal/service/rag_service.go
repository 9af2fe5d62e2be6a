package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"ragtutor/internal/chunker"
	"ragtutor/internal/conversation"
	"ragtutor/internal/domain"
	"ragtutor/internal/generator"
	"ragtutor/internal/loader"
	"ragtutor/internal/postprocess"
	"ragtutor/internal/prompt"
	"ragtutor/internal/retriever"
	"ragtutor/internal/summarizer"
	"ragtutor/internal/vectorstore"
)

// Stage names the step a query is in. Used for logging.
type Stage string

const (
	StageRetrieving     Stage = "retrieving"
	StageAssembling     Stage = "assembling"
	StageGenerating     Stage = "generating"
	StagePostProcessing Stage = "postprocessing"
)

// DocumentLoader reads a directory into documents.
type DocumentLoader interface {
	LoadReport(dir string) (loader.Report, error)
}

// Components are the collaborators the service is built from.
type Components struct {
	Loader     DocumentLoader
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Storage    vectorstore.Storage
	Assembler  *prompt.Assembler
	Generator  *generator.Generator
	Summarizer *summarizer.FrequencySummarizer
}

// Options tune retrieval and logging.
type Options struct {
	K                    int
	BatchSize            int
	FallbackEmptyContext bool
	SummarySentences     int
	KeyTerms             int
	Logger               log.FieldLogger
}

// Stats describes the built index.
type Stats struct {
	Documents int
	Chunks    int
	Failed    []string
	Embedder  string
}

// Overview is shown to users once the corpus is indexed.
type Overview struct {
	Stats    Stats
	Summary  string
	KeyTerms []string
}

// RAGService answers questions against one shared, read-only index.
// Conversation state is owned by callers and passed into Query.
type RAGService struct {
	c    Components
	opts Options
	log  log.FieldLogger

	once      sync.Once
	ingestErr error
	state     atomic.Pointer[indexState]
}

// indexState is published once ingestion completes.
type indexState struct {
	retriever *retriever.Retriever
	overview  Overview
}

func NewRAGService(c Components, opts Options) *RAGService {
	if opts.K <= 0 {
		opts.K = 3
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = 3
	}
	if opts.KeyTerms <= 0 {
		opts.KeyTerms = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &RAGService{c: c, opts: opts, log: logger}
}

// Ingest loads, chunks and indexes dir. It runs at most once; later calls
// return the first outcome.
func (s *RAGService) Ingest(ctx context.Context, dir string) error {
	s.once.Do(func() {
		s.ingestErr = s.ingest(ctx, dir)
	})
	return s.ingestErr
}

func (s *RAGService) ingest(ctx context.Context, dir string) error {
	started := time.Now()
	report, err := s.c.Loader.LoadReport(dir)
	if err != nil {
		return err
	}
	if len(report.Documents) == 0 {
		return domain.ConfigurationError("ingest", errors.New("no readable documents in "+dir))
	}
	chunks, err := chunker.Split(s.c.Chunker, report.Documents)
	if err != nil {
		return err
	}
	index, err := vectorstore.Build(ctx, chunks, s.c.Embedder, s.c.Storage, vectorstore.BuildOptions{
		BatchSize: s.opts.BatchSize,
		Logger:    s.log,
	})
	if err != nil {
		return err
	}
	r, err := retriever.New(index, s.opts.K)
	if err != nil {
		return err
	}

	overview := Overview{Stats: Stats{
		Documents: len(report.Documents),
		Chunks:    index.Len(),
		Failed:    report.Failed,
		Embedder:  s.c.Embedder.Name(),
	}}
	if s.c.Summarizer != nil {
		var corpus strings.Builder
		for _, d := range report.Documents {
			corpus.WriteString(d.Content)
			corpus.WriteString("\n")
		}
		overview.Summary = s.c.Summarizer.Summarize(corpus.String(), s.opts.SummarySentences)
		overview.KeyTerms = s.c.Summarizer.KeyTerms(corpus.String(), s.opts.KeyTerms)
	}
	s.state.Store(&indexState{retriever: r, overview: overview})

	s.log.WithFields(log.Fields{
		"documents": len(report.Documents),
		"failed":    len(report.Failed),
		"chunks":    index.Len(),
		"took":      time.Since(started).String(),
	}).Info("corpus ready")
	return nil
}

// Overview returns corpus statistics and summary. It is empty before Ingest.
func (s *RAGService) Overview() Overview {
	if c := s.state.Load(); c != nil {
		return c.overview
	}
	return Overview{}
}

// Ready reports whether the index has been built.
func (s *RAGService) Ready() bool { return s.state.Load() != nil }

// Query answers question using the retrieved context and the given history.
// The turn is appended to history only when every stage succeeded and ctx is
// still live; a failed query leaves history untouched.
func (s *RAGService) Query(ctx context.Context, history *conversation.History, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if history == nil {
		return nil, domain.ConfigurationError("query", errors.New("conversation history is required"))
	}
	c := s.state.Load()
	if c == nil {
		return nil, domain.RetrievalError("query", errors.New("index is not built"))
	}
	started := time.Now()
	logger := s.log.WithField("question_len", len(question))
	prior := history.Recent()

	logger.WithField("stage", StageRetrieving).Debug("query stage")
	contexts, err := c.retriever.Retrieve(ctx, question)
	if err != nil {
		if !s.opts.FallbackEmptyContext || ctx.Err() != nil {
			return nil, s.fail(logger, StageRetrieving, err)
		}
		logger.WithError(err).Warn("retrieval failed, answering without context")
		contexts = nil
	}

	logger.WithField("stage", StageAssembling).Debug("query stage")
	text, err := s.c.Assembler.Assemble(contexts, question, prior)
	if err != nil {
		return nil, s.fail(logger, StageAssembling, err)
	}

	logger.WithField("stage", StageGenerating).Debug("query stage")
	raw, err := s.c.Generator.Generate(ctx, text, prior)
	if err != nil {
		return nil, s.fail(logger, StageGenerating, err)
	}

	logger.WithField("stage", StagePostProcessing).Debug("query stage")
	answer := postprocess.Normalize(raw)

	if err := ctx.Err(); err != nil {
		return nil, s.fail(logger, StagePostProcessing, domain.GenerationError("query", err))
	}
	history.Append(question, answer)
	logger.WithFields(log.Fields{
		"contexts": len(contexts),
		"took":     time.Since(started).String(),
	}).Debug("query answered")
	return &domain.Answer{Text: answer, Context: contexts}, nil
}

func (s *RAGService) fail(logger log.FieldLogger, stage Stage, err error) error {
	logger.WithFields(log.Fields{
		"stage": stage,
		"kind":  domain.KindOf(err).String(),
	}).WithError(err).Error("query failed")
	return err
}

// Line renders the overview as a single header line.
func (o Overview) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d documents, %d chunks indexed with %s.", o.Stats.Documents, o.Stats.Chunks, o.Stats.Embedder)
	if n := len(o.Stats.Failed); n > 0 {
		fmt.Fprintf(&b, " %d skipped: %s.", n, strings.Join(o.Stats.Failed, ", "))
	}
	if len(o.KeyTerms) > 0 {
		b.WriteString(" Topics: " + strings.Join(o.KeyTerms, ", ") + ".")
	}
	return b.String()
}
