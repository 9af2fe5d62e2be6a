package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragtutor/internal/chunker"
	"ragtutor/internal/conversation"
	"ragtutor/internal/domain"
	"ragtutor/internal/generator"
	"ragtutor/internal/loader"
	"ragtutor/internal/prompt"
	"ragtutor/internal/summarizer"
	"ragtutor/internal/vectorstore"
	"ragtutor/internal/vectorstore/memory"
)

type fakeLoader struct {
	report loader.Report
	err    error
	calls  int
}

func (f *fakeLoader) LoadReport(string) (loader.Report, error) {
	f.calls++
	return f.report, f.err
}

// keywordEmbedder counts keyword occurrences; it fails on texts containing failOn.
type keywordEmbedder struct {
	keywords []string
	failOn   string
}

func (k *keywordEmbedder) Name() string                            { return "keywords" }
func (k *keywordEmbedder) Prepare(context.Context, []string) error { return nil }

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if k.failOn != "" && strings.Contains(text, k.failOn) {
			return nil, errors.New("embedding endpoint unavailable")
		}
		v := make([]float32, len(k.keywords))
		for j, kw := range k.keywords {
			v[j] = float32(strings.Count(strings.ToLower(text), kw))
		}
		out[i] = v
	}
	return out, nil
}

type fakeCompleter struct {
	reply    string
	err      error
	calls    int
	messages []domain.Message
	onCall   func()
}

func (f *fakeCompleter) Complete(_ context.Context, messages []domain.Message, _ domain.CompleteOptions) (string, error) {
	f.calls++
	f.messages = messages
	if f.onCall != nil {
		f.onCall()
	}
	return f.reply, f.err
}

type fixture struct {
	svc       *RAGService
	loader    *fakeLoader
	embedder  *keywordEmbedder
	completer *fakeCompleter
	hook      *logtest.Hook
}

func newFixture(t *testing.T, fallback bool) *fixture {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	ld := &fakeLoader{report: loader.Report{
		Documents: []domain.Document{
			{ID: "d1", Path: "data/clay.txt", Content: "Clay consolidation is slow because clay permeability is low."},
			{ID: "d2", Path: "data/sand.txt", Content: "Sand drains quickly. Sand friction angle is high."},
			{ID: "d3", Path: "data/rock.txt", Content: "Rock quality designation measures rock fracturing."},
		},
		Failed: []string{"broken.pdf"},
	}}
	emb := &keywordEmbedder{keywords: []string{"clay", "sand", "rock"}}
	ch, err := chunker.NewWindowChunker(1000, 100)
	require.NoError(t, err)
	asm, err := prompt.New("")
	require.NoError(t, err)
	comp := &fakeCompleter{reply: `Use [\sigma' = \sigma - u] where \(u\) is pore pressure.`}

	svc := NewRAGService(Components{
		Loader:     ld,
		Chunker:    ch,
		Embedder:   emb,
		Storage:    memory.NewStorage(vectorstore.MetricCosine),
		Assembler:  asm,
		Generator:  generator.New(comp, generator.WithHistoryMessages(true)),
		Summarizer: summarizer.NewFrequencySummarizer(),
	}, Options{K: 2, FallbackEmptyContext: fallback, Logger: logger})
	require.NoError(t, svc.Ingest(context.Background(), "data"))
	return &fixture{svc: svc, loader: ld, embedder: emb, completer: comp, hook: hook}
}

func TestQueryAnswersAndRecordsTurn(t *testing.T) {
	f := newFixture(t, false)
	hist := conversation.New(5)
	hist.Append("earlier", "before")

	ans, err := f.svc.Query(context.Background(), hist, "  Why is clay consolidation slow? ")
	require.NoError(t, err)
	assert.Equal(t, `Use $$\sigma' = \sigma - u$$ where $u$ is pore pressure.`, ans.Text)
	require.Len(t, ans.Context, 2)
	assert.Contains(t, ans.Context[0], "Clay consolidation")

	require.Len(t, f.completer.messages, 3)
	assert.Equal(t, "earlier", f.completer.messages[0].Content)
	last := f.completer.messages[2].Content
	assert.Contains(t, last, "Context:\n"+ans.Context[0]+"\n\n"+ans.Context[1])
	assert.Contains(t, last, "# Question:\nWhy is clay consolidation slow?")

	turns := hist.Recent()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.Turn{Question: "Why is clay consolidation slow?", Answer: ans.Text}, turns[1])
}

func TestQueryAuthFailureLeavesHistory(t *testing.T) {
	f := newFixture(t, false)
	f.completer.err = errors.New("401 Unauthorized: invalid api key")
	hist := conversation.New(5)
	hist.Append("q", "a")

	_, err := f.svc.Query(context.Background(), hist, "What is clay?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGeneration))
	assert.Equal(t, 1, hist.Len())

	entry := f.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "query failed", entry.Message)
	assert.Equal(t, StageGenerating, entry.Data["stage"])
}

func TestQueryRetrievalFailure(t *testing.T) {
	f := newFixture(t, false)
	f.embedder.failOn = "offline"
	hist := conversation.New(5)

	_, err := f.svc.Query(context.Background(), hist, "offline question")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRetrieval))
	assert.Equal(t, 0, f.completer.calls)
	assert.Equal(t, 0, hist.Len())
}

func TestQueryRetrievalFallback(t *testing.T) {
	f := newFixture(t, true)
	f.embedder.failOn = "offline"
	hist := conversation.New(5)

	ans, err := f.svc.Query(context.Background(), hist, "offline question")
	require.NoError(t, err)
	assert.Empty(t, ans.Context)
	assert.Contains(t, f.completer.messages[0].Content, "Context:\n\n\n# Question:")
	assert.Equal(t, 1, hist.Len())
}

func TestQueryRejectsEmptyQuestion(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Query(context.Background(), conversation.New(5), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	assert.Equal(t, 0, f.completer.calls)
}

func TestQueryRequiresHistory(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Query(context.Background(), nil, "What is clay?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Equal(t, 0, f.completer.calls)
}

func TestQueryCancelledDuringGeneration(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.completer.onCall = cancel
	hist := conversation.New(5)

	_, err := f.svc.Query(ctx, hist, "What is clay?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, hist.Len())
}

func TestIngestRunsOnce(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.svc.Ingest(context.Background(), "data"))
	assert.Equal(t, 1, f.loader.calls)
	assert.True(t, f.svc.Ready())

	ov := f.svc.Overview()
	assert.Equal(t, 3, ov.Stats.Documents)
	assert.Equal(t, 3, ov.Stats.Chunks)
	assert.Equal(t, []string{"broken.pdf"}, ov.Stats.Failed)
	assert.Equal(t, "keywords", ov.Stats.Embedder)
	assert.NotEmpty(t, ov.Summary)
	assert.Contains(t, ov.KeyTerms, "clay")
}

func TestIngestFailures(t *testing.T) {
	svc := NewRAGService(Components{Loader: &fakeLoader{err: domain.ConfigurationError("read documents dir", errors.New("no such directory"))}}, Options{})
	err := svc.Ingest(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.False(t, svc.Ready())

	_, err = svc.Query(context.Background(), conversation.New(5), "anything")
	assert.True(t, errors.Is(err, domain.ErrRetrieval))

	empty := NewRAGService(Components{Loader: &fakeLoader{}}, Options{})
	assert.True(t, errors.Is(empty.Ingest(context.Background(), "data"), domain.ErrConfiguration))
}

func TestReadyDuringIngest(t *testing.T) {
	ch, err := chunker.NewWindowChunker(1000, 100)
	require.NoError(t, err)
	svc := NewRAGService(Components{
		Loader: &fakeLoader{report: loader.Report{Documents: []domain.Document{
			{ID: "d1", Path: "data/clay.txt", Content: "Clay consolidation is slow."},
		}}},
		Chunker:  ch,
		Embedder: &keywordEmbedder{keywords: []string{"clay"}},
		Storage:  memory.NewStorage(vectorstore.MetricCosine),
	}, Options{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.Ingest(context.Background(), "data"))
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if svc.Ready() {
				assert.Equal(t, 1, svc.Overview().Stats.Documents)
			}
		}
	}()
	wg.Wait()

	assert.True(t, svc.Ready())
	assert.Equal(t, 1, svc.Overview().Stats.Chunks)
}

func TestOverviewLine(t *testing.T) {
	ov := Overview{
		Stats:    Stats{Documents: 2, Chunks: 5, Embedder: "tfidf", Failed: []string{"a.pdf"}},
		KeyTerms: []string{"clay", "sand"},
	}
	assert.Equal(t, "2 documents, 5 chunks indexed with tfidf. 1 skipped: a.pdf. Topics: clay, sand.", ov.Line())
}
