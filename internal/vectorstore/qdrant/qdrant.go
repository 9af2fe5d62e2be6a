package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ragtutor/internal/domain"
	"ragtutor/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Storage is a minimal REST client to Qdrant.
// Init drops and recreates the collection, so every process starts from a fresh index.
type Storage struct {
	url        string
	apiKey     string
	collection string
	metric     vectorstore.Metric
	client     *http.Client
	count      atomic.Int64
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Metric     vectorstore.Metric
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	metric := cfg.Metric
	if metric == "" {
		metric = vectorstore.MetricCosine
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		metric:     metric,
		client:     client,
	}
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	distance := "Cosine"
	if s.metric == vectorstore.MetricL2 {
		distance = "Euclid"
	}
	if err := s.Clear(ctx); err != nil {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": distance,
		},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
}

func (s *Storage) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		points[i] = map[string]any{
			"id":     PointID(e.Chunk.ChunkID),
			"vector": e.Embedding,
			"payload": map[string]any{
				"document_id": e.Chunk.DocumentID,
				"chunk_id":    e.Chunk.ChunkID,
				"source":      e.Chunk.Source,
				"index":       e.Chunk.Index,
				"start":       e.Chunk.Start,
				"end":         e.Chunk.End,
				"position":    e.Position,
				"text":        e.Chunk.Text,
			},
		}
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
		return err
	}
	s.count.Add(int64(len(entries)))
	return nil
}

type searchResponse struct {
	Result []struct {
		Score   float64 `json:"score"`
		Payload payload `json:"payload"`
	} `json:"result"`
}

type payload struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Source     string `json:"source"`
	Index      int    `json:"index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Position   int    `json:"position"`
	Text       string `json:"text"`
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp searchResponse
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	type ranked struct {
		result   domain.SearchResult
		position int
	}
	out := make([]ranked, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := r.Payload
		out = append(out, ranked{
			result: domain.SearchResult{
				Chunk: domain.Chunk{
					DocumentID: p.DocumentID,
					ChunkID:    p.ChunkID,
					Source:     p.Source,
					Index:      p.Index,
					Start:      p.Start,
					End:        p.End,
					Text:       p.Text,
				},
				Distance: s.distance(r.Score),
			},
			position: p.Position,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].result.Distance != out[j].result.Distance {
			return out[i].result.Distance < out[j].result.Distance
		}
		return out[i].position < out[j].position
	})
	results := make([]domain.SearchResult, len(out))
	for i := range out {
		results[i] = out[i].result
	}
	return results, nil
}

// distance converts a Qdrant score to ascending distance. Cosine scores are
// similarities, Euclid scores are already distances.
func (s *Storage) distance(score float64) float64 {
	if s.metric == vectorstore.MetricL2 {
		return score
	}
	return 1 - score
}

// Clear drops the collection. A missing collection is not an error.
func (s *Storage) Clear(ctx context.Context) error {
	err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		err = nil
	}
	if err == nil {
		s.count.Store(0)
	}
	return err
}

func (s *Storage) Len() int { return int(s.count.Load()) }

// PointID derives a stable Qdrant point id from a chunk id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

type statusError struct {
	method string
	url    string
	code   int
	status string
	body   string
}

func (e *statusError) Error() string {
	msg := fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
	if e.body != "" {
		msg += ": " + e.body
	}
	return msg
}

func (s *Storage) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status, body: strings.TrimSpace(string(snippet))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
