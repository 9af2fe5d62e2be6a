package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragtutor/internal/conversation"
	"ragtutor/internal/domain"
)

type echoQuerier struct {
	mu       sync.Mutex
	inFlight int
	overlap  bool
}

func (e *echoQuerier) Query(_ context.Context, history *conversation.History, question string) (*domain.Answer, error) {
	e.mu.Lock()
	e.inFlight++
	if e.inFlight > 1 {
		e.overlap = true
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight--
		e.mu.Unlock()
	}()

	question = strings.TrimSpace(question)
	switch question {
	case "":
		return nil, domain.ErrEmptyQuestion
	case "fail":
		return nil, domain.GenerationError("complete", errors.New("invalid api key"))
	}
	answer := "answer to " + question
	history.Append(question, answer)
	return &domain.Answer{Text: answer, Context: []string{"ctx"}}, nil
}

func newTestServer(t *testing.T, q Querier) (*httptest.Server, *http.Client) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	s, err := New(q, Config{MaxSessions: 8, MaxTurns: 5, Overview: "3 documents indexed", Logger: logger})
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar}
}

func postQuery(t *testing.T, c *http.Client, base, question string) (*http.Response, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(queryRequest{Question: question})
	resp, err := c.Post(base+"/api/query", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func getHistory(t *testing.T, c *http.Client, base string) []turnResponse {
	t.Helper()
	resp, err := c.Get(base + "/api/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	var turns []turnResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turns))
	return turns
}

func TestQueryAndHistoryNewestFirst(t *testing.T) {
	srv, client := newTestServer(t, &echoQuerier{})

	resp, out := postQuery(t, client, srv.URL, "first")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "answer to first", out["answer"])
	postQuery(t, client, srv.URL, "second")

	turns := getHistory(t, client, srv.URL)
	require.Len(t, turns, 2)
	assert.Equal(t, "second", turns[0].Question)
	assert.Equal(t, "first", turns[1].Question)
}

func TestHistoryShowsLastTenTurns(t *testing.T) {
	srv, client := newTestServer(t, &echoQuerier{})
	for i := 1; i <= 12; i++ {
		postQuery(t, client, srv.URL, fmt.Sprintf("q%d", i))
	}
	turns := getHistory(t, client, srv.URL)
	require.Len(t, turns, transcriptLimit)
	assert.Equal(t, "q12", turns[0].Question)
	assert.Equal(t, "q3", turns[9].Question)
}

func TestQueryErrors(t *testing.T) {
	srv, client := newTestServer(t, &echoQuerier{})

	resp, out := postQuery(t, client, srv.URL, "fail")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "generation", out["kind"])
	assert.Contains(t, out["error"], "invalid api key")

	resp, out = postQuery(t, client, srv.URL, "  ")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", out["kind"])

	assert.Empty(t, getHistory(t, client, srv.URL))

	bad, err := client.Post(srv.URL+"/api/query", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestSessionsAreIsolated(t *testing.T) {
	srv, alice := newTestServer(t, &echoQuerier{})
	jar, _ := cookiejar.New(nil)
	bob := &http.Client{Jar: jar}

	postQuery(t, alice, srv.URL, "alice question")
	assert.Len(t, getHistory(t, alice, srv.URL), 1)
	assert.Empty(t, getHistory(t, bob, srv.URL))
}

func TestClearHistory(t *testing.T) {
	srv, client := newTestServer(t, &echoQuerier{})
	postQuery(t, client, srv.URL, "q")

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/history", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, getHistory(t, client, srv.URL))
}

func TestSessionQueriesDoNotOverlap(t *testing.T) {
	q := &echoQuerier{}
	srv, client := newTestServer(t, q)
	getHistory(t, client, srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"question":"q%d"}`, i)
			resp, err := client.Post(srv.URL+"/api/query", "application/json", strings.NewReader(body))
			if assert.NoError(t, err) {
				resp.Body.Close()
			}
		}(i)
	}
	wg.Wait()
	assert.False(t, q.overlap)
	assert.Len(t, getHistory(t, client, srv.URL), 8)
}

func TestPageFormFlow(t *testing.T) {
	srv, client := newTestServer(t, &echoQuerier{})

	resp, err := client.PostForm(srv.URL+"/", url.Values{"question": {"What is <clay>?"}})
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page := string(body)
	assert.Contains(t, page, "3 documents indexed")
	assert.Contains(t, page, "Chat History")
	assert.Contains(t, page, "What is &lt;clay&gt;?")
	assert.Contains(t, page, "katex.min.js")
	assert.Contains(t, page, `renderMathInElement(el`)
	assert.Contains(t, page, `{left: "$$", right: "$$", display: true}`)
	assert.Contains(t, page, `<div id="history">`)

	resp, err = client.PostForm(srv.URL+"/", url.Values{"question": {"fail"}})
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "Error: generation error (complete): invalid api key")
}

func TestHealth(t *testing.T) {
	srv, client := newTestServer(t, &echoQuerier{})
	resp, err := client.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
