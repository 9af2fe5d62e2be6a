package server

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"ragtutor/internal/conversation"
	"ragtutor/internal/domain"
)

const (
	sessionCookie = "tutor_session"
	// transcriptLimit is how many exchanges the page shows.
	transcriptLimit = 10
)

// session is one browser conversation. mu serialises its queries.
type session struct {
	mu         sync.Mutex
	history    *conversation.History
	transcript []domain.Turn
}

func (s *session) record(question, answer string) {
	s.transcript = append(s.transcript, domain.Turn{Question: question, Answer: answer})
	if over := len(s.transcript) - transcriptLimit; over > 0 {
		s.transcript = append(s.transcript[:0:0], s.transcript[over:]...)
	}
}

// newestFirst returns the shown transcript, most recent exchange first.
func (s *session) newestFirst() []domain.Turn {
	out := make([]domain.Turn, len(s.transcript))
	for i, t := range s.transcript {
		out[len(out)-1-i] = t
	}
	return out
}

func (s *session) reset() {
	s.history.Reset()
	s.transcript = nil
}

// sessionStore keeps the most recently used sessions; idle ones are evicted.
type sessionStore struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, *session]
	maxTurns int
}

func newSessionStore(size, maxTurns int) (*sessionStore, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, *session](size)
	if err != nil {
		return nil, err
	}
	return &sessionStore{cache: cache, maxTurns: maxTurns}, nil
}

// get returns the caller's session, creating one and setting the cookie when needed.
func (st *sessionStore) get(w http.ResponseWriter, r *http.Request) *session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if c, err := r.Cookie(sessionCookie); err == nil {
		if s, ok := st.cache.Get(c.Value); ok {
			return s
		}
	}
	id := uuid.NewString()
	s := &session{history: conversation.New(st.maxTurns)}
	st.cache.Add(id, s)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

func (st *sessionStore) len() int { return st.cache.Len() }
