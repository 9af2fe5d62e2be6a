// Package server serves the tutor as a small web chat.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"ragtutor/internal/conversation"
	"ragtutor/internal/domain"
)

// Querier answers one question within a conversation.
type Querier interface {
	Query(ctx context.Context, history *conversation.History, question string) (*domain.Answer, error)
}

type Config struct {
	MaxSessions int
	MaxTurns    int
	Overview    string
	Logger      log.FieldLogger
}

// Server holds the shared service and per-browser sessions.
type Server struct {
	service  Querier
	sessions *sessionStore
	overview string
	page     *template.Template
	log      log.FieldLogger
}

func New(service Querier, cfg Config) (*Server, error) {
	sessions, err := newSessionStore(cfg.MaxSessions, cfg.MaxTurns)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Server{
		service:  service,
		sessions: sessions,
		overview: cfg.Overview,
		page:     template.Must(template.New("page").Parse(pageTemplate)),
		log:      logger,
	}, nil
}

// Handler returns the routes of the web chat.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.handlePage)
	r.Post("/", s.handleForm)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/query", s.handleQuery)
		r.Get("/history", s.handleHistory)
		r.Delete("/history", s.handleClearHistory)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"took":       time.Since(started).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

type pageData struct {
	Overview string
	Error    string
	History  []domain.Turn
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	data := pageData{Overview: s.overview, History: sess.newestFirst()}
	sess.mu.Unlock()
	s.render(w, data)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	data := pageData{Overview: s.overview}
	question := strings.TrimSpace(r.FormValue("question"))

	var err error
	sess.mu.Lock()
	if question != "" {
		if _, err = s.ask(r.Context(), sess, question); err != nil {
			data.Error = "Error: " + err.Error()
		}
	}
	data.History = sess.newestFirst()
	sess.mu.Unlock()

	if err != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusFor(err))
	}
	s.render(w, data)
}

// ask runs one query. The caller holds sess.mu.
func (s *Server) ask(ctx context.Context, sess *session, question string) (*domain.Answer, error) {
	answer, err := s.service.Query(ctx, sess.history, question)
	if err != nil {
		return nil, err
	}
	sess.record(strings.TrimSpace(question), answer.Text)
	return answer, nil
}

func (s *Server) render(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.log.WithError(err).Error("render page")
	}
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answer  string   `json:"answer"`
	Context []string `json:"context"`
}

type turnResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	answer, err := s.ask(r.Context(), sess, req.Question)
	sess.mu.Unlock()
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Kind: kindName(err)})
		return
	}
	passages := answer.Context
	if passages == nil {
		passages = []string{}
	}
	writeJSON(w, http.StatusOK, queryResponse{Answer: answer.Text, Context: passages})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	turns := sess.newestFirst()
	sess.mu.Unlock()
	out := make([]turnResponse, len(turns))
	for i, t := range turns {
		out[i] = turnResponse{Question: t.Question, Answer: t.Answer}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.get(w, r)
	sess.mu.Lock()
	sess.reset()
	sess.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.len()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrGeneration), errors.Is(err, domain.ErrRetrieval):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindName(err error) string {
	if errors.Is(err, domain.ErrEmptyQuestion) {
		return "validation"
	}
	switch domain.KindOf(err) {
	case domain.KindRetrieval:
		return "retrieval"
	case domain.KindGeneration:
		return "generation"
	case domain.KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
