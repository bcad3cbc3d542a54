// Package web serves the question form and the health endpoint. The form
// posts back to the same path, so the whole UI is a single template.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/virtual-factory/paperline/internal/rag"
)

// Answerer runs a question through retrieval and completion.
type Answerer interface {
	Answer(ctx context.Context, question string) (*rag.Answer, error)
	BreakerState() string
}

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	answerer Answerer
	pinger   Pinger
}

// NewServer returns a Server backed by the given answering pipeline and
// database handle.
func NewServer(answerer Answerer, pinger Pinger) *Server {
	return &Server{answerer: answerer, pinger: pinger}
}

// Router mounts the form, the answer handler, and /healthz.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Post("/", s.handleAsk)
	r.Get("/healthz", s.handleHealthz)
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, formData{})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	question := r.FormValue("user_input")
	if strings.TrimSpace(question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	ans, err := s.answerer.Answer(r.Context(), question)
	if err != nil {
		zap.L().Error("answer question", zap.Error(err))
		http.Error(w, "failed to answer question", http.StatusInternalServerError)
		return
	}

	s.render(w, formData{Question: question, Answer: ans.Text, Loaded: true})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.pinger.Ping(r.Context()); err != nil {
		zap.L().Warn("health check", zap.Error(err))
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  status,
		"breaker": s.answerer.BreakerState(),
	})
}

type formData struct {
	Question string
	Answer   string
	Loaded   bool
}

func (s *Server) render(w http.ResponseWriter, data formData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "index", data); err != nil {
		zap.L().Error("render form", zap.Error(err))
	}
}

// requestLogger logs one line per request once the response is written.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
