// Package server exposes the interview lifecycle over HTTP. Sessions live in
// memory for their whole lifetime; the store only receives best-effort copies
// for history and later inspection.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mockpanel/mockpanel/internal/interview"
	"github.com/mockpanel/mockpanel/internal/store"
)

// managedSession bundles everything one live interview needs.
type managedSession struct {
	orchestrator *interview.Orchestrator
	createdAt    time.Time
}

// Server is the HTTP front of the interview orchestrator.
type Server struct {
	caps   interview.Capabilities
	store  store.Store
	logger *zap.Logger
	model  string

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

func New(caps interview.Capabilities, st store.Store, model string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if st == nil {
		st = store.NewNoop()
	}
	return &Server{
		caps:     caps,
		store:    st,
		logger:   logger,
		model:    model,
		sessions: make(map[string]*managedSession),
	}
}

// Router builds the HTTP routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Route("/interview", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Get("/history", s.handleHistory)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/plan", s.handlePlan)
			r.Get("/next", s.handleNext)
			r.Post("/answer", s.handleAnswer)
			r.Post("/voice", s.handleVoice)
			r.Post("/evaluate", s.handleEvaluate)
			r.Get("/state", s.handleState)
		})
	})
	r.Get("/healthz", s.handleHealth)

	return r
}

func (s *Server) lookup(id string) (*managedSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms, ok := s.sessions[id]
	return ms, ok
}

// newSessionID returns a fresh UUID for a session.
func newSessionID() string {
	return uuid.NewString()
}

// persistSession writes the session identity in the background.
func (s *Server) persistSession(sess *interview.Session, createdAt time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.store.SaveSession(ctx, store.SessionRecord{
			ID:            sess.ID,
			Company:       sess.Company,
			Role:          sess.Role,
			Mode:          sess.Mode,
			Model:         sess.Model,
			QuestionCount: sess.QuestionCount,
			CreatedAt:     createdAt,
		})
		if err != nil {
			s.logger.Warn("session persistence failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}()
}

// persistTurn writes one answered turn in the background.
func (s *Server) persistTurn(sessionID string, turn *interview.TurnRecord, payload []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.store.SaveTurn(ctx, store.TurnRecord{
			SessionID:  sessionID,
			TurnNumber: turn.TurnNumber,
			Persona:    string(turn.Persona),
			Question:   turn.Question,
			Answer:     turn.Answer,
			Quality:    string(turn.Analysis.Quality),
			Payload:    payload,
		})
		if err != nil {
			s.logger.Warn("turn persistence failed",
				zap.String("session_id", sessionID),
				zap.Int("turn", turn.TurnNumber),
				zap.Error(err),
			)
		}
	}()
}

// persistEvaluation writes the final report and completion mark in the
// background.
func (s *Server) persistEvaluation(sessionID string, overallScore int, payload []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := s.store.SaveEvaluation(ctx, store.EvaluationRecord{
			SessionID:    sessionID,
			OverallScore: overallScore,
			Payload:      payload,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			s.logger.Warn("evaluation persistence failed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		if err := s.store.MarkCompleted(ctx, sessionID); err != nil {
			s.logger.Warn("completion mark failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}
