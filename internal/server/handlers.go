package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mockpanel/mockpanel/internal/interview"
	"github.com/mockpanel/mockpanel/internal/store"
)

type startRequest struct {
	Company       string          `json:"company"`
	Role          string          `json:"role"`
	Mode          string          `json:"mode"`
	QuestionCount int             `json:"question_count"`
	Brief         interview.Brief `json:"brief"`
}

type startResponse struct {
	SessionID string               `json:"session_id"`
	Plan      []interview.PlanItem `json:"plan"`
}

type answerRequest struct {
	Answer   string                  `json:"answer"`
	HintUsed bool                    `json:"hint_used"`
	Voice    *interview.VoiceMetrics `json:"voice_metrics,omitempty"`
}

type voiceRequest struct {
	TurnNumber int                     `json:"turn_number"`
	Voice      *interview.VoiceMetrics `json:"voice_metrics"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Company) == "" || strings.TrimSpace(req.Role) == "" {
		writeError(w, http.StatusBadRequest, "company and role are required")
		return
	}
	if req.Mode == "" {
		req.Mode = "text"
	}
	if req.QuestionCount <= 0 {
		req.QuestionCount = 5
	}

	id := newSessionID()
	sess := interview.NewSession(id, req.Company, req.Role, req.Mode, s.model, req.QuestionCount, req.Brief)

	plan := interview.NewPlanner(s.caps, s.logger).BuildPlan(r.Context(), sess)
	orchestrator := interview.NewOrchestrator(s.caps, interview.NewPanel(s.caps), sess, s.logger)

	now := time.Now().UTC()
	s.mu.Lock()
	s.sessions[id] = &managedSession{orchestrator: orchestrator, createdAt: now}
	s.mu.Unlock()

	s.persistSession(sess, now)

	s.logger.Info("interview started",
		zap.String("session_id", id),
		zap.String("company", req.Company),
		zap.String("role", req.Role),
		zap.Int("planned", len(plan)),
	)

	writeJSON(w, http.StatusCreated, startResponse{SessionID: id, Plan: plan})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	ms, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plan": ms.orchestrator.Session().Plan(),
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	ms, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	q := ms.orchestrator.NextQuestion(r.Context())
	if q == nil {
		writeJSON(w, http.StatusOK, map[string]any{"is_interview_over": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"question":          q,
		"is_interview_over": false,
	})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	ms, ok := s.lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		writeError(w, http.StatusBadRequest, "answer is required")
		return
	}

	result, err := ms.orchestrator.ProcessAnswer(r.Context(), req.Answer, req.HintUsed, req.Voice)
	if err != nil {
		if errors.Is(err, interview.ErrNoPendingQuestion) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("answer processing failed", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "answer processing failed")
		return
	}

	if payload, err := json.Marshal(result.Turn); err == nil {
		s.persistTurn(id, result.Turn, payload)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	ms, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !ms.orchestrator.Session().AttachVoiceMetrics(req.TurnNumber, req.Voice) {
		writeError(w, http.StatusBadRequest, "no such turn or missing metrics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attached": true})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	ms, ok := s.lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	report, err := interview.NewEvaluator(s.caps, s.logger).Evaluate(r.Context(), ms.orchestrator.Session())
	if err != nil {
		if errors.Is(err, interview.ErrNothingToEvaluate) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("evaluation failed", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	if payload, err := json.Marshal(report); err == nil {
		s.persistEvaluation(id, report.OverallScore, payload)
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ms, ok := s.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	sess := ms.orchestrator.Session()
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":          sess.Snapshot(),
		"flags":             sess.Flags(),
		"is_interview_over": sess.Done(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.History(r.Context(), 20)
	if err != nil {
		// Persistence is best effort, so a broken store degrades to an
		// empty listing instead of failing the request.
		s.logger.Warn("history listing failed", zap.Error(err))
		entries = nil
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
