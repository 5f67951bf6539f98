// Package store persists interview sessions, turns and evaluation reports.
// Persistence is best effort: the interview loop never blocks or fails on a
// storage error, so every implementation must tolerate being called on a
// broken backend.
package store

import (
	"context"
	"time"
)

// SessionRecord is the stored identity and setup of one interview session.
type SessionRecord struct {
	ID            string
	Company       string
	Role          string
	Mode          string
	Model         string
	QuestionCount int
	CreatedAt     time.Time
}

// TurnRecord is one stored question/answer exchange. Payload carries the
// full turn as JSON so schema evolution never loses analysis detail.
type TurnRecord struct {
	SessionID  string
	TurnNumber int
	Persona    string
	Question   string
	Answer     string
	Quality    string
	Payload    []byte
}

// EvaluationRecord is one stored post-session report.
type EvaluationRecord struct {
	SessionID    string
	OverallScore int
	Payload      []byte
	CreatedAt    time.Time
}

// HistoryEntry is the compact listing row for past sessions.
type HistoryEntry struct {
	SessionID    string    `json:"session_id"`
	Company      string    `json:"company"`
	Role         string    `json:"role"`
	Mode         string    `json:"mode"`
	CreatedAt    time.Time `json:"created_at"`
	Completed    bool      `json:"completed"`
	OverallScore *int      `json:"overall_score,omitempty"`
}

// Store is the persistence port for interview sessions.
type Store interface {
	SaveSession(ctx context.Context, rec SessionRecord) error
	SaveTurn(ctx context.Context, rec TurnRecord) error
	SaveEvaluation(ctx context.Context, rec EvaluationRecord) error
	MarkCompleted(ctx context.Context, sessionID string) error
	History(ctx context.Context, limit int) ([]HistoryEntry, error)
	Close()
}

// Noop discards all writes and reports an empty history. Used when no
// database is configured.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) SaveSession(context.Context, SessionRecord) error       { return nil }
func (*Noop) SaveTurn(context.Context, TurnRecord) error             { return nil }
func (*Noop) SaveEvaluation(context.Context, EvaluationRecord) error { return nil }
func (*Noop) MarkCompleted(context.Context, string) error            { return nil }
func (*Noop) History(context.Context, int) ([]HistoryEntry, error) {
	return []HistoryEntry{}, nil
}
func (*Noop) Close() {}
