package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	company        TEXT NOT NULL,
	role           TEXT NOT NULL,
	mode           TEXT NOT NULL,
	model          TEXT NOT NULL,
	question_count INT NOT NULL,
	completed      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	turn_number INT NOT NULL,
	persona     TEXT NOT NULL,
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	quality     TEXT NOT NULL,
	payload     JSONB NOT NULL,
	PRIMARY KEY (session_id, turn_number)
);

CREATE TABLE IF NOT EXISTS evaluations (
	session_id    TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
	overall_score INT NOT NULL,
	payload       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
`

// Postgres stores sessions in PostgreSQL behind a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database and bootstraps the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SaveSession(ctx context.Context, rec SessionRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, company, role, mode, model, question_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Company, rec.Role, rec.Mode, rec.Model, rec.QuestionCount, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	return nil
}

func (p *Postgres) SaveTurn(ctx context.Context, rec TurnRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO turns (session_id, turn_number, persona, question, answer, quality, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, turn_number) DO UPDATE SET payload = EXCLUDED.payload`,
		rec.SessionID, rec.TurnNumber, rec.Persona, rec.Question, rec.Answer, rec.Quality, rec.Payload,
	)
	if err != nil {
		return fmt.Errorf("save turn %d of session %s: %w", rec.TurnNumber, rec.SessionID, err)
	}
	return nil
}

func (p *Postgres) SaveEvaluation(ctx context.Context, rec EvaluationRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO evaluations (session_id, overall_score, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			payload       = EXCLUDED.payload,
			created_at    = EXCLUDED.created_at`,
		rec.SessionID, rec.OverallScore, rec.Payload, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save evaluation for session %s: %w", rec.SessionID, err)
	}
	return nil
}

func (p *Postgres) MarkCompleted(ctx context.Context, sessionID string) error {
	_, err := p.pool.Exec(ctx, `UPDATE sessions SET completed = TRUE WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("mark session %s completed: %w", sessionID, err)
	}
	return nil
}

func (p *Postgres) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.pool.Query(ctx, `
		SELECT s.id, s.company, s.role, s.mode, s.created_at, s.completed, e.overall_score
		FROM sessions s
		LEFT JOIN evaluations e ON e.session_id = s.id
		ORDER BY s.created_at DESC
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list session history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.SessionID, &e.Company, &e.Role, &e.Mode, &e.CreatedAt, &e.Completed, &e.OverallScore); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
