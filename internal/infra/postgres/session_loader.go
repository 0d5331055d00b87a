package postgres

import (
	"context"
	"errors"
	"fmt"

	"classroom-analytics/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SessionLoader resolves quiz ids to their owning session from Postgres.
// This is the engine's only persistence touchpoint: producers that know a
// quiz id but not a session id go through it.
type SessionLoader struct {
	pool *pgxpool.Pool
}

func NewSessionLoader(pool *pgxpool.Pool) *SessionLoader {
	return &SessionLoader{pool: pool}
}

func (l *SessionLoader) LoadQuizSession(ctx context.Context, quizID int64) (int64, error) {
	var sessionID int64
	err := l.pool.QueryRow(ctx, `SELECT session_id FROM quizzes WHERE id=$1`, quizID).Scan(&sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrQuizNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load quiz session: %w", err)
	}
	return sessionID, nil
}
