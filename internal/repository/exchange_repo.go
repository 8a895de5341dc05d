package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatbot-backend/internal/models"
)

// pgxQuerier is the subset of *pgxpool.Pool the repo needs.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ pgxQuerier = (*pgxpool.Pool)(nil)

type ExchangeRepo struct {
	pool pgxQuerier
}

func NewExchangeRepo(pool *pgxpool.Pool) *ExchangeRepo {
	return &ExchangeRepo{pool: pool}
}

// RecordExchange stores exchange metadata. It satisfies session.Recorder.
func (r *ExchangeRepo) RecordExchange(ctx context.Context, ex *models.Exchange) error {
	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}

	query := `INSERT INTO exchanges (id, session_id, status, error_kind, prompt_chars, reply_chars, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		ex.ID, ex.SessionID, ex.Status, ex.ErrorKind, ex.PromptChars, ex.ReplyChars, ex.LatencyMS,
	).Scan(&ex.CreatedAt)
}

func (r *ExchangeRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.Exchange, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, status, error_kind, prompt_chars, reply_chars, latency_ms, created_at
		FROM exchanges
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []*models.Exchange
	for rows.Next() {
		ex := &models.Exchange{}
		if err := rows.Scan(
			&ex.ID, &ex.SessionID, &ex.Status, &ex.ErrorKind,
			&ex.PromptChars, &ex.ReplyChars, &ex.LatencyMS, &ex.CreatedAt,
		); err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}

// DeleteBySession removes the log of an ended session.
func (r *ExchangeRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exchanges WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
