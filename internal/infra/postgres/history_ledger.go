package postgres

import (
	"context"
	"fmt"
	"time"

	"daily-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// HistoryLedger keeps one row per (learner, question) ever shown.
type HistoryLedger struct {
	pool *pgxpool.Pool
}

func NewHistoryLedger(pool *pgxpool.Pool) *HistoryLedger {
	return &HistoryLedger{pool: pool}
}

func (h *HistoryLedger) RecordExposure(ctx context.Context, learnerID, questionID string, correct bool, at time.Time) error {
	_, err := h.pool.Exec(ctx, `INSERT INTO question_history
			(learner_id, question_id, first_seen_at, last_seen_at, exposures, ever_correct)
		VALUES ($1, $2, $3, $3, 1, $4)
		ON CONFLICT (learner_id, question_id) DO UPDATE SET
			last_seen_at = EXCLUDED.last_seen_at,
			exposures = question_history.exposures + 1,
			ever_correct = EXCLUDED.ever_correct`,
		learnerID, questionID, at, correct)
	if err != nil {
		return fmt.Errorf("record exposure: %w", err)
	}
	return nil
}

func (h *HistoryLedger) SeenQuestionIDs(ctx context.Context, learnerID string) (map[string]struct{}, error) {
	rows, err := h.pool.Query(ctx, `SELECT question_id FROM question_history WHERE learner_id = $1`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list seen questions: %w", err)
	}
	defer rows.Close()
	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		seen[id] = struct{}{}
	}
	return seen, rows.Err()
}

func (h *HistoryLedger) Get(ctx context.Context, learnerID, questionID string) (domain.HistoryRecord, error) {
	rec := domain.HistoryRecord{LearnerID: learnerID, QuestionID: questionID}
	err := h.pool.QueryRow(ctx, `SELECT first_seen_at, last_seen_at, exposures, ever_correct
		FROM question_history WHERE learner_id = $1 AND question_id = $2`, learnerID, questionID).
		Scan(&rec.FirstSeenAt, &rec.LastSeenAt, &rec.Exposures, &rec.EverCorrect)
	if isNoRows(err) {
		return domain.HistoryRecord{}, domain.ErrHistoryNotFound
	}
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("get history: %w", err)
	}
	return rec, nil
}

func (h *HistoryLedger) PurgeAll(ctx context.Context, learnerID string) error {
	if _, err := h.pool.Exec(ctx, `DELETE FROM question_history WHERE learner_id = $1`, learnerID); err != nil {
		return fmt.Errorf("purge history: %w", err)
	}
	return nil
}
