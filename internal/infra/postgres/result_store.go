package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"daily-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultStore appends test result snapshots; the unique quiz_id makes Save
// idempotent.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) Save(ctx context.Context, result domain.TestResult) error {
	assignedOn, err := dateParam(result.AssignedOn)
	if err != nil {
		return err
	}
	answers, err := json.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO test_results
			(id, quiz_id, learner_id, assigned_on, answers, score, percentage, coins, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (quiz_id) DO NOTHING`,
		result.ID, result.QuizID, result.LearnerID, assignedOn, answers,
		result.Score, result.Percentage, result.Coins, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("save test result: %w", err)
	}
	return nil
}

func (s *ResultStore) ListByLearner(ctx context.Context, learnerID string) ([]domain.TestResult, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, quiz_id, learner_id, assigned_on, answers, score, percentage, coins, created_at
		FROM test_results WHERE learner_id = $1 ORDER BY created_at DESC`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list test results: %w", err)
	}
	defer rows.Close()
	var out []domain.TestResult
	for rows.Next() {
		var (
			r          domain.TestResult
			assignedOn time.Time
			answers    []byte
		)
		if err := rows.Scan(&r.ID, &r.QuizID, &r.LearnerID, &assignedOn, &answers,
			&r.Score, &r.Percentage, &r.Coins, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test result: %w", err)
		}
		if err := json.Unmarshal(answers, &r.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		r.AssignedOn = dayFromDate(assignedOn)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ResultStore) CountPerfect(ctx context.Context, learnerID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM test_results WHERE learner_id = $1 AND score = $2`,
		learnerID, domain.QuizSize).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count perfect results: %w", err)
	}
	return n, nil
}
