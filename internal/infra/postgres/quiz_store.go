package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"daily-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizStore persists quiz instances with slots as JSONB. The unique index
// on (learner_id, assigned_on) backs the one-quiz-per-day rule and the
// version column backs optimistic updates.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

const quizColumns = `id, learner_id, locality_id, assigned_on, slots, status, deadline,
	completed_at, score, coins_awarded, version, created_at`

func (s *QuizStore) Create(ctx context.Context, quiz domain.QuizInstance) error {
	if err := quiz.Validate(); err != nil {
		return err
	}
	assignedOn, err := dateParam(quiz.AssignedOn)
	if err != nil {
		return err
	}
	slots, err := json.Marshal(quiz.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO quiz_instances (`+quizColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		quiz.ID, quiz.LearnerID, quiz.LocalityID, assignedOn, slots, string(quiz.Status), quiz.Deadline,
		quiz.CompletedAt, quiz.Score, quiz.CoinsAwarded, quiz.Version, quiz.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateQuiz
	}
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *QuizStore) Get(ctx context.Context, quizID string) (domain.QuizInstance, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quiz_instances WHERE id = $1`, quizID)
	return scanQuiz(row)
}

func (s *QuizStore) FindByLearnerDay(ctx context.Context, learnerID string, day domain.Day) (domain.QuizInstance, error) {
	assignedOn, err := dateParam(day)
	if err != nil {
		return domain.QuizInstance{}, err
	}
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quiz_instances
		WHERE learner_id = $1 AND assigned_on = $2`, learnerID, assignedOn)
	return scanQuiz(row)
}

func (s *QuizStore) ListByLearner(ctx context.Context, learnerID string) ([]domain.QuizInstance, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+quizColumns+` FROM quiz_instances
		WHERE learner_id = $1 ORDER BY assigned_on`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()
	var out []domain.QuizInstance
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

func (s *QuizStore) Update(ctx context.Context, quiz domain.QuizInstance) (domain.QuizInstance, error) {
	if err := quiz.Validate(); err != nil {
		return domain.QuizInstance{}, err
	}
	slots, err := json.Marshal(quiz.Slots)
	if err != nil {
		return domain.QuizInstance{}, fmt.Errorf("marshal slots: %w", err)
	}
	var version int64
	err = s.pool.QueryRow(ctx, `UPDATE quiz_instances SET
			slots = $2, status = $3, deadline = $4, completed_at = $5,
			score = $6, coins_awarded = $7, version = version + 1
		WHERE id = $1 AND version = $8
		RETURNING version`,
		quiz.ID, slots, string(quiz.Status), quiz.Deadline, quiz.CompletedAt,
		quiz.Score, quiz.CoinsAwarded, quiz.Version).Scan(&version)
	if isNoRows(err) {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quiz_instances WHERE id = $1)`, quiz.ID).Scan(&exists); err != nil {
			return domain.QuizInstance{}, fmt.Errorf("check quiz: %w", err)
		}
		if !exists {
			return domain.QuizInstance{}, domain.ErrQuizNotFound
		}
		return domain.QuizInstance{}, domain.ErrVersionConflict
	}
	if err != nil {
		return domain.QuizInstance{}, fmt.Errorf("update quiz: %w", err)
	}
	quiz.Version = version
	return quiz, nil
}

func (s *QuizStore) Delete(ctx context.Context, quizID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quiz_instances WHERE id = $1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *QuizStore) DeleteByLearner(ctx context.Context, learnerID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM quiz_instances WHERE learner_id = $1`, learnerID); err != nil {
		return fmt.Errorf("delete learner quizzes: %w", err)
	}
	return nil
}

// ListUsedQuestionIDs lets the store double as the usage index when Redis
// is not configured: usage is read straight from the day's instances.
func (s *QuizStore) ListUsedQuestionIDs(ctx context.Context, localityID string, day domain.Day, excludeLearnerID string) (map[string]struct{}, error) {
	assignedOn, err := dateParam(day)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT slot->>'questionId'
		FROM quiz_instances, jsonb_array_elements(slots) AS slot
		WHERE locality_id = $1 AND assigned_on = $2 AND learner_id <> $3`,
		localityID, assignedOn, excludeLearnerID)
	if err != nil {
		return nil, fmt.Errorf("list used questions: %w", err)
	}
	defer rows.Close()
	used := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		used[id] = struct{}{}
	}
	return used, rows.Err()
}

// MarkUsed is a no-op; usage is derived from stored instances.
func (s *QuizStore) MarkUsed(context.Context, string, domain.Day, string, []string) error {
	return nil
}

// Release is a no-op; deleting the instance releases its questions.
func (s *QuizStore) Release(context.Context, string, domain.Day, string) error {
	return nil
}

func scanQuiz(row pgx.Row) (domain.QuizInstance, error) {
	var (
		quiz       domain.QuizInstance
		assignedOn time.Time
		slots      []byte
		status     string
	)
	err := row.Scan(&quiz.ID, &quiz.LearnerID, &quiz.LocalityID, &assignedOn, &slots, &status, &quiz.Deadline,
		&quiz.CompletedAt, &quiz.Score, &quiz.CoinsAwarded, &quiz.Version, &quiz.CreatedAt)
	if isNoRows(err) {
		return domain.QuizInstance{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizInstance{}, fmt.Errorf("scan quiz: %w", err)
	}
	if err := json.Unmarshal(slots, &quiz.Slots); err != nil {
		return domain.QuizInstance{}, fmt.Errorf("unmarshal slots: %w", err)
	}
	quiz.AssignedOn = dayFromDate(assignedOn)
	quiz.Status = domain.QuizStatus(status)
	return quiz, nil
}
