package postgres

import (
	"context"
	"fmt"

	"daily-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// LearnerDirectory stores learners with their aggregated statistics and
// coin balance on the same row.
type LearnerDirectory struct {
	pool *pgxpool.Pool
}

func NewLearnerDirectory(pool *pgxpool.Pool) *LearnerDirectory {
	return &LearnerDirectory{pool: pool}
}

const learnerColumns = `id, display_name, group_id, locality_id, role, active,
	total_quizzes, completed_quizzes, correct_answers, total_answers, average_score, coins`

func (d *LearnerDirectory) GetLearner(ctx context.Context, learnerID string) (domain.Learner, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+learnerColumns+` FROM learners WHERE id = $1`, learnerID)
	return scanLearner(row)
}

func (d *LearnerDirectory) ListPeers(ctx context.Context, groupID string) ([]domain.Learner, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+learnerColumns+` FROM learners
		WHERE active AND group_id = $1 ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	defer rows.Close()
	var out []domain.Learner
	for rows.Next() {
		l, err := scanLearner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ApplyCompletion locks the learner row so the running average is computed
// from the latest stats.
func (d *LearnerDirectory) ApplyCompletion(ctx context.Context, learnerID string, score int, coins int64) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	learner, err := scanLearner(tx.QueryRow(ctx, `SELECT `+learnerColumns+` FROM learners WHERE id = $1 FOR UPDATE`, learnerID))
	if err != nil {
		return err
	}
	stats := learner.Stats.WithCompletion(score)
	_, err = tx.Exec(ctx, `UPDATE learners SET
			total_quizzes = $2, completed_quizzes = $3, correct_answers = $4,
			total_answers = $5, average_score = $6, coins = coins + $7
		WHERE id = $1`,
		learnerID, stats.TotalQuizzes, stats.CompletedQuizzes, stats.CorrectAnswers,
		stats.TotalAnswers, stats.AverageScore, coins)
	if err != nil {
		return fmt.Errorf("update learner stats: %w", err)
	}
	return tx.Commit(ctx)
}

func (d *LearnerDirectory) AddCoins(ctx context.Context, learnerID string, coins int64) error {
	tag, err := d.pool.Exec(ctx, `UPDATE learners SET coins = coins + $2 WHERE id = $1`, learnerID, coins)
	if err != nil {
		return fmt.Errorf("add coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLearnerNotFound
	}
	return nil
}

// UpsertLearner inserts or replaces the learner profile; statistics and
// coins of an existing row are left alone.
func (d *LearnerDirectory) UpsertLearner(ctx context.Context, l domain.Learner) error {
	_, err := d.pool.Exec(ctx, `INSERT INTO learners (id, display_name, group_id, locality_id, role, active, coins)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			group_id = EXCLUDED.group_id,
			locality_id = EXCLUDED.locality_id,
			role = EXCLUDED.role,
			active = EXCLUDED.active`,
		l.ID, l.DisplayName, l.GroupID, l.LocalityID, string(l.Role), l.Active, l.Coins)
	if err != nil {
		return fmt.Errorf("upsert learner %s: %w", l.ID, err)
	}
	return nil
}

func scanLearner(row pgx.Row) (domain.Learner, error) {
	var (
		l    domain.Learner
		role string
	)
	err := row.Scan(&l.ID, &l.DisplayName, &l.GroupID, &l.LocalityID, &role, &l.Active,
		&l.Stats.TotalQuizzes, &l.Stats.CompletedQuizzes, &l.Stats.CorrectAnswers,
		&l.Stats.TotalAnswers, &l.Stats.AverageScore, &l.Coins)
	if isNoRows(err) {
		return domain.Learner{}, domain.ErrLearnerNotFound
	}
	if err != nil {
		return domain.Learner{}, fmt.Errorf("scan learner: %w", err)
	}
	l.Role = domain.Role(role)
	return l, nil
}
