package postgres

import (
	"context"
	"fmt"

	"daily-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AchievementStore reads achievement definitions and records grants. A
// grant and its coin credit commit in the same transaction.
type AchievementStore struct {
	pool *pgxpool.Pool
}

func NewAchievementStore(pool *pgxpool.Pool) *AchievementStore {
	return &AchievementStore{pool: pool}
}

func (s *AchievementStore) ListActive(ctx context.Context) ([]domain.AchievementDefinition, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, description, condition, threshold, reward_coins, active
		FROM achievements WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()
	var out []domain.AchievementDefinition
	for rows.Next() {
		var (
			def       domain.AchievementDefinition
			condition string
		)
		if err := rows.Scan(&def.ID, &def.Title, &def.Description, &condition, &def.Threshold, &def.RewardCoins, &def.Active); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		def.Condition = domain.ConditionType(condition)
		out = append(out, def)
	}
	return out, rows.Err()
}

func (s *AchievementStore) GrantedIDs(ctx context.Context, learnerID string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT achievement_id FROM achievement_grants WHERE learner_id = $1`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()
	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (s *AchievementStore) Grant(ctx context.Context, grant domain.AchievementGrant) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `INSERT INTO achievement_grants (id, learner_id, achievement_id, reward_coins, granted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (learner_id, achievement_id) DO NOTHING`,
		grant.ID, grant.LearnerID, grant.AchievementID, grant.RewardCoins, grant.GrantedAt)
	if err != nil {
		return false, fmt.Errorf("insert grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	tag, err = tx.Exec(ctx, `UPDATE learners SET coins = coins + $2 WHERE id = $1`, grant.LearnerID, grant.RewardCoins)
	if err != nil {
		return false, fmt.Errorf("credit achievement coins: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, domain.ErrLearnerNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit grant: %w", err)
	}
	return true, nil
}

// UpsertDefinition inserts or replaces an achievement definition.
func (s *AchievementStore) UpsertDefinition(ctx context.Context, def domain.AchievementDefinition) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO achievements (id, title, description, condition, threshold, reward_coins, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			condition = EXCLUDED.condition,
			threshold = EXCLUDED.threshold,
			reward_coins = EXCLUDED.reward_coins,
			active = EXCLUDED.active`,
		def.ID, def.Title, def.Description, string(def.Condition), def.Threshold, def.RewardCoins, def.Active)
	if err != nil {
		return fmt.Errorf("upsert achievement %s: %w", def.ID, err)
	}
	return nil
}
