package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"daily-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogLoader reads the question catalog; options are stored as JSONB.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

const questionColumns = `id, category_id, group_ids, prompt, explanation, options, active`

func (l *CatalogLoader) ListActive(ctx context.Context, groupID string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions
		WHERE active AND ($1::text = '' OR $1::text = ANY(group_ids))
		ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list active questions: %w", err)
	}
	return scanQuestions(rows)
}

func (l *CatalogLoader) GetQuestions(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		out[q.ID] = q
	}
	return out, nil
}

// UpsertQuestion inserts or replaces a catalog question.
func (l *CatalogLoader) UpsertQuestion(ctx context.Context, q domain.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	groups := q.GroupIDs
	if groups == nil {
		groups = []string{}
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO questions (`+questionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			group_ids = EXCLUDED.group_ids,
			prompt = EXCLUDED.prompt,
			explanation = EXCLUDED.explanation,
			options = EXCLUDED.options,
			active = EXCLUDED.active`,
		q.ID, q.CategoryID, groups, q.Prompt, q.Explanation, options, q.Active)
	if err != nil {
		return fmt.Errorf("upsert question %s: %w", q.ID, err)
	}
	return nil
}

func scanQuestions(rows pgx.Rows) ([]domain.Question, error) {
	defer rows.Close()
	var out []domain.Question
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.CategoryID, &q.GroupIDs, &q.Prompt, &q.Explanation, &raw, &q.Active); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options of %s: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
