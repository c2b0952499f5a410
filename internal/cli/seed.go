package cli

import (
	"context"
	"fmt"

	"daily-quiz-service/internal/config"
	pgstore "daily-quiz-service/internal/infra/postgres"
	redisstore "daily-quiz-service/internal/infra/redis"
	"daily-quiz-service/internal/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewSeedCmd upserts the fixtures file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var fixturesPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load learners, questions and achievements from a fixtures file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if fixturesPath == "" {
				fixturesPath = cfg.Quiz.Fixtures
			}
			if fixturesPath == "" {
				return fmt.Errorf("no fixtures file: set quiz.fixtures or --fixtures")
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := runMigrationsWithConfig(cmd.Context(), cfg, log); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			groups, err := seedPostgres(cmd.Context(), pool, fixturesPath, log)
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				return nil
			}
			// Instances share group lists through Redis; drop the stale ones.
			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()
			cache := redisstore.NewCatalogCache(redisClient, pgstore.NewCatalogLoader(pool), 0)
			if err := cache.Invalidate(cmd.Context(), groups...); err != nil {
				return fmt.Errorf("invalidate catalog cache: %w", err)
			}
			log.Info("catalog cache invalidated", "groups", groups)
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturesPath, "fixtures", "", "fixtures YAML (defaults to quiz.fixtures)")
	return cmd
}

// seedPostgres upserts the fixtures and returns the eligibility groups its
// questions touched.
func seedPostgres(ctx context.Context, pool *pgxpool.Pool, path string, log *logger.Logger) ([]string, error) {
	fixtures, err := config.LoadFixtures(path)
	if err != nil {
		return nil, err
	}

	learners := pgstore.NewLearnerDirectory(pool)
	for _, l := range fixtures.DomainLearners() {
		if err := learners.UpsertLearner(ctx, l); err != nil {
			return nil, fmt.Errorf("learner %s: %w", l.ID, err)
		}
	}
	catalog := pgstore.NewCatalogLoader(pool)
	var groups []string
	touched := make(map[string]struct{})
	for _, q := range fixtures.DomainQuestions() {
		if err := catalog.UpsertQuestion(ctx, q); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		for _, g := range q.GroupIDs {
			if _, ok := touched[g]; !ok {
				touched[g] = struct{}{}
				groups = append(groups, g)
			}
		}
	}
	achievements := pgstore.NewAchievementStore(pool)
	for _, def := range fixtures.DomainAchievements() {
		if err := achievements.UpsertDefinition(ctx, def); err != nil {
			return nil, fmt.Errorf("achievement %s: %w", def.ID, err)
		}
	}
	log.Info("fixtures loaded",
		"path", path,
		"learners", len(fixtures.Learners),
		"questions", len(fixtures.Questions),
		"achievements", len(fixtures.Achievements),
	)
	return groups, nil
}
