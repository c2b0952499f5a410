package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/config"
	"daily-quiz-service/internal/infra/memory"
	pgstore "daily-quiz-service/internal/infra/postgres"
	redisstore "daily-quiz-service/internal/infra/redis"
	"daily-quiz-service/internal/logger"
	"daily-quiz-service/internal/metrics"
	transport "daily-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores is the persistence wiring picked from config.
type stores struct {
	learners     app.LearnerDirectory
	catalog      app.QuestionCatalog
	quizzes      app.QuizStore
	usage        app.UsageIndex
	history      app.HistoryLedger
	results      app.ResultStore
	achievements app.AchievementStore
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var st stores
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		st = postgresStores(pool)
		log.Info("using postgres storage")
	} else {
		st, err = memoryStores(cfg.Quiz.Fixtures)
		if err != nil {
			return err
		}
		log.Warn("postgres not configured, using in-memory storage", "fixtures", cfg.Quiz.Fixtures)
	}

	hub := memory.NewNotificationHub()
	catalogTTL := config.TTLDuration(cfg.Quiz.CatalogTTL, 5*time.Minute)

	var (
		settings     transport.RewardSettingsStore
		catalogCache transport.CatalogInvalidator
		notifier     app.Notifier = hub
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		cache := redisstore.NewCatalogCache(redisClient, st.catalog, config.TTLDuration(cfg.Redis.TTL, catalogTTL))
		st.catalog, catalogCache = cache, cache
		st.usage = redisstore.NewUsageIndex(redisClient)
		settings = redisstore.NewSettingsStore(redisClient, cfg.DefaultRewards())

		bus := redisstore.NewEventBus(redisClient, log)
		notifier = bus
		go func() {
			if err := bus.Run(ctx, hub.Deliver); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event bus stopped", "error", err)
			}
		}()
		log.Info("using redis cache and event bus", "addr", cfg.Redis.Addr)
	} else {
		cache := memory.NewCatalogCache(st.catalog, catalogTTL)
		st.catalog, catalogCache = cache, cache
		settings = memory.NewSettingsStore(cfg.DefaultRewards())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service := app.NewQuizService(app.Dependencies{
		Learners:     st.learners,
		Catalog:      st.catalog,
		Quizzes:      st.quizzes,
		Usage:        st.usage,
		History:      st.history,
		Results:      st.results,
		Achievements: st.achievements,
		Rewards:      settings,
		Notifier:     notifier,
		Logger:       log,
		Metrics:      metrics.New(registry),
		Location:     loc,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	transport.NewHandler(service, settings, catalogCache, hub, log).Register(mux)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	go func() {
		log.Info("starting daily quiz service", "port", finalPort, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func postgresStores(pool *pgxpool.Pool) stores {
	quizzes := pgstore.NewQuizStore(pool)
	return stores{
		learners:     pgstore.NewLearnerDirectory(pool),
		catalog:      pgstore.NewCatalogLoader(pool),
		quizzes:      quizzes,
		usage:        quizzes,
		history:      pgstore.NewHistoryLedger(pool),
		results:      pgstore.NewResultStore(pool),
		achievements: pgstore.NewAchievementStore(pool),
	}
}

// memoryStores builds process-local stores seeded from the fixtures file, if any.
func memoryStores(fixturesPath string) (stores, error) {
	var fixtures config.Fixtures
	if fixturesPath != "" {
		var err error
		fixtures, err = config.LoadFixtures(fixturesPath)
		if err != nil {
			return stores{}, err
		}
	}
	learners := memory.NewLearnerDirectory(fixtures.DomainLearners()...)
	quizzes := memory.NewQuizStore()
	return stores{
		learners:     learners,
		catalog:      memory.NewStaticCatalog(fixtures.DomainQuestions()),
		quizzes:      quizzes,
		usage:        quizzes,
		history:      memory.NewHistoryLedger(),
		results:      memory.NewResultStore(),
		achievements: memory.NewAchievementStore(learners, fixtures.DomainAchievements()...),
	}, nil
}
