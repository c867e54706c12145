package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ACM-VIT/codex-portal/internal/app"
	"github.com/ACM-VIT/codex-portal/internal/auth"
	"github.com/ACM-VIT/codex-portal/internal/config"
	"github.com/ACM-VIT/codex-portal/internal/domain"
	"github.com/ACM-VIT/codex-portal/internal/infra/memory"
	pgstore "github.com/ACM-VIT/codex-portal/internal/infra/postgres"
	redisinfra "github.com/ACM-VIT/codex-portal/internal/infra/redis"
	transport "github.com/ACM-VIT/codex-portal/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the portal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var (
		loader     memory.ChallengeLoader
		scoring    app.ScoringStore
		audit      app.SubmissionLog
		adminStore app.ChallengeAdminStore
	)
	if pool != nil {
		store := pgstore.NewStore(pool)
		loader, scoring, audit = store, store, store

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bundb := bun.NewDB(sqldb, pgdialect.New())
		defer bundb.Close()
		adminStore = pgstore.NewAdminStore(bundb)
	} else {
		store := memory.NewStore()
		store.Seed(sampleChallenges()...)
		loader, scoring, audit, adminStore = store, store, store, store
	}

	challengeTTL := config.TTLDuration(cfg.Challenge.TTL, 10*time.Minute)
	var challenges app.ChallengeRepository
	if redisClient != nil {
		challenges = redisinfra.NewChallengeCache(redisClient, loader, challengeTTL)
	} else {
		challenges = memory.NewChallengeCache(loader, challengeTTL)
	}

	submissions := app.NewSubmissionService(challenges, scoring, audit, cfg.PointsTable())
	catalog := app.NewCatalogService(adminStore)

	liveInterval := config.TTLDuration(cfg.Live.Interval, 5*time.Second)
	liveLimit := cfg.Live.Limit
	if liveLimit <= 0 {
		liveLimit = 10
	}
	live := transport.NewBroadcaster(submissions, liveInterval, liveLimit)

	authn := auth.New(cfg.Auth.Secret, cfg.Auth.Domain)
	handler := transport.NewHandler(submissions, catalog, live, authn)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting codex portal on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleChallenges seeds the in-memory demo mode; production runs use Postgres.
func sampleChallenges() []domain.Challenge {
	return []domain.Challenge{
		{
			Name:        "warmup",
			Description: "Find the flag hidden in the welcome banner.",
			Difficulty:  domain.DifficultyEasy,
			MustInclude: "FLAG{",
			Answer:      ".*}",
		},
		{
			Name:        "hexdump",
			Description: "Recover the 8-digit hex token from the capture.",
			Difficulty:  domain.DifficultyMedium,
			Answer:      "[a-f0-9]{8}",
		},
	}
}
