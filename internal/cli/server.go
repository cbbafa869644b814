package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"iq-test-service/internal/app"
	"iq-test-service/internal/auth"
	"iq-test-service/internal/config"
	"iq-test-service/internal/domain"
	"iq-test-service/internal/infra/memory"
	"iq-test-service/internal/infra/postgres"
	redisstore "iq-test-service/internal/infra/redis"
	"iq-test-service/internal/logger"
	transport "iq-test-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string, envPort string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", envPort, "port to listen on (overrides server.port)")
	return cmd
}

// backends holds whichever stores the config selected plus their closers.
type backends struct {
	attempts app.AttemptRepository
	tests    app.TestCatalog
	keys     app.QuestionKeyStore
	closers  []func() error
}

func (b *backends) close(log *logger.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Warn("close backend", "error", err)
		}
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
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

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close(log)

	attempts := app.NewAttemptService(b.attempts, b.tests, b.keys, log)
	catalog := app.NewCatalogService(b.tests, b.keys)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	router := transport.NewRouter(
		transport.NewHandler(attempts, catalog, log),
		transport.NewClockHandler(attempts, time.Second, log),
		verifier,
		cfg.Server.CORSOrigins,
		log,
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Clock streams outlive a normal request, so no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("starting iq test service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openBackends picks stores by what is configured: postgres, then redis,
// then process memory.
func openBackends(ctx context.Context, cfg config.Config, log *logger.Logger) (*backends, error) {
	b := &backends{}

	var loader memory.QuestionLoader
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		catalog := postgres.NewCatalog(pool)
		b.tests, loader = catalog, catalog
	} else {
		file, err := staticCatalogFile(cfg.Catalog.SeedPath)
		if err != nil {
			return nil, err
		}
		catalog := memory.NewStaticCatalog(file)
		b.tests, loader = catalog, catalog
		log.Warn("using static catalog", "tests", len(file.Tests))
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.close(log)
			return nil, err
		}
		b.closers = append(b.closers, redisClient.Close)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	if redisClient != nil {
		b.keys = redisstore.NewAnswerKeyCache(redisClient, loader, catalogTTL)
	} else {
		b.keys = memory.NewQuestionCache(loader, catalogTTL)
	}

	switch {
	case cfg.Postgres.URL != "":
		db := postgres.OpenDB(cfg.Postgres.URL)
		b.closers = append(b.closers, db.Close)
		b.attempts = postgres.NewAttemptStore(db)
		log.Info("attempt store", "backend", "postgres")
	case redisClient != nil:
		b.attempts = redisstore.NewAttemptStore(redisClient)
		log.Info("attempt store", "backend", "redis")
	default:
		b.attempts = memory.NewAttemptStore()
		log.Warn("attempt store is in memory; attempts are lost on restart")
	}
	return b, nil
}

func staticCatalogFile(seedPath string) (memory.CatalogFile, error) {
	if seedPath != "" {
		return memory.ReadCatalogFile(seedPath)
	}
	return sampleCatalog(), nil
}

// sampleCatalog provides a minimal test so the server is usable without any
// backing store; real catalogs come from the seed file or postgres.
func sampleCatalog() memory.CatalogFile {
	return memory.CatalogFile{
		Tests: []domain.Test{
			{ID: "sample", Name: "Sample reasoning test", Description: "Three warm-up questions", TimeLimitMinutes: 5},
		},
		Questions: []domain.Question{
			{ID: "s1", TestID: "sample", Text: "Which number comes next: 2, 4, 8, 16, ...?", Option1: "24", Option2: "32", Option3: "30", Option4: "20", CorrectAnswer: "option2"},
			{ID: "s2", TestID: "sample", Text: "Book is to reading as fork is to ...", Option1: "drawing", Option2: "writing", Option3: "eating", Option4: "stirring", CorrectAnswer: "option3"},
			{ID: "s3", TestID: "sample", Text: "Which word does not belong?", Option1: "apple", Option2: "banana", Option3: "carrot", Option4: "cherry", CorrectAnswer: "option3"},
		},
	}
}
