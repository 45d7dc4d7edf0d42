package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/auth"
	"sgd-certification-service/internal/config"
	"sgd-certification-service/internal/domain"
	"sgd-certification-service/internal/infra/memory"
	pgloader "sgd-certification-service/internal/infra/postgres"
	rediscache "sgd-certification-service/internal/infra/redis"
	"sgd-certification-service/internal/infra/store"
	"sgd-certification-service/internal/logger"
	transport "sgd-certification-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// sessionStore is what the server needs from a live-session backend.
type sessionStore interface {
	app.SessionRepository
	Live(ctx context.Context) (int, error)
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the certification API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := runMigrations(ctx, db); err != nil {
		return err
	}
	records := store.New(db)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable yet")
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = records
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}
	if err := seedIfEmpty(ctx, cfg, records, policy); err != nil {
		return err
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionPool
	if redisClient != nil {
		questions = rediscache.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var sessions sessionStore
	if redisClient != nil {
		sessions = rediscache.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	issuer := app.NewIssuer(records, records, policy)
	exams := app.NewExamService(sessions, questions, records, issuer, policy,
		app.WithTickInterval(config.TTLDuration(cfg.Exam.TickInterval, time.Second)))
	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		TTL:    config.TTLDuration(cfg.Auth.TokenTTL, 8*time.Hour),
		Issuer: cfg.Auth.Issuer,
	})

	router := transport.NewRouter(transport.Deps{
		Exams:          exams,
		Issuer:         issuer,
		Results:        app.NewResultService(records, policy),
		Accounts:       app.NewAccountService(records, cfg.Auth.BcryptCost),
		Stats:          app.NewStatsService(records),
		Tokens:         tokens,
		Sessions:       sessions,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Ping: func(ctx context.Context) error {
			if err := records.Ping(ctx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Ping(ctx).Err()
			}
			return nil
		},
	})

	// no write timeout: websocket connections stay open for the whole exam
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", finalPort).Str("database", cfg.Database.Driver).Bool("redis", redisClient != nil).Msg("starting certification service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down server...")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down server...")
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedIfEmpty loads the configured question file into an empty bank so a fresh
// SQLite setup can run an exam without a separate seed step.
func seedIfEmpty(ctx context.Context, cfg config.Config, records *store.Store, policy domain.Policy) error {
	if cfg.Questions.File == "" {
		return nil
	}
	existing, err := records.LoadQuestions(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	if _, err := os.Stat(cfg.Questions.File); err != nil {
		logger.Warn().Str("file", cfg.Questions.File).Msg("question bank is empty and no seed file was found")
		return nil
	}
	if err := seedQuestions(ctx, records, cfg.Questions.File, policy); err != nil {
		return err
	}
	dropCachedBank(ctx, cfg, records)
	return nil
}
