package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/config"
	"sgd-certification-service/internal/domain"
	rediscache "sgd-certification-service/internal/infra/redis"
	"sgd-certification-service/internal/infra/store"
	"sgd-certification-service/internal/logger"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type seedOptions struct {
	questionsFile string
	adminDNI      string
	adminPassword string
	adminName     string
}

// NewSeedCmd loads the question bank from a YAML file and optionally provisions an admin.
func NewSeedCmd(configPath *string) *cobra.Command {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load questions and an admin account into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.questionsFile, "questions", "", "YAML question file (defaults to questions.file from config)")
	cmd.Flags().StringVar(&opts.adminDNI, "admin-dni", "", "DNI of the admin account to create")
	cmd.Flags().StringVar(&opts.adminPassword, "admin-password", "", "password of the admin account")
	cmd.Flags().StringVar(&opts.adminName, "admin-name", "Administrador", "first name of the admin account")
	return cmd
}

func runSeed(ctx context.Context, cfg config.Config, opts seedOptions) error {
	policy, err := cfg.Policy()
	if err != nil {
		return err
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

	path := opts.questionsFile
	if path == "" {
		path = cfg.Questions.File
	}
	if path != "" {
		if err := seedQuestions(ctx, records, path, policy); err != nil {
			return err
		}
		dropCachedBank(ctx, cfg, records)
	}

	if opts.adminDNI != "" {
		accounts := app.NewAccountService(records, cfg.Auth.BcryptCost)
		admin, err := accounts.CreateAdmin(ctx, app.RegisterAccount{
			DNI:       opts.adminDNI,
			FirstName: opts.adminName,
			Password:  opts.adminPassword,
		})
		switch {
		case errors.Is(err, domain.ErrConflict):
			logger.Warn().Str("dni", opts.adminDNI).Msg("admin already exists, skipped")
		case err != nil:
			return fmt.Errorf("create admin: %w", err)
		default:
			logger.Info().Int64("user_id", admin.ID).Msg("admin created")
		}
	}
	return nil
}

func seedQuestions(ctx context.Context, records *store.Store, path string, policy domain.Policy) error {
	questions, err := config.LoadQuestionFile(path, policy.OptionsPerQuestion)
	if err != nil {
		return err
	}
	if len(questions) < policy.QuestionCount {
		logger.Warn().Int("questions", len(questions)).Int("required", policy.QuestionCount).Msg("question bank is smaller than one exam")
	}
	// positional ids make reseeding the same file an upsert
	for i := range questions {
		if questions[i].ID == 0 {
			questions[i].ID = int64(i + 1)
		}
	}
	saved, err := records.SaveQuestions(ctx, questions)
	if err != nil {
		return err
	}
	logger.Info().Int("questions", len(saved)).Str("file", path).Msg("questions seeded")
	return nil
}

// dropCachedBank clears the shared Redis copy of the bank so running servers reload
// the seeded questions instead of serving the old set until the TTL runs out.
func dropCachedBank(ctx context.Context, cfg config.Config, records *store.Store) {
	if cfg.Redis.Addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()
	cache := rediscache.NewQuestionRepository(client, records, config.TTLDuration(cfg.Questions.TTL, 10*time.Minute))
	if err := cache.Invalidate(ctx); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("could not clear cached question bank")
		return
	}
	logger.Info().Msg("cached question bank cleared")
}
