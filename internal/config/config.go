package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sgd-certification-service/internal/domain"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		// TTL bounds how long a session liveness marker survives without a refresh.
		TTL string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		// URL enables the pgx question loader; the record store uses Database.
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Questions struct {
		TTL  string `yaml:"ttl"`
		File string `yaml:"file"`
	} `yaml:"questions"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		TokenTTL   string `yaml:"token_ttl"`
		Issuer     string `yaml:"issuer"`
		BcryptCost int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Exam struct {
		QuestionCount      int    `yaml:"question_count"`
		DurationSeconds    int    `yaml:"duration_seconds"`
		PassPercent        int    `yaml:"pass_percent"`
		MaxAttempts        int    `yaml:"max_attempts"`
		OptionsPerQuestion int    `yaml:"options_per_question"`
		TickInterval       string `yaml:"tick_interval"`
	} `yaml:"exam"`
	Certificates struct {
		Prefix string `yaml:"prefix"`
	} `yaml:"certificates"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:sgd.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	cfg.Questions.TTL = "10m"
	cfg.Redis.TTL = "30m"
	cfg.Auth.TokenTTL = "8h"
	cfg.Auth.Issuer = "sgd-certification-service"
	cfg.Logging.Level = "info"
	cfg.Exam.TickInterval = "1s"

	p := domain.DefaultPolicy()
	cfg.Exam.QuestionCount = p.QuestionCount
	cfg.Exam.DurationSeconds = p.DurationSeconds
	cfg.Exam.PassPercent = p.PassPercent
	cfg.Exam.MaxAttempts = p.MaxAttempts
	cfg.Exam.OptionsPerQuestion = p.OptionsPerQuestion
	cfg.Certificates.Prefix = p.CertificatePrefix
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			cfg.Database.Driver = "postgres"
		}
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v, err := strconv.ParseBool(os.Getenv("LOG_PRETTY")); err == nil {
		cfg.Logging.Pretty = v
	}
}

// Policy builds the exam policy from the exam and certificates sections.
func (c Config) Policy() (domain.Policy, error) {
	p := domain.Policy{
		QuestionCount:      c.Exam.QuestionCount,
		DurationSeconds:    c.Exam.DurationSeconds,
		PassPercent:        c.Exam.PassPercent,
		MaxAttempts:        c.Exam.MaxAttempts,
		OptionsPerQuestion: c.Exam.OptionsPerQuestion,
		CertificatePrefix:  c.Certificates.Prefix,
	}
	if err := p.Validate(); err != nil {
		return domain.Policy{}, err
	}
	return p, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
