package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

var createExamTablesPG = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		dni VARCHAR(16) NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role VARCHAR(16) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email) WHERE email <> ''`,
	`CREATE TABLE IF NOT EXISTS questions (
		id BIGSERIAL PRIMARY KEY,
		prompt TEXT NOT NULL,
		options TEXT NOT NULL,
		correct_index INTEGER NOT NULL CHECK (correct_index >= 0),
		category TEXT NOT NULL DEFAULT '',
		published BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS exam_results (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		score INTEGER NOT NULL,
		total_questions INTEGER NOT NULL,
		passed BOOLEAN NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS exam_results_user_idx ON exam_results (user_id, completed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS certificates (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		exam_result_id BIGINT NOT NULL UNIQUE REFERENCES exam_results (id),
		code VARCHAR(32) NOT NULL UNIQUE,
		issued_at TIMESTAMPTZ NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'revoked'))
	)`,
	`CREATE INDEX IF NOT EXISTS certificates_user_idx ON certificates (user_id, issued_at DESC)`,
	`CREATE TABLE IF NOT EXISTS certificate_sequences (
		cert_year INTEGER PRIMARY KEY,
		last_value INTEGER NOT NULL
	)`,
}

var createExamTablesSQLite = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dni TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email) WHERE email <> ''`,
	`CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		prompt TEXT NOT NULL,
		options TEXT NOT NULL,
		correct_index INTEGER NOT NULL CHECK (correct_index >= 0),
		category TEXT NOT NULL DEFAULT '',
		published BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS exam_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		score INTEGER NOT NULL,
		total_questions INTEGER NOT NULL,
		passed BOOLEAN NOT NULL,
		completed_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS exam_results_user_idx ON exam_results (user_id, completed_at DESC)`,
	`CREATE TABLE IF NOT EXISTS certificates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		exam_result_id INTEGER NOT NULL UNIQUE REFERENCES exam_results (id),
		code TEXT NOT NULL UNIQUE,
		issued_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'revoked'))
	)`,
	`CREATE INDEX IF NOT EXISTS certificates_user_idx ON certificates (user_id, issued_at DESC)`,
	`CREATE TABLE IF NOT EXISTS certificate_sequences (
		cert_year INTEGER PRIMARY KEY,
		last_value INTEGER NOT NULL
	)`,
}

var dropExamTables = []string{
	`DROP TABLE IF EXISTS certificate_sequences`,
	`DROP TABLE IF EXISTS certificates`,
	`DROP TABLE IF EXISTS exam_results`,
	`DROP TABLE IF EXISTS questions`,
	`DROP TABLE IF EXISTS users`,
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			stmts, err := statements(db, createExamTablesPG, createExamTablesSQLite)
			if err != nil {
				return err
			}
			return execAll(ctx, db, stmts)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execAll(ctx, db, dropExamTables)
		},
	)
}
