package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectPostgres creates a connection pool to PostgreSQL and checks it.
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS study_plans (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date   DATE NOT NULL,
		plan       JSONB NOT NULL,
		html       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_study_plans_created ON study_plans(created_at)`,
	`CREATE TABLE IF NOT EXISTS plan_feedback (
		id         TEXT PRIMARY KEY,
		plan_id    TEXT NOT NULL REFERENCES study_plans(id) ON DELETE CASCADE,
		action     TEXT NOT NULL CHECK (action IN ('save','regenerate','share','rate')),
		rating     SMALLINT CHECK (rating IS NULL OR rating BETWEEN 1 AND 5),
		comment    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_plan_feedback_plan ON plan_feedback(plan_id, created_at)`,
}

// MigratePostgres creates the plan and feedback tables in one transaction.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range postgresSchema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	return nil
}
