package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one forward-only schema step. Versions are applied in order
// and recorded in schema_migrations.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "study_plans",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS study_plans (
				id         TEXT PRIMARY KEY,
				title      TEXT NOT NULL,
				start_date TEXT NOT NULL,
				end_date   TEXT NOT NULL,
				plan_json  TEXT NOT NULL,
				html       TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_study_plans_created ON study_plans(created_at)`,
		},
	},
	{
		version: 2,
		name:    "plan_feedback",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS plan_feedback (
				id         TEXT PRIMARY KEY,
				plan_id    TEXT NOT NULL REFERENCES study_plans(id) ON DELETE CASCADE,
				action     TEXT NOT NULL
				           CHECK(action IN ('save','regenerate','share','rate')),
				rating     INTEGER CHECK(rating IS NULL OR rating BETWEEN 1 AND 5),
				comment    TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_plan_feedback_plan ON plan_feedback(plan_id, created_at)`,
		},
	},
}

// SchemaVersion is the version the migrations bring a database to.
func SchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate runs all pending schema migrations. Each version is applied in its
// own transaction.
func Migrate(db *sql.DB) error {
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}

	uow := NewSQLiteUnitOfWork(db)
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := uow.WithinTx(ctx, func(ctx context.Context, tx DBTX) error {
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// CurrentVersion returns the highest applied migration, or 0.
func CurrentVersion(ctx context.Context, conn DBTX) (int, error) {
	var v sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(v.Int64), nil
}
