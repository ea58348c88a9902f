package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, len(migrations), applied)
}

func TestMigrate_CreatesAllTables(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"study_plans", "plan_feedback", "schema_migrations"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_CreatesIndexes(t *testing.T) {
	db := openTestDB(t)

	for _, idx := range []string{"idx_study_plans_created", "idx_plan_feedback_plan"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name=?`, idx).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
	}
}

func TestCurrentVersion(t *testing.T) {
	db := openTestDB(t)

	v, err := CurrentVersion(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion(), v)
}

func TestMigrate_FeedbackConstraints(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`INSERT INTO study_plans (id, title, start_date, end_date, plan_json, created_at, updated_at)
		VALUES ('p1', 't', '2025-03-10', '2025-03-16', '{}', '2025-03-01T00:00:00Z', '2025-03-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO plan_feedback (id, plan_id, action, rating, created_at) VALUES ('f1', 'p1', 'rate', 6, 'now')`)
	assert.Error(t, err, "rating above 5 must be rejected")

	_, err = db.Exec(`INSERT INTO plan_feedback (id, plan_id, action, created_at) VALUES ('f2', 'missing', 'save', 'now')`)
	assert.Error(t, err, "feedback for an unknown plan must be rejected")

	_, err = db.Exec(`INSERT INTO plan_feedback (id, plan_id, action, created_at) VALUES ('f3', 'p1', 'like', 'now')`)
	assert.Error(t, err, "unknown action must be rejected")

	_, err = db.Exec(`DELETE FROM study_plans WHERE id = 'p1'`)
	require.NoError(t, err)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM plan_feedback`).Scan(&n))
	assert.Zero(t, n)
}
