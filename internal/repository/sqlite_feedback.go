package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/db"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

// SQLiteFeedbackRepo implements FeedbackRepo using a SQLite database.
type SQLiteFeedbackRepo struct {
	db  db.DBTX
	uow db.UnitOfWork
}

// NewSQLiteFeedbackRepo creates a new SQLiteFeedbackRepo.
func NewSQLiteFeedbackRepo(database *sql.DB) *SQLiteFeedbackRepo {
	return &SQLiteFeedbackRepo{db: database, uow: db.NewSQLiteUnitOfWork(database)}
}

func (r *SQLiteFeedbackRepo) Create(ctx context.Context, fb *domain.Feedback) error {
	return r.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM study_plans WHERE id = ?`, fb.PlanID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("plan %s: %w", fb.PlanID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("checking plan: %w", err)
		}

		query := `INSERT INTO plan_feedback (id, plan_id, action, rating, comment, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`
		_, err = tx.ExecContext(ctx, query,
			fb.ID,
			fb.PlanID,
			string(fb.Action),
			nullableIntToValue(fb.Rating),
			fb.Comment,
			fb.CreatedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("inserting feedback: %w", err)
		}
		return nil
	})
}

func (r *SQLiteFeedbackRepo) ListByPlan(ctx context.Context, planID string) ([]*domain.Feedback, error) {
	query := `SELECT id, plan_id, action, rating, comment, created_at
		FROM plan_feedback WHERE plan_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var out []*domain.Feedback
	for rows.Next() {
		var (
			fb           domain.Feedback
			action       string
			rating       sql.NullInt64
			createdAtStr string
		)
		if err := rows.Scan(&fb.ID, &fb.PlanID, &action, &rating, &fb.Comment, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		fb.Action = domain.FeedbackAction(action)
		if rating.Valid {
			v := int(rating.Int64)
			fb.Rating = &v
		}
		if fb.CreatedAt, err = time.Parse(timeLayout, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback: %w", err)
	}
	return out, nil
}
