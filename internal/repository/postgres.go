package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// PostgresPlanRepo implements PlanRepo on PostgreSQL with the plan body in a
// JSONB column.
type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresPlanRepo creates a PostgresPlanRepo.
func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

func (r *PostgresPlanRepo) Create(ctx context.Context, rec *domain.PlanRecord) error {
	data, err := encodePlan(&rec.Plan)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO study_plans (id, title, start_date, end_date, plan, html, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4::date, $5::jsonb, $6, $7, $8)`,
		rec.Plan.ID, rec.Plan.Title, rec.Plan.StartDate, rec.Plan.EndDate, string(data), rec.HTML,
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("plan %s: %w", rec.Plan.ID, ErrConflict)
		}
		return fmt.Errorf("inserting plan: %w", err)
	}
	return nil
}

const pgSelectPlan = `SELECT plan::text, html, created_at, updated_at FROM study_plans WHERE id = $1`

func (r *PostgresPlanRepo) GetByID(ctx context.Context, id string) (*domain.PlanRecord, error) {
	return scanPgPlan(id, r.pool.QueryRow(ctx, pgSelectPlan, id))
}

func scanPgPlan(id string, row pgx.Row) (*domain.PlanRecord, error) {
	var (
		data                 string
		html                 string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&data, &html, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning plan: %w", err)
	}
	return decodePlan(id, []byte(data), html, createdAt.UTC(), updatedAt.UTC())
}

func (r *PostgresPlanRepo) SetMilestoneCompleted(ctx context.Context, id string, index int, completed bool, at time.Time) (*domain.PlanRecord, error) {
	var out *domain.PlanRecord
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rec, err := scanPgPlan(id, tx.QueryRow(ctx, pgSelectPlan+" FOR UPDATE", id))
		if err != nil {
			return err
		}
		if err := setMilestone(rec, index, completed, at); err != nil {
			return err
		}
		data, err := encodePlan(&rec.Plan)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE study_plans SET plan = $1::jsonb, updated_at = $2 WHERE id = $3`,
			string(data), rec.UpdatedAt, id); err != nil {
			return fmt.Errorf("updating plan: %w", err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PostgresFeedbackRepo implements FeedbackRepo on PostgreSQL.
type PostgresFeedbackRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresFeedbackRepo creates a PostgresFeedbackRepo.
func NewPostgresFeedbackRepo(pool *pgxpool.Pool) *PostgresFeedbackRepo {
	return &PostgresFeedbackRepo{pool: pool}
}

func (r *PostgresFeedbackRepo) Create(ctx context.Context, fb *domain.Feedback) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO plan_feedback (id, plan_id, action, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.ID, fb.PlanID, string(fb.Action), nullableIntToValue(fb.Rating), fb.Comment, fb.CreatedAt.UTC())
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("plan %s: %w", fb.PlanID, ErrNotFound)
		}
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

func (r *PostgresFeedbackRepo) ListByPlan(ctx context.Context, planID string) ([]*domain.Feedback, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, action, rating, comment, created_at
		FROM plan_feedback WHERE plan_id = $1 ORDER BY created_at, id`, planID)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var out []*domain.Feedback
	for rows.Next() {
		var (
			fb     domain.Feedback
			action string
			rating *int32
		)
		if err := rows.Scan(&fb.ID, &action, &rating, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		fb.PlanID = planID
		fb.Action = domain.FeedbackAction(action)
		fb.CreatedAt = fb.CreatedAt.UTC()
		if rating != nil {
			v := int(*rating)
			fb.Rating = &v
		}
		out = append(out, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback: %w", err)
	}
	return out, nil
}
