package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/db"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
)

// SQLitePlanRepo implements PlanRepo using a SQLite database.
type SQLitePlanRepo struct {
	db  db.DBTX
	uow db.UnitOfWork
}

// NewSQLitePlanRepo creates a new SQLitePlanRepo.
func NewSQLitePlanRepo(database *sql.DB) *SQLitePlanRepo {
	return &SQLitePlanRepo{db: database, uow: db.NewSQLiteUnitOfWork(database)}
}

func (r *SQLitePlanRepo) Create(ctx context.Context, rec *domain.PlanRecord) error {
	return insertPlan(ctx, r.db, rec)
}

func insertPlan(ctx context.Context, conn db.DBTX, rec *domain.PlanRecord) error {
	data, err := encodePlan(&rec.Plan)
	if err != nil {
		return err
	}
	query := `INSERT INTO study_plans (id, title, start_date, end_date, plan_json, html, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = conn.ExecContext(ctx, query,
		rec.Plan.ID,
		rec.Plan.Title,
		rec.Plan.StartDate,
		rec.Plan.EndDate,
		string(data),
		rec.HTML,
		rec.CreatedAt.UTC().Format(timeLayout),
		rec.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("plan %s: %w", rec.Plan.ID, ErrConflict)
		}
		return fmt.Errorf("inserting plan: %w", err)
	}
	return nil
}

func (r *SQLitePlanRepo) GetByID(ctx context.Context, id string) (*domain.PlanRecord, error) {
	return getPlan(ctx, r.db, id)
}

func getPlan(ctx context.Context, conn db.DBTX, id string) (*domain.PlanRecord, error) {
	query := `SELECT id, plan_json, html, created_at, updated_at FROM study_plans WHERE id = ?`
	var (
		planID, data, html       string
		createdAtStr, updatedStr string
	)
	err := conn.QueryRowContext(ctx, query, id).Scan(&planID, &data, &html, &createdAtStr, &updatedStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning plan: %w", err)
	}

	createdAt, err := time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	updatedAt, err := time.Parse(timeLayout, updatedStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return decodePlan(planID, []byte(data), html, createdAt, updatedAt)
}

func (r *SQLitePlanRepo) SetMilestoneCompleted(ctx context.Context, id string, index int, completed bool, at time.Time) (*domain.PlanRecord, error) {
	var out *domain.PlanRecord
	err := r.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		rec, err := getPlan(ctx, tx, id)
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
		_, err = tx.ExecContext(ctx, `UPDATE study_plans SET plan_json = ?, updated_at = ? WHERE id = ?`,
			string(data), rec.UpdatedAt.Format(timeLayout), id)
		if err != nil {
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
