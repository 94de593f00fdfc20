package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ipcr-api/internal/models"
)

// upsertAccomplishmentQuery creates the counter at 1 or increments it in one
// statement; the conflicting row is locked for the update so concurrent
// increments serialize instead of overwriting each other.
const upsertAccomplishmentQuery = `INSERT INTO accomplishment_counters (owner_id, category, academic_year, semester, target, accomplished, last_submission, updated_at)
VALUES ($1, $2, $3, $4, 0, 1, $5, $5)
ON CONFLICT (owner_id, category, academic_year, semester)
DO UPDATE SET accomplished = accomplishment_counters.accomplished + 1,
              last_submission = EXCLUDED.last_submission,
              updated_at = EXCLUDED.updated_at
RETURNING accomplished`

const setTargetQuery = `INSERT INTO accomplishment_counters (owner_id, category, academic_year, semester, target, accomplished, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, $6)
ON CONFLICT (owner_id, category, academic_year, semester)
DO UPDATE SET target = EXCLUDED.target, updated_at = EXCLUDED.updated_at`

const counterColumns = `owner_id, category, academic_year, semester, target, accomplished, last_submission, updated_at`

// AccomplishmentRepository maintains per owner, category and period counters.
type AccomplishmentRepository struct {
	db *sqlx.DB
}

// NewAccomplishmentRepository constructs the repository.
func NewAccomplishmentRepository(db *sqlx.DB) *AccomplishmentRepository {
	return &AccomplishmentRepository{db: db}
}

// UpsertAccomplishment records one more accomplished document and returns the new count.
func (r *AccomplishmentRepository) UpsertAccomplishment(ctx context.Context, ownerID string, category models.Category, period models.Period, at time.Time) (int, error) {
	return upsertAccomplishment(ctx, r.db, ownerID, category, period, at)
}

func upsertAccomplishment(ctx context.Context, q sqlx.QueryerContext, ownerID string, category models.Category, period models.Period, at time.Time) (int, error) {
	var accomplished int
	if err := sqlx.GetContext(ctx, q, &accomplished, upsertAccomplishmentQuery,
		ownerID, category, period.AcademicYear, period.Semester, at.UTC()); err != nil {
		return 0, fmt.Errorf("upsert accomplishment: %w", err)
	}
	return accomplished, nil
}

// SetTargets writes every target in one transaction. Existing accomplished
// counts are never touched.
func (r *AccomplishmentRepository) SetTargets(ctx context.Context, ownerID string, period models.Period, targets map[models.Category]int) error {
	if len(targets) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set targets tx: %w", err)
	}
	now := time.Now().UTC()
	for _, category := range models.Categories() {
		target, ok := targets[category]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, setTargetQuery,
			ownerID, category, period.AcademicYear, period.Semester, target, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set target %s: %w", category, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set targets tx: %w", err)
	}
	return nil
}

// ListByOwnerPeriod returns the stored counters of one owner for a period.
func (r *AccomplishmentRepository) ListByOwnerPeriod(ctx context.Context, ownerID string, period models.Period) ([]models.AccomplishmentCounter, error) {
	query := `SELECT ` + counterColumns + `
FROM accomplishment_counters
WHERE owner_id = $1 AND academic_year = $2 AND semester = $3
ORDER BY category`
	var counters []models.AccomplishmentCounter
	if err := r.db.SelectContext(ctx, &counters, query, ownerID, period.AcademicYear, period.Semester); err != nil {
		return nil, fmt.Errorf("list accomplishment counters: %w", err)
	}
	return counters, nil
}

// ListByPeriod returns every owner's counters for a period.
func (r *AccomplishmentRepository) ListByPeriod(ctx context.Context, period models.Period) ([]models.AccomplishmentCounter, error) {
	query := `SELECT ` + counterColumns + `
FROM accomplishment_counters
WHERE academic_year = $1 AND semester = $2
ORDER BY owner_id, category`
	var counters []models.AccomplishmentCounter
	if err := r.db.SelectContext(ctx, &counters, query, period.AcademicYear, period.Semester); err != nil {
		return nil, fmt.Errorf("list period counters: %w", err)
	}
	return counters, nil
}
