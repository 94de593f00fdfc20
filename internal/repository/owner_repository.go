package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ipcr-api/internal/models"
)

// OwnerRepository keeps the profile of every faculty member seen in a token.
type OwnerRepository struct {
	db *sqlx.DB
}

// NewOwnerRepository constructs the repository.
func NewOwnerRepository(db *sqlx.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// Upsert stores the latest profile for an owner.
func (r *OwnerRepository) Upsert(ctx context.Context, owner *models.Owner) error {
	const query = `INSERT INTO owners (id, email, name, department, role, created_at, updated_at)
VALUES (:id, :email, :name, :department, :role, :created_at, :updated_at)
ON CONFLICT (id)
DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, department = EXCLUDED.department,
              role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = now
	}
	owner.UpdatedAt = now
	if owner.Role == "" {
		owner.Role = models.RoleProfessor
	}
	if _, err := r.db.NamedExecContext(ctx, query, owner); err != nil {
		return fmt.Errorf("upsert owner: %w", err)
	}
	return nil
}

// ListByRole returns owners with the role and how many documents each
// uploaded in the period.
func (r *OwnerRepository) ListByRole(ctx context.Context, role models.OwnerRole, period models.Period) ([]models.FacultySummary, error) {
	const query = `SELECT o.id, o.name, o.email, o.department, COUNT(d.id) AS document_count
FROM owners o
LEFT JOIN documents d ON d.owner_id = o.id AND d.academic_year = $2 AND d.semester = $3
WHERE o.role = $1
GROUP BY o.id, o.name, o.email, o.department
ORDER BY o.name ASC, o.id ASC`
	var summaries []models.FacultySummary
	if err := r.db.SelectContext(ctx, &summaries, query, role, period.AcademicYear, period.Semester); err != nil {
		return nil, fmt.Errorf("list owners by role: %w", err)
	}
	return summaries, nil
}
