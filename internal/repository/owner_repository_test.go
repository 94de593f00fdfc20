package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ipcr-api/internal/models"
)

func TestOwnerRepositoryUpsertDefaultsRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id)")).
		WithArgs("owner-1", "ana@lspu.edu.ph", "Ana Cruz", "CCS", "PROFESSOR", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	owner := &models.Owner{ID: "owner-1", Email: "ana@lspu.edu.ph", Name: "Ana Cruz", Department: "CCS"}
	require.NoError(t, NewOwnerRepository(db).Upsert(context.Background(), owner))
	assert.Equal(t, models.RoleProfessor, owner.Role)
	assert.False(t, owner.UpdatedAt.IsZero())
}

func TestOwnerRepositoryListByRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN documents d ON d.owner_id = o.id AND d.academic_year = $2 AND d.semester = $3")).
		WithArgs("PROFESSOR", "2023-2024", "1st").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "department", "document_count"}).
			AddRow("owner-1", "Ana Cruz", "ana@lspu.edu.ph", "CCS", 4).
			AddRow("owner-2", "Ben Reyes", "ben@lspu.edu.ph", "CTE", 0))

	summaries, err := NewOwnerRepository(db).ListByRole(context.Background(), models.RoleProfessor, models.DefaultPeriod)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 4, summaries[0].DocumentCount)
	assert.Zero(t, summaries[1].DocumentCount)
}
