package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
)

type facultyOwnersStub struct {
	rows []models.FacultySummary
	role models.OwnerRole
	err  error
}

func (s *facultyOwnersStub) ListByRole(ctx context.Context, role models.OwnerRole, period models.Period) ([]models.FacultySummary, error) {
	s.role = role
	return s.rows, s.err
}

type periodCountersStub struct {
	counters []models.AccomplishmentCounter
}

func (s periodCountersStub) ListByPeriod(ctx context.Context, period models.Period) ([]models.AccomplishmentCounter, error) {
	return s.counters, nil
}

func TestFacultyServiceListComputesRatings(t *testing.T) {
	owners := &facultyOwnersStub{rows: []models.FacultySummary{
		{OwnerID: "a", Name: "Abad", DocumentCount: 5},
		{OwnerID: "b", Name: "Bautista", DocumentCount: 0},
	}}
	counters := periodCountersStub{counters: []models.AccomplishmentCounter{
		{OwnerID: "a", Category: models.CategorySyllabus, Target: 4, Accomplished: 4},
		{OwnerID: "a", Category: models.CategoryCourseGuide, Target: 0, Accomplished: 1},
		{OwnerID: "a", Category: models.CategorySLM, Target: 0, Accomplished: 0},
	}}
	svc := NewFacultyService(owners, counters, nil)

	res, err := svc.List(context.Background(), models.DefaultPeriod)
	require.NoError(t, err)
	require.Len(t, res.Faculty, 2)
	assert.Equal(t, models.RoleProfessor, owners.role)
	assert.Equal(t, 5.0, res.Faculty[0].OverallRating)
	// Nothing stored: default targets with nothing accomplished.
	assert.Equal(t, 1.0, res.Faculty[1].OverallRating)
	assert.Equal(t, models.DefaultPeriod, res.Period)
}

func TestFacultyServiceListWrapsErrors(t *testing.T) {
	svc := NewFacultyService(&facultyOwnersStub{err: errors.New("boom")}, periodCountersStub{}, nil)
	_, err := svc.List(context.Background(), models.DefaultPeriod)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
