package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/ipcr-api/internal/dto"
	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
)

type facultyOwnerRepository interface {
	ListByRole(ctx context.Context, role models.OwnerRole, period models.Period) ([]models.FacultySummary, error)
}

type periodCounterRepository interface {
	ListByPeriod(ctx context.Context, period models.Period) ([]models.AccomplishmentCounter, error)
}

// FacultyService builds the admin overview of every professor.
type FacultyService struct {
	owners   facultyOwnerRepository
	counters periodCounterRepository
	logger   *zap.Logger
}

// NewFacultyService constructs the service.
func NewFacultyService(owners facultyOwnerRepository, counters periodCounterRepository, logger *zap.Logger) *FacultyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacultyService{owners: owners, counters: counters, logger: logger}
}

// List returns every professor with their document count and overall rating for the period.
func (s *FacultyService) List(ctx context.Context, period models.Period) (*dto.FacultyListResponse, error) {
	faculty, err := s.owners.ListByRole(ctx, models.RoleProfessor, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}
	counters, err := s.counters.ListByPeriod(ctx, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load accomplishments")
	}

	byOwner := make(map[string][]models.AccomplishmentCounter)
	for _, c := range counters {
		byOwner[c.OwnerID] = append(byOwner[c.OwnerID], c)
	}
	for i := range faculty {
		summary := buildSummary(faculty[i].OwnerID, period, byOwner[faculty[i].OwnerID])
		faculty[i].OverallRating = summary.OverallRating
	}
	if faculty == nil {
		faculty = []models.FacultySummary{}
	}
	return &dto.FacultyListResponse{Period: period, Faculty: faculty}, nil
}
