package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ipcr-api/internal/dto"
	"github.com/noah-isme/ipcr-api/internal/models"
	"github.com/noah-isme/ipcr-api/internal/rating"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
)

type accomplishmentRepository interface {
	SetTargets(ctx context.Context, ownerID string, period models.Period, targets map[models.Category]int) error
	ListByOwnerPeriod(ctx context.Context, ownerID string, period models.Period) ([]models.AccomplishmentCounter, error)
}

// AccomplishmentService exposes counters, targets and ratings for one owner.
type AccomplishmentService struct {
	repo          accomplishmentRepository
	validator     *validator.Validate
	defaultPeriod models.Period
	logger        *zap.Logger
}

// NewAccomplishmentService constructs the service.
func NewAccomplishmentService(repo accomplishmentRepository, validate *validator.Validate, defaultPeriod models.Period, logger *zap.Logger) *AccomplishmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultPeriod.IsZero() {
		defaultPeriod = models.DefaultPeriod
	}
	return &AccomplishmentService{repo: repo, validator: validate, defaultPeriod: defaultPeriod, logger: logger}
}

// ResolvePeriod fills missing parts from the default period and validates the result.
func (s *AccomplishmentService) ResolvePeriod(academicYear, semester string) (models.Period, error) {
	return resolvePeriod(s.defaultPeriod, academicYear, semester)
}

func resolvePeriod(fallback models.Period, academicYear, semester string) (models.Period, error) {
	period := models.Period{
		AcademicYear: strings.TrimSpace(academicYear),
		Semester:     strings.TrimSpace(semester),
	}
	if period.AcademicYear == "" {
		period.AcademicYear = fallback.AcademicYear
	}
	if period.Semester == "" {
		period.Semester = fallback.Semester
	}
	if err := period.Validate(); err != nil {
		return models.Period{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period")
	}
	return period, nil
}

// GetCounters returns every category's counter for the period with ratings
// computed from the current values. Missing categories report their default target.
func (s *AccomplishmentService) GetCounters(ctx context.Context, ownerID string, period models.Period) (*dto.IPCRSummary, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner id is required")
	}
	stored, err := s.repo.ListByOwnerPeriod(ctx, ownerID, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load accomplishments")
	}
	summary := buildSummary(ownerID, period, stored)
	return &summary, nil
}

// SetTargets validates and stores targets, then returns the refreshed summary.
func (s *AccomplishmentService) SetTargets(ctx context.Context, ownerID string, req dto.SetTargetsRequest) (*dto.IPCRSummary, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	period, err := s.ResolvePeriod(req.AcademicYear, req.Semester)
	if err != nil {
		return nil, err
	}
	targets, err := parseTargets(req.Targets)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetTargets(ctx, ownerID, period, targets); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set targets")
	}
	s.logger.Info("ipcr targets updated",
		zap.String("owner_id", ownerID),
		zap.String("period", period.String()),
		zap.Int("categories", len(targets)),
	)
	return s.GetCounters(ctx, ownerID, period)
}

func parseTargets(raw map[string]int) (map[models.Category]int, error) {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	targets := make(map[models.Category]int, len(raw))
	for _, key := range keys {
		category, ok := models.ParseCategory(key)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", key))
		}
		if raw[key] < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("target for %s must not be negative", key))
		}
		targets[category] = raw[key]
	}
	return targets, nil
}

// buildSummary lays stored counters over the category defaults and rates them.
func buildSummary(ownerID string, period models.Period, stored []models.AccomplishmentCounter) dto.IPCRSummary {
	byCategory := make(map[models.Category]models.AccomplishmentCounter, len(stored))
	for _, c := range stored {
		byCategory[c.Category] = c
	}

	views := make([]dto.CounterView, 0, len(models.Categories()))
	inputs := make([]rating.Counter, 0, len(models.Categories()))
	for _, category := range models.Categories() {
		view := dto.CounterView{
			Category: category,
			Label:    category.Label(),
			Target:   category.DefaultTarget(),
		}
		if c, ok := byCategory[category]; ok {
			view.Target = c.Target
			view.Accomplished = c.Accomplished
			view.Submitted = c.LastSubmission
		}
		view.Rating = rating.Rate(view.Target, view.Accomplished)
		views = append(views, view)
		inputs = append(inputs, rating.Counter{Target: view.Target, Accomplished: view.Accomplished})
	}

	return dto.IPCRSummary{
		OwnerID:       ownerID,
		Period:        period,
		Counters:      views,
		OverallRating: rating.Round2(rating.Overall(inputs)),
	}
}
