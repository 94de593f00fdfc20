package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ipcr-api/internal/dto"
	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
)

type accomplishmentRepoStub struct {
	counters map[string]models.AccomplishmentCounter
	setCalls int
	listErr  error
}

func newAccomplishmentRepoStub() *accomplishmentRepoStub {
	return &accomplishmentRepoStub{counters: make(map[string]models.AccomplishmentCounter)}
}

func counterKey(ownerID string, category models.Category, period models.Period) string {
	return ownerID + "|" + string(category) + "|" + period.String()
}

func (r *accomplishmentRepoStub) SetTargets(ctx context.Context, ownerID string, period models.Period, targets map[models.Category]int) error {
	r.setCalls++
	for category, target := range targets {
		key := counterKey(ownerID, category, period)
		c := r.counters[key]
		c.OwnerID, c.Category, c.Period, c.Target = ownerID, category, period, target
		r.counters[key] = c
	}
	return nil
}

func (r *accomplishmentRepoStub) ListByOwnerPeriod(ctx context.Context, ownerID string, period models.Period) ([]models.AccomplishmentCounter, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.AccomplishmentCounter
	for _, c := range r.counters {
		if c.OwnerID == ownerID && c.Period == period {
			out = append(out, c)
		}
	}
	return out, nil
}

func counterFor(t *testing.T, summary *dto.IPCRSummary, category models.Category) dto.CounterView {
	t.Helper()
	for _, c := range summary.Counters {
		if c.Category == category {
			return c
		}
	}
	t.Fatalf("category %s missing from summary", category)
	return dto.CounterView{}
}

func TestAccomplishmentServiceDefaultsWhenNothingStored(t *testing.T) {
	svc := NewAccomplishmentService(newAccomplishmentRepoStub(), nil, models.Period{}, nil)

	summary, err := svc.GetCounters(context.Background(), "owner-1", models.DefaultPeriod)
	require.NoError(t, err)

	require.Len(t, summary.Counters, len(models.Categories()))
	assert.Equal(t, 4, counterFor(t, summary, models.CategorySyllabus).Target)
	assert.Equal(t, 10, counterFor(t, summary, models.CategorySLM).Target)
	assert.Equal(t, 0, counterFor(t, summary, models.CategoryTOS).Target)
	assert.Equal(t, "Course Guide", counterFor(t, summary, models.CategoryCourseGuide).Label)
	// Three tracked categories with nothing accomplished rate 1 each.
	assert.Equal(t, 1.0, summary.OverallRating)
}

func TestAccomplishmentServiceSetTargetsRoundTrip(t *testing.T) {
	repo := newAccomplishmentRepoStub()
	svc := NewAccomplishmentService(repo, nil, models.DefaultPeriod, nil)
	period := models.Period{AcademicYear: "2024-2025", Semester: models.SemesterSecond}
	submitted := time.Date(2024, 11, 2, 8, 0, 0, 0, time.UTC)
	repo.counters[counterKey("owner-1", models.CategorySyllabus, period)] = models.AccomplishmentCounter{
		OwnerID: "owner-1", Category: models.CategorySyllabus, Period: period,
		Accomplished: 3, LastSubmission: &submitted,
	}

	summary, err := svc.SetTargets(context.Background(), "owner-1", dto.SetTargetsRequest{
		AcademicYear: "2024-2025",
		Semester:     "2nd",
		Targets:      map[string]int{"syllabus": 3, "tos": 2},
	})
	require.NoError(t, err)

	syllabus := counterFor(t, summary, models.CategorySyllabus)
	assert.Equal(t, 3, syllabus.Target)
	assert.Equal(t, 3, syllabus.Accomplished)
	assert.Equal(t, 5, syllabus.Rating)
	require.NotNil(t, syllabus.Submitted)
	assert.Equal(t, submitted, *syllabus.Submitted)

	tos := counterFor(t, summary, models.CategoryTOS)
	assert.Equal(t, 2, tos.Target)
	assert.Equal(t, 1, tos.Rating)
	assert.Equal(t, period, summary.Period)

	again, err := svc.GetCounters(context.Background(), "owner-1", period)
	require.NoError(t, err)
	assert.Equal(t, summary, again)
}

func TestAccomplishmentServiceRejectsInvalidTargets(t *testing.T) {
	repo := newAccomplishmentRepoStub()
	svc := NewAccomplishmentService(repo, nil, models.DefaultPeriod, nil)

	cases := map[string]dto.SetTargetsRequest{
		"unknown category": {Targets: map[string]int{"Syllabus": 3}},
		"negative target":  {Targets: map[string]int{"slm": -1}},
		"empty targets":    {Targets: map[string]int{}},
		"bad period":       {AcademicYear: "2024-2026", Targets: map[string]int{"slm": 2}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SetTargets(context.Background(), "owner-1", req)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
	assert.Zero(t, repo.setCalls)
}

func TestAccomplishmentServiceReadsDoNotMutate(t *testing.T) {
	repo := newAccomplishmentRepoStub()
	svc := NewAccomplishmentService(repo, nil, models.DefaultPeriod, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.GetCounters(context.Background(), "owner-1", models.DefaultPeriod)
		require.NoError(t, err)
	}
	assert.Zero(t, repo.setCalls)
	assert.Empty(t, repo.counters)
}

func TestAccomplishmentServiceWrapsRepositoryErrors(t *testing.T) {
	repo := newAccomplishmentRepoStub()
	repo.listErr = errors.New("connection reset")
	svc := NewAccomplishmentService(repo, nil, models.DefaultPeriod, nil)

	_, err := svc.GetCounters(context.Background(), "owner-1", models.DefaultPeriod)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestResolvePeriodFallsBackPerPart(t *testing.T) {
	fallback := models.Period{AcademicYear: "2023-2024", Semester: models.SemesterFirst}

	got, err := resolvePeriod(fallback, "", "2nd")
	require.NoError(t, err)
	assert.Equal(t, models.Period{AcademicYear: "2023-2024", Semester: "2nd"}, got)

	_, err = resolvePeriod(fallback, "2023", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
