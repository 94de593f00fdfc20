package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
)

const (
	defaultDocumentPageSize = 20
	maxDocumentPageSize     = 200
)

type documentLister interface {
	ListByOwner(ctx context.Context, ownerID string, filter models.DocumentFilter) ([]models.Document, error)
	CountByOwner(ctx context.Context, ownerID string, filter models.DocumentFilter) (int, error)
}

// DocumentQuery is the paging and filter input of a document listing.
type DocumentQuery struct {
	Category     string
	AcademicYear string
	Semester     string
	Page         int
	PageSize     int
}

// DocumentService lists an owner's ingested documents.
type DocumentService struct {
	repo   documentLister
	logger *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(repo documentLister, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, logger: logger}
}

// List returns one page of the owner's documents, newest first.
func (s *DocumentService) List(ctx context.Context, ownerID string, q DocumentQuery) ([]models.Document, *models.Pagination, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "owner id is required")
	}
	filter := models.DocumentFilter{
		Period: models.Period{
			AcademicYear: strings.TrimSpace(q.AcademicYear),
			Semester:     strings.TrimSpace(q.Semester),
		},
	}
	if raw := strings.TrimSpace(q.Category); raw != "" {
		category, ok := models.ParseCategory(raw)
		if !ok {
			if category, ok = models.CategoryFromLabel(raw); !ok {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown category "+raw)
			}
		}
		filter.Category = category
	}

	page := q.Page
	if page <= 0 {
		page = 1
	}
	size := q.PageSize
	if size <= 0 {
		size = defaultDocumentPageSize
	}
	if size > maxDocumentPageSize {
		size = maxDocumentPageSize
	}
	filter.Limit = size
	filter.Offset = (page - 1) * size

	docs, err := s.repo.ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	total, err := s.repo.CountByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count documents")
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
