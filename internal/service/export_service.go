package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ipcr-api/internal/dto"
	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
	"github.com/noah-isme/ipcr-api/pkg/export"
	"github.com/noah-isme/ipcr-api/pkg/storage"
)

// Supported export formats.
const (
	ExportFormatXLSX = "xlsx"
	ExportFormatPDF  = "pdf"
	ExportFormatCSV  = "csv"
)

// templateCells maps each category onto the accomplished cell of the IPCR workbook template.
var templateCells = map[models.Category]string{
	models.CategorySyllabus:     "C19",
	models.CategoryCourseGuide:  "C20",
	models.CategorySLM:          "C21",
	models.CategoryTOS:          "C30",
	models.CategoryGradingSheet: "C34",
}

var exportHeaders = []string{"Category", "Target", "Accomplished", "Rating", "Last Submission"}

type counterReader interface {
	ListByOwnerPeriod(ctx context.Context, ownerID string, period models.Period) ([]models.AccomplishmentCounter, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// DatasetRenderer turns a dataset into file bytes.
type DatasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type exportMetrics interface {
	ObserveExport(format string)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders IPCR reports and hands out signed download links.
type ExportService struct {
	counters  counterReader
	storage   fileStorage
	signer    *storage.SignedURLSigner
	renderers map[string]DatasetRenderer
	metrics   exportMetrics
	cfg       ExportConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(counters counterReader, store fileStorage, signer *storage.SignedURLSigner, renderers map[string]DatasetRenderer, metrics exportMetrics, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = signer.TTL()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	all := map[string]DatasetRenderer{
		ExportFormatXLSX: export.NewXLSXExporter(""),
		ExportFormatPDF:  export.NewPDFExporter(),
		ExportFormatCSV:  export.NewCSVExporter(),
	}
	for format, r := range renderers {
		if r != nil {
			all[format] = r
		}
	}
	return &ExportService{
		counters:  counters,
		storage:   store,
		signer:    signer,
		renderers: all,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate renders the owner's IPCR summary for period and returns a signed download URL.
func (s *ExportService) Generate(ctx context.Context, owner models.Owner, period models.Period, format string) (*dto.ExportResponse, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if strings.TrimSpace(owner.ID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner id is required")
	}

	if removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Debug("expired exports removed", zap.Int("count", len(removed)))
	}

	stored, err := s.counters.ListByOwnerPeriod(ctx, owner.ID, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load accomplishments")
	}
	summary := buildSummary(owner.ID, period, stored)

	payload, err := renderer.Render(buildExportDataset(owner, summary))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	relPath, err := s.storage.Save(s.buildFilename(owner.ID, period, format), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}
	token, expiresAt, err := s.signer.Generate(owner.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report url")
	}
	if s.metrics != nil {
		s.metrics.ObserveExport(format)
	}
	s.logger.Info("ipcr report exported",
		zap.String("owner_id", owner.ID),
		zap.String("period", period.String()),
		zap.String("format", format),
		zap.String("path", relPath),
	)

	return &dto.ExportResponse{
		URL:       fmt.Sprintf("%s/exports/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		Format:    format,
		ExpiresAt: expiresAt,
	}, nil
}

// Open resolves a download token to the stored file and its download name.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export link is invalid or expired")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return file, path.Base(relPath), nil
}

// Cleanup removes exports older than ttl, or the configured TTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(ownerID string, period models.Period, format string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	name := fmt.Sprintf("ipcr_%s_%s_%s.%s", sanitizeFilename(period.AcademicYear), sanitizeFilename(period.Semester), timestamp, format)
	return path.Join(sanitizeFilename(ownerID), name)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func buildExportDataset(owner models.Owner, summary dto.IPCRSummary) export.Dataset {
	rows := make([]map[string]string, 0, len(summary.Counters))
	cells := make(map[string]interface{}, len(templateCells))
	for _, c := range summary.Counters {
		rows = append(rows, map[string]string{
			"Category":        c.Label,
			"Target":          strconv.Itoa(c.Target),
			"Accomplished":    strconv.Itoa(c.Accomplished),
			"Rating":          strconv.Itoa(c.Rating),
			"Last Submission": formatReportTime(c.Submitted),
		})
		if cell, ok := templateCells[c.Category]; ok {
			cells[cell] = c.Accomplished
		}
	}

	who := owner.Name
	if who == "" {
		who = owner.Email
	}
	if who == "" {
		who = owner.ID
	}
	return export.Dataset{
		Title:   fmt.Sprintf("IPCR %s %s", summary.Period.AcademicYear, summary.Period.Semester),
		Headers: exportHeaders,
		Rows:    rows,
		Summary: []string{
			fmt.Sprintf("Faculty: %s", who),
			fmt.Sprintf("Overall rating: %.2f", summary.OverallRating),
		},
		Cells: cells,
	}
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
