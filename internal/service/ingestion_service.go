package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ipcr-api/internal/dto"
	"github.com/noah-isme/ipcr-api/internal/models"
	"github.com/noah-isme/ipcr-api/pkg/classifier"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
	"github.com/noah-isme/ipcr-api/pkg/events"
	"github.com/noah-isme/ipcr-api/pkg/logger"
	"github.com/noah-isme/ipcr-api/pkg/pdfmeta"
	"github.com/noah-isme/ipcr-api/pkg/storage"
)

type documentClassifier interface {
	Classify(ctx context.Context, content []byte, fileName string) (*classifier.Result, error)
}

type documentArchiver interface {
	Archive(ctx context.Context, ownerID string, creds *models.StorageCredentials, content []byte, fileName string, category models.Category) ArchiveOutcome
}

type ingestionStore interface {
	RecordIngestion(ctx context.Context, doc *models.Document) (int, error)
}

type ownerStore interface {
	Upsert(ctx context.Context, owner *models.Owner) error
}

type fileStager interface {
	Stage(originalName string, r io.Reader, maxBytes int64) (*storage.StagedFile, error)
}

type ingestEventPublisher interface {
	PublishDocumentIngested(ctx context.Context, evt events.DocumentIngested) error
}

type ingestMetrics interface {
	ObserveIngestFile(result string)
	ObserveArchiveOutcome(status models.ArchiveStatus)
	ObserveClassifier(duration time.Duration, err error)
}

// IngestFile is one uploaded file. Open is called once.
type IngestFile struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// BytesFile wraps in-memory content as an IngestFile.
func BytesFile(name string, content []byte) IngestFile {
	return IngestFile{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// IngestionConfig tunes batch processing.
type IngestionConfig struct {
	Concurrency      int
	MaxFileSizeBytes int64
	DefaultPeriod    models.Period
}

// IngestionDeps groups the collaborators of the ingestion pipeline.
type IngestionDeps struct {
	Classifier documentClassifier
	Archiver   documentArchiver
	Store      ingestionStore
	Owners     ownerStore
	Stager     fileStager
	Events     ingestEventPublisher
	Metrics    ingestMetrics
	PageCount  func(content []byte) (int, error)
}

// IngestionService drives each file through classification, archival and recording.
type IngestionService struct {
	classifier documentClassifier
	archiver   documentArchiver
	store      ingestionStore
	owners     ownerStore
	stager     fileStager
	events     ingestEventPublisher
	metrics    ingestMetrics
	pageCount  func(content []byte) (int, error)
	cfg        IngestionConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewIngestionService constructs the orchestrator.
func NewIngestionService(deps IngestionDeps, cfg IngestionConfig, logger *zap.Logger) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.DefaultPeriod.IsZero() {
		cfg.DefaultPeriod = models.DefaultPeriod
	}
	if deps.PageCount == nil {
		deps.PageCount = pdfmeta.PageCount
	}
	return &IngestionService{
		classifier: deps.Classifier,
		archiver:   deps.Archiver,
		store:      deps.Store,
		owners:     deps.Owners,
		stager:     deps.Stager,
		events:     deps.Events,
		metrics:    deps.Metrics,
		pageCount:  deps.PageCount,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// DefaultPeriod returns the period used when a batch names none.
func (s *IngestionService) DefaultPeriod() models.Period {
	return s.cfg.DefaultPeriod
}

// Ingest processes every file and returns one result per file in input order.
// Only a missing owner, an empty batch or an invalid period fail the whole call.
func (s *IngestionService) Ingest(ctx context.Context, owner models.Owner, creds *models.StorageCredentials, period models.Period, files []IngestFile) ([]dto.IngestResult, error) {
	if strings.TrimSpace(owner.ID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner id is required")
	}
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one file is required")
	}
	period, err := resolvePeriod(s.cfg.DefaultPeriod, period.AcademicYear, period.Semester)
	if err != nil {
		return nil, err
	}

	// A client that disconnects must not leave the batch half recorded.
	ctx = context.WithoutCancel(ctx)
	log := logger.WithContext(ctx, s.logger).With(zap.String("owner_id", owner.ID), zap.String("period", period.String()))

	if s.owners != nil {
		profile := owner
		if err := s.owners.Upsert(ctx, &profile); err != nil {
			log.Warn("owner profile upsert failed", zap.Error(err))
		}
	}

	results := make([]dto.IngestResult, len(files))
	if s.cfg.Concurrency == 1 || len(files) == 1 {
		for i := range files {
			results[i] = s.processFile(ctx, log, owner, creds, period, files[i])
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.cfg.Concurrency)
		for i := range files {
			i := i
			g.Go(func() error {
				results[i] = s.processFile(ctx, log, owner, creds, period, files[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	log.Info("ingestion batch completed",
		zap.Int("files", len(files)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(files)-succeeded),
		zap.Bool("credentials", creds != nil),
	)
	return results, nil
}

func (s *IngestionService) processFile(ctx context.Context, log *zap.Logger, owner models.Owner, creds *models.StorageCredentials, period models.Period, file IngestFile) dto.IngestResult {
	result := s.ingestOne(ctx, log.With(zap.String("file", file.Name)), owner, creds, period, file)
	if s.metrics != nil {
		s.metrics.ObserveIngestFile(result.Status)
	}
	return result
}

func (s *IngestionService) ingestOne(ctx context.Context, log *zap.Logger, owner models.Owner, creds *models.StorageCredentials, period models.Period, file IngestFile) dto.IngestResult {
	result := dto.IngestResult{Filename: file.Name, Status: dto.IngestStatusFailed}
	fail := func(stage, message string) dto.IngestResult {
		result.Stage = stage
		result.Error = message
		return result
	}

	if strings.TrimSpace(file.Name) == "" || file.Open == nil {
		return fail(dto.StageValidation, "file name is required")
	}
	staged, err := s.stage(file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrEmptyFile), errors.Is(err, storage.ErrFileTooLarge):
			return fail(dto.StageValidation, err.Error())
		default:
			log.Error("staging failed", zap.Error(err))
			return fail(dto.StageStore, "failed to stage upload")
		}
	}
	defer func() {
		if err := staged.Release(); err != nil {
			log.Warn("release staged file failed", zap.Error(err))
		}
	}()

	content, err := staged.Read()
	if err != nil {
		log.Error("read staged file failed", zap.Error(err))
		return fail(dto.StageStore, "failed to read staged upload")
	}

	start := s.now()
	classified, err := s.classifier.Classify(ctx, content, file.Name)
	if s.metrics != nil {
		s.metrics.ObserveClassifier(s.now().Sub(start), err)
	}
	if err != nil {
		log.Warn("classification failed", zap.Error(err))
		return fail(dto.StageClassification, err.Error())
	}

	outcome := ArchiveOutcome{Status: models.ArchiveStatusSkipped}
	if creds != nil && s.archiver != nil {
		outcome = s.archiver.Archive(ctx, owner.ID, creds, content, file.Name, classified.Category)
	}
	if s.metrics != nil {
		s.metrics.ObserveArchiveOutcome(outcome.Status)
	}

	pages, err := s.pageCount(content)
	if err != nil {
		log.Debug("page count unavailable", zap.Error(err))
		pages = 0
	}

	doc := &models.Document{
		ID:               uuid.NewString(),
		OwnerID:          owner.ID,
		Filename:         staged.Name,
		OriginalFilename: file.Name,
		FileSize:         staged.Size,
		PageCount:        pages,
		Category:         classified.Category,
		Confidence:       classified.Confidence,
		Period:           period,
		Status:           models.DocumentStatusProcessed,
		UploadedAt:       s.now().UTC(),
	}
	switch {
	case outcome.Archived():
		doc.ArchiveFileID = &outcome.Ref.FileID
		doc.ArchiveLink = &outcome.Ref.Link
		doc.ArchiveFolder = &outcome.Ref.FolderPath
	case outcome.Status == models.ArchiveStatusFailed:
		doc.Status = models.DocumentStatusArchiveFailed
	}

	accomplished, err := s.store.RecordIngestion(ctx, doc)
	if err != nil {
		log.Error("record ingestion failed", zap.Error(err))
		return fail(dto.StageStore, "failed to record document")
	}

	s.publish(ctx, log, doc, outcome.Archived())
	log.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("category", string(doc.Category)),
		zap.Float64("confidence", doc.Confidence),
		zap.String("archive_status", string(outcome.Status)),
		zap.Int("accomplished", accomplished),
	)

	return dto.IngestResult{
		Filename:      file.Name,
		Status:        dto.IngestStatusSuccess,
		DocumentID:    doc.ID,
		Category:      doc.Category,
		CategoryLabel: doc.Category.Label(),
		Confidence:    doc.Confidence,
		PageCount:     doc.PageCount,
		Archived:      outcome.Archived(),
		ArchiveStatus: outcome.Status,
		ArchiveLink:   doc.ArchiveLink,
	}
}

func (s *IngestionService) stage(file IngestFile) (*storage.StagedFile, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	return s.stager.Stage(file.Name, rc, s.cfg.MaxFileSizeBytes)
}

func (s *IngestionService) publish(ctx context.Context, log *zap.Logger, doc *models.Document, archived bool) {
	if s.events == nil {
		return
	}
	evt := events.DocumentIngested{
		DocumentID:    doc.ID,
		OwnerID:       doc.OwnerID,
		Category:      string(doc.Category),
		CategoryLabel: doc.Category.Label(),
		AcademicYear:  doc.AcademicYear,
		Semester:      doc.Semester,
		Confidence:    doc.Confidence,
		Archived:      archived,
		UploadedAt:    doc.UploadedAt,
	}
	if err := s.events.PublishDocumentIngested(ctx, evt); err != nil {
		log.Warn("publish ingestion event failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
}
