package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ipcr-api/internal/models"
)

const (
	defaultDocumentLimit = 50
	maxDocumentLimit     = 200
)

const insertDocumentQuery = `INSERT INTO documents (id, owner_id, filename, original_filename, file_size, page_count, category, confidence,
	archive_file_id, archive_link, archive_folder, academic_year, semester, status, uploaded_at)
VALUES (:id, :owner_id, :filename, :original_filename, :file_size, :page_count, :category, :confidence,
	:archive_file_id, :archive_link, :archive_folder, :academic_year, :semester, :status, :uploaded_at)`

const documentColumns = `id, owner_id, filename, original_filename, file_size, page_count, category, confidence,
	archive_file_id, archive_link, archive_folder, academic_year, semester, status, uploaded_at`

// DocumentRepository persists ingested documents. Rows are never updated.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func prepareDocument(doc *models.Document) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusProcessed
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
}

// Create inserts a document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	prepareDocument(doc)
	if _, err := r.db.NamedExecContext(ctx, insertDocumentQuery, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// RecordIngestion inserts the document and increments its counter in one
// transaction, returning the counter's new accomplished value. Either both
// writes land or neither does.
func (r *DocumentRepository) RecordIngestion(ctx context.Context, doc *models.Document) (int, error) {
	prepareDocument(doc)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin ingestion tx: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, insertDocumentQuery, doc); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("create document: %w", err)
	}
	accomplished, err := upsertAccomplishment(ctx, tx, doc.OwnerID, doc.Category, doc.Period, doc.UploadedAt)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit ingestion tx: %w", err)
	}
	return accomplished, nil
}

func documentWhere(ownerID string, filter models.DocumentFilter) (string, []interface{}) {
	clauses := []string{"owner_id = $1"}
	args := []interface{}{ownerID}
	if filter.Category != "" {
		args = append(args, filter.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Period.AcademicYear != "" {
		args = append(args, filter.Period.AcademicYear)
		clauses = append(clauses, fmt.Sprintf("academic_year = $%d", len(args)))
	}
	if filter.Period.Semester != "" {
		args = append(args, filter.Period.Semester)
		clauses = append(clauses, fmt.Sprintf("semester = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// ListByOwner returns the owner's documents, newest first.
func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerID string, filter models.DocumentFilter) ([]models.Document, error) {
	where, args := documentWhere(ownerID, filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDocumentLimit
	}
	if limit > maxDocumentLimit {
		limit = maxDocumentLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY uploaded_at DESC, id LIMIT $%d OFFSET $%d`,
		documentColumns, where, len(args)-1, len(args))

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// CountByOwner counts the owner's documents matching the filter, ignoring pagination.
func (r *DocumentRepository) CountByOwner(ctx context.Context, ownerID string, filter models.DocumentFilter) (int, error) {
	where, args := documentWhere(ownerID, filter)
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents WHERE "+where, args...); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return total, nil
}
