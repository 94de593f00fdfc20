package models

import "time"

// DocumentStatus tracks the lifecycle of an ingested document.
type DocumentStatus string

const (
	DocumentStatusProcessed     DocumentStatus = "processed"
	DocumentStatusArchiveFailed DocumentStatus = "archive_failed"
	DocumentStatusPending       DocumentStatus = "pending"
)

// Document is one classified upload. Rows are append-only.
type Document struct {
	ID               string         `db:"id" json:"id"`
	OwnerID          string         `db:"owner_id" json:"ownerId"`
	Filename         string         `db:"filename" json:"filename"`
	OriginalFilename string         `db:"original_filename" json:"name"`
	FileSize         int64          `db:"file_size" json:"size"`
	PageCount        int            `db:"page_count" json:"pageCount"`
	Category         Category       `db:"category" json:"category"`
	Confidence       float64        `db:"confidence" json:"confidence"`
	ArchiveFileID    *string        `db:"archive_file_id" json:"archiveFileId,omitempty"`
	ArchiveLink      *string        `db:"archive_link" json:"archiveLink,omitempty"`
	ArchiveFolder    *string        `db:"archive_folder" json:"archiveFolder,omitempty"`
	Period                          // academic_year, semester
	Status           DocumentStatus `db:"status" json:"status"`
	UploadedAt       time.Time      `db:"uploaded_at" json:"uploadDate"`
}

// DocumentFilter narrows document listings for one owner.
type DocumentFilter struct {
	Category Category
	Period   Period
	Limit    int
	Offset   int
}

// ArchiveStatus tags the result of a best-effort archival attempt.
type ArchiveStatus string

const (
	ArchiveStatusArchived ArchiveStatus = "archived"
	ArchiveStatusSkipped  ArchiveStatus = "skipped"
	ArchiveStatusFailed   ArchiveStatus = "failed"
)

// ArchiveRef locates a file stored with the archive provider.
type ArchiveRef struct {
	FileID     string `json:"fileId"`
	Link       string `json:"link"`
	FolderPath string `json:"folderPath"`
}
