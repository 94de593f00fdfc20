package dto

import (
	"time"

	"github.com/noah-isme/ipcr-api/internal/models"
)

// Ingest result statuses and failure stages.
const (
	IngestStatusSuccess = "success"
	IngestStatusFailed  = "failed"

	StageValidation     = "validation"
	StageClassification = "classification"
	StageStore          = "store"
)

// IngestResult is the per-file entry of an upload response.
type IngestResult struct {
	Filename      string               `json:"filename"`
	Status        string               `json:"status"`
	Stage         string               `json:"stage,omitempty"`
	Error         string               `json:"error,omitempty"`
	DocumentID    string               `json:"documentId,omitempty"`
	Category      models.Category      `json:"category,omitempty"`
	CategoryLabel string               `json:"categoryLabel,omitempty"`
	Confidence    float64              `json:"confidence,omitempty"`
	PageCount     int                  `json:"pageCount,omitempty"`
	Archived      bool                 `json:"archived"`
	ArchiveStatus models.ArchiveStatus `json:"archiveStatus,omitempty"`
	ArchiveLink   *string              `json:"archiveLink"`
}

// Succeeded reports whether the file was recorded.
func (r IngestResult) Succeeded() bool {
	return r.Status == IngestStatusSuccess
}

// CounterView is one category row of an IPCR summary.
type CounterView struct {
	Category     models.Category `json:"category"`
	Label        string          `json:"label"`
	Target       int             `json:"target"`
	Accomplished int             `json:"accomplished"`
	Rating       int             `json:"rating"`
	Submitted    *time.Time      `json:"submitted,omitempty"`
}

// IPCRSummary bundles counters and ratings for one owner and period.
type IPCRSummary struct {
	OwnerID       string        `json:"ownerId"`
	Period        models.Period `json:"period"`
	Counters      []CounterView `json:"counters"`
	OverallRating float64       `json:"overallRating"`
}

// SetTargetsRequest is the body of PUT /ipcr/targets. Keys are category keys.
type SetTargetsRequest struct {
	AcademicYear string         `json:"academicYear"`
	Semester     string         `json:"semester"`
	Targets      map[string]int `json:"targets" validate:"required,min=1,dive,keys,required,endkeys,gte=0"`
}

// ExportRequest is the body of POST /ipcr/export.
type ExportRequest struct {
	Format       string `json:"format" validate:"required,oneof=xlsx pdf csv"`
	AcademicYear string `json:"academicYear"`
	Semester     string `json:"semester"`
}

// ExportResponse returns the signed download location.
type ExportResponse struct {
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// FacultyListResponse is the admin overview for one period.
type FacultyListResponse struct {
	Period  models.Period           `json:"period"`
	Faculty []models.FacultySummary `json:"faculty"`
}
