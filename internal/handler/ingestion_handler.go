package handler

import (
	"context"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ipcr-api/internal/dto"
	"github.com/noah-isme/ipcr-api/internal/models"
	"github.com/noah-isme/ipcr-api/internal/service"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
	"github.com/noah-isme/ipcr-api/pkg/response"
)

type ingestionService interface {
	Ingest(ctx context.Context, owner models.Owner, creds *models.StorageCredentials, period models.Period, files []service.IngestFile) ([]dto.IngestResult, error)
}

// IngestionHandler accepts document uploads.
type IngestionHandler struct {
	service ingestionService
}

// NewIngestionHandler constructs the handler.
func NewIngestionHandler(svc ingestionService) *IngestionHandler {
	return &IngestionHandler{service: svc}
}

// Upload godoc
// @Summary Upload IPCR documents
// @Description Classifies each file, archives it when storage credentials are supplied and bumps the matching counter. Per-file failures are reported in the results.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Documents (repeatable)"
// @Param academicYear formData string false "Academic year, e.g. 2023-2024"
// @Param semester formData string false "1st, 2nd or Summer"
// @Param X-Storage-Credentials header string false "Archive token bundle (JSON or base64 JSON)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/upload [post]
func (h *IngestionHandler) Upload(c *gin.Context) {
	owner, err := currentOwner(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	creds, err := storageCredentials(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "multipart form required"))
		return
	}
	headers := make([]*multipart.FileHeader, 0, len(form.File["files"]))
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["files[]"]...)
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one file is required"))
		return
	}

	files := make([]service.IngestFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, multipartFile(fh))
	}
	period := models.Period{AcademicYear: c.PostForm("academicYear"), Semester: c.PostForm("semester")}

	results, err := h.service.Ingest(c.Request.Context(), owner, creds, period, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	response.OK(c, results, map[string]interface{}{
		"total":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

func multipartFile(fh *multipart.FileHeader) service.IngestFile {
	return service.IngestFile{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}
