package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ipcr-api/internal/dto"
	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
	"github.com/noah-isme/ipcr-api/pkg/response"
)

type exportService interface {
	Generate(ctx context.Context, owner models.Owner, period models.Period, format string) (*dto.ExportResponse, error)
	Open(token string) (*os.File, string, error)
}

type periodResolver interface {
	ResolvePeriod(academicYear, semester string) (models.Period, error)
}

var exportContentTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pdf":  "application/pdf",
	".csv":  "text/csv",
}

// ExportHandler renders IPCR reports and serves the signed downloads.
type ExportHandler struct {
	exports exportService
	periods periodResolver
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports exportService, periods periodResolver) *ExportHandler {
	return &ExportHandler{exports: exports, periods: periods}
}

// Export godoc
// @Summary Export IPCR report
// @Tags IPCR
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /ipcr/export [post]
func (h *ExportHandler) Export(c *gin.Context) {
	owner, err := currentOwner(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ownerID, err := targetOwnerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if ownerID != owner.ID {
		owner = models.Owner{ID: ownerID}
	}
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	period, err := h.periods.ResolvePeriod(req.AcademicYear, req.Semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.exports.Generate(c.Request.Context(), owner, period, req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Download godoc
// @Summary Download exported report
// @Tags IPCR
// @Produce application/octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, name, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	contentType, ok := exportContentTypes[filepath.Ext(name)]
	if !ok {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", name),
		"Cache-Control":       "no-store",
	})
}
