package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ipcr-api/internal/models"
	"github.com/noah-isme/ipcr-api/internal/service"
	"github.com/noah-isme/ipcr-api/pkg/response"
)

type documentService interface {
	List(ctx context.Context, ownerID string, q service.DocumentQuery) ([]models.Document, *models.Pagination, error)
}

// DocumentHandler lists ingested documents.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(svc documentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// List godoc
// @Summary List my documents
// @Tags Documents
// @Produce json
// @Param category query string false "Category key or label"
// @Param academicYear query string false "Academic year"
// @Param semester query string false "Semester"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param ownerId query string false "Owner (admins only)"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	ownerID, err := targetOwnerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	docs, pagination, err := h.service.List(c.Request.Context(), ownerID, service.DocumentQuery{
		Category:     c.Query("category"),
		AcademicYear: c.Query("academicYear"),
		Semester:     c.Query("semester"),
		Page:         queryInt(c, "page"),
		PageSize:     queryInt(c, "limit", "pageSize"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}
