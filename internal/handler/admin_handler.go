package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ipcr-api/internal/dto"
	"github.com/noah-isme/ipcr-api/internal/models"
	"github.com/noah-isme/ipcr-api/pkg/response"
)

type facultyService interface {
	List(ctx context.Context, period models.Period) (*dto.FacultyListResponse, error)
}

// AdminHandler exposes the faculty overview.
type AdminHandler struct {
	faculty facultyService
	periods periodResolver
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(faculty facultyService, periods periodResolver) *AdminHandler {
	return &AdminHandler{faculty: faculty, periods: periods}
}

// ListFaculty godoc
// @Summary Faculty IPCR overview
// @Tags Admin
// @Produce json
// @Param academicYear query string false "Academic year"
// @Param semester query string false "Semester"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/ipcr [get]
func (h *AdminHandler) ListFaculty(c *gin.Context) {
	period, err := h.periods.ResolvePeriod(c.Query("academicYear"), c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.faculty.List(c.Request.Context(), period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res, map[string]interface{}{"count": len(res.Faculty)})
}
