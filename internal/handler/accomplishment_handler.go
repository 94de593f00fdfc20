package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ipcr-api/internal/dto"
	"github.com/noah-isme/ipcr-api/internal/models"
	appErrors "github.com/noah-isme/ipcr-api/pkg/errors"
	"github.com/noah-isme/ipcr-api/pkg/response"
)

type accomplishmentService interface {
	ResolvePeriod(academicYear, semester string) (models.Period, error)
	GetCounters(ctx context.Context, ownerID string, period models.Period) (*dto.IPCRSummary, error)
	SetTargets(ctx context.Context, ownerID string, req dto.SetTargetsRequest) (*dto.IPCRSummary, error)
}

// AccomplishmentHandler serves IPCR counters and targets.
type AccomplishmentHandler struct {
	service accomplishmentService
}

// NewAccomplishmentHandler constructs the handler.
func NewAccomplishmentHandler(svc accomplishmentService) *AccomplishmentHandler {
	return &AccomplishmentHandler{service: svc}
}

// Summary godoc
// @Summary IPCR counters and ratings
// @Tags IPCR
// @Produce json
// @Param academicYear query string false "Academic year"
// @Param semester query string false "Semester"
// @Param ownerId query string false "Owner (admins only)"
// @Success 200 {object} response.Envelope
// @Router /ipcr [get]
func (h *AccomplishmentHandler) Summary(c *gin.Context) {
	ownerID, err := targetOwnerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	period, err := h.service.ResolvePeriod(c.Query("academicYear"), c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.service.GetCounters(c.Request.Context(), ownerID, period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// SetTargets godoc
// @Summary Set IPCR targets
// @Tags IPCR
// @Accept json
// @Produce json
// @Param ownerId query string false "Owner (admins only)"
// @Param payload body dto.SetTargetsRequest true "Targets keyed by category"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /ipcr/targets [put]
func (h *AccomplishmentHandler) SetTargets(c *gin.Context) {
	ownerID, err := targetOwnerID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SetTargetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	summary, err := h.service.SetTargets(c.Request.Context(), ownerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
