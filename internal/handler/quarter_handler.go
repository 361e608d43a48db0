package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	"github.com/noah-isme/sis-enrollment-api/pkg/response"
)

type quarterAdmin interface {
	CreateQuarterPeriod(ctx context.Context, req models.CreateQuarterPeriodRequest) (*models.QuarterPeriod, error)
	ListQuarterPeriods(ctx context.Context) ([]models.QuarterPeriod, error)
	GenerateRequirements(ctx context.Context, periodID string) (*models.GenerationResult, error)
	GetOverdueRequirements(ctx context.Context) ([]models.OverdueRequirement, error)
}

// QuarterHandler exposes quarter period administration.
type QuarterHandler struct {
	quarters quarterAdmin
}

// NewQuarterHandler constructs QuarterHandler.
func NewQuarterHandler(quarters quarterAdmin) *QuarterHandler {
	return &QuarterHandler{quarters: quarters}
}

// CreatePeriod godoc
// @Summary Create a quarter period
// @Tags Quarters
// @Accept json
// @Produce json
// @Param payload body models.CreateQuarterPeriodRequest true "Quarter period"
// @Success 201 {object} response.Envelope
// @Router /quarter-periods [post]
func (h *QuarterHandler) CreatePeriod(c *gin.Context) {
	claims := currentUser(c)
	if claims == nil {
		return
	}
	var req models.CreateQuarterPeriodRequest
	if !bindJSON(c, &req) {
		return
	}
	createdBy := claims.UserID
	req.CreatedBy = &createdBy

	period, err := h.quarters.CreateQuarterPeriod(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// ListPeriods godoc
// @Summary List quarter periods
// @Tags Quarters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /quarter-periods [get]
func (h *QuarterHandler) ListPeriods(c *gin.Context) {
	periods, err := h.quarters.ListQuarterPeriods(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, periods)
}

// Generate godoc
// @Summary Snapshot balances into requirements for every student with a balance
// @Tags Quarters
// @Produce json
// @Param id path string true "Quarter period ID"
// @Success 200 {object} response.Envelope
// @Router /quarter-periods/{id}/requirements [post]
func (h *QuarterHandler) Generate(c *gin.Context) {
	result, err := h.quarters.GenerateRequirements(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Overdue godoc
// @Summary List unmet requirements past their payment deadline
// @Tags Quarters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /quarter-requirements/overdue [get]
func (h *QuarterHandler) Overdue(c *gin.Context) {
	reqs, err := h.quarters.GetOverdueRequirements(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reqs, nil, map[string]interface{}{"count": len(reqs)})
}
