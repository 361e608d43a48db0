package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment-api/pkg/errors"
	"github.com/noah-isme/sis-enrollment-api/pkg/response"
)

type approvalService interface {
	PendingBatchesForRole(ctx context.Context, role models.UserRole) ([]models.PendingBatch, error)
	ProcessApproval(ctx context.Context, decision models.ApprovalDecision) (*models.EnrollmentBatch, error)
}

// ApprovalHandler serves the departmental approval queue.
type ApprovalHandler struct {
	approvals approvalService
}

// NewApprovalHandler constructs ApprovalHandler.
func NewApprovalHandler(approvals approvalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

// Pending godoc
// @Summary List batches waiting on the caller's department
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /approvals/pending [get]
func (h *ApprovalHandler) Pending(c *gin.Context) {
	claims := currentUser(c)
	if claims == nil {
		return
	}
	batches, err := h.approvals.PendingBatchesForRole(c.Request.Context(), claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, batches)
}

// Decide godoc
// @Summary Approve or reject the caller's step of a batch
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body models.ApprovalDecision true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollment-batches/{id}/approvals [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	claims := currentUser(c)
	if claims == nil {
		return
	}
	step, ok := models.StepForRole(claims.Role)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role has no approval step"))
		return
	}
	var decision models.ApprovalDecision
	if !bindJSON(c, &decision) {
		return
	}
	decision.BatchID = c.Param("id")
	decision.StepType = step
	decision.ApproverID = claims.UserID

	batch, err := h.approvals.ProcessApproval(c.Request.Context(), decision)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, batch)
}
