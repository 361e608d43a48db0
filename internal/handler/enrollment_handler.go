package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	"github.com/noah-isme/sis-enrollment-api/pkg/response"
)

type workflowService interface {
	CreateBatch(ctx context.Context, req models.CreateBatchRequest) (*models.BatchDetail, error)
	GetBatch(ctx context.Context, batchID string) (*models.BatchDetail, error)
	BatchHistory(ctx context.Context, batchID string) ([]models.ApprovalStep, error)
	PayForBatch(ctx context.Context, batchID string, req models.RecordPaymentRequest) (*models.BatchPaymentResult, error)
}

type noteSubmitter interface {
	Submit(ctx context.Context, req models.SubmitNoteRequest) (*models.PromissoryNote, error)
}

// EnrollmentHandler exposes enrollment batch endpoints.
type EnrollmentHandler struct {
	workflow workflowService
	notes    noteSubmitter
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(workflow workflowService, notes noteSubmitter) *EnrollmentHandler {
	return &EnrollmentHandler{workflow: workflow, notes: notes}
}

// Create godoc
// @Summary Submit a bulk course selection
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param payload body models.CreateBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Router /enrollment-batches [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	claims := currentUser(c)
	if claims == nil {
		return
	}
	var req models.CreateBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	req.StudentID = claims.UserID

	batch, err := h.workflow.CreateBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// Get godoc
// @Summary Get a batch with its enrollments and approval steps
// @Tags Enrollment
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-batches/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	batch, ok := h.visibleBatch(c)
	if !ok {
		return
	}
	response.OK(c, batch)
}

// History godoc
// @Summary List the approval steps of a batch, oldest first
// @Tags Enrollment
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /enrollment-batches/{id}/history [get]
func (h *EnrollmentHandler) History(c *gin.Context) {
	if _, ok := h.visibleBatch(c); !ok {
		return
	}
	steps, err := h.workflow.BatchHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, steps)
}

// Pay godoc
// @Summary Record a payment for a batch awaiting payment
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body models.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollment-batches/{id}/payments [post]
func (h *EnrollmentHandler) Pay(c *gin.Context) {
	claims := currentUser(c)
	if claims == nil {
		return
	}
	if _, ok := h.visibleBatch(c); !ok {
		return
	}
	var req models.RecordPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	if claims.Role != models.RoleStudent {
		processedBy := claims.UserID
		req.ProcessedBy = &processedBy
	}

	result, err := h.workflow.PayForBatch(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// SubmitNote godoc
// @Summary Submit a promissory note instead of paying
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body models.SubmitNoteRequest true "Promissory note payload"
// @Success 201 {object} response.Envelope
// @Router /enrollment-batches/{id}/promissory-notes [post]
func (h *EnrollmentHandler) SubmitNote(c *gin.Context) {
	claims := currentUser(c)
	if claims == nil {
		return
	}
	var req models.SubmitNoteRequest
	if !bindJSON(c, &req) {
		return
	}
	req.BatchID = c.Param("id")
	req.StudentID = claims.UserID

	note, err := h.notes.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, note, nil)
}

func (h *EnrollmentHandler) visibleBatch(c *gin.Context) (*models.BatchDetail, bool) {
	claims := currentUser(c)
	if claims == nil {
		return nil, false
	}
	batch, err := h.workflow.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if err := ownsOrStaff(claims, batch.StudentID); err != nil {
		response.Error(c, err)
		return nil, false
	}
	return batch, true
}
