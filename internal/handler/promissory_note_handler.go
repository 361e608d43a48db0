package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	"github.com/noah-isme/sis-enrollment-api/pkg/response"
)

type noteReviewer interface {
	ListPending(ctx context.Context) ([]models.PromissoryNote, error)
	Approve(ctx context.Context, req models.ReviewNoteRequest) (*models.PromissoryNote, error)
	Reject(ctx context.Context, req models.ReviewNoteRequest) (*models.PromissoryNote, error)
}

// PromissoryNoteHandler serves the Campus Director review queue.
type PromissoryNoteHandler struct {
	notes noteReviewer
}

// NewPromissoryNoteHandler constructs PromissoryNoteHandler.
func NewPromissoryNoteHandler(notes noteReviewer) *PromissoryNoteHandler {
	return &PromissoryNoteHandler{notes: notes}
}

// Pending godoc
// @Summary List promissory notes awaiting review, oldest first
// @Tags Promissory Notes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /promissory-notes/pending [get]
func (h *PromissoryNoteHandler) Pending(c *gin.Context) {
	notes, err := h.notes.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, notes)
}

// Approve godoc
// @Summary Approve a promissory note
// @Tags Promissory Notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param payload body models.ReviewNoteRequest false "Review comments"
// @Success 200 {object} response.Envelope
// @Router /promissory-notes/{id}/approve [post]
func (h *PromissoryNoteHandler) Approve(c *gin.Context) {
	h.review(c, h.notes.Approve)
}

// Reject godoc
// @Summary Reject a promissory note. Comments are required.
// @Tags Promissory Notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param payload body models.ReviewNoteRequest true "Review comments"
// @Success 200 {object} response.Envelope
// @Router /promissory-notes/{id}/reject [post]
func (h *PromissoryNoteHandler) Reject(c *gin.Context) {
	h.review(c, h.notes.Reject)
}

func (h *PromissoryNoteHandler) review(c *gin.Context, decide func(context.Context, models.ReviewNoteRequest) (*models.PromissoryNote, error)) {
	claims := currentUser(c)
	if claims == nil {
		return
	}
	var req models.ReviewNoteRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	req.NoteID = c.Param("id")
	req.ReviewerID = claims.UserID

	note, err := decide(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, note)
}
