package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment-api/pkg/errors"
	"github.com/noah-isme/sis-enrollment-api/pkg/response"
)

type balanceReader interface {
	GetBalance(ctx context.Context, studentID string, term models.Term) (*models.BalanceSummary, error)
}

type quarterStanding interface {
	Gate(ctx context.Context, studentID string) (*models.QuarterGate, error)
	GetStudentRequirements(ctx context.Context, studentID string) ([]models.QuarterPaymentRequirement, error)
}

// StudentHandler exposes a student's financial standing.
type StudentHandler struct {
	balances balanceReader
	quarter  quarterStanding
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(balances balanceReader, quarter quarterStanding) *StudentHandler {
	return &StudentHandler{balances: balances, quarter: quarter}
}

// Balance godoc
// @Summary Get the recomputed balance of a student for a term
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param semester query string true "Semester"
// @Param academic_year query string true "Academic year"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/balance [get]
func (h *StudentHandler) Balance(c *gin.Context) {
	term := models.Term{
		Semester:     strings.TrimSpace(c.Query("semester")),
		AcademicYear: strings.TrimSpace(c.Query("academic_year")),
	}
	if term.Semester == "" || term.AcademicYear == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester and academic_year are required"))
		return
	}
	summary, err := h.balances.GetBalance(c.Request.Context(), c.Param("id"), term)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// QuarterGate godoc
// @Summary Report whether the student meets the current quarter requirement
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/quarter-gate [get]
func (h *StudentHandler) QuarterGate(c *gin.Context) {
	gate, err := h.quarter.Gate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gate)
}

// QuarterRequirements godoc
// @Summary List a student's quarter payment requirements, newest first
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/quarter-requirements [get]
func (h *StudentHandler) QuarterRequirements(c *gin.Context) {
	reqs, err := h.quarter.GetStudentRequirements(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reqs)
}
