package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	"github.com/noah-isme/sis-enrollment-api/pkg/export"
	"github.com/noah-isme/sis-enrollment-api/pkg/logger"
	"github.com/noah-isme/sis-enrollment-api/pkg/response"
)

type ledgerService interface {
	RecordPayment(ctx context.Context, req models.RecordPaymentRequest) (*models.Payment, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	GetBalance(ctx context.Context, studentID string, term models.Term) (*models.BalanceSummary, error)
}

type receiptRenderer interface {
	Render(r export.Receipt) ([]byte, error)
}

// PaymentHandler exposes cashier payment endpoints.
type PaymentHandler struct {
	ledger   ledgerService
	receipts receiptRenderer
	logger   *zap.Logger
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(ledger ledgerService, receipts receiptRenderer, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{ledger: ledger, receipts: receipts, logger: logger}
}

// Record godoc
// @Summary Record a payment against a student's term account
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body models.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	claims := currentUser(c)
	if claims == nil {
		return
	}
	var req models.RecordPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	processedBy := claims.UserID
	req.ProcessedBy = &processedBy

	payment, err := h.ledger.RecordPayment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Receipt godoc
// @Summary Download the PDF receipt of a payment
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Success 200 {file} file
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	claims := currentUser(c)
	if claims == nil {
		return
	}
	ctx := c.Request.Context()
	payment, err := h.ledger.GetPayment(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := ownsOrStaff(claims, payment.StudentID); err != nil {
		response.Error(c, err)
		return
	}

	receipt := export.Receipt{
		ReferenceNumber: payment.ReferenceNumber,
		StudentID:       payment.StudentID,
		Semester:        payment.Semester,
		AcademicYear:    payment.AcademicYear,
		Method:          string(payment.Method),
		Amount:          payment.Amount.StringFixed(2),
		PaidAt:          payment.PaidAt,
	}
	if payment.ProcessedBy != nil {
		receipt.ProcessedBy = *payment.ProcessedBy
	}
	if payment.Remarks != nil {
		receipt.Remarks = *payment.Remarks
	}
	term := models.Term{Semester: payment.Semester, AcademicYear: payment.AcademicYear}
	if balance, err := h.ledger.GetBalance(ctx, payment.StudentID, term); err == nil {
		receipt.RemainingDue = balance.Balance.StringFixed(2)
	} else {
		logger.FromContext(c, h.logger).Warn("receipt balance lookup failed", zap.String("payment_id", payment.ID), zap.Error(err))
	}

	body, err := h.receipts.Render(receipt)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, receipt.Filename(), "application/pdf", body)
}
