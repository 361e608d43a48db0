package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromissoryNoteStatus is resolved once.
type PromissoryNoteStatus string

const (
	NotePending  PromissoryNoteStatus = "PENDING"
	NoteApproved PromissoryNoteStatus = "APPROVED"
	NoteRejected PromissoryNoteStatus = "REJECTED"
)

// PromissoryNote defers the payment gate of one batch.
type PromissoryNote struct {
	ID                string               `db:"id" json:"id"`
	BatchID           string               `db:"batch_id" json:"batch_id"`
	StudentID         string               `db:"student_id" json:"student_id"`
	AmountCovered     decimal.Decimal      `db:"amount_covered" json:"amount_covered"`
	Reason            string               `db:"reason" json:"reason"`
	RepaymentDeadline time.Time            `db:"repayment_deadline" json:"repayment_deadline"`
	Status            PromissoryNoteStatus `db:"status" json:"status"`
	SubmittedAt       time.Time            `db:"submitted_at" json:"submitted_at"`
	ReviewerID        *string              `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewedAt        *time.Time           `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewerComments  *string              `db:"reviewer_comments" json:"reviewer_comments,omitempty"`
	RequirementID     *string              `db:"requirement_id" json:"requirement_id,omitempty"`
}

// SubmitNoteRequest is the student payload for a promissory note.
type SubmitNoteRequest struct {
	BatchID           string          `json:"-" validate:"required"`
	StudentID         string          `json:"-" validate:"required"`
	AmountCovered     decimal.Decimal `json:"amount_covered"`
	Reason            string          `json:"reason" validate:"required,max=1000"`
	RepaymentDeadline time.Time       `json:"repayment_deadline" validate:"required"`
}

// ReviewNoteRequest is the Campus Director decision payload.
type ReviewNoteRequest struct {
	NoteID     string  `json:"-" validate:"required"`
	ReviewerID string  `json:"-" validate:"required"`
	Comments   *string `json:"comments,omitempty" validate:"omitempty,max=1000"`
}
