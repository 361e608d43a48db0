package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StudentAccount is the per-term ledger row. Totals are only written by recomputation.
type StudentAccount struct {
	ID           string          `db:"id" json:"id"`
	StudentID    string          `db:"student_id" json:"student_id"`
	Semester     string          `db:"semester" json:"semester"`
	AcademicYear string          `db:"academic_year" json:"academic_year"`
	TotalBilled  decimal.Decimal `db:"total_billed" json:"total_billed"`
	TotalPaid    decimal.Decimal `db:"total_paid" json:"total_paid"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time      `db:"updated_at" json:"updated_at,omitempty"`
}

// Balance is billed minus paid.
func (a StudentAccount) Balance() decimal.Decimal {
	return a.TotalBilled.Sub(a.TotalPaid)
}

// Fee is a billed ledger entry. Fees are written by the billing office, not this service.
type Fee struct {
	ID           string          `db:"id" json:"id"`
	StudentID    string          `db:"student_id" json:"student_id"`
	FeeType      string          `db:"fee_type" json:"fee_type"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Description  *string         `db:"description" json:"description,omitempty"`
	Semester     string          `db:"semester" json:"semester"`
	AcademicYear string          `db:"academic_year" json:"academic_year"`
	IssuedAt     time.Time       `db:"issued_at" json:"issued_at"`
}

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "CASH"
	PaymentGCash        PaymentMethod = "GCASH"
	PaymentPayMaya      PaymentMethod = "PAYMAYA"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard    PaymentMethod = "DEBIT_CARD"
)

// Payment is a recorded (not processed) payment.
type Payment struct {
	ID              string          `db:"id" json:"id"`
	StudentID       string          `db:"student_id" json:"student_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Method          PaymentMethod   `db:"method" json:"method"`
	ReferenceNumber string          `db:"reference_number" json:"reference_number"`
	Semester        string          `db:"semester" json:"semester"`
	AcademicYear    string          `db:"academic_year" json:"academic_year"`
	ProcessedBy     *string         `db:"processed_by" json:"processed_by,omitempty"`
	Remarks         *string         `db:"remarks" json:"remarks,omitempty"`
	PaidAt          time.Time       `db:"paid_at" json:"paid_at"`
}

// RecordPaymentRequest is the payload for recording a payment.
type RecordPaymentRequest struct {
	StudentID    string          `json:"student_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Method       PaymentMethod   `json:"method" validate:"required,oneof=CASH GCASH PAYMAYA BANK_TRANSFER CREDIT_CARD DEBIT_CARD"`
	Semester     string          `json:"semester" validate:"required,max=50"`
	AcademicYear string          `json:"academic_year" validate:"required,max=20"`
	ProcessedBy  *string         `json:"-"`
	Remarks      *string         `json:"remarks,omitempty" validate:"omitempty,max=500"`
}

// EnrollmentPayment records how a batch passed, or is trying to pass, the payment gate.
type EnrollmentPayment struct {
	ID                  string          `db:"id" json:"id"`
	BatchID             string          `db:"batch_id" json:"batch_id"`
	PaymentID           *string         `db:"payment_id" json:"payment_id,omitempty"`
	PromissoryNoteID    *string         `db:"promissory_note_id" json:"promissory_note_id,omitempty"`
	AmountPaid          decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	StudentBalance      decimal.Decimal `db:"student_balance" json:"student_balance"`
	PaymentPercentage   decimal.Decimal `db:"payment_percentage" json:"payment_percentage"`
	MeetsRequirement    bool            `db:"meets_requirement" json:"meets_requirement"`
	UsingPromissoryNote bool            `db:"using_promissory_note" json:"using_promissory_note"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// BalanceSummary is the read model returned by balance queries.
type BalanceSummary struct {
	StudentID    string          `json:"student_id"`
	Semester     string          `json:"semester"`
	AcademicYear string          `json:"academic_year"`
	TotalBilled  decimal.Decimal `json:"total_billed"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Balance      decimal.Decimal `json:"balance"`
}

// BatchPaymentResult is returned after a payment is applied to a batch gate.
type BatchPaymentResult struct {
	Payment           Payment           `json:"payment"`
	EnrollmentPayment EnrollmentPayment `json:"enrollment_payment"`
	BatchStatus       EnrollmentStatus  `json:"batch_status"`
}
