package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// QuarterPeriod is an admin-defined payment checkpoint.
type QuarterPeriod struct {
	ID              string    `db:"id" json:"id"`
	Quarter         int       `db:"quarter" json:"quarter"`
	Semester        string    `db:"semester" json:"semester"`
	AcademicYear    string    `db:"academic_year" json:"academic_year"`
	StartDate       time.Time `db:"start_date" json:"start_date"`
	EndDate         time.Time `db:"end_date" json:"end_date"`
	PaymentDeadline time.Time `db:"payment_deadline" json:"payment_deadline"`
	Active          bool      `db:"active" json:"active"`
	CreatedBy       *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Label renders e.g. "Q2 1st Semester 2024-2025".
func (q QuarterPeriod) Label() string {
	return "Q" + strconv.Itoa(q.Quarter) + " " + q.Semester + " " + q.AcademicYear
}

// Term returns the term the period belongs to.
func (q QuarterPeriod) Term() Term {
	return Term{Semester: q.Semester, AcademicYear: q.AcademicYear}
}

// CreateQuarterPeriodRequest is the admin payload for a new period.
type CreateQuarterPeriodRequest struct {
	Quarter         int       `json:"quarter" validate:"required,min=1,max=12"`
	Semester        string    `json:"semester" validate:"required,max=50"`
	AcademicYear    string    `json:"academic_year" validate:"required,max=20"`
	StartDate       time.Time `json:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	PaymentDeadline time.Time `json:"payment_deadline" validate:"required"`
	Active          bool      `json:"active"`
	CreatedBy       *string   `json:"-"`
}

// Requirement statuses.
const (
	RequirementPending                 = "PENDING"
	RequirementPaid                    = "PAID"
	RequirementPromissoryNoteSubmitted = "PROMISSORY_NOTE_SUBMITTED"
	RequirementPromissoryApproved      = "PROMISSORY_APPROVED"
	RequirementOverdue                 = "OVERDUE"
)

// QuarterPaymentRequirement is one student's obligation for one quarter.
// The balance snapshot and required amount never change after creation.
type QuarterPaymentRequirement struct {
	ID                    string          `db:"id" json:"id"`
	StudentID             string          `db:"student_id" json:"student_id"`
	QuarterPeriodID       string          `db:"quarter_period_id" json:"quarter_period_id"`
	BalanceAtQuarterStart decimal.Decimal `db:"balance_at_quarter_start" json:"balance_at_quarter_start"`
	RequiredAmount        decimal.Decimal `db:"required_amount" json:"required_amount"`
	ActualAmount          decimal.Decimal `db:"actual_amount" json:"actual_amount"`
	MeetsRequirement      bool            `db:"meets_requirement" json:"meets_requirement"`
	HasPromissoryNote     bool            `db:"has_promissory_note" json:"has_promissory_note"`
	PromissoryNoteID      *string         `db:"promissory_note_id" json:"promissory_note_id,omitempty"`
	Status                string          `db:"status" json:"status"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	PaidAt                *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
}

// OverdueRequirement joins a requirement with its period deadline.
type OverdueRequirement struct {
	QuarterPaymentRequirement
	Quarter         int       `db:"quarter" json:"quarter"`
	Semester        string    `db:"semester" json:"semester"`
	AcademicYear    string    `db:"academic_year" json:"academic_year"`
	PaymentDeadline time.Time `db:"payment_deadline" json:"payment_deadline"`
}

// QuarterGate is the remediation payload for an unmet quarter requirement.
type QuarterGate struct {
	StudentID       string           `json:"student_id"`
	Meets           bool             `json:"meets_requirement"`
	QuarterPeriodID string           `json:"quarter_period_id,omitempty"`
	Quarter         string           `json:"quarter,omitempty"`
	PaymentDeadline *time.Time       `json:"payment_deadline,omitempty"`
	RequiredAmount  *decimal.Decimal `json:"required_amount,omitempty"`
	ActualAmount    *decimal.Decimal `json:"actual_amount,omitempty"`
	Balance         *decimal.Decimal `json:"balance,omitempty"`
}

// GenerationResult summarises a bulk requirement generation pass.
type GenerationResult struct {
	QuarterPeriodID string `json:"quarter_period_id"`
	Candidates      int    `json:"candidates"`
	Created         int    `json:"created"`
	Skipped         int    `json:"skipped"`
}
