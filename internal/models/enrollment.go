package models

import "time"

// EnrollmentStatus is shared by batches and their enrollments.
type EnrollmentStatus string

const (
	StatusSubmitted               EnrollmentStatus = "SUBMITTED"
	StatusDeanReview              EnrollmentStatus = "DEAN_REVIEW"
	StatusAwaitingPayment         EnrollmentStatus = "AWAITING_PAYMENT"
	StatusPromissoryNoteSubmitted EnrollmentStatus = "PROMISSORY_NOTE_SUBMITTED"
	StatusCampusDirectorReview    EnrollmentStatus = "CAMPUS_DIRECTOR_REVIEW"
	StatusAccountingReview        EnrollmentStatus = "ACCOUNTING_REVIEW"
	StatusSAOReview               EnrollmentStatus = "SAO_REVIEW"
	StatusLibraryReview           EnrollmentStatus = "LIBRARY_REVIEW"
	StatusRecordsReview           EnrollmentStatus = "RECORDS_REVIEW"
	StatusEnrolled                EnrollmentStatus = "ENROLLED"
	StatusCompleted               EnrollmentStatus = "COMPLETED"
	StatusFailed                  EnrollmentStatus = "FAILED"
	StatusRejected                EnrollmentStatus = "REJECTED"
)

// Terminal reports whether no workflow transition can leave s.
func (s EnrollmentStatus) Terminal() bool {
	switch s {
	case StatusEnrolled, StatusCompleted, StatusFailed, StatusRejected:
		return true
	}
	return false
}

// Closed reports whether s frees the student to file again for the same course or term.
func (s EnrollmentStatus) Closed() bool {
	return s == StatusRejected || s == StatusFailed
}

// EnrollmentBatch is one student's bulk course request for a term.
type EnrollmentBatch struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Semester     string           `db:"semester" json:"semester"`
	AcademicYear string           `db:"academic_year" json:"academic_year"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	TotalCredits int              `db:"total_credits" json:"total_credits"`
	Comments     *string          `db:"comments" json:"comments,omitempty"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submitted_at"`
	CompletedAt  *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// Term returns the batch term.
func (b EnrollmentBatch) Term() Term {
	return Term{Semester: b.Semester, AcademicYear: b.AcademicYear}
}

// Enrollment is one course within a batch. Its status mirrors the batch.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	BatchID     string           `db:"batch_id" json:"batch_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	CourseID    string           `db:"course_id" json:"course_id"`
	CourseCode  string           `db:"course_code" json:"course_code,omitempty"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	Grade       *string          `db:"grade" json:"grade,omitempty"`
	SubmittedAt time.Time        `db:"submitted_at" json:"submitted_at"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
}

// BatchDetail is a batch with its children.
type BatchDetail struct {
	EnrollmentBatch
	Enrollments []Enrollment      `json:"enrollments"`
	Steps       []ApprovalStep    `json:"approval_steps"`
	CurrentStep *ApprovalStepType `json:"current_step,omitempty"`
}

// CreateBatchRequest is the payload for a bulk course submission.
type CreateBatchRequest struct {
	StudentID    string   `json:"-" validate:"required"`
	CourseIDs    []string `json:"course_ids"`
	Semester     string   `json:"semester" validate:"required,max=50"`
	AcademicYear string   `json:"academic_year" validate:"required,max=20"`
	Comments     *string  `json:"comments,omitempty" validate:"omitempty,max=1000"`
}

// EnrollmentPeriod is the window during which batches for a term may be filed.
type EnrollmentPeriod struct {
	ID           string    `db:"id" json:"id"`
	Semester     string    `db:"semester" json:"semester"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	OpenDate     time.Time `db:"open_date" json:"open_date"`
	CloseDate    time.Time `db:"close_date" json:"close_date"`
	Active       bool      `db:"active" json:"active"`
}

// Contains reports whether t falls inside the window, bounds included.
func (p EnrollmentPeriod) Contains(t time.Time) bool {
	return !t.Before(p.OpenDate) && !t.After(p.CloseDate)
}
