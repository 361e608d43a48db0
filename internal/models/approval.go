package models

import "time"

// ApprovalStepType names a checkpoint in the approval chain.
type ApprovalStepType string

const (
	StepDean       ApprovalStepType = "DEAN"
	StepAccounting ApprovalStepType = "ACCOUNTING"
	StepSAO        ApprovalStepType = "SAO"
	StepLibrary    ApprovalStepType = "LIBRARY"
	StepRecords    ApprovalStepType = "RECORDS"
)

// ApprovalStatus is the decision recorded on a step.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ApprovalStep is one decision point for a batch.
type ApprovalStep struct {
	ID         string           `db:"id" json:"id"`
	BatchID    string           `db:"batch_id" json:"batch_id"`
	StepType   ApprovalStepType `db:"step_type" json:"step_type"`
	Status     ApprovalStatus   `db:"status" json:"status"`
	ApproverID *string          `db:"approver_id" json:"approver_id,omitempty"`
	ActionAt   *time.Time       `db:"action_at" json:"action_at,omitempty"`
	Comments   *string          `db:"comments" json:"comments,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// postPaymentChain is the fixed order after the payment gate. Dean precedes the gate.
var postPaymentChain = []ApprovalStepType{StepAccounting, StepSAO, StepLibrary, StepRecords}

// NextStep returns the step that follows s. Dean and Records have no direct successor:
// Dean hands over to the payment gate and Records ends the chain.
func NextStep(s ApprovalStepType) (ApprovalStepType, bool) {
	for i, step := range postPaymentChain {
		if step == s && i+1 < len(postPaymentChain) {
			return postPaymentChain[i+1], true
		}
	}
	return "", false
}

// StepForRole maps an approver role onto the step it owns.
func StepForRole(role UserRole) (ApprovalStepType, bool) {
	switch role {
	case RoleDean:
		return StepDean, true
	case RoleAccounting:
		return StepAccounting, true
	case RoleSAO:
		return StepSAO, true
	case RoleLibrary:
		return StepLibrary, true
	case RoleRecords:
		return StepRecords, true
	default:
		return "", false
	}
}

// RoleForStep is the inverse of StepForRole.
func RoleForStep(s ApprovalStepType) (UserRole, bool) {
	switch s {
	case StepDean:
		return RoleDean, true
	case StepAccounting:
		return RoleAccounting, true
	case StepSAO:
		return RoleSAO, true
	case StepLibrary:
		return RoleLibrary, true
	case StepRecords:
		return RoleRecords, true
	default:
		return "", false
	}
}

// StatusForStep is the batch status while s is pending.
func StatusForStep(s ApprovalStepType) (EnrollmentStatus, bool) {
	switch s {
	case StepDean:
		return StatusDeanReview, true
	case StepAccounting:
		return StatusAccountingReview, true
	case StepSAO:
		return StatusSAOReview, true
	case StepLibrary:
		return StatusLibraryReview, true
	case StepRecords:
		return StatusRecordsReview, true
	default:
		return "", false
	}
}

// ApprovalDecision is the payload for resolving a pending step.
type ApprovalDecision struct {
	BatchID    string           `json:"-" validate:"required"`
	StepType   ApprovalStepType `json:"-" validate:"required"`
	ApproverID string           `json:"-" validate:"required"`
	Approved   *bool            `json:"approved" validate:"required"`
	Comments   *string          `json:"comments,omitempty" validate:"omitempty,max=1000"`
}

// PendingBatch is a queue entry for an approver role.
type PendingBatch struct {
	EnrollmentBatch
	StepID        string    `db:"step_id" json:"step_id"`
	StepCreatedAt time.Time `db:"step_created_at" json:"step_created_at"`
}
