package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

const stepColumns = `id, batch_id, step_type, status, approver_id, action_at, comments, created_at`

// ApprovalStepRepository persists approval checkpoints. One step exists per (batch, step type).
type ApprovalStepRepository struct {
	db *sqlx.DB
}

// NewApprovalStepRepository constructs the repository.
func NewApprovalStepRepository(db *sqlx.DB) *ApprovalStepRepository {
	return &ApprovalStepRepository{db: db}
}

// Create inserts a pending step. A second step of the same type for the batch yields ErrDuplicate.
func (r *ApprovalStepRepository) Create(ctx context.Context, exec sqlx.ExtContext, step *models.ApprovalStep) error {
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	if step.Status == "" {
		step.Status = models.ApprovalPending
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO approval_steps (` + stepColumns + `)
	VALUES (:id, :batch_id, :step_type, :status, :approver_id, :action_at, :comments, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, step); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create approval step: %w", err)
	}
	return nil
}

// FindPending returns the pending step of the given type or sql.ErrNoRows.
func (r *ApprovalStepRepository) FindPending(ctx context.Context, exec sqlx.ExtContext, batchID string, stepType models.ApprovalStepType) (*models.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps WHERE batch_id = $1 AND step_type = $2 AND status = $3`
	var step models.ApprovalStep
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &step, query, batchID, stepType, models.ApprovalPending); err != nil {
		return nil, err
	}
	return &step, nil
}

// CurrentPending returns the batch's single pending step or sql.ErrNoRows.
func (r *ApprovalStepRepository) CurrentPending(ctx context.Context, exec sqlx.ExtContext, batchID string) (*models.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps WHERE batch_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`
	var step models.ApprovalStep
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &step, query, batchID, models.ApprovalPending); err != nil {
		return nil, err
	}
	return &step, nil
}

// ResolveParams groups the columns written when a step is decided.
type ResolveParams struct {
	ID         string                `db:"id"`
	Status     models.ApprovalStatus `db:"status"`
	ApproverID string                `db:"approver_id"`
	Comments   *string               `db:"comments"`
	ActionAt   time.Time             `db:"action_at"`
}

// Resolve decides a pending step. It returns sql.ErrNoRows when the step was
// already resolved, so concurrent deciders see exactly one winner.
func (r *ApprovalStepRepository) Resolve(ctx context.Context, exec sqlx.ExtContext, params ResolveParams) error {
	const query = `UPDATE approval_steps
	SET status = :status, approver_id = :approver_id, comments = :comments, action_at = :action_at
	WHERE id = :id AND status = 'PENDING'`
	res, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, params)
	if err != nil {
		return fmt.Errorf("resolve approval step: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve approval step rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByBatch returns the batch's steps oldest first.
func (r *ApprovalStepRepository) ListByBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) ([]models.ApprovalStep, error) {
	query := `SELECT ` + stepColumns + ` FROM approval_steps WHERE batch_id = $1 ORDER BY created_at ASC`
	var steps []models.ApprovalStep
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &steps, query, batchID); err != nil {
		return nil, fmt.Errorf("list approval steps: %w", err)
	}
	return steps, nil
}

// ListPendingBatches returns batches waiting on stepType, oldest submission first.
func (r *ApprovalStepRepository) ListPendingBatches(ctx context.Context, stepType models.ApprovalStepType) ([]models.PendingBatch, error) {
	const query = `SELECT b.id, b.student_id, b.semester, b.academic_year, b.status, b.total_credits, b.comments,
	       b.submitted_at, b.completed_at, b.updated_at, s.id AS step_id, s.created_at AS step_created_at
	FROM approval_steps s
	JOIN enrollment_batches b ON b.id = s.batch_id
	WHERE s.step_type = $1 AND s.status = $2
	ORDER BY b.submitted_at ASC, b.id ASC`
	var batches []models.PendingBatch
	if err := r.db.SelectContext(ctx, &batches, query, stepType, models.ApprovalPending); err != nil {
		return nil, fmt.Errorf("list pending batches: %w", err)
	}
	return batches, nil
}
