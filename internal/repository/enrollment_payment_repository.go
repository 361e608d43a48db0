package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

const enrollmentPaymentColumns = `id, batch_id, payment_id, promissory_note_id, amount_paid, student_balance,
	payment_percentage, meets_requirement, using_promissory_note, created_at, updated_at`

// EnrollmentPaymentRepository persists the single gate record of each batch.
type EnrollmentPaymentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentPaymentRepository constructs the repository.
func NewEnrollmentPaymentRepository(db *sqlx.DB) *EnrollmentPaymentRepository {
	return &EnrollmentPaymentRepository{db: db}
}

// FindByBatch returns the batch's gate record or sql.ErrNoRows.
func (r *EnrollmentPaymentRepository) FindByBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) (*models.EnrollmentPayment, error) {
	query := `SELECT ` + enrollmentPaymentColumns + ` FROM enrollment_payments WHERE batch_id = $1`
	var ep models.EnrollmentPayment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &ep, query, batchID); err != nil {
		return nil, err
	}
	return &ep, nil
}

// Create inserts the gate record. A second record for the batch yields ErrDuplicate.
func (r *EnrollmentPaymentRepository) Create(ctx context.Context, exec sqlx.ExtContext, ep *models.EnrollmentPayment) error {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = now
	}
	ep.UpdatedAt = now
	query := `INSERT INTO enrollment_payments (` + enrollmentPaymentColumns + `)
	VALUES (:id, :batch_id, :payment_id, :promissory_note_id, :amount_paid, :student_balance,
	:payment_percentage, :meets_requirement, :using_promissory_note, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, ep); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment payment: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns of the gate record.
func (r *EnrollmentPaymentRepository) Update(ctx context.Context, exec sqlx.ExtContext, ep *models.EnrollmentPayment) error {
	ep.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollment_payments
	SET payment_id = :payment_id, promissory_note_id = :promissory_note_id, amount_paid = :amount_paid,
	    student_balance = :student_balance, payment_percentage = :payment_percentage,
	    meets_requirement = :meets_requirement, using_promissory_note = :using_promissory_note, updated_at = :updated_at
	WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, ep); err != nil {
		return fmt.Errorf("update enrollment payment: %w", err)
	}
	return nil
}

// AddApplication records that paymentID counted toward batchID's gate. A payment counts
// once across all batches; a repeat yields ErrDuplicate.
func (r *EnrollmentPaymentRepository) AddApplication(ctx context.Context, exec sqlx.ExtContext, batchID, paymentID string) error {
	const query = `INSERT INTO enrollment_payment_applications (id, batch_id, payment_id, applied_at)
	VALUES ($1, $2, $3, $4)`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, uuid.NewString(), batchID, paymentID, time.Now().UTC()); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("add enrollment payment application: %w", err)
	}
	return nil
}
