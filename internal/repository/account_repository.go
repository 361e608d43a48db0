package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

const paymentColumns = `id, student_id, amount, method, reference_number, semester, academic_year, processed_by, remarks, paid_at`

// AccountRepository reads fees and payments and stores the per-term account totals.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetOrCreate returns the student's account for term, inserting a zero row when absent.
// Concurrent first access converges on one row through the unique key.
func (r *AccountRepository) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (*models.StudentAccount, error) {
	target := pick(r.db, exec)
	const insert = `INSERT INTO student_accounts (id, student_id, semester, academic_year, total_billed, total_paid, created_at)
	VALUES ($1, $2, $3, $4, 0, 0, $5)
	ON CONFLICT (student_id, semester, academic_year) DO NOTHING`
	if _, err := target.ExecContext(ctx, insert, uuid.NewString(), studentID, term.Semester, term.AcademicYear, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert student account: %w", err)
	}

	const query = `SELECT id, student_id, semester, academic_year, total_billed, total_paid, created_at, updated_at
	FROM student_accounts WHERE student_id = $1 AND semester = $2 AND academic_year = $3`
	var account models.StudentAccount
	if err := sqlx.GetContext(ctx, target, &account, query, studentID, term.Semester, term.AcademicYear); err != nil {
		return nil, fmt.Errorf("get student account: %w", err)
	}
	return &account, nil
}

// SumFees totals the fees billed to the student for term.
func (r *AccountRepository) SumFees(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM fees WHERE student_id = $1 AND semester = $2 AND academic_year = $3`
	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &total, query, studentID, term.Semester, term.AcademicYear); err != nil {
		return decimal.Zero, fmt.Errorf("sum fees: %w", err)
	}
	return total, nil
}

// SumPayments totals the payments the student made for term.
func (r *AccountRepository) SumPayments(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE student_id = $1 AND semester = $2 AND academic_year = $3`
	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &total, query, studentID, term.Semester, term.AcademicYear); err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return total, nil
}

// SaveTotals overwrites the account totals.
func (r *AccountRepository) SaveTotals(ctx context.Context, exec sqlx.ExtContext, accountID string, billed, paid decimal.Decimal, at time.Time) error {
	const query = `UPDATE student_accounts SET total_billed = $2, total_paid = $3, updated_at = $4 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, accountID, billed, paid, at); err != nil {
		return fmt.Errorf("save account totals: %w", err)
	}
	return nil
}

// TotalBalance is the student's outstanding balance across every term.
func (r *AccountRepository) TotalBalance(ctx context.Context, exec sqlx.ExtContext, studentID string) (decimal.Decimal, error) {
	const query = `SELECT
		(SELECT COALESCE(SUM(amount), 0) FROM fees WHERE student_id = $1) -
		(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE student_id = $1)`
	var balance decimal.Decimal
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &balance, query, studentID); err != nil {
		return decimal.Zero, fmt.Errorf("total balance: %w", err)
	}
	return balance, nil
}

// StudentsWithBalance lists students whose billed fees exceed their payments for term.
func (r *AccountRepository) StudentsWithBalance(ctx context.Context, term models.Term) ([]string, error) {
	const query = `SELECT f.student_id
	FROM (SELECT student_id, SUM(amount) AS billed FROM fees
	      WHERE semester = $1 AND academic_year = $2 GROUP BY student_id) f
	LEFT JOIN (SELECT student_id, SUM(amount) AS paid FROM payments
	      WHERE semester = $1 AND academic_year = $2 GROUP BY student_id) p ON p.student_id = f.student_id
	WHERE f.billed - COALESCE(p.paid, 0) > 0
	ORDER BY f.student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, term.Semester, term.AcademicYear); err != nil {
		return nil, fmt.Errorf("list students with balance: %w", err)
	}
	return ids, nil
}

// CreatePayment inserts a recorded payment.
func (r *AccountRepository) CreatePayment(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	const query = `INSERT INTO payments (` + paymentColumns + `)
	VALUES (:id, :student_id, :amount, :method, :reference_number, :semester, :academic_year, :processed_by, :remarks, :paid_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, payment); err != nil {
		return fmt.Errorf("create payment: %w", mapInsertErr(err))
	}
	return nil
}

// FindPayment returns a payment or sql.ErrNoRows.
func (r *AccountRepository) FindPayment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	var payment models.Payment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}
