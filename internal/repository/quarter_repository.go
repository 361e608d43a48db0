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

const (
	periodColumns      = `id, quarter, semester, academic_year, start_date, end_date, payment_deadline, active, created_by, created_at`
	requirementColumns = `id, student_id, quarter_period_id, balance_at_quarter_start, required_amount, actual_amount,
	meets_requirement, has_promissory_note, promissory_note_id, status, created_at, paid_at`
)

// QuarterRepository persists quarter periods and the per-student requirements under them.
type QuarterRepository struct {
	db *sqlx.DB
}

// NewQuarterRepository constructs the repository.
func NewQuarterRepository(db *sqlx.DB) *QuarterRepository {
	return &QuarterRepository{db: db}
}

// CreatePeriod inserts a quarter period. Reusing a (quarter, semester, year) slot yields ErrDuplicate.
func (r *QuarterRepository) CreatePeriod(ctx context.Context, period *models.QuarterPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO quarter_periods (` + periodColumns + `)
	VALUES (:id, :quarter, :semester, :academic_year, :start_date, :end_date, :payment_deadline, :active, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create quarter period: %w", err)
	}
	return nil
}

// ListPeriods returns all periods, latest academic year first.
func (r *QuarterRepository) ListPeriods(ctx context.Context) ([]models.QuarterPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM quarter_periods ORDER BY academic_year DESC, semester, quarter`
	var periods []models.QuarterPeriod
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list quarter periods: %w", err)
	}
	return periods, nil
}

// FindPeriod returns a period or sql.ErrNoRows.
func (r *QuarterRepository) FindPeriod(ctx context.Context, id string) (*models.QuarterPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM quarter_periods WHERE id = $1`
	var period models.QuarterPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindActiveAt returns the active period whose window contains at, or sql.ErrNoRows.
func (r *QuarterRepository) FindActiveAt(ctx context.Context, at time.Time) (*models.QuarterPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM quarter_periods
	WHERE active = TRUE AND start_date <= $1 AND end_date >= $1
	ORDER BY start_date DESC LIMIT 1`
	var period models.QuarterPeriod
	if err := r.db.GetContext(ctx, &period, query, at); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindRequirement returns the (student, quarter) requirement or sql.ErrNoRows.
func (r *QuarterRepository) FindRequirement(ctx context.Context, exec sqlx.ExtContext, studentID, periodID string) (*models.QuarterPaymentRequirement, error) {
	const query = `SELECT ` + requirementColumns + ` FROM quarter_payment_requirements
	WHERE student_id = $1 AND quarter_period_id = $2`
	var req models.QuarterPaymentRequirement
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &req, query, studentID, periodID); err != nil {
		return nil, err
	}
	return &req, nil
}

// LockRequirement reads a requirement by id with FOR UPDATE.
func (r *QuarterRepository) LockRequirement(ctx context.Context, exec sqlx.ExtContext, id string) (*models.QuarterPaymentRequirement, error) {
	const query = `SELECT ` + requirementColumns + ` FROM quarter_payment_requirements WHERE id = $1 FOR UPDATE`
	var req models.QuarterPaymentRequirement
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// InsertRequirementIfAbsent stores req unless the student already has one for the quarter.
// It reports whether a row was written. Existing snapshots are never overwritten.
func (r *QuarterRepository) InsertRequirementIfAbsent(ctx context.Context, exec sqlx.ExtContext, req *models.QuarterPaymentRequirement) (bool, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequirementPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO quarter_payment_requirements (` + requirementColumns + `)
	VALUES (:id, :student_id, :quarter_period_id, :balance_at_quarter_start, :required_amount, :actual_amount,
	:meets_requirement, :has_promissory_note, :promissory_note_id, :status, :created_at, :paid_at)
	ON CONFLICT (student_id, quarter_period_id) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, req)
	if err != nil {
		return false, fmt.Errorf("insert quarter requirement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert quarter requirement rows: %w", err)
	}
	return affected > 0, nil
}

// UpdateRequirement writes the mutable progress columns. The snapshot columns are left alone.
func (r *QuarterRepository) UpdateRequirement(ctx context.Context, exec sqlx.ExtContext, req *models.QuarterPaymentRequirement) error {
	const query = `UPDATE quarter_payment_requirements
	SET actual_amount = :actual_amount, meets_requirement = :meets_requirement, has_promissory_note = :has_promissory_note,
	    promissory_note_id = :promissory_note_id, status = :status, paid_at = :paid_at
	WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, req)
	if err != nil {
		return fmt.Errorf("update quarter requirement: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByStudent returns a student's requirements, newest first.
func (r *QuarterRepository) ListByStudent(ctx context.Context, studentID string) ([]models.QuarterPaymentRequirement, error) {
	const query = `SELECT ` + requirementColumns + ` FROM quarter_payment_requirements
	WHERE student_id = $1 ORDER BY created_at DESC`
	var reqs []models.QuarterPaymentRequirement
	if err := r.db.SelectContext(ctx, &reqs, query, studentID); err != nil {
		return nil, fmt.Errorf("list student requirements: %w", err)
	}
	return reqs, nil
}

// ListOverdue returns unmet requirements whose payment deadline is before at.
func (r *QuarterRepository) ListOverdue(ctx context.Context, at time.Time) ([]models.OverdueRequirement, error) {
	const query = `SELECT r.id, r.student_id, r.quarter_period_id, r.balance_at_quarter_start, r.required_amount, r.actual_amount,
	       r.meets_requirement, r.has_promissory_note, r.promissory_note_id, r.status, r.created_at, r.paid_at,
	       q.quarter, q.semester, q.academic_year, q.payment_deadline
	FROM quarter_payment_requirements r
	JOIN quarter_periods q ON q.id = r.quarter_period_id
	WHERE r.meets_requirement = FALSE AND q.payment_deadline < $1
	ORDER BY q.payment_deadline ASC, r.student_id ASC`
	var reqs []models.OverdueRequirement
	if err := r.db.SelectContext(ctx, &reqs, query, at); err != nil {
		return nil, fmt.Errorf("list overdue requirements: %w", err)
	}
	return reqs, nil
}

// MarkOverdue flips pending requirements past their deadline to OVERDUE and returns the number changed.
// Requirements backed by a promissory note keep their status.
func (r *QuarterRepository) MarkOverdue(ctx context.Context, at time.Time) (int64, error) {
	const query = `UPDATE quarter_payment_requirements r
	SET status = $1
	FROM quarter_periods q
	WHERE q.id = r.quarter_period_id AND r.meets_requirement = FALSE AND r.status = $2 AND q.payment_deadline < $3`
	res, err := r.db.ExecContext(ctx, query, models.RequirementOverdue, models.RequirementPending, at)
	if err != nil {
		return 0, fmt.Errorf("mark overdue requirements: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue rows: %w", err)
	}
	return affected, nil
}
