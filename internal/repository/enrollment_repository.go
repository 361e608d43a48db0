package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

const batchColumns = `id, student_id, semester, academic_year, status, total_credits, comments, submitted_at, completed_at, updated_at`

// closedStatuses free a student to file again.
var closedStatuses = pq.Array([]string{string(models.StatusRejected), string(models.StatusFailed)})

// EnrollmentRepository persists enrollment batches and their per-course rows.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// CreateBatch inserts the batch and one enrollment per course.
func (r *EnrollmentRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, batch *models.EnrollmentBatch, enrollments []models.Enrollment) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if batch.SubmittedAt.IsZero() {
		batch.SubmittedAt = now
	}
	batch.UpdatedAt = now

	target := pick(r.db, exec)
	const batchQuery = `INSERT INTO enrollment_batches (` + batchColumns + `)
	VALUES (:id, :student_id, :semester, :academic_year, :status, :total_credits, :comments, :submitted_at, :completed_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, batchQuery, batch); err != nil {
		return fmt.Errorf("create enrollment batch: %w", mapInsertErr(err))
	}

	for i := range enrollments {
		e := &enrollments[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.BatchID = batch.ID
		e.StudentID = batch.StudentID
		e.Status = batch.Status
		e.SubmittedAt = batch.SubmittedAt
	}
	if len(enrollments) == 0 {
		return nil
	}

	const enrollmentQuery = `INSERT INTO enrollments (id, batch_id, student_id, course_id, status, submitted_at)
	VALUES (:id, :batch_id, :student_id, :course_id, :status, :submitted_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, enrollmentQuery, enrollments); err != nil {
		return fmt.Errorf("create enrollments: %w", mapInsertErr(err))
	}
	return nil
}

// FindBatch returns a batch or sql.ErrNoRows.
func (r *EnrollmentRepository) FindBatch(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM enrollment_batches WHERE id = $1`
	var batch models.EnrollmentBatch
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// LockBatch reads a batch row with FOR UPDATE, serialising writers on the same batch.
func (r *EnrollmentRepository) LockBatch(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM enrollment_batches WHERE id = $1 FOR UPDATE`
	var batch models.EnrollmentBatch
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// UpdateStatus moves a batch and every child enrollment to status together.
// completedAt is written only when non-nil.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus, completedAt *time.Time) error {
	target := pick(r.db, exec)
	now := time.Now().UTC()

	const batchQuery = `UPDATE enrollment_batches
	SET status = $2, completed_at = COALESCE($3, completed_at), updated_at = $4
	WHERE id = $1`
	res, err := target.ExecContext(ctx, batchQuery, id, status, completedAt, now)
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update batch status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	const childQuery = `UPDATE enrollments SET status = $2, completed_at = COALESCE($3, completed_at) WHERE batch_id = $1`
	if _, err := target.ExecContext(ctx, childQuery, id, status, completedAt); err != nil {
		return fmt.Errorf("update enrollment statuses: %w", err)
	}
	return nil
}

// ListEnrollments returns the batch's per-course rows ordered by course code.
func (r *EnrollmentRepository) ListEnrollments(ctx context.Context, exec sqlx.ExtContext, batchID string) ([]models.Enrollment, error) {
	const query = `SELECT e.id, e.batch_id, e.student_id, e.course_id, c.code AS course_code, e.status, e.grade, e.submitted_at, e.completed_at
	FROM enrollments e
	JOIN courses c ON c.id = e.course_id
	WHERE e.batch_id = $1
	ORDER BY c.code`
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &enrollments, query, batchID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// HasOpenBatch reports whether the student holds a batch for the term that is neither rejected nor failed.
func (r *EnrollmentRepository) HasOpenBatch(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM enrollment_batches
		WHERE student_id = $1 AND semester = $2 AND academic_year = $3 AND status <> ALL($4)
	)`
	var exists bool
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &exists, query, studentID, term.Semester, term.AcademicYear, closedStatuses); err != nil {
		return false, fmt.Errorf("check open batch: %w", err)
	}
	return exists, nil
}

// CompletedCourseIDs lists the courses the student has passed.
func (r *EnrollmentRepository) CompletedCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT DISTINCT course_id FROM enrollments WHERE student_id = $1 AND status = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID, models.StatusCompleted); err != nil {
		return nil, fmt.Errorf("list completed courses: %w", err)
	}
	return ids, nil
}

// OpenCourseIDs returns which of courseIDs the student already holds a live enrollment for.
func (r *EnrollmentRepository) OpenCourseIDs(ctx context.Context, studentID string, courseIDs []string) ([]string, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT DISTINCT course_id FROM enrollments
	WHERE student_id = $1 AND course_id = ANY($2) AND status <> ALL($3)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID, pq.Array(courseIDs), closedStatuses); err != nil {
		return nil, fmt.Errorf("list open enrollments: %w", err)
	}
	return ids, nil
}
