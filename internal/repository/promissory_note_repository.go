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

const noteColumns = `id, batch_id, student_id, amount_covered, reason, repayment_deadline, status, submitted_at,
	reviewer_id, reviewed_at, reviewer_comments, requirement_id`

// PromissoryNoteRepository persists promissory notes. One note exists per batch.
type PromissoryNoteRepository struct {
	db *sqlx.DB
}

// NewPromissoryNoteRepository constructs the repository.
func NewPromissoryNoteRepository(db *sqlx.DB) *PromissoryNoteRepository {
	return &PromissoryNoteRepository{db: db}
}

// Create inserts a pending note. A second note for the batch yields ErrDuplicate.
func (r *PromissoryNoteRepository) Create(ctx context.Context, exec sqlx.ExtContext, note *models.PromissoryNote) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.Status == "" {
		note.Status = models.NotePending
	}
	if note.SubmittedAt.IsZero() {
		note.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO promissory_notes (` + noteColumns + `)
	VALUES (:id, :batch_id, :student_id, :amount_covered, :reason, :repayment_deadline, :status, :submitted_at,
	:reviewer_id, :reviewed_at, :reviewer_comments, :requirement_id)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, note); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create promissory note: %w", err)
	}
	return nil
}

// FindByID returns a note or sql.ErrNoRows.
func (r *PromissoryNoteRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PromissoryNote, error) {
	const query = `SELECT ` + noteColumns + ` FROM promissory_notes WHERE id = $1`
	var note models.PromissoryNote
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &note, query, id); err != nil {
		return nil, err
	}
	return &note, nil
}

// ExistsForBatch reports whether the batch already carries a note.
func (r *PromissoryNoteRepository) ExistsForBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM promissory_notes WHERE batch_id = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &exists, query, batchID); err != nil {
		return false, fmt.Errorf("check promissory note: %w", err)
	}
	return exists, nil
}

// SetRequirement links the note to a quarter requirement.
func (r *PromissoryNoteRepository) SetRequirement(ctx context.Context, exec sqlx.ExtContext, noteID, requirementID string) error {
	const query = `UPDATE promissory_notes SET requirement_id = $2 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, noteID, requirementID); err != nil {
		return fmt.Errorf("link promissory note requirement: %w", err)
	}
	return nil
}

// ReviewParams groups the columns written by a Campus Director decision.
type ReviewParams struct {
	ID         string                      `db:"id"`
	Status     models.PromissoryNoteStatus `db:"status"`
	ReviewerID string                      `db:"reviewer_id"`
	Comments   *string                     `db:"reviewer_comments"`
	ReviewedAt time.Time                   `db:"reviewed_at"`
}

// Review resolves a pending note. It returns sql.ErrNoRows when the note is no longer pending.
func (r *PromissoryNoteRepository) Review(ctx context.Context, exec sqlx.ExtContext, params ReviewParams) error {
	const query = `UPDATE promissory_notes
	SET status = :status, reviewer_id = :reviewer_id, reviewer_comments = :reviewer_comments, reviewed_at = :reviewed_at
	WHERE id = :id AND status = 'PENDING'`
	res, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, params)
	if err != nil {
		return fmt.Errorf("review promissory note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("review promissory note rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPending returns notes awaiting review, oldest first.
func (r *PromissoryNoteRepository) ListPending(ctx context.Context) ([]models.PromissoryNote, error) {
	const query = `SELECT ` + noteColumns + ` FROM promissory_notes WHERE status = $1 ORDER BY submitted_at ASC`
	var notes []models.PromissoryNote
	if err := r.db.SelectContext(ctx, &notes, query, models.NotePending); err != nil {
		return nil, fmt.Errorf("list pending promissory notes: %w", err)
	}
	return notes, nil
}
