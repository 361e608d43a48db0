package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

// EnrollmentPeriodRepository reads the filing windows configured per term.
type EnrollmentPeriodRepository struct {
	db *sqlx.DB
}

// NewEnrollmentPeriodRepository constructs the repository.
func NewEnrollmentPeriodRepository(db *sqlx.DB) *EnrollmentPeriodRepository {
	return &EnrollmentPeriodRepository{db: db}
}

// FindActiveForTerm returns the active window for term or sql.ErrNoRows.
func (r *EnrollmentPeriodRepository) FindActiveForTerm(ctx context.Context, term models.Term) (*models.EnrollmentPeriod, error) {
	const query = `SELECT id, semester, academic_year, open_date, close_date, active
	FROM enrollment_periods
	WHERE semester = $1 AND academic_year = $2 AND active = TRUE
	ORDER BY open_date DESC LIMIT 1`
	var period models.EnrollmentPeriod
	if err := r.db.GetContext(ctx, &period, query, term.Semester, term.AcademicYear); err != nil {
		return nil, err
	}
	return &period, nil
}
