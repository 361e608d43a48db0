package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestEnrollmentRepositoryCreateBatchMirrorsStatus(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_batches")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 2))

	batch := &models.EnrollmentBatch{StudentID: "stu-1", Semester: "1st Semester", AcademicYear: "2024-2025", Status: models.StatusDeanReview, TotalCredits: 6}
	enrollments := []models.Enrollment{{CourseID: "c-1"}, {CourseID: "c-2"}}
	require.NoError(t, repo.CreateBatch(context.Background(), nil, batch, enrollments))

	assert.NotEmpty(t, batch.ID)
	for _, e := range enrollments {
		assert.Equal(t, batch.ID, e.BatchID)
		assert.Equal(t, "stu-1", e.StudentID)
		assert.Equal(t, models.StatusDeanReview, e.Status)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusMovesChildren(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_batches")).
		WithArgs("batch-1", models.StatusRejected, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2")).
		WithArgs("batch-1", models.StatusRejected, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	now := time.Now()
	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "batch-1", models.StatusRejected, &now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatusMissingBatch(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollment_batches")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), nil, "missing", models.StatusAwaitingPayment, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryHasOpenBatch(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("stu-1", "1st Semester", "2024-2025", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	open, err := repo.HasOpenBatch(context.Background(), nil, "stu-1", models.Term{Semester: "1st Semester", AcademicYear: "2024-2025"})
	require.NoError(t, err)
	assert.True(t, open)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryLockBatchUsesForUpdate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "semester", "academic_year", "status", "total_credits", "comments", "submitted_at", "completed_at", "updated_at"}).
		AddRow("batch-1", "stu-1", "1st Semester", "2024-2025", "AWAITING_PAYMENT", 9, nil, now, nil, now)
	mock.ExpectQuery(`FROM enrollment_batches WHERE id = \$1 FOR UPDATE`).
		WithArgs("batch-1").
		WillReturnRows(rows)

	batch, err := repo.LockBatch(context.Background(), nil, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingPayment, batch.Status)
	assert.Equal(t, 9, batch.TotalCredits)
	require.NoError(t, mock.ExpectationsWereMet())
}
