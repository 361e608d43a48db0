package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

func TestApprovalStepRepositoryCreateDuplicate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewApprovalStepRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approval_steps")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "approval_steps_batch_step_key"})

	err := repo.Create(context.Background(), nil, &models.ApprovalStep{BatchID: "batch-1", StepType: models.StepAccounting})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalStepRepositoryResolveSingleWinner(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewApprovalStepRepository(db)

	params := ResolveParams{ID: "step-1", Status: models.ApprovalApproved, ApproverID: "dean-1", ActionAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_steps")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Resolve(context.Background(), nil, params))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_steps")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Resolve(context.Background(), nil, params), sql.ErrNoRows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalStepRepositoryListPendingBatches(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewApprovalStepRepository(db)

	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-time.Hour)
	rows := sqlmock.NewRows([]string{"id", "student_id", "semester", "academic_year", "status", "total_credits", "comments", "submitted_at", "completed_at", "updated_at", "step_id", "step_created_at"}).
		AddRow("batch-1", "stu-1", "1st Semester", "2024-2025", "DEAN_REVIEW", 6, nil, older, nil, older, "step-1", older).
		AddRow("batch-2", "stu-2", "1st Semester", "2024-2025", "DEAN_REVIEW", 3, nil, newer, nil, newer, "step-2", newer)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY b.submitted_at ASC")).
		WithArgs(models.StepDean, models.ApprovalPending).
		WillReturnRows(rows)

	batches, err := repo.ListPendingBatches(context.Background(), models.StepDean)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "batch-1", batches[0].ID)
	assert.Equal(t, "step-2", batches[1].StepID)
	require.NoError(t, mock.ExpectationsWereMet())
}
