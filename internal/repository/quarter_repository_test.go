package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

func TestQuarterRepositoryInsertRequirementIfAbsent(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewQuarterRepository(db)

	req := &models.QuarterPaymentRequirement{
		StudentID:             "stu-1",
		QuarterPeriodID:       "q-1",
		BalanceAtQuarterStart: decimal.NewFromInt(1000),
		RequiredAmount:        decimal.NewFromInt(300),
	}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, quarter_period_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.InsertRequirementIfAbsent(context.Background(), nil, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RequirementPending, req.Status)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, quarter_period_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = repo.InsertRequirementIfAbsent(context.Background(), nil, &models.QuarterPaymentRequirement{StudentID: "stu-1", QuarterPeriodID: "q-1"})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuarterRepositoryFindActiveAtNone(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewQuarterRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE active = TRUE AND start_date <= $1 AND end_date >= $1")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveAt(context.Background(), time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuarterRepositoryListOverdue(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewQuarterRepository(db)

	deadline := time.Now().Add(-24 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "student_id", "quarter_period_id", "balance_at_quarter_start", "required_amount", "actual_amount",
		"meets_requirement", "has_promissory_note", "promissory_note_id", "status", "created_at", "paid_at",
		"quarter", "semester", "academic_year", "payment_deadline"}).
		AddRow("req-1", "stu-1", "q-1", "1000.00", "300.00", "100.00", false, false, nil, "PENDING", time.Now(), nil, 1, "1st Semester", "2024-2025", deadline)
	mock.ExpectQuery(regexp.QuoteMeta("q.payment_deadline < $1")).
		WillReturnRows(rows)

	overdue, err := repo.ListOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "req-1", overdue[0].ID)
	assert.Equal(t, 1, overdue[0].Quarter)
	assert.True(t, overdue[0].RequiredAmount.Equal(decimal.NewFromInt(300)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuarterRepositoryMarkOverdue(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewQuarterRepository(db)
	at := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE quarter_payment_requirements r")).
		WithArgs(models.RequirementOverdue, models.RequirementPending, at).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkOverdue(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
