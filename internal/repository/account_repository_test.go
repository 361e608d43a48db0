package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
)

var testTerm = models.Term{Semester: "1st Semester", AcademicYear: "2024-2025"}

func TestAccountRepositoryGetOrCreateInsertsThenReads(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, semester, academic_year) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "stu-1", testTerm.Semester, testTerm.AcademicYear, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"id", "student_id", "semester", "academic_year", "total_billed", "total_paid", "created_at", "updated_at"}).
		AddRow("acc-1", "stu-1", testTerm.Semester, testTerm.AcademicYear, "12000.00", "2000.00", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM student_accounts WHERE student_id = $1")).
		WithArgs("stu-1", testTerm.Semester, testTerm.AcademicYear).
		WillReturnRows(rows)

	account, err := repo.GetOrCreate(context.Background(), nil, "stu-1", testTerm)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", account.ID)
	assert.True(t, account.Balance().Equal(decimal.NewFromInt(10000)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositorySums(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM fees WHERE student_id = $1 AND semester = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("1500.50"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE student_id = $1 AND semester = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("0"))

	fees, err := repo.SumFees(context.Background(), nil, "stu-1", testTerm)
	require.NoError(t, err)
	paid, err := repo.SumPayments(context.Background(), nil, "stu-1", testTerm)
	require.NoError(t, err)

	assert.Equal(t, "1500.5", fees.String())
	assert.True(t, paid.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepositoryStudentsWithBalance(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE f.billed - COALESCE(p.paid, 0) > 0")).
		WithArgs(testTerm.Semester, testTerm.AcademicYear).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("stu-1").AddRow("stu-2"))

	ids, err := repo.StudentsWithBalance(context.Background(), testTerm)
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1", "stu-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
