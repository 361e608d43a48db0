package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment-api/pkg/errors"
)

func TestAccountGetOrCreateStartsAtZero(t *testing.T) {
	e := newEngine(t)

	account, err := e.accounts.GetOrCreateAccount(context.Background(), "stu-1", fallTerm)
	require.NoError(t, err)
	assert.True(t, account.Balance().IsZero())

	again, err := e.accounts.GetOrCreateAccount(context.Background(), "stu-1", fallTerm)
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)
}

func TestAccountGetBalanceRecomputes(t *testing.T) {
	e := newEngine(t)
	e.store.addFee("stu-1", fallTerm, 1500)
	e.store.addFee("stu-1", fallTerm, 500)
	e.store.addFee("stu-1", models.Term{Semester: "2nd Semester", AcademicYear: "2024-2025"}, 9999)

	summary, err := e.accounts.GetBalance(context.Background(), "stu-1", fallTerm)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2000).Equal(summary.TotalBilled))
	assert.True(t, decimal.NewFromInt(2000).Equal(summary.Balance))

	e.store.addFee("stu-1", fallTerm, 250)
	summary, err = e.accounts.GetBalance(context.Background(), "stu-1", fallTerm)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2250).Equal(summary.Balance))
}

func TestAccountRecordPayment(t *testing.T) {
	e := newEngine(t)
	e.accounts.refSuffix = func() int { return 42 }
	e.store.addFee("stu-1", fallTerm, 1000)

	expectCommits(e.mock, 1)
	payment, err := e.accounts.RecordPayment(context.Background(), models.RecordPaymentRequest{
		StudentID: "stu-1", Amount: decimal.RequireFromString("250.50"), Method: models.PaymentPayMaya,
		Semester: fallTerm.Semester, AcademicYear: fallTerm.AcademicYear, ProcessedBy: strPtr("cashier-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "PAY-20240815100000-0042", payment.ReferenceNumber)

	account := e.store.accounts[accountKey("stu-1", fallTerm)]
	assert.Equal(t, "749.50", account.Balance().StringFixed(2))

	got, err := e.accounts.GetPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ReferenceNumber, got.ReferenceNumber)

	_, err = e.accounts.GetPayment(context.Background(), "missing")
	requireCode(t, err, appErrors.ErrNotFound.Code)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestAccountRecordPaymentValidation(t *testing.T) {
	e := newEngine(t)
	base := models.RecordPaymentRequest{
		StudentID: "stu-1", Amount: decimal.NewFromInt(10), Method: models.PaymentCash,
		Semester: fallTerm.Semester, AcademicYear: fallTerm.AcademicYear,
	}

	cases := map[string]func(r *models.RecordPaymentRequest){
		"zero amount":      func(r *models.RecordPaymentRequest) { r.Amount = decimal.Zero },
		"negative amount":  func(r *models.RecordPaymentRequest) { r.Amount = decimal.NewFromInt(-5) },
		"fractional cents": func(r *models.RecordPaymentRequest) { r.Amount = decimal.RequireFromString("1.005") },
		"unknown method":   func(r *models.RecordPaymentRequest) { r.Method = "BITCOIN" },
		"missing term":     func(r *models.RecordPaymentRequest) { r.Semester = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			mutate(&req)
			expectRollback(e.mock)
			_, err := e.accounts.RecordPayment(context.Background(), req)
			requireCode(t, err, appErrors.ErrValidation.Code)
		})
	}
	assert.Empty(t, e.store.payments)
}
