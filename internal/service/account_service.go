package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment-api/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// PaymentPolicy holds the share of the balance that must be paid to pass a gate.
type PaymentPolicy struct {
	RequiredPercent decimal.Decimal
}

// DefaultPaymentPolicy requires 30%.
var DefaultPaymentPolicy = PaymentPolicy{RequiredPercent: decimal.NewFromInt(30)}

// NewPaymentPolicy builds a policy from a whole percentage, falling back to the default.
func NewPaymentPolicy(percent int) PaymentPolicy {
	if percent <= 0 || percent > 100 {
		return DefaultPaymentPolicy
	}
	return PaymentPolicy{RequiredPercent: decimal.NewFromInt(int64(percent))}
}

// Meets reports whether percentage reaches the required share.
func (p PaymentPolicy) Meets(percentage decimal.Decimal) bool {
	return percentage.GreaterThanOrEqual(p.RequiredPercent)
}

// RequiredPayment is the required share of balance, rounded half-to-even to cents.
func (p PaymentPolicy) RequiredPayment(balance decimal.Decimal) decimal.Decimal {
	return balance.Mul(p.RequiredPercent).Div(hundred).RoundBank(2)
}

// CalculatePaymentPercentage is amountPaid as a percentage of balance, rounded to two
// decimals. A settled or negative balance counts as fully paid.
func CalculatePaymentPercentage(amountPaid, balance decimal.Decimal) decimal.Decimal {
	if !balance.IsPositive() {
		return hundred
	}
	return amountPaid.Div(balance).Mul(hundred).RoundBank(2)
}

// MeetsPaymentRequirement applies the default 30% rule.
func MeetsPaymentRequirement(percentage decimal.Decimal) bool {
	return DefaultPaymentPolicy.Meets(percentage)
}

// CalculateRequiredPayment applies the default 30% rule to a balance.
func CalculateRequiredPayment(balance decimal.Decimal) decimal.Decimal {
	return DefaultPaymentPolicy.RequiredPayment(balance)
}

type accountRepository interface {
	GetOrCreate(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (*models.StudentAccount, error)
	SumFees(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (decimal.Decimal, error)
	SumPayments(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (decimal.Decimal, error)
	SaveTotals(ctx context.Context, exec sqlx.ExtContext, accountID string, billed, paid decimal.Decimal, at time.Time) error
	CreatePayment(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error
	FindPayment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error)
}

// quarterPaymentSink receives recorded payments for the current quarter requirement.
type quarterPaymentSink interface {
	accumulateCurrent(ctx context.Context, exec sqlx.ExtContext, studentID string, amount decimal.Decimal) error
}

// AccountService maintains per-term ledgers. Totals are always recomputed from fees and payments.
type AccountService struct {
	tx        txProvider
	repo      accountRepository
	quarter   quarterPaymentSink
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	refSuffix func() int
}

// AccountOption configures the ledger service.
type AccountOption func(*AccountService)

// WithAccountMetrics counts recorded payments.
func WithAccountMetrics(m *MetricsService) AccountOption {
	return func(s *AccountService) { s.metrics = m }
}

// WithAccountClock overrides the time source.
func WithAccountClock(now func() time.Time) AccountOption {
	return func(s *AccountService) { s.now = now }
}

// NewAccountService constructs the ledger service. quarter may be nil.
func NewAccountService(tx txProvider, repo accountRepository, quarter quarterPaymentSink, logger *zap.Logger, opts ...AccountOption) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AccountService{
		tx:        tx,
		repo:      repo,
		quarter:   quarter,
		validator: newValidator(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		refSuffix: func() int { return rand.Intn(10000) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateAccount returns the ledger row for term, creating a zero-balance row if absent.
func (s *AccountService) GetOrCreateAccount(ctx context.Context, studentID string, term models.Term) (*models.StudentAccount, error) {
	account, err := s.repo.GetOrCreate(ctx, nil, studentID, term)
	if err != nil {
		return nil, internalErr(err, "failed to load student account")
	}
	return account, nil
}

// RecomputeBalances re-sums fees and payments for term and overwrites the account totals.
func (s *AccountService) RecomputeBalances(ctx context.Context, studentID string, term models.Term) (*models.StudentAccount, error) {
	return s.recompute(ctx, nil, studentID, term)
}

func (s *AccountService) recompute(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (*models.StudentAccount, error) {
	account, err := s.repo.GetOrCreate(ctx, exec, studentID, term)
	if err != nil {
		return nil, internalErr(err, "failed to load student account")
	}
	billed, err := s.repo.SumFees(ctx, exec, studentID, term)
	if err != nil {
		return nil, internalErr(err, "failed to sum fees")
	}
	paid, err := s.repo.SumPayments(ctx, exec, studentID, term)
	if err != nil {
		return nil, internalErr(err, "failed to sum payments")
	}
	now := s.now()
	if err := s.repo.SaveTotals(ctx, exec, account.ID, billed, paid, now); err != nil {
		return nil, internalErr(err, "failed to save account totals")
	}
	account.TotalBilled = billed
	account.TotalPaid = paid
	account.UpdatedAt = &now
	return account, nil
}

// GetBalance recomputes the term account before reading it.
func (s *AccountService) GetBalance(ctx context.Context, studentID string, term models.Term) (*models.BalanceSummary, error) {
	account, err := s.recompute(ctx, nil, studentID, term)
	if err != nil {
		return nil, err
	}
	return &models.BalanceSummary{
		StudentID:    studentID,
		Semester:     term.Semester,
		AcademicYear: term.AcademicYear,
		TotalBilled:  account.TotalBilled,
		TotalPaid:    account.TotalPaid,
		Balance:      account.Balance(),
	}, nil
}

// RecordPayment stores a payment, refreshes the term account and feeds the current
// quarter requirement, all in one transaction.
func (s *AccountService) RecordPayment(ctx context.Context, req models.RecordPaymentRequest) (*models.Payment, error) {
	var payment *models.Payment
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		payment, err = s.recordPayment(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPayment(string(payment.Method))
	return payment, nil
}

func (s *AccountService) recordPayment(ctx context.Context, exec sqlx.ExtContext, req models.RecordPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Validation("Payment amount must be greater than zero.", []appErrors.Violation{{Field: "amount", Message: "must be greater than zero"}})
	}
	if req.Amount.Exponent() < -2 {
		return nil, appErrors.Validation("Payment amount cannot have fractional cents.", []appErrors.Violation{{Field: "amount", Message: "at most two decimals"}})
	}

	now := s.now()
	payment := &models.Payment{
		StudentID:       req.StudentID,
		Amount:          req.Amount,
		Method:          req.Method,
		ReferenceNumber: s.referenceNumber(now),
		Semester:        req.Semester,
		AcademicYear:    req.AcademicYear,
		ProcessedBy:     req.ProcessedBy,
		Remarks:         req.Remarks,
		PaidAt:          now,
	}
	if err := s.repo.CreatePayment(ctx, exec, payment); err != nil {
		return nil, internalErr(err, "failed to record payment")
	}
	if _, err := s.recompute(ctx, exec, req.StudentID, models.Term{Semester: req.Semester, AcademicYear: req.AcademicYear}); err != nil {
		return nil, err
	}
	if s.quarter != nil {
		if err := s.quarter.accumulateCurrent(ctx, exec, req.StudentID, req.Amount); err != nil {
			return nil, err
		}
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("student_id", payment.StudentID),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("reference", payment.ReferenceNumber))
	return payment, nil
}

// GetPayment returns a recorded payment.
func (s *AccountService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.payment(ctx, nil, id)
}

func (s *AccountService) payment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error) {
	payment, err := s.repo.FindPayment(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, internalErr(err, "failed to load payment")
	}
	return payment, nil
}

// referenceNumber renders PAY-yyyyMMddHHmmss-XXXX. The table's unique key rejects the rare clash.
func (s *AccountService) referenceNumber(at time.Time) string {
	return fmt.Sprintf("PAY-%s-%04d", at.Format("20060102150405"), s.refSuffix()%10000)
}
