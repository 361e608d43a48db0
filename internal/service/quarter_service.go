package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	"github.com/noah-isme/sis-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/sis-enrollment-api/pkg/errors"
)

const currentQuarterCacheKey = "quarter:current"

type quarterRepository interface {
	CreatePeriod(ctx context.Context, period *models.QuarterPeriod) error
	ListPeriods(ctx context.Context) ([]models.QuarterPeriod, error)
	FindPeriod(ctx context.Context, id string) (*models.QuarterPeriod, error)
	FindActiveAt(ctx context.Context, at time.Time) (*models.QuarterPeriod, error)
	FindRequirement(ctx context.Context, exec sqlx.ExtContext, studentID, periodID string) (*models.QuarterPaymentRequirement, error)
	LockRequirement(ctx context.Context, exec sqlx.ExtContext, id string) (*models.QuarterPaymentRequirement, error)
	InsertRequirementIfAbsent(ctx context.Context, exec sqlx.ExtContext, req *models.QuarterPaymentRequirement) (bool, error)
	UpdateRequirement(ctx context.Context, exec sqlx.ExtContext, req *models.QuarterPaymentRequirement) error
	ListByStudent(ctx context.Context, studentID string) ([]models.QuarterPaymentRequirement, error)
	ListOverdue(ctx context.Context, at time.Time) ([]models.OverdueRequirement, error)
	MarkOverdue(ctx context.Context, at time.Time) (int64, error)
}

type balanceReader interface {
	TotalBalance(ctx context.Context, exec sqlx.ExtContext, studentID string) (decimal.Decimal, error)
	StudentsWithBalance(ctx context.Context, term models.Term) ([]string, error)
}

// cachedQuarter wraps the lookup so that "no current quarter" can be cached too.
type cachedQuarter struct {
	Period *models.QuarterPeriod `json:"period"`
}

// QuarterService computes and enforces the per-quarter partial payment obligation.
type QuarterService struct {
	tx        txProvider
	repo      quarterRepository
	balances  balanceReader
	cache     *CacheService
	metrics   *MetricsService
	policy    PaymentPolicy
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// QuarterOption configures the quarter service.
type QuarterOption func(*QuarterService)

// WithQuarterCache caches the current-quarter lookup.
func WithQuarterCache(cache *CacheService) QuarterOption {
	return func(s *QuarterService) { s.cache = cache }
}

// WithQuarterMetrics records gate outcomes.
func WithQuarterMetrics(m *MetricsService) QuarterOption {
	return func(s *QuarterService) { s.metrics = m }
}

// WithQuarterPolicy overrides the required share.
func WithQuarterPolicy(p PaymentPolicy) QuarterOption {
	return func(s *QuarterService) { s.policy = p }
}

// WithQuarterClock overrides the time source.
func WithQuarterClock(now func() time.Time) QuarterOption {
	return func(s *QuarterService) { s.now = now }
}

// NewQuarterService constructs the quarter payment engine.
func NewQuarterService(tx txProvider, repo quarterRepository, balances balanceReader, logger *zap.Logger, opts ...QuarterOption) *QuarterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &QuarterService{
		tx:        tx,
		repo:      repo,
		balances:  balances,
		policy:    DefaultPaymentPolicy,
		validator: newValidator(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateQuarterPeriod stores a new payment checkpoint.
func (s *QuarterService) CreateQuarterPeriod(ctx context.Context, req models.CreateQuarterPeriodRequest) (*models.QuarterPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid quarter period payload")
	}
	if req.PaymentDeadline.Before(req.StartDate) {
		return nil, appErrors.Validation("Payment deadline cannot precede the quarter start.", []appErrors.Violation{{Field: "payment_deadline", Message: "must not be before start_date"}})
	}

	period := &models.QuarterPeriod{
		Quarter:         req.Quarter,
		Semester:        req.Semester,
		AcademicYear:    req.AcademicYear,
		StartDate:       req.StartDate.UTC(),
		EndDate:         req.EndDate.UTC(),
		PaymentDeadline: req.PaymentDeadline.UTC(),
		Active:          req.Active,
		CreatedBy:       req.CreatedBy,
	}
	if err := s.repo.CreatePeriod(ctx, period); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "quarter period already defined for this term")
		}
		return nil, internalErr(err, "failed to create quarter period")
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, currentQuarterCacheKey)
	}
	return period, nil
}

// ListQuarterPeriods returns every defined period.
func (s *QuarterService) ListQuarterPeriods(ctx context.Context) ([]models.QuarterPeriod, error) {
	periods, err := s.repo.ListPeriods(ctx)
	if err != nil {
		return nil, internalErr(err, "failed to list quarter periods")
	}
	return periods, nil
}

// CurrentQuarter returns the active period containing now, or nil when there is none.
func (s *QuarterService) CurrentQuarter(ctx context.Context) (*models.QuarterPeriod, error) {
	now := s.now()

	var cached cachedQuarter
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, currentQuarterCacheKey, &cached); hit {
			if cached.Period == nil {
				return nil, nil
			}
			if !now.Before(cached.Period.StartDate) && !now.After(cached.Period.EndDate) {
				return cached.Period, nil
			}
		}
	}

	period, err := s.repo.FindActiveAt(ctx, now)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalErr(err, "failed to resolve current quarter")
	}
	if errors.Is(err, sql.ErrNoRows) {
		period = nil
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, currentQuarterCacheKey, cachedQuarter{Period: period}, 0)
	}
	return period, nil
}

// GenerateRequirements snapshots a requirement for every student with a positive
// balance in the quarter's term. Existing requirements are left untouched.
func (s *QuarterService) GenerateRequirements(ctx context.Context, periodID string) (*models.GenerationResult, error) {
	period, err := s.repo.FindPeriod(ctx, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quarter period not found")
		}
		return nil, internalErr(err, "failed to load quarter period")
	}

	students, err := s.balances.StudentsWithBalance(ctx, period.Term())
	if err != nil {
		return nil, internalErr(err, "failed to list students with balance")
	}

	result := &models.GenerationResult{QuarterPeriodID: period.ID, Candidates: len(students)}
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		for _, studentID := range students {
			created, err := s.snapshot(ctx, tx, studentID, period.ID)
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quarter requirements generated",
		zap.String("quarter_period_id", period.ID),
		zap.Int("candidates", result.Candidates),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// snapshot inserts the requirement for (student, period) from the student's total balance.
// A student with nothing outstanding across all terms gets no requirement.
func (s *QuarterService) snapshot(ctx context.Context, exec sqlx.ExtContext, studentID, periodID string) (bool, error) {
	if _, err := s.repo.FindRequirement(ctx, exec, studentID, periodID); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, internalErr(err, "failed to load quarter requirement")
	}

	total, err := s.balances.TotalBalance(ctx, exec, studentID)
	if err != nil {
		return false, internalErr(err, "failed to compute total balance")
	}
	if !total.IsPositive() {
		return false, nil
	}

	req := &models.QuarterPaymentRequirement{
		StudentID:             studentID,
		QuarterPeriodID:       periodID,
		BalanceAtQuarterStart: total,
		RequiredAmount:        s.policy.RequiredPayment(total),
		ActualAmount:          decimal.Zero,
		Status:                models.RequirementPending,
		CreatedAt:             s.now(),
	}
	created, err := s.repo.InsertRequirementIfAbsent(ctx, exec, req)
	if err != nil {
		return false, internalErr(err, "failed to create quarter requirement")
	}
	return created, nil
}

// requirementFor fetches or lazily creates the student's requirement for period.
// It returns nil when the student owes nothing.
func (s *QuarterService) requirementFor(ctx context.Context, exec sqlx.ExtContext, studentID string, period *models.QuarterPeriod) (*models.QuarterPaymentRequirement, error) {
	req, err := s.repo.FindRequirement(ctx, exec, studentID, period.ID)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalErr(err, "failed to load quarter requirement")
	}

	if _, err := s.snapshot(ctx, exec, studentID, period.ID); err != nil {
		return nil, err
	}
	// refetch: a concurrent first access may have written the row instead of us
	req, err = s.repo.FindRequirement(ctx, exec, studentID, period.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, internalErr(err, "failed to load quarter requirement")
	}
	return req, nil
}

// Gate evaluates the current-quarter requirement and returns the remediation data.
func (s *QuarterService) Gate(ctx context.Context, studentID string) (*models.QuarterGate, error) {
	gate := &models.QuarterGate{StudentID: studentID, Meets: true}

	period, err := s.CurrentQuarter(ctx)
	if err != nil {
		return nil, err
	}
	if period == nil {
		s.metrics.RecordGate("quarter", "no_period")
		return gate, nil
	}
	gate.QuarterPeriodID = period.ID
	gate.Quarter = period.Label()
	deadline := period.PaymentDeadline
	gate.PaymentDeadline = &deadline

	req, err := s.requirementFor(ctx, nil, studentID, period)
	if err != nil {
		return nil, err
	}
	if req == nil {
		s.metrics.RecordGate("quarter", "no_balance")
		return gate, nil
	}

	gate.Meets = req.MeetsRequirement
	gate.RequiredAmount = &req.RequiredAmount
	gate.ActualAmount = &req.ActualAmount
	gate.Balance = &req.BalanceAtQuarterStart
	if gate.Meets {
		s.metrics.RecordGate("quarter", "met")
	} else {
		s.metrics.RecordGate("quarter", "unmet")
	}
	return gate, nil
}

// MeetsCurrentQuarterRequirement reports whether new enrollment is allowed for the student.
func (s *QuarterService) MeetsCurrentQuarterRequirement(ctx context.Context, studentID string) (bool, error) {
	gate, err := s.Gate(ctx, studentID)
	if err != nil {
		return false, err
	}
	return gate.Meets, nil
}

// ProcessQuarterPayment adds amount to the requirement's running total.
func (s *QuarterService) ProcessQuarterPayment(ctx context.Context, requirementID string, amount decimal.Decimal) (*models.QuarterPaymentRequirement, error) {
	if !amount.IsPositive() {
		return nil, appErrors.Validation("Payment amount must be greater than zero.", []appErrors.Violation{{Field: "amount", Message: "must be greater than zero"}})
	}
	var req *models.QuarterPaymentRequirement
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		req, err = s.lock(ctx, tx, requirementID)
		if err != nil {
			return err
		}
		s.applyAmount(req, amount)
		return s.save(ctx, tx, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// applyAmount accumulates a payment. The gate flips once the running total reaches the requirement.
func (s *QuarterService) applyAmount(req *models.QuarterPaymentRequirement, amount decimal.Decimal) {
	req.ActualAmount = req.ActualAmount.Add(amount)
	if req.MeetsRequirement || req.ActualAmount.LessThan(req.RequiredAmount) {
		return
	}
	now := s.now()
	req.MeetsRequirement = true
	req.Status = models.RequirementPaid
	req.PaidAt = &now
}

// accumulateCurrent feeds a recorded payment into the student's unmet current requirement, if any.
func (s *QuarterService) accumulateCurrent(ctx context.Context, exec sqlx.ExtContext, studentID string, amount decimal.Decimal) error {
	req, err := s.currentRequirement(ctx, exec, studentID)
	if err != nil || req == nil || req.MeetsRequirement {
		return err
	}
	locked, err := s.lock(ctx, exec, req.ID)
	if err != nil {
		return err
	}
	s.applyAmount(locked, amount)
	return s.save(ctx, exec, locked)
}

// currentRequirement returns the existing requirement for the current quarter without creating one.
func (s *QuarterService) currentRequirement(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.QuarterPaymentRequirement, error) {
	period, err := s.CurrentQuarter(ctx)
	if err != nil || period == nil {
		return nil, err
	}
	req, err := s.repo.FindRequirement(ctx, exec, studentID, period.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, internalErr(err, "failed to load quarter requirement")
	}
	return req, nil
}

// LinkPromissoryNote marks the requirement as covered by a pending note.
func (s *QuarterService) LinkPromissoryNote(ctx context.Context, requirementID, noteID string) error {
	return withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		return s.linkNote(ctx, tx, requirementID, noteID)
	})
}

func (s *QuarterService) linkNote(ctx context.Context, exec sqlx.ExtContext, requirementID, noteID string) error {
	req, err := s.lock(ctx, exec, requirementID)
	if err != nil {
		return err
	}
	req.HasPromissoryNote = true
	req.PromissoryNoteID = &noteID
	if !req.MeetsRequirement {
		req.Status = models.RequirementPromissoryNoteSubmitted
	}
	return s.save(ctx, exec, req)
}

// unlinkNote reopens a requirement after its note was rejected.
func (s *QuarterService) unlinkNote(ctx context.Context, exec sqlx.ExtContext, requirementID string) error {
	req, err := s.lock(ctx, exec, requirementID)
	if err != nil {
		return err
	}
	req.HasPromissoryNote = false
	req.PromissoryNoteID = nil
	if !req.MeetsRequirement {
		req.Status = models.RequirementPending
	}
	return s.save(ctx, exec, req)
}

// ApproveViaPromissoryNote satisfies the requirement regardless of the amount paid.
// It must only follow a Campus Director approval.
func (s *QuarterService) ApproveViaPromissoryNote(ctx context.Context, requirementID string) error {
	return withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		return s.approveViaNote(ctx, tx, requirementID)
	})
}

func (s *QuarterService) approveViaNote(ctx context.Context, exec sqlx.ExtContext, requirementID string) error {
	req, err := s.lock(ctx, exec, requirementID)
	if err != nil {
		return err
	}
	req.MeetsRequirement = true
	req.HasPromissoryNote = true
	req.Status = models.RequirementPromissoryApproved
	return s.save(ctx, exec, req)
}

// GetOverdueRequirements lists unmet requirements past their payment deadline.
func (s *QuarterService) GetOverdueRequirements(ctx context.Context) ([]models.OverdueRequirement, error) {
	reqs, err := s.repo.ListOverdue(ctx, s.now())
	if err != nil {
		return nil, internalErr(err, "failed to list overdue requirements")
	}
	return reqs, nil
}

// MarkOverdue flags pending requirements past their deadline with the overdue status.
func (s *QuarterService) MarkOverdue(ctx context.Context) (int64, error) {
	n, err := s.repo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, internalErr(err, "failed to mark overdue requirements")
	}
	return n, nil
}

// GetStudentRequirements returns a student's requirements, newest first.
func (s *QuarterService) GetStudentRequirements(ctx context.Context, studentID string) ([]models.QuarterPaymentRequirement, error) {
	reqs, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, internalErr(err, "failed to list student requirements")
	}
	return reqs, nil
}

// GetRequirement returns the (student, quarter) requirement.
func (s *QuarterService) GetRequirement(ctx context.Context, studentID, periodID string) (*models.QuarterPaymentRequirement, error) {
	req, err := s.repo.FindRequirement(ctx, nil, studentID, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quarter requirement not found")
		}
		return nil, internalErr(err, "failed to load quarter requirement")
	}
	return req, nil
}

func (s *QuarterService) lock(ctx context.Context, exec sqlx.ExtContext, id string) (*models.QuarterPaymentRequirement, error) {
	req, err := s.repo.LockRequirement(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quarter requirement not found")
		}
		return nil, internalErr(err, "failed to load quarter requirement")
	}
	return req, nil
}

func (s *QuarterService) save(ctx context.Context, exec sqlx.ExtContext, req *models.QuarterPaymentRequirement) error {
	if err := s.repo.UpdateRequirement(ctx, exec, req); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "quarter requirement not found")
		}
		return internalErr(err, "failed to update quarter requirement")
	}
	return nil
}
