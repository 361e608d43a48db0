package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	"github.com/noah-isme/sis-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/sis-enrollment-api/pkg/errors"
)

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type courseRepository interface {
	ListWithPrerequisites(ctx context.Context, ids []string) ([]models.Course, error)
	IncrementEnrolled(ctx context.Context, exec sqlx.ExtContext, ids []string) error
}

type batchStatusWriter interface {
	LockBatch(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentBatch, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus, completedAt *time.Time) error
}

type enrollmentRepository interface {
	batchStatusWriter
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, batch *models.EnrollmentBatch, enrollments []models.Enrollment) error
	FindBatch(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentBatch, error)
	ListEnrollments(ctx context.Context, exec sqlx.ExtContext, batchID string) ([]models.Enrollment, error)
	HasOpenBatch(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (bool, error)
	CompletedCourseIDs(ctx context.Context, studentID string) ([]string, error)
	OpenCourseIDs(ctx context.Context, studentID string, courseIDs []string) ([]string, error)
}

type stepCreator interface {
	Create(ctx context.Context, exec sqlx.ExtContext, step *models.ApprovalStep) error
}

type approvalStepRepository interface {
	stepCreator
	FindPending(ctx context.Context, exec sqlx.ExtContext, batchID string, stepType models.ApprovalStepType) (*models.ApprovalStep, error)
	CurrentPending(ctx context.Context, exec sqlx.ExtContext, batchID string) (*models.ApprovalStep, error)
	Resolve(ctx context.Context, exec sqlx.ExtContext, params repository.ResolveParams) error
	ListByBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) ([]models.ApprovalStep, error)
	ListPendingBatches(ctx context.Context, stepType models.ApprovalStepType) ([]models.PendingBatch, error)
}

type enrollmentPaymentRepository interface {
	FindByBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) (*models.EnrollmentPayment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, ep *models.EnrollmentPayment) error
	Update(ctx context.Context, exec sqlx.ExtContext, ep *models.EnrollmentPayment) error
	AddApplication(ctx context.Context, exec sqlx.ExtContext, batchID, paymentID string) error
}

type enrollmentPeriodRepository interface {
	FindActiveForTerm(ctx context.Context, term models.Term) (*models.EnrollmentPeriod, error)
}

type quarterGateChecker interface {
	Gate(ctx context.Context, studentID string) (*models.QuarterGate, error)
}

// batchLedger is the slice of the account ledger the payment gate needs inside a transaction.
type batchLedger interface {
	recompute(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (*models.StudentAccount, error)
	recordPayment(ctx context.Context, exec sqlx.ExtContext, req models.RecordPaymentRequest) (*models.Payment, error)
	payment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error)
}

// WorkflowRepositories groups the stores the workflow engine reads and writes.
type WorkflowRepositories struct {
	Students    studentReader
	Courses     courseRepository
	Enrollments enrollmentRepository
	Steps       approvalStepRepository
	Payments    enrollmentPaymentRepository
	Periods     enrollmentPeriodRepository
}

// WorkflowOption configures the workflow engine.
type WorkflowOption func(*WorkflowService)

// WithWorkflowMetrics records transitions and gate outcomes.
func WithWorkflowMetrics(m *MetricsService) WorkflowOption {
	return func(s *WorkflowService) { s.metrics = m }
}

// WithWorkflowPolicy overrides the batch payment share.
func WithWorkflowPolicy(p PaymentPolicy) WorkflowOption {
	return func(s *WorkflowService) { s.policy = p }
}

// WithEnrollmentWindows toggles the enrollment period check.
func WithEnrollmentWindows(enforce bool) WorkflowOption {
	return func(s *WorkflowService) { s.enforceWindows = enforce }
}

// WithWorkflowClock overrides the time source.
func WithWorkflowClock(now func() time.Time) WorkflowOption {
	return func(s *WorkflowService) { s.now = now }
}

// WorkflowService drives enrollment batches from submission through the approval chain.
type WorkflowService struct {
	tx             txProvider
	repos          WorkflowRepositories
	quarter        quarterGateChecker
	ledger         batchLedger
	metrics        *MetricsService
	policy         PaymentPolicy
	enforceWindows bool
	validator      *validator.Validate
	logger         *zap.Logger
	now            func() time.Time
}

// NewWorkflowService constructs the workflow engine.
func NewWorkflowService(tx txProvider, repos WorkflowRepositories, quarter quarterGateChecker, ledger batchLedger, logger *zap.Logger, opts ...WorkflowOption) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WorkflowService{
		tx:             tx,
		repos:          repos,
		quarter:        quarter,
		ledger:         ledger,
		policy:         DefaultPaymentPolicy,
		enforceWindows: true,
		validator:      newValidator(),
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBatch validates a bulk course request and opens it at Dean review.
func (s *WorkflowService) CreateBatch(ctx context.Context, req models.CreateBatchRequest) (*models.BatchDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment batch payload")
	}
	if len(req.CourseIDs) == 0 {
		return nil, appErrors.Validation("At least one course is required.", []appErrors.Violation{{Field: "course_ids", Message: "must not be empty"}})
	}
	term := models.Term{Semester: req.Semester, AcademicYear: req.AcademicYear}

	student, err := s.repos.Students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Validation("Student not found.", []appErrors.Violation{{Field: "student_id", Message: "does not exist"}})
		}
		return nil, internalErr(err, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Validation("Student is not active.", []appErrors.Violation{{Field: "student_id", Message: "is not active"}})
	}

	if err := s.checkWindow(ctx, term); err != nil {
		return nil, err
	}

	open, err := s.repos.Enrollments.HasOpenBatch(ctx, nil, student.ID, term)
	if err != nil {
		return nil, internalErr(err, "failed to check open batches")
	}
	if open {
		return nil, appErrors.Validation("An enrollment batch for this term is already in progress.",
			[]appErrors.Violation{{Field: "semester", Message: "open batch exists for " + term.String()}})
	}

	gate, err := s.quarter.Gate(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	if !gate.Meets {
		return nil, appErrors.WithDetails(appErrors.ErrPaymentGate, gateMessage(gate), gate)
	}

	ids, duplicates := dedupe(req.CourseIDs)
	if len(ids) == 0 {
		return nil, appErrors.Validation("At least one course is required.", []appErrors.Violation{{Field: "course_ids", Message: "must not be empty"}})
	}
	courses, err := s.repos.Courses.ListWithPrerequisites(ctx, ids)
	if err != nil {
		return nil, internalErr(err, "failed to load courses")
	}
	byID := make(map[string]models.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrNotFound, "course not found: "+strings.Join(missing, ", "), missing)
	}

	violations, err := s.courseViolations(ctx, student, ids, byID, duplicates)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, appErrors.Validation("One or more courses cannot be requested.", violations)
	}

	now := s.now()
	batch := &models.EnrollmentBatch{
		StudentID:    student.ID,
		Semester:     term.Semester,
		AcademicYear: term.AcademicYear,
		Status:       models.StatusDeanReview,
		Comments:     req.Comments,
		SubmittedAt:  now,
	}
	enrollments := make([]models.Enrollment, 0, len(ids))
	for _, id := range ids {
		course := byID[id]
		batch.TotalCredits += course.Credits
		enrollments = append(enrollments, models.Enrollment{CourseID: course.ID, CourseCode: course.Code})
	}

	var dean *models.ApprovalStep
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repos.Enrollments.CreateBatch(ctx, tx, batch, enrollments); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "an enrollment batch for this term is already in progress")
			}
			return internalErr(err, "failed to create enrollment batch")
		}
		var err error
		dean, err = openStep(ctx, tx, s.repos.Steps, batch.ID, models.StepDean, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition("", string(models.StatusDeanReview))
	s.logger.Info("enrollment batch submitted",
		zap.String("batch_id", batch.ID),
		zap.String("student_id", batch.StudentID),
		zap.String("term", term.String()),
		zap.Int("courses", len(enrollments)),
		zap.Int("total_credits", batch.TotalCredits))

	step := models.StepDean
	return &models.BatchDetail{
		EnrollmentBatch: *batch,
		Enrollments:     enrollments,
		Steps:           []models.ApprovalStep{*dean},
		CurrentStep:     &step,
	}, nil
}

func (s *WorkflowService) checkWindow(ctx context.Context, term models.Term) error {
	if !s.enforceWindows || s.repos.Periods == nil {
		return nil
	}
	period, err := s.repos.Periods.FindActiveForTerm(ctx, term)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return internalErr(err, "failed to load enrollment period")
	}
	if !period.Contains(s.now()) {
		return appErrors.Validation("Enrollment for "+term.String()+" is closed.", []appErrors.Violation{{
			Field:   "semester",
			Message: fmt.Sprintf("enrollment window is %s to %s", period.OpenDate.Format(time.RFC3339), period.CloseDate.Format(time.RFC3339)),
		}})
	}
	return nil
}

// courseViolations collects every per-course problem, keyed by course code.
func (s *WorkflowService) courseViolations(ctx context.Context, student *models.Student, ids []string, byID map[string]models.Course, duplicates map[string]bool) ([]appErrors.Violation, error) {
	completedIDs, err := s.repos.Enrollments.CompletedCourseIDs(ctx, student.ID)
	if err != nil {
		return nil, internalErr(err, "failed to load completed courses")
	}
	completed := toSet(completedIDs)

	openIDs, err := s.repos.Enrollments.OpenCourseIDs(ctx, student.ID, ids)
	if err != nil {
		return nil, internalErr(err, "failed to load active enrollments")
	}
	open := toSet(openIDs)

	var violations []appErrors.Violation
	add := func(code, msg string) {
		violations = append(violations, appErrors.Violation{Field: code, Message: msg})
	}
	for _, id := range ids {
		course := byID[id]
		if !course.Active {
			add(course.Code, "course is not active")
			continue
		}
		if course.IsFull() {
			add(course.Code, fmt.Sprintf("course is full (%d/%d)", course.EnrolledCount, course.Capacity))
		}
		if course.MinimumYearLevel != nil && *course.MinimumYearLevel != "" && !models.IsYearLevelSufficient(student.YearLevel, *course.MinimumYearLevel) {
			add(course.Code, "requires year level "+*course.MinimumYearLevel)
		}
		for _, pre := range course.Prerequisites {
			if !completed[pre.PrerequisiteCourseID] {
				add(course.Code, "prerequisite "+pre.PrerequisiteCode+" not completed")
			}
		}
		if duplicates[id] {
			add(course.Code, "course requested more than once")
		}
		if open[id] {
			add(course.Code, "student already has an active enrollment in this course")
		}
	}
	return violations, nil
}

// ProcessApproval resolves the pending step of decision.StepType and advances the batch.
func (s *WorkflowService) ProcessApproval(ctx context.Context, decision models.ApprovalDecision) (*models.EnrollmentBatch, error) {
	if err := s.validator.Struct(decision); err != nil {
		return nil, validationError(err, "invalid approval payload")
	}
	approved := *decision.Approved

	var (
		batch *models.EnrollmentBatch
		from  models.EnrollmentStatus
	)
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		batch, err = lockBatch(ctx, tx, s.repos.Enrollments, decision.BatchID)
		if err != nil {
			return err
		}
		from = batch.Status

		step, err := s.repos.Steps.FindPending(ctx, tx, batch.ID, decision.StepType)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("batch has no pending %s step", decision.StepType))
			}
			return internalErr(err, "failed to load approval step")
		}

		now := s.now()
		status := models.ApprovalApproved
		if !approved {
			status = models.ApprovalRejected
		}
		err = s.repos.Steps.Resolve(ctx, tx, repository.ResolveParams{
			ID:         step.ID,
			Status:     status,
			ApproverID: decision.ApproverID,
			Comments:   decision.Comments,
			ActionAt:   now,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidState, "approval step was already resolved")
			}
			return internalErr(err, "failed to resolve approval step")
		}

		switch {
		case !approved:
			return moveBatch(ctx, tx, s.repos.Enrollments, batch, models.StatusRejected, &now)
		case decision.StepType == models.StepDean:
			return moveBatch(ctx, tx, s.repos.Enrollments, batch, models.StatusAwaitingPayment, nil)
		case decision.StepType == models.StepRecords:
			return s.finalize(ctx, tx, batch, now)
		}

		next, ok := models.NextStep(decision.StepType)
		if !ok {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("no step follows %s", decision.StepType))
		}
		if _, err := openStep(ctx, tx, s.repos.Steps, batch.ID, next, now); err != nil {
			return err
		}
		nextStatus, _ := models.StatusForStep(next)
		return moveBatch(ctx, tx, s.repos.Enrollments, batch, nextStatus, nil)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(from), string(batch.Status))
	s.logger.Info("approval step resolved",
		zap.String("batch_id", batch.ID),
		zap.String("step", string(decision.StepType)),
		zap.String("approver_id", decision.ApproverID),
		zap.Bool("approved", approved),
		zap.String("from", string(from)),
		zap.String("to", string(batch.Status)))
	return batch, nil
}

// finalize enrolls the batch and takes one seat in each course.
func (s *WorkflowService) finalize(ctx context.Context, exec sqlx.ExtContext, batch *models.EnrollmentBatch, now time.Time) error {
	enrollments, err := s.repos.Enrollments.ListEnrollments(ctx, exec, batch.ID)
	if err != nil {
		return internalErr(err, "failed to load enrollments")
	}
	if err := moveBatch(ctx, exec, s.repos.Enrollments, batch, models.StatusEnrolled, &now); err != nil {
		return err
	}
	ids := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.CourseID)
	}
	if err := s.repos.Courses.IncrementEnrolled(ctx, exec, ids); err != nil {
		return internalErr(err, "failed to update course enrollment counts")
	}
	return nil
}

// PendingBatchesForRole lists batches waiting on role's step, oldest submission first.
func (s *WorkflowService) PendingBatchesForRole(ctx context.Context, role models.UserRole) ([]models.PendingBatch, error) {
	step, ok := models.StepForRole(role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role has no approval step")
	}
	batches, err := s.repos.Steps.ListPendingBatches(ctx, step)
	if err != nil {
		return nil, internalErr(err, "failed to list pending batches")
	}
	return batches, nil
}

// CurrentApprovalStep returns the batch's pending step, or nil when none is open.
func (s *WorkflowService) CurrentApprovalStep(ctx context.Context, batchID string) (*models.ApprovalStep, error) {
	if _, err := s.findBatch(ctx, batchID); err != nil {
		return nil, err
	}
	step, err := s.repos.Steps.CurrentPending(ctx, nil, batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, internalErr(err, "failed to load current approval step")
	}
	return step, nil
}

// CanApprove reports whether a user holding role may decide the batch's current step.
func (s *WorkflowService) CanApprove(ctx context.Context, batchID, userID string, role models.UserRole) (bool, error) {
	if userID == "" {
		return false, nil
	}
	want, ok := models.StepForRole(role)
	if !ok {
		return false, nil
	}
	step, err := s.CurrentApprovalStep(ctx, batchID)
	if err != nil || step == nil {
		return false, err
	}
	return step.StepType == want, nil
}

// GetBatch returns the batch with its enrollments and approval steps.
func (s *WorkflowService) GetBatch(ctx context.Context, batchID string) (*models.BatchDetail, error) {
	batch, err := s.findBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.repos.Enrollments.ListEnrollments(ctx, nil, batchID)
	if err != nil {
		return nil, internalErr(err, "failed to load enrollments")
	}
	steps, err := s.repos.Steps.ListByBatch(ctx, nil, batchID)
	if err != nil {
		return nil, internalErr(err, "failed to load approval steps")
	}
	detail := &models.BatchDetail{EnrollmentBatch: *batch, Enrollments: enrollments, Steps: steps}
	for i := range steps {
		if steps[i].Status == models.ApprovalPending {
			current := steps[i].StepType
			detail.CurrentStep = &current
		}
	}
	return detail, nil
}

// BatchHistory lists every step of the batch, oldest first.
func (s *WorkflowService) BatchHistory(ctx context.Context, batchID string) ([]models.ApprovalStep, error) {
	if _, err := s.findBatch(ctx, batchID); err != nil {
		return nil, err
	}
	steps, err := s.repos.Steps.ListByBatch(ctx, nil, batchID)
	if err != nil {
		return nil, internalErr(err, "failed to load approval steps")
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].CreatedAt.Before(steps[j].CreatedAt) })
	return steps, nil
}

// ApplyPaymentToBatch applies an already recorded payment to a batch awaiting payment.
func (s *WorkflowService) ApplyPaymentToBatch(ctx context.Context, batchID, paymentID string) (*models.BatchPaymentResult, error) {
	var (
		result *models.BatchPaymentResult
		from   models.EnrollmentStatus
	)
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		batch, err := s.lockAwaitingPayment(ctx, tx, batchID)
		if err != nil {
			return err
		}
		from = batch.Status

		payment, err := s.ledger.payment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.StudentID != batch.StudentID {
			return appErrors.Validation("Payment belongs to another student.", []appErrors.Violation{{Field: "payment_id", Message: "does not belong to the batch student"}})
		}

		account, err := s.ledger.recompute(ctx, tx, batch.StudentID, batch.Term())
		if err != nil {
			return err
		}
		// the payment is already in the ledger; add it back when it counted toward this term
		before := account.Balance()
		if payment.Semester == batch.Semester && payment.AcademicYear == batch.AcademicYear {
			before = before.Add(payment.Amount)
		}

		result, err = s.applyPayment(ctx, tx, batch, payment, before)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterPayment(from, result)
	return result, nil
}

// PayForBatch records a payment for the batch student and applies it to the batch gate.
func (s *WorkflowService) PayForBatch(ctx context.Context, batchID string, req models.RecordPaymentRequest) (*models.BatchPaymentResult, error) {
	var (
		result *models.BatchPaymentResult
		from   models.EnrollmentStatus
	)
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		batch, err := s.lockAwaitingPayment(ctx, tx, batchID)
		if err != nil {
			return err
		}
		from = batch.Status

		req.StudentID = batch.StudentID
		if req.Semester == "" && req.AcademicYear == "" {
			req.Semester = batch.Semester
			req.AcademicYear = batch.AcademicYear
		}

		account, err := s.ledger.recompute(ctx, tx, batch.StudentID, batch.Term())
		if err != nil {
			return err
		}
		before := account.Balance()

		payment, err := s.ledger.recordPayment(ctx, tx, req)
		if err != nil {
			return err
		}
		result, err = s.applyPayment(ctx, tx, batch, payment, before)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPayment(string(result.Payment.Method))
	s.afterPayment(from, result)
	return result, nil
}

// applyPayment accumulates payment into the batch's single gate record. The balance
// snapshot is fixed on first application; the percentage is always cumulative.
// Each payment is counted once, whichever batch it was first applied to.
func (s *WorkflowService) applyPayment(ctx context.Context, exec sqlx.ExtContext, batch *models.EnrollmentBatch, payment *models.Payment, balanceBefore decimal.Decimal) (*models.BatchPaymentResult, error) {
	ep, err := s.repos.Payments.FindByBatch(ctx, exec, batch.ID)
	create := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		create = true
		ep = &models.EnrollmentPayment{BatchID: batch.ID, AmountPaid: decimal.Zero, StudentBalance: balanceBefore}
	case err != nil:
		return nil, internalErr(err, "failed to load enrollment payment")
	}

	if err := s.repos.Payments.AddApplication(ctx, exec, batch.ID, payment.ID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "payment was already applied to an enrollment batch")
		}
		return nil, internalErr(err, "failed to record payment application")
	}

	paymentID := payment.ID
	ep.PaymentID = &paymentID
	ep.AmountPaid = ep.AmountPaid.Add(payment.Amount)
	ep.PaymentPercentage = CalculatePaymentPercentage(ep.AmountPaid, ep.StudentBalance)
	ep.MeetsRequirement = s.policy.Meets(ep.PaymentPercentage)

	if create {
		err = s.repos.Payments.Create(ctx, exec, ep)
	} else {
		err = s.repos.Payments.Update(ctx, exec, ep)
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment payment already recorded for this batch")
		}
		return nil, internalErr(err, "failed to save enrollment payment")
	}

	if ep.MeetsRequirement {
		if _, err := openStep(ctx, exec, s.repos.Steps, batch.ID, models.StepAccounting, s.now()); err != nil {
			return nil, err
		}
		if err := moveBatch(ctx, exec, s.repos.Enrollments, batch, models.StatusAccountingReview, nil); err != nil {
			return nil, err
		}
	}

	return &models.BatchPaymentResult{Payment: *payment, EnrollmentPayment: *ep, BatchStatus: batch.Status}, nil
}

func (s *WorkflowService) afterPayment(from models.EnrollmentStatus, result *models.BatchPaymentResult) {
	ep := result.EnrollmentPayment
	if ep.MeetsRequirement {
		s.metrics.RecordGate("batch", "met")
		s.metrics.RecordTransition(string(from), string(result.BatchStatus))
	} else {
		s.metrics.RecordGate("batch", "unmet")
	}
	s.logger.Info("payment applied to batch",
		zap.String("batch_id", ep.BatchID),
		zap.String("payment_id", result.Payment.ID),
		zap.String("amount_paid", ep.AmountPaid.StringFixed(2)),
		zap.String("percentage", ep.PaymentPercentage.StringFixed(2)),
		zap.Bool("meets_requirement", ep.MeetsRequirement))
}

func (s *WorkflowService) lockAwaitingPayment(ctx context.Context, exec sqlx.ExtContext, batchID string) (*models.EnrollmentBatch, error) {
	batch, err := lockBatch(ctx, exec, s.repos.Enrollments, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != models.StatusAwaitingPayment {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("batch is %s, not awaiting payment", batch.Status))
	}
	return batch, nil
}

func (s *WorkflowService) findBatch(ctx context.Context, batchID string) (*models.EnrollmentBatch, error) {
	batch, err := s.repos.Enrollments.FindBatch(ctx, nil, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment batch not found")
		}
		return nil, internalErr(err, "failed to load enrollment batch")
	}
	return batch, nil
}

// lockBatch reads the batch FOR UPDATE.
func lockBatch(ctx context.Context, exec sqlx.ExtContext, repo batchStatusWriter, batchID string) (*models.EnrollmentBatch, error) {
	batch, err := repo.LockBatch(ctx, exec, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment batch not found")
		}
		return nil, internalErr(err, "failed to load enrollment batch")
	}
	return batch, nil
}

// moveBatch writes status to the batch and all of its enrollments.
func moveBatch(ctx context.Context, exec sqlx.ExtContext, repo batchStatusWriter, batch *models.EnrollmentBatch, to models.EnrollmentStatus, completedAt *time.Time) error {
	if err := repo.UpdateStatus(ctx, exec, batch.ID, to, completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment batch not found")
		}
		return internalErr(err, "failed to update batch status")
	}
	batch.Status = to
	if completedAt != nil {
		batch.CompletedAt = completedAt
	}
	return nil
}

// openStep creates a pending step. The (batch, type) unique key turns races into conflicts.
func openStep(ctx context.Context, exec sqlx.ExtContext, repo stepCreator, batchID string, stepType models.ApprovalStepType, at time.Time) (*models.ApprovalStep, error) {
	step := &models.ApprovalStep{BatchID: batchID, StepType: stepType, Status: models.ApprovalPending, CreatedAt: at}
	if err := repo.Create(ctx, exec, step); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s step already exists for batch", stepType))
		}
		return nil, internalErr(err, "failed to create approval step")
	}
	return step, nil
}

func gateMessage(gate *models.QuarterGate) string {
	var b strings.Builder
	b.WriteString("Quarter payment requirement not met")
	if gate.Quarter != "" {
		b.WriteString(" for " + gate.Quarter)
	}
	if gate.RequiredAmount != nil {
		paid := decimal.Zero
		if gate.ActualAmount != nil {
			paid = *gate.ActualAmount
		}
		fmt.Fprintf(&b, ": %s of %s required paid", paid.StringFixed(2), gate.RequiredAmount.StringFixed(2))
	}
	if gate.PaymentDeadline != nil {
		b.WriteString(", due " + gate.PaymentDeadline.Format("2006-01-02"))
	}
	if gate.Balance != nil {
		b.WriteString(", balance " + gate.Balance.StringFixed(2))
	}
	b.WriteString(".")
	return b.String()
}

// dedupe keeps first occurrences in order and reports which ids repeated.
func dedupe(ids []string) ([]string, map[string]bool) {
	seen := make(map[string]bool, len(ids))
	dups := make(map[string]bool)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if seen[id] {
			dups[id] = true
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, dups
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
