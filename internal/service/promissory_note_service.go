package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

type promissoryNoteRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, note *models.PromissoryNote) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PromissoryNote, error)
	ExistsForBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) (bool, error)
	SetRequirement(ctx context.Context, exec sqlx.ExtContext, noteID, requirementID string) error
	Review(ctx context.Context, exec sqlx.ExtContext, params repository.ReviewParams) error
	ListPending(ctx context.Context) ([]models.PromissoryNote, error)
}

// quarterNoteLinker moves the current-quarter requirement along with the note.
type quarterNoteLinker interface {
	currentRequirement(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.QuarterPaymentRequirement, error)
	linkNote(ctx context.Context, exec sqlx.ExtContext, requirementID, noteID string) error
	approveViaNote(ctx context.Context, exec sqlx.ExtContext, requirementID string) error
	unlinkNote(ctx context.Context, exec sqlx.ExtContext, requirementID string) error
}

// PromissoryNoteService lets a student defer the batch payment gate subject to Campus Director review.
type PromissoryNoteService struct {
	tx          txProvider
	notes       promissoryNoteRepository
	enrollments batchStatusWriter
	steps       stepCreator
	payments    enrollmentPaymentRepository
	ledger      batchLedger
	quarter     quarterNoteLinker
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewPromissoryNoteService constructs the note service. quarter may be nil to skip requirement linking.
func NewPromissoryNoteService(tx txProvider, notes promissoryNoteRepository, enrollments batchStatusWriter, steps stepCreator, payments enrollmentPaymentRepository, ledger batchLedger, quarter quarterNoteLinker, metrics *MetricsService, logger *zap.Logger) *PromissoryNoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromissoryNoteService{
		tx:          tx,
		notes:       notes,
		enrollments: enrollments,
		steps:       steps,
		payments:    payments,
		ledger:      ledger,
		quarter:     quarter,
		metrics:     metrics,
		validator:   newValidator(),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit files a note for a batch awaiting payment and hands the batch to the Campus Director.
func (s *PromissoryNoteService) Submit(ctx context.Context, req models.SubmitNoteRequest) (*models.PromissoryNote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid promissory note payload")
	}
	var violations []appErrors.Violation
	if !req.AmountCovered.IsPositive() {
		violations = append(violations, appErrors.Violation{Field: "amount_covered", Message: "must be greater than zero"})
	}
	now := s.now()
	if !req.RepaymentDeadline.After(now) {
		violations = append(violations, appErrors.Violation{Field: "repayment_deadline", Message: "must be in the future"})
	}
	if len(violations) > 0 {
		return nil, appErrors.Validation("Invalid promissory note.", violations)
	}

	note := &models.PromissoryNote{
		BatchID:           req.BatchID,
		StudentID:         req.StudentID,
		AmountCovered:     req.AmountCovered,
		Reason:            strings.TrimSpace(req.Reason),
		RepaymentDeadline: req.RepaymentDeadline.UTC(),
		Status:            models.NotePending,
		SubmittedAt:       now,
	}
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		batch, err := lockBatch(ctx, tx, s.enrollments, req.BatchID)
		if err != nil {
			return err
		}
		if batch.StudentID != req.StudentID {
			return appErrors.Clone(appErrors.ErrForbidden, "batch belongs to another student")
		}
		if batch.Status != models.StatusAwaitingPayment {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("batch is %s, not awaiting payment", batch.Status))
		}
		exists, err := s.notes.ExistsForBatch(ctx, tx, batch.ID)
		if err != nil {
			return internalErr(err, "failed to check promissory notes")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "a promissory note was already submitted for this batch")
		}
		if err := s.notes.Create(ctx, tx, note); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "a promissory note was already submitted for this batch")
			}
			return internalErr(err, "failed to create promissory note")
		}
		if err := moveBatch(ctx, tx, s.enrollments, batch, models.StatusCampusDirectorReview, nil); err != nil {
			return err
		}
		return s.linkRequirement(ctx, tx, note)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(models.StatusAwaitingPayment), string(models.StatusCampusDirectorReview))
	s.logger.Info("promissory note submitted",
		zap.String("note_id", note.ID),
		zap.String("batch_id", note.BatchID),
		zap.String("amount_covered", note.AmountCovered.StringFixed(2)))
	return note, nil
}

func (s *PromissoryNoteService) linkRequirement(ctx context.Context, exec sqlx.ExtContext, note *models.PromissoryNote) error {
	if s.quarter == nil {
		return nil
	}
	req, err := s.quarter.currentRequirement(ctx, exec, note.StudentID)
	if err != nil || req == nil || req.MeetsRequirement || req.HasPromissoryNote {
		return err
	}
	if err := s.quarter.linkNote(ctx, exec, req.ID, note.ID); err != nil {
		return err
	}
	if err := s.notes.SetRequirement(ctx, exec, note.ID, req.ID); err != nil {
		return internalErr(err, "failed to link quarter requirement")
	}
	note.RequirementID = &req.ID
	return nil
}

// Approve accepts the note. The batch passes the payment gate without payment and
// moves on to Accounting review.
func (s *PromissoryNoteService) Approve(ctx context.Context, req models.ReviewNoteRequest) (*models.PromissoryNote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid review payload")
	}
	var note *models.PromissoryNote
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var (
			batch *models.EnrollmentBatch
			err   error
		)
		note, batch, err = s.begin(ctx, tx, req.NoteID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.review(ctx, tx, note, models.NoteApproved, req, now); err != nil {
			return err
		}
		if err := s.coverBatch(ctx, tx, batch, note); err != nil {
			return err
		}
		if _, err := openStep(ctx, tx, s.steps, batch.ID, models.StepAccounting, now); err != nil {
			return err
		}
		if err := moveBatch(ctx, tx, s.enrollments, batch, models.StatusAccountingReview, nil); err != nil {
			return err
		}
		if note.RequirementID != nil && s.quarter != nil {
			return s.quarter.approveViaNote(ctx, tx, *note.RequirementID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordGate("batch", "promissory")
	s.metrics.RecordTransition(string(models.StatusCampusDirectorReview), string(models.StatusAccountingReview))
	s.logger.Info("promissory note approved", zap.String("note_id", note.ID), zap.String("batch_id", note.BatchID), zap.String("reviewer_id", req.ReviewerID))
	return note, nil
}

// coverBatch writes the batch's gate record as met by promissory note, keeping any amount already paid.
func (s *PromissoryNoteService) coverBatch(ctx context.Context, exec sqlx.ExtContext, batch *models.EnrollmentBatch, note *models.PromissoryNote) error {
	noteID := note.ID
	ep, err := s.payments.FindByBatch(ctx, exec, batch.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		account, err := s.ledger.recompute(ctx, exec, batch.StudentID, batch.Term())
		if err != nil {
			return err
		}
		ep = &models.EnrollmentPayment{
			BatchID:             batch.ID,
			PromissoryNoteID:    &noteID,
			AmountPaid:          decimal.Zero,
			StudentBalance:      account.Balance(),
			PaymentPercentage:   CalculatePaymentPercentage(decimal.Zero, account.Balance()),
			MeetsRequirement:    true,
			UsingPromissoryNote: true,
		}
		if err := s.payments.Create(ctx, exec, ep); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "enrollment payment already recorded for this batch")
			}
			return internalErr(err, "failed to create enrollment payment")
		}
		return nil
	case err != nil:
		return internalErr(err, "failed to load enrollment payment")
	}

	ep.PromissoryNoteID = &noteID
	ep.MeetsRequirement = true
	ep.UsingPromissoryNote = true
	if err := s.payments.Update(ctx, exec, ep); err != nil {
		return internalErr(err, "failed to update enrollment payment")
	}
	return nil
}

// Reject declines the note with a mandatory reason. The batch returns to awaiting payment.
func (s *PromissoryNoteService) Reject(ctx context.Context, req models.ReviewNoteRequest) (*models.PromissoryNote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid review payload")
	}
	if req.Comments == nil || strings.TrimSpace(*req.Comments) == "" {
		return nil, appErrors.Validation("A reason is required to reject a promissory note.", []appErrors.Violation{{Field: "comments", Message: "is required"}})
	}
	var note *models.PromissoryNote
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var (
			batch *models.EnrollmentBatch
			err   error
		)
		note, batch, err = s.begin(ctx, tx, req.NoteID)
		if err != nil {
			return err
		}
		if err := s.review(ctx, tx, note, models.NoteRejected, req, s.now()); err != nil {
			return err
		}
		if err := moveBatch(ctx, tx, s.enrollments, batch, models.StatusAwaitingPayment, nil); err != nil {
			return err
		}
		if note.RequirementID != nil && s.quarter != nil {
			return s.quarter.unlinkNote(ctx, tx, *note.RequirementID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(models.StatusCampusDirectorReview), string(models.StatusAwaitingPayment))
	s.logger.Info("promissory note rejected", zap.String("note_id", note.ID), zap.String("batch_id", note.BatchID), zap.String("reviewer_id", req.ReviewerID))
	return note, nil
}

// ListPending returns notes awaiting review, oldest first.
func (s *PromissoryNoteService) ListPending(ctx context.Context) ([]models.PromissoryNote, error) {
	notes, err := s.notes.ListPending(ctx)
	if err != nil {
		return nil, internalErr(err, "failed to list pending promissory notes")
	}
	return notes, nil
}

// GetNote returns a note by id.
func (s *PromissoryNoteService) GetNote(ctx context.Context, id string) (*models.PromissoryNote, error) {
	note, err := s.notes.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promissory note not found")
		}
		return nil, internalErr(err, "failed to load promissory note")
	}
	return note, nil
}

// begin loads a pending note and locks its batch, which must be under Campus Director review.
func (s *PromissoryNoteService) begin(ctx context.Context, exec sqlx.ExtContext, noteID string) (*models.PromissoryNote, *models.EnrollmentBatch, error) {
	note, err := s.notes.FindByID(ctx, exec, noteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "promissory note not found")
		}
		return nil, nil, internalErr(err, "failed to load promissory note")
	}
	if note.Status != models.NotePending {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, "promissory note was already reviewed")
	}
	batch, err := lockBatch(ctx, exec, s.enrollments, note.BatchID)
	if err != nil {
		return nil, nil, err
	}
	if batch.Status != models.StatusCampusDirectorReview {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("batch is %s, not under campus director review", batch.Status))
	}
	return note, batch, nil
}

func (s *PromissoryNoteService) review(ctx context.Context, exec sqlx.ExtContext, note *models.PromissoryNote, status models.PromissoryNoteStatus, req models.ReviewNoteRequest, at time.Time) error {
	err := s.notes.Review(ctx, exec, repository.ReviewParams{
		ID:         note.ID,
		Status:     status,
		ReviewerID: req.ReviewerID,
		Comments:   req.Comments,
		ReviewedAt: at,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "promissory note was already reviewed")
		}
		return internalErr(err, "failed to review promissory note")
	}
	reviewer := req.ReviewerID
	note.Status = status
	note.ReviewerID = &reviewer
	note.ReviewedAt = &at
	note.ReviewerComments = req.Comments
	return nil
}
