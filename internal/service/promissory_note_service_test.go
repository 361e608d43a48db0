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

// awaitingPayment returns a batch that passed Dean review.
func (e *engine) awaitingPayment(t *testing.T) *models.BatchDetail {
	t.Helper()
	e.seedBasics()
	detail := e.submit(t, "c-101", "c-102")
	e.decide(t, detail.ID, models.StepDean, true)
	return detail
}

func (e *engine) submitNote(t *testing.T, batchID string) *models.PromissoryNote {
	t.Helper()
	expectCommits(e.mock, 1)
	note, err := e.notes.Submit(context.Background(), models.SubmitNoteRequest{
		BatchID: batchID, StudentID: "stu-1", AmountCovered: decimal.NewFromInt(5000),
		Reason: "family emergency", RepaymentDeadline: fixedNow.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	return note
}

func TestPromissorySubmitMovesBatch(t *testing.T) {
	e := newEngine(t)
	detail := e.awaitingPayment(t)

	note := e.submitNote(t, detail.ID)
	assert.Equal(t, models.NotePending, note.Status)
	assert.Equal(t, models.StatusCampusDirectorReview, e.store.batches[detail.ID].Status)
	assertLockstep(t, e.store, detail.ID)

	expectRollback(e.mock)
	_, err := e.notes.Submit(context.Background(), models.SubmitNoteRequest{
		BatchID: detail.ID, StudentID: "stu-1", AmountCovered: decimal.NewFromInt(5000),
		Reason: "again", RepaymentDeadline: fixedNow.AddDate(0, 1, 0),
	})
	requireCode(t, err, appErrors.ErrInvalidState.Code)

	pending, err := e.notes.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, note.ID, pending[0].ID)
}

func TestPromissorySubmitValidation(t *testing.T) {
	e := newEngine(t)
	detail := e.awaitingPayment(t)

	_, err := e.notes.Submit(context.Background(), models.SubmitNoteRequest{
		BatchID: detail.ID, StudentID: "stu-1", AmountCovered: decimal.NewFromInt(100),
		Reason: "late salary", RepaymentDeadline: fixedNow,
	})
	violations := violationsOf(t, err)
	assert.Equal(t, "repayment_deadline", violations[0].Field)

	expectRollback(e.mock)
	_, err = e.notes.Submit(context.Background(), models.SubmitNoteRequest{
		BatchID: detail.ID, StudentID: "stu-2", AmountCovered: decimal.NewFromInt(100),
		Reason: "not mine", RepaymentDeadline: fixedNow.AddDate(0, 0, 7),
	})
	requireCode(t, err, appErrors.ErrForbidden.Code)
	assert.Equal(t, models.StatusAwaitingPayment, e.store.batches[detail.ID].Status)
}

func TestPromissorySubmitRequiresAwaitingPayment(t *testing.T) {
	e := newEngine(t)
	e.seedBasics()
	detail := e.submit(t, "c-101")

	expectRollback(e.mock)
	_, err := e.notes.Submit(context.Background(), models.SubmitNoteRequest{
		BatchID: detail.ID, StudentID: "stu-1", AmountCovered: decimal.NewFromInt(100),
		Reason: "early", RepaymentDeadline: fixedNow.AddDate(0, 0, 7),
	})
	requireCode(t, err, appErrors.ErrInvalidState.Code)
}

func TestPromissoryApproveCreatesSingleGateRecord(t *testing.T) {
	e := newEngine(t)
	e.store.addFee("stu-1", fallTerm, 10000)
	detail := e.awaitingPayment(t)
	note := e.submitNote(t, detail.ID)

	expectCommits(e.mock, 1)
	approved, err := e.notes.Approve(context.Background(), models.ReviewNoteRequest{NoteID: note.ID, ReviewerID: "director-1"})
	require.NoError(t, err)
	assert.Equal(t, models.NoteApproved, approved.Status)

	require.Len(t, e.store.gates, 1)
	ep := e.store.gates[detail.ID]
	assert.True(t, ep.AmountPaid.IsZero())
	assert.True(t, ep.MeetsRequirement)
	assert.True(t, ep.UsingPromissoryNote)
	require.NotNil(t, ep.PromissoryNoteID)
	assert.Equal(t, note.ID, *ep.PromissoryNoteID)

	assert.Equal(t, models.StatusAccountingReview, e.store.batches[detail.ID].Status)
	assertLockstep(t, e.store, detail.ID)
	pending, err := e.workflow.PendingBatchesForRole(context.Background(), models.RoleAccounting)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	expectRollback(e.mock)
	_, err = e.notes.Approve(context.Background(), models.ReviewNoteRequest{NoteID: note.ID, ReviewerID: "director-1"})
	requireCode(t, err, appErrors.ErrInvalidState.Code)
	assert.Len(t, e.store.gates, 1)
}

func TestPromissoryApproveKeepsPartialPayment(t *testing.T) {
	e := newEngine(t)
	e.store.addFee("stu-1", fallTerm, 10000)
	detail := e.awaitingPayment(t)

	expectCommits(e.mock, 1)
	_, err := e.workflow.PayForBatch(context.Background(), detail.ID, models.RecordPaymentRequest{Amount: decimal.NewFromInt(1000), Method: models.PaymentCash})
	require.NoError(t, err)

	note := e.submitNote(t, detail.ID)
	expectCommits(e.mock, 1)
	_, err = e.notes.Approve(context.Background(), models.ReviewNoteRequest{NoteID: note.ID, ReviewerID: "director-1"})
	require.NoError(t, err)

	ep := e.store.gates[detail.ID]
	assert.True(t, decimal.NewFromInt(1000).Equal(ep.AmountPaid))
	assert.True(t, ep.MeetsRequirement)
	assert.True(t, ep.UsingPromissoryNote)
}

func TestPromissoryRejectReturnsToAwaitingPayment(t *testing.T) {
	e := newEngine(t)
	detail := e.awaitingPayment(t)
	note := e.submitNote(t, detail.ID)

	_, err := e.notes.Reject(context.Background(), models.ReviewNoteRequest{NoteID: note.ID, ReviewerID: "director-1", Comments: strPtr("  ")})
	requireCode(t, err, appErrors.ErrValidation.Code)

	expectCommits(e.mock, 1)
	rejected, err := e.notes.Reject(context.Background(), models.ReviewNoteRequest{NoteID: note.ID, ReviewerID: "director-1", Comments: strPtr("insufficient grounds")})
	require.NoError(t, err)
	assert.Equal(t, models.NoteRejected, rejected.Status)
	assert.Equal(t, models.StatusAwaitingPayment, e.store.batches[detail.ID].Status)
	assertLockstep(t, e.store, detail.ID)
	assert.Empty(t, e.store.gates)

	_, err = e.notes.GetNote(context.Background(), "missing")
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestPromissoryNoteLinksQuarterRequirement(t *testing.T) {
	e := newEngine(t)
	e.store.addFee("stu-1", fallTerm, 10000)
	detail := e.awaitingPayment(t)

	// the quarter opens after the batch was filed
	e.seedQuarter("q-1", fixedNow.AddDate(0, 0, 20))
	ok, err := e.quarters.MeetsCurrentQuarterRequirement(context.Background(), "stu-1")
	require.NoError(t, err)
	require.False(t, ok)

	note := e.submitNote(t, detail.ID)
	require.NotNil(t, note.RequirementID)
	req := e.store.requirements[*note.RequirementID]
	assert.Equal(t, models.RequirementPromissoryNoteSubmitted, req.Status)

	expectCommits(e.mock, 1)
	_, err = e.notes.Approve(context.Background(), models.ReviewNoteRequest{NoteID: note.ID, ReviewerID: "director-1"})
	require.NoError(t, err)
	assert.True(t, req.MeetsRequirement)
	assert.Equal(t, models.RequirementPromissoryApproved, req.Status)
}

func TestPromissoryRejectUnlinksQuarterRequirement(t *testing.T) {
	e := newEngine(t)
	e.store.addFee("stu-1", fallTerm, 10000)
	detail := e.awaitingPayment(t)
	e.seedQuarter("q-1", fixedNow.AddDate(0, 0, 20))
	_, err := e.quarters.MeetsCurrentQuarterRequirement(context.Background(), "stu-1")
	require.NoError(t, err)

	note := e.submitNote(t, detail.ID)
	expectCommits(e.mock, 1)
	_, err = e.notes.Reject(context.Background(), models.ReviewNoteRequest{NoteID: note.ID, ReviewerID: "director-1", Comments: strPtr("no")})
	require.NoError(t, err)

	req := e.store.requirements[*note.RequirementID]
	assert.False(t, req.HasPromissoryNote)
	assert.Nil(t, req.PromissoryNoteID)
	assert.Equal(t, models.RequirementPending, req.Status)
}
