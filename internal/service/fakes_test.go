package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sis-enrollment-api/internal/models"
	"github.com/noah-isme/sis-enrollment-api/internal/repository"
)

var (
	fixedNow = time.Date(2024, time.August, 15, 10, 0, 0, 0, time.UTC)
	fallTerm = models.Term{Semester: "1st Semester", AcademicYear: "2024-2025"}
)

func fixedClock() time.Time { return fixedNow }

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

type txMock struct {
	db *sqlx.DB
}

func newTxMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &txMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (m *txMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

// expectCommits queues n begin/commit pairs.
func expectCommits(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func expectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}

// memStore backs every fake repository. Fakes ignore exec and act on the store directly.
type memStore struct {
	seq int

	students     map[string]*models.Student
	courses      map[string]*models.Course
	batches      map[string]*models.EnrollmentBatch
	enrollments  map[string][]models.Enrollment
	steps        []*models.ApprovalStep
	gates        map[string]*models.EnrollmentPayment
	applications map[string]string
	windows      []models.EnrollmentPeriod
	fees         []models.Fee
	payments     []*models.Payment
	accounts     map[string]*models.StudentAccount
	quarters     map[string]*models.QuarterPeriod
	requirements map[string]*models.QuarterPaymentRequirement
	notes        map[string]*models.PromissoryNote

	activeAtCalls int
}

func newMemStore() *memStore {
	return &memStore{
		students:     map[string]*models.Student{},
		courses:      map[string]*models.Course{},
		batches:      map[string]*models.EnrollmentBatch{},
		enrollments:  map[string][]models.Enrollment{},
		gates:        map[string]*models.EnrollmentPayment{},
		applications: map[string]string{},
		accounts:     map[string]*models.StudentAccount{},
		quarters:     map[string]*models.QuarterPeriod{},
		requirements: map[string]*models.QuarterPaymentRequirement{},
		notes:        map[string]*models.PromissoryNote{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) addStudent(id, level string) {
	s := &models.Student{ID: id, StudentNumber: "2024-" + id, FullName: "Student " + id, Active: true}
	if level != "" {
		s.YearLevel = strPtr(level)
	}
	m.students[id] = s
}

func (m *memStore) addCourse(c models.Course) {
	if c.Capacity == 0 {
		c.Capacity = 40
	}
	m.courses[c.ID] = &c
}

func (m *memStore) addFee(studentID string, term models.Term, amount int64) {
	m.fees = append(m.fees, models.Fee{
		ID:           m.nextID("fee"),
		StudentID:    studentID,
		FeeType:      "TUITION",
		Amount:       decimal.NewFromInt(amount),
		Semester:     term.Semester,
		AcademicYear: term.AcademicYear,
		IssuedAt:     fixedNow,
	})
}

func (m *memStore) stepsFor(batchID string) []models.ApprovalStep {
	var out []models.ApprovalStep
	for _, s := range m.steps {
		if s.BatchID == batchID {
			out = append(out, *s)
		}
	}
	return out
}

type fakeStudents struct{ *memStore }

func (f fakeStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

type fakeCourses struct{ *memStore }

func (f fakeCourses) ListWithPrerequisites(ctx context.Context, ids []string) ([]models.Course, error) {
	var out []models.Course
	for _, id := range ids {
		if c, ok := f.courses[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f fakeCourses) IncrementEnrolled(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	for _, id := range ids {
		if c, ok := f.courses[id]; ok {
			c.EnrolledCount++
		}
	}
	return nil
}

type fakeEnrollments struct{ *memStore }

func (f fakeEnrollments) CreateBatch(ctx context.Context, exec sqlx.ExtContext, batch *models.EnrollmentBatch, enrollments []models.Enrollment) error {
	for _, b := range f.batches {
		if b.StudentID == batch.StudentID && b.Term() == batch.Term() && !b.Status.Closed() {
			return repository.ErrDuplicate
		}
	}
	batch.ID = f.nextID("batch")
	batch.UpdatedAt = batch.SubmittedAt
	for i := range enrollments {
		enrollments[i].ID = f.nextID("enr")
		enrollments[i].BatchID = batch.ID
		enrollments[i].StudentID = batch.StudentID
		enrollments[i].Status = batch.Status
		enrollments[i].SubmittedAt = batch.SubmittedAt
	}
	cp := *batch
	f.batches[batch.ID] = &cp
	f.enrollments[batch.ID] = append([]models.Enrollment(nil), enrollments...)
	return nil
}

func (f fakeEnrollments) FindBatch(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentBatch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (f fakeEnrollments) LockBatch(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentBatch, error) {
	return f.FindBatch(ctx, exec, id)
}

func (f fakeEnrollments) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus, completedAt *time.Time) error {
	b, ok := f.batches[id]
	if !ok {
		return sql.ErrNoRows
	}
	b.Status = status
	if completedAt != nil {
		b.CompletedAt = completedAt
	}
	children := f.enrollments[id]
	for i := range children {
		children[i].Status = status
		if completedAt != nil {
			children[i].CompletedAt = completedAt
		}
	}
	return nil
}

func (f fakeEnrollments) ListEnrollments(ctx context.Context, exec sqlx.ExtContext, batchID string) ([]models.Enrollment, error) {
	return append([]models.Enrollment(nil), f.enrollments[batchID]...), nil
}

func (f fakeEnrollments) HasOpenBatch(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (bool, error) {
	for _, b := range f.batches {
		if b.StudentID == studentID && b.Term() == term && !b.Status.Closed() {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeEnrollments) CompletedCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	for _, list := range f.enrollments {
		for _, e := range list {
			if e.StudentID == studentID && e.Status == models.StatusCompleted {
				ids = append(ids, e.CourseID)
			}
		}
	}
	return ids, nil
}

func (f fakeEnrollments) OpenCourseIDs(ctx context.Context, studentID string, courseIDs []string) ([]string, error) {
	want := toSet(courseIDs)
	var ids []string
	for _, list := range f.enrollments {
		for _, e := range list {
			if e.StudentID == studentID && want[e.CourseID] && !e.Status.Closed() {
				ids = append(ids, e.CourseID)
			}
		}
	}
	return ids, nil
}

// seedCompleted stores a finished enrollment for the student.
func (m *memStore) seedCompleted(studentID, courseID string) {
	id := m.nextID("hist")
	m.batches[id] = &models.EnrollmentBatch{ID: id, StudentID: studentID, Semester: "2nd Semester", AcademicYear: "2023-2024", Status: models.StatusCompleted}
	m.enrollments[id] = []models.Enrollment{{ID: m.nextID("enr"), BatchID: id, StudentID: studentID, CourseID: courseID, Status: models.StatusCompleted}}
}

type fakeSteps struct{ *memStore }

func (f fakeSteps) Create(ctx context.Context, exec sqlx.ExtContext, step *models.ApprovalStep) error {
	for _, s := range f.steps {
		if s.BatchID == step.BatchID && s.StepType == step.StepType {
			return repository.ErrDuplicate
		}
	}
	step.ID = f.nextID("step")
	cp := *step
	f.steps = append(f.steps, &cp)
	return nil
}

func (f fakeSteps) FindPending(ctx context.Context, exec sqlx.ExtContext, batchID string, stepType models.ApprovalStepType) (*models.ApprovalStep, error) {
	for _, s := range f.steps {
		if s.BatchID == batchID && s.StepType == stepType && s.Status == models.ApprovalPending {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeSteps) CurrentPending(ctx context.Context, exec sqlx.ExtContext, batchID string) (*models.ApprovalStep, error) {
	for i := len(f.steps) - 1; i >= 0; i-- {
		s := f.steps[i]
		if s.BatchID == batchID && s.Status == models.ApprovalPending {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeSteps) Resolve(ctx context.Context, exec sqlx.ExtContext, params repository.ResolveParams) error {
	for _, s := range f.steps {
		if s.ID == params.ID && s.Status == models.ApprovalPending {
			s.Status = params.Status
			approver := params.ApproverID
			at := params.ActionAt
			s.ApproverID = &approver
			s.ActionAt = &at
			s.Comments = params.Comments
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeSteps) ListByBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) ([]models.ApprovalStep, error) {
	return f.stepsFor(batchID), nil
}

func (f fakeSteps) ListPendingBatches(ctx context.Context, stepType models.ApprovalStepType) ([]models.PendingBatch, error) {
	var out []models.PendingBatch
	for _, s := range f.steps {
		if s.StepType != stepType || s.Status != models.ApprovalPending {
			continue
		}
		b := f.batches[s.BatchID]
		out = append(out, models.PendingBatch{EnrollmentBatch: *b, StepID: s.ID, StepCreatedAt: s.CreatedAt})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

type fakeGates struct{ *memStore }

func (f fakeGates) FindByBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) (*models.EnrollmentPayment, error) {
	ep, ok := f.gates[batchID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *ep
	return &cp, nil
}

func (f fakeGates) Create(ctx context.Context, exec sqlx.ExtContext, ep *models.EnrollmentPayment) error {
	if _, ok := f.gates[ep.BatchID]; ok {
		return repository.ErrDuplicate
	}
	ep.ID = f.nextID("ep")
	cp := *ep
	f.gates[ep.BatchID] = &cp
	return nil
}

func (f fakeGates) Update(ctx context.Context, exec sqlx.ExtContext, ep *models.EnrollmentPayment) error {
	cp := *ep
	f.gates[ep.BatchID] = &cp
	return nil
}

func (f fakeGates) AddApplication(ctx context.Context, exec sqlx.ExtContext, batchID, paymentID string) error {
	if _, ok := f.applications[paymentID]; ok {
		return repository.ErrDuplicate
	}
	f.applications[paymentID] = batchID
	return nil
}

type fakeWindows struct{ *memStore }

func (f fakeWindows) FindActiveForTerm(ctx context.Context, term models.Term) (*models.EnrollmentPeriod, error) {
	for _, w := range f.windows {
		if w.Active && w.Semester == term.Semester && w.AcademicYear == term.AcademicYear {
			cp := w
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeAccounts struct{ *memStore }

func accountKey(studentID string, term models.Term) string {
	return studentID + "|" + term.Semester + "|" + term.AcademicYear
}

func (f fakeAccounts) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (*models.StudentAccount, error) {
	key := accountKey(studentID, term)
	a, ok := f.accounts[key]
	if !ok {
		a = &models.StudentAccount{ID: f.nextID("acct"), StudentID: studentID, Semester: term.Semester, AcademicYear: term.AcademicYear, CreatedAt: fixedNow}
		f.accounts[key] = a
	}
	cp := *a
	return &cp, nil
}

func (f fakeAccounts) SumFees(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, fee := range f.fees {
		if fee.StudentID == studentID && fee.Semester == term.Semester && fee.AcademicYear == term.AcademicYear {
			total = total.Add(fee.Amount)
		}
	}
	return total, nil
}

func (f fakeAccounts) SumPayments(ctx context.Context, exec sqlx.ExtContext, studentID string, term models.Term) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range f.payments {
		if p.StudentID == studentID && p.Semester == term.Semester && p.AcademicYear == term.AcademicYear {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (f fakeAccounts) SaveTotals(ctx context.Context, exec sqlx.ExtContext, accountID string, billed, paid decimal.Decimal, at time.Time) error {
	for _, a := range f.accounts {
		if a.ID == accountID {
			a.TotalBilled = billed
			a.TotalPaid = paid
			a.UpdatedAt = &at
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeAccounts) TotalBalance(ctx context.Context, exec sqlx.ExtContext, studentID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, fee := range f.fees {
		if fee.StudentID == studentID {
			total = total.Add(fee.Amount)
		}
	}
	for _, p := range f.payments {
		if p.StudentID == studentID {
			total = total.Sub(p.Amount)
		}
	}
	return total, nil
}

func (f fakeAccounts) StudentsWithBalance(ctx context.Context, term models.Term) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, fee := range f.fees {
		if seen[fee.StudentID] {
			continue
		}
		seen[fee.StudentID] = true
		billed, _ := f.SumFees(ctx, nil, fee.StudentID, term)
		paid, _ := f.SumPayments(ctx, nil, fee.StudentID, term)
		if billed.Sub(paid).IsPositive() {
			ids = append(ids, fee.StudentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f fakeAccounts) CreatePayment(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	payment.ID = f.nextID("pay")
	cp := *payment
	f.payments = append(f.payments, &cp)
	return nil
}

func (f fakeAccounts) FindPayment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeQuarters struct{ *memStore }

func (f fakeQuarters) CreatePeriod(ctx context.Context, period *models.QuarterPeriod) error {
	for _, q := range f.quarters {
		if q.Quarter == period.Quarter && q.Semester == period.Semester && q.AcademicYear == period.AcademicYear {
			return repository.ErrDuplicate
		}
	}
	period.ID = f.nextID("q")
	cp := *period
	f.quarters[period.ID] = &cp
	return nil
}

func (f fakeQuarters) ListPeriods(ctx context.Context) ([]models.QuarterPeriod, error) {
	var out []models.QuarterPeriod
	for _, q := range f.quarters {
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quarter < out[j].Quarter })
	return out, nil
}

func (f fakeQuarters) FindPeriod(ctx context.Context, id string) (*models.QuarterPeriod, error) {
	q, ok := f.quarters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *q
	return &cp, nil
}

func (f fakeQuarters) FindActiveAt(ctx context.Context, at time.Time) (*models.QuarterPeriod, error) {
	f.activeAtCalls++
	for _, q := range f.quarters {
		if q.Active && !at.Before(q.StartDate) && !at.After(q.EndDate) {
			cp := *q
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeQuarters) FindRequirement(ctx context.Context, exec sqlx.ExtContext, studentID, periodID string) (*models.QuarterPaymentRequirement, error) {
	for _, r := range f.requirements {
		if r.StudentID == studentID && r.QuarterPeriodID == periodID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeQuarters) LockRequirement(ctx context.Context, exec sqlx.ExtContext, id string) (*models.QuarterPaymentRequirement, error) {
	r, ok := f.requirements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (f fakeQuarters) InsertRequirementIfAbsent(ctx context.Context, exec sqlx.ExtContext, req *models.QuarterPaymentRequirement) (bool, error) {
	if _, err := f.FindRequirement(ctx, exec, req.StudentID, req.QuarterPeriodID); err == nil {
		return false, nil
	}
	req.ID = f.nextID("req")
	cp := *req
	f.requirements[req.ID] = &cp
	return true, nil
}

func (f fakeQuarters) UpdateRequirement(ctx context.Context, exec sqlx.ExtContext, req *models.QuarterPaymentRequirement) error {
	existing, ok := f.requirements[req.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.ActualAmount = req.ActualAmount
	existing.MeetsRequirement = req.MeetsRequirement
	existing.HasPromissoryNote = req.HasPromissoryNote
	existing.PromissoryNoteID = req.PromissoryNoteID
	existing.Status = req.Status
	existing.PaidAt = req.PaidAt
	return nil
}

func (f fakeQuarters) ListByStudent(ctx context.Context, studentID string) ([]models.QuarterPaymentRequirement, error) {
	var out []models.QuarterPaymentRequirement
	for _, r := range f.requirements {
		if r.StudentID == studentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f fakeQuarters) ListOverdue(ctx context.Context, at time.Time) ([]models.OverdueRequirement, error) {
	var out []models.OverdueRequirement
	for _, r := range f.requirements {
		q := f.quarters[r.QuarterPeriodID]
		if !r.MeetsRequirement && q.PaymentDeadline.Before(at) {
			out = append(out, models.OverdueRequirement{QuarterPaymentRequirement: *r, Quarter: q.Quarter, Semester: q.Semester, AcademicYear: q.AcademicYear, PaymentDeadline: q.PaymentDeadline})
		}
	}
	return out, nil
}

func (f fakeQuarters) MarkOverdue(ctx context.Context, at time.Time) (int64, error) {
	var n int64
	for _, r := range f.requirements {
		q := f.quarters[r.QuarterPeriodID]
		if !r.MeetsRequirement && r.Status == models.RequirementPending && q.PaymentDeadline.Before(at) {
			r.Status = models.RequirementOverdue
			n++
		}
	}
	return n, nil
}

type fakeNotes struct{ *memStore }

func (f fakeNotes) Create(ctx context.Context, exec sqlx.ExtContext, note *models.PromissoryNote) error {
	for _, n := range f.notes {
		if n.BatchID == note.BatchID {
			return repository.ErrDuplicate
		}
	}
	note.ID = f.nextID("note")
	cp := *note
	f.notes[note.ID] = &cp
	return nil
}

func (f fakeNotes) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PromissoryNote, error) {
	n, ok := f.notes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *n
	return &cp, nil
}

func (f fakeNotes) ExistsForBatch(ctx context.Context, exec sqlx.ExtContext, batchID string) (bool, error) {
	for _, n := range f.notes {
		if n.BatchID == batchID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeNotes) SetRequirement(ctx context.Context, exec sqlx.ExtContext, noteID, requirementID string) error {
	if n, ok := f.notes[noteID]; ok {
		n.RequirementID = &requirementID
	}
	return nil
}

func (f fakeNotes) Review(ctx context.Context, exec sqlx.ExtContext, params repository.ReviewParams) error {
	n, ok := f.notes[params.ID]
	if !ok || n.Status != models.NotePending {
		return sql.ErrNoRows
	}
	n.Status = params.Status
	reviewer := params.ReviewerID
	at := params.ReviewedAt
	n.ReviewerID = &reviewer
	n.ReviewedAt = &at
	n.ReviewerComments = params.Comments
	return nil
}

func (f fakeNotes) ListPending(ctx context.Context) ([]models.PromissoryNote, error) {
	var out []models.PromissoryNote
	for _, n := range f.notes {
		if n.Status == models.NotePending {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// engine wires every service over one memStore.
type engine struct {
	store    *memStore
	mock     sqlmock.Sqlmock
	accounts *AccountService
	quarters *QuarterService
	workflow *WorkflowService
	notes    *PromissoryNoteService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	store := newMemStore()
	tx, mock := newTxMock(t)

	quarters := NewQuarterService(tx, fakeQuarters{store}, fakeAccounts{store}, nil, WithQuarterClock(fixedClock))
	accounts := NewAccountService(tx, fakeAccounts{store}, quarters, nil, WithAccountClock(fixedClock))
	workflow := NewWorkflowService(tx, WorkflowRepositories{
		Students:    fakeStudents{store},
		Courses:     fakeCourses{store},
		Enrollments: fakeEnrollments{store},
		Steps:       fakeSteps{store},
		Payments:    fakeGates{store},
		Periods:     fakeWindows{store},
	}, quarters, accounts, nil, WithWorkflowClock(fixedClock))
	notes := NewPromissoryNoteService(tx, fakeNotes{store}, fakeEnrollments{store}, fakeSteps{store}, fakeGates{store}, accounts, quarters, nil, nil)
	notes.now = fixedClock

	return &engine{store: store, mock: mock, accounts: accounts, quarters: quarters, workflow: workflow, notes: notes}
}

// seedBasics adds a sophomore and three courses, CS201 requiring CS101.
func (e *engine) seedBasics() {
	e.store.addStudent("stu-1", "Sophomore")
	e.store.addCourse(models.Course{ID: "c-101", Code: "CS101", Name: "Intro", Credits: 3, Active: true})
	e.store.addCourse(models.Course{ID: "c-102", Code: "MATH101", Name: "Algebra", Credits: 4, Active: true})
	e.store.addCourse(models.Course{ID: "c-201", Code: "CS201", Name: "Data Structures", Credits: 3, Active: true,
		Prerequisites: []models.Prerequisite{{CourseID: "c-201", PrerequisiteCourseID: "c-101", PrerequisiteCode: "CS101"}}})
}

func (e *engine) submit(t *testing.T, courseIDs ...string) *models.BatchDetail {
	t.Helper()
	expectCommits(e.mock, 1)
	detail, err := e.workflow.CreateBatch(context.Background(), models.CreateBatchRequest{
		StudentID:    "stu-1",
		CourseIDs:    courseIDs,
		Semester:     fallTerm.Semester,
		AcademicYear: fallTerm.AcademicYear,
	})
	require.NoError(t, err)
	return detail
}

func (e *engine) decide(t *testing.T, batchID string, step models.ApprovalStepType, approved bool) *models.EnrollmentBatch {
	t.Helper()
	expectCommits(e.mock, 1)
	batch, err := e.workflow.ProcessApproval(context.Background(), models.ApprovalDecision{
		BatchID:    batchID,
		StepType:   step,
		ApproverID: "approver-" + string(step),
		Approved:   boolPtr(approved),
	})
	require.NoError(t, err)
	return batch
}
