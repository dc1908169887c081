package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fee-ledger-api/internal/models"
	"github.com/noah-isme/fee-ledger-api/internal/repository"
	"github.com/noah-isme/fee-ledger-api/pkg/config"
	"github.com/noah-isme/fee-ledger-api/pkg/database"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
	"github.com/noah-isme/fee-ledger-api/pkg/export"
	"github.com/noah-isme/fee-ledger-api/pkg/storage"
)

var testClasses = []string{"MINI KG", "JR KG", "SR KG"}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so creation order is unambiguous.
func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type ledgerFixture struct {
	db       *sqlx.DB
	policy   models.FeePolicy
	students *repository.StudentRepository
	payments *repository.PaymentRepository
	store    *repository.Store

	studentSvc *StudentService
	paymentSvc *PaymentService
	summarySvc *SummaryService
	receiptSvc *ReceiptService
	receipts   *storage.LocalStorage
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: config.DriverSQLite, Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	policy := models.NewFeePolicy(decimal.NewFromInt(19000), testClasses, 20)
	clock := newTestClock()

	f := &ledgerFixture{
		db:       db,
		policy:   policy,
		students: repository.NewStudentRepository(db),
		payments: repository.NewPaymentRepository(db),
		store:    repository.NewStore(db),
	}
	f.studentSvc = NewStudentService(f.students, f.payments, policy, nil, nil, nil, nil)
	f.studentSvc.now = clock.Now
	f.paymentSvc = NewPaymentService(f.store, f.payments, nil, policy, nil, nil, nil, nil)
	f.paymentSvc.now = clock.Now
	f.summarySvc = NewSummaryService(f.students, policy, nil, 0, nil)

	f.receipts, err = storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("receipt", "test-secret", time.Hour)
	f.receiptSvc = NewReceiptService(f.payments, f.paymentSvc, f.receipts, nil, signer, policy, nil, nil,
		ReceiptConfig{School: export.School{Name: "Little Steps"}})
	f.receiptSvc.now = clock.Now
	return f
}

func (f *ledgerFixture) addStudent(t *testing.T, name, class string) *models.Student {
	t.Helper()
	student, err := f.studentSvc.Create(context.Background(), StudentRequest{Name: name, Class: class, Contact: "98" + name})
	require.NoError(t, err)
	return student
}

func (f *ledgerFixture) pay(t *testing.T, studentID int64, amount int64, paidDate string) *models.Payment {
	t.Helper()
	payment, err := f.paymentSvc.Create(context.Background(), CreatePaymentRequest{
		StudentID:   studentID,
		DueDate:     paidDate,
		PaidDate:    paidDate,
		Amount:      decimal.NewFromInt(amount),
		PaymentMode: models.PaymentModeCash,
	})
	require.NoError(t, err)
	return payment
}

// assertConsistent checks that every payment row of the student carries the
// same status and that it matches the sum.
func (f *ledgerFixture) assertConsistent(t *testing.T, studentID int64) {
	t.Helper()
	ctx := context.Background()
	paid, count, err := f.payments.SumByStudent(ctx, studentID)
	require.NoError(t, err)
	counts, err := f.payments.StatusCounts(ctx, studentID)
	require.NoError(t, err)
	if count == 0 {
		assert.Empty(t, counts)
		return
	}
	require.Len(t, counts, 1, "mixed statuses for student %d: %v", studentID, counts)
	want := models.PaymentStatusPending
	if paid.GreaterThanOrEqual(f.policy.TotalFee()) {
		want = models.PaymentStatusCleared
	}
	assert.Equal(t, count, counts[want])
}

func (f *ledgerFixture) totals(t *testing.T) (pending, cleared decimal.Decimal) {
	t.Helper()
	ctx := context.Background()
	pending, err := f.summarySvc.PendingOutstandingTotal(ctx)
	require.NoError(t, err)
	cleared, err = f.summarySvc.ClearedValueTotal(ctx)
	require.NoError(t, err)
	return pending, cleared
}

func requireCode(t *testing.T, err error, code string) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "unexpected error type %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Error())
	return appErr
}

func TestLedgerSettlementScenario(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	s := f.addStudent(t, "Asha", "JR KG")

	pending, cleared := f.totals(t)
	assert.True(t, pending.Equal(decimal.NewFromInt(19000)))
	assert.True(t, cleared.IsZero())

	summary, err := f.studentSvc.FeeSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, summary.Status)
	assert.Equal(t, 0, summary.PaymentCount)

	first := f.pay(t, s.ID, 10000, "2024-01-10")
	assert.Equal(t, models.PaymentStatusPending, first.Status)
	f.assertConsistent(t, s.ID)
	pending, _ = f.totals(t)
	assert.True(t, pending.Equal(decimal.NewFromInt(9000)), pending.String())

	second := f.pay(t, s.ID, 9000, "2024-01-20")
	assert.Equal(t, models.PaymentStatusCleared, second.Status)
	f.assertConsistent(t, s.ID)

	stored, err := f.paymentSvc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCleared, stored.Status)

	pending, cleared = f.totals(t)
	assert.True(t, pending.IsZero(), pending.String())
	assert.True(t, cleared.Equal(decimal.NewFromInt(19000)), cleared.String())

	summary, err = f.studentSvc.FeeSummary(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCleared, summary.Status)
	assert.True(t, summary.Remaining.IsZero())
	assert.Equal(t, 2, summary.PaymentCount)
}

func TestLedgerDeletingOnlyPaymentRevertsStudent(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	s := f.addStudent(t, "Bala", "SR KG")
	payment := f.pay(t, s.ID, 19000, "2024-01-05")
	assert.Equal(t, models.PaymentStatusCleared, payment.Status)

	require.NoError(t, f.paymentSvc.Delete(ctx, payment.ID))

	pending, cleared := f.totals(t)
	assert.True(t, pending.Equal(decimal.NewFromInt(19000)))
	assert.True(t, cleared.IsZero())
	remaining, err := f.paymentSvc.ListForStudent(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	err = f.paymentSvc.Delete(ctx, payment.ID)
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestLedgerStatusMirrorsSumAcrossRandomSequences(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	students := []*models.Student{
		f.addStudent(t, "Chitra", "MINI KG"),
		f.addStudent(t, "Dev", "JR KG"),
	}
	live := map[int64][]int64{}

	for i := 0; i < 60; i++ {
		student := students[rng.Intn(len(students))]
		ids := live[student.ID]
		if len(ids) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(ids))
			require.NoError(t, f.paymentSvc.Delete(ctx, ids[idx]))
			live[student.ID] = append(ids[:idx], ids[idx+1:]...)
		} else {
			payment := f.pay(t, student.ID, int64(1000+rng.Intn(9000)), "2024-03-01")
			live[student.ID] = append(ids, payment.ID)
		}
		f.assertConsistent(t, student.ID)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	s := f.addStudent(t, "Esha", "JR KG")

	payment := &models.Payment{
		StudentID:   s.ID,
		DueDate:     "2024-01-01",
		PaidDate:    "2024-01-01",
		Amount:      decimal.NewFromInt(20000),
		Status:      models.PaymentStatusPending,
		PaymentMode: models.PaymentModeOnline,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.payments.Insert(ctx, payment))

	reconciler := NewPaymentStatusReconciler(f.policy)
	first, err := reconciler.Reconcile(ctx, f.payments, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCleared, first.Status)
	assert.Equal(t, int64(1), first.Changed)

	second, err := reconciler.Reconcile(ctx, f.payments, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCleared, second.Status)
	assert.Equal(t, int64(0), second.Changed)
}

func TestReceiptNumbersStrictlyIncrease(t *testing.T) {
	f := newLedgerFixture(t)
	s := f.addStudent(t, "Farah", "MINI KG")

	var last int64
	for i := 0; i < 5; i++ {
		payment := f.pay(t, s.ID, 100, "2024-01-02")
		assert.Greater(t, payment.ID, last)
		last = payment.ID
	}
	assert.Equal(t, "0005", models.FormatReceiptNumber(last))
}

func TestCreatePaymentValidation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	s := f.addStudent(t, "Gita", "SR KG")

	valid := CreatePaymentRequest{StudentID: s.ID, DueDate: "2024-01-31", PaidDate: "2024-01-10", Amount: decimal.NewFromInt(500), PaymentMode: models.PaymentModeCheque}
	cases := []struct {
		name  string
		edit  func(*CreatePaymentRequest)
		field string
	}{
		{"zero amount", func(r *CreatePaymentRequest) { r.Amount = decimal.Zero }, "amount"},
		{"negative amount", func(r *CreatePaymentRequest) { r.Amount = decimal.NewFromInt(-5) }, "amount"},
		{"sub-cent amount", func(r *CreatePaymentRequest) { r.Amount = decimal.RequireFromString("0.001") }, "amount"},
		{"amount rounding up to the fee", func(r *CreatePaymentRequest) { r.Amount = decimal.RequireFromString("18999.999") }, "amount"},
		{"impossible due date", func(r *CreatePaymentRequest) { r.DueDate = "2024-02-30" }, "due_date"},
		{"malformed paid date", func(r *CreatePaymentRequest) { r.PaidDate = "10/01/2024" }, "paid_date"},
		{"unknown mode", func(r *CreatePaymentRequest) { r.PaymentMode = "Barter" }, "payment_mode"},
		{"unknown student", func(r *CreatePaymentRequest) { r.StudentID = s.ID + 100 }, "student_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.edit(&req)
			_, err := f.paymentSvc.Create(ctx, req)
			appErr := requireCode(t, err, appErrors.ErrValidation.Code)
			assert.Equal(t, tc.field, appErr.Field)
		})
	}

	payments, err := f.paymentSvc.ListForStudent(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	req := valid
	req.Amount = decimal.RequireFromString("18999.990")
	payment, err := f.paymentSvc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	f.assertConsistent(t, s.ID)
}

type failingReconciler struct{}

func (failingReconciler) Reconcile(context.Context, statusLedger, int64) (Reconciliation, error) {
	return Reconciliation{}, errors.New("reconcile exploded")
}

func TestCreatePaymentRollsBackWhenReconciliationFails(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	s := f.addStudent(t, "Hari", "JR KG")
	f.pay(t, s.ID, 5000, "2024-01-03")

	broken := NewPaymentService(f.store, f.payments, failingReconciler{}, f.policy, nil, nil, nil, nil)
	_, err := broken.Create(ctx, CreatePaymentRequest{
		StudentID: s.ID, DueDate: "2024-01-31", PaidDate: "2024-01-31",
		Amount: decimal.NewFromInt(14000), PaymentMode: models.PaymentModeCash,
	})
	requireCode(t, err, appErrors.ErrStorage.Code)

	payments, err := f.paymentSvc.ListForStudent(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusPending, payments[0].Status)

	err = broken.Delete(ctx, payments[0].ID)
	requireCode(t, err, appErrors.ErrStorage.Code)
	payments, err = f.paymentSvc.ListForStudent(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestHistoryCombinesEveryFilter(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	asha := f.addStudent(t, "Asha", "JR KG")
	bala := f.addStudent(t, "Bala", "JR KG")
	chitra := f.addStudent(t, "Chitra", "SR KG")

	january := f.pay(t, asha.ID, 19000, "2024-01-15")
	f.pay(t, asha.ID, 100, "2024-02-05")
	f.pay(t, bala.ID, 5000, "2024-01-20")
	f.pay(t, chitra.ID, 19000, "2024-01-10")

	rows, err := f.paymentSvc.History(ctx, HistoryQuery{Class: "JR KG", Status: "Cleared", From: "2024-01-01", To: "2024-01-31"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, january.ID, rows[0].ID)

	rows, err = f.paymentSvc.History(ctx, HistoryQuery{Status: "Pending"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bala", rows[0].StudentName)

	rows, err = f.paymentSvc.History(ctx, HistoryQuery{Search: "chi"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SR KG", rows[0].Class)

	rows, err = f.paymentSvc.History(ctx, HistoryQuery{From: "2024-02-01"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = f.paymentSvc.History(ctx, HistoryQuery{Status: "All"})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].CreatedAt.After(rows[i-1].CreatedAt))
	}

	_, err = f.paymentSvc.History(ctx, HistoryQuery{From: "2024-02-01", To: "2024-01-01"})
	requireCode(t, err, appErrors.ErrValidation.Code)
	_, err = f.paymentSvc.History(ctx, HistoryQuery{Status: "Overdue"})
	requireCode(t, err, appErrors.ErrValidation.Code)
}

func TestRecentIsBoundedAndNewestFirst(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	s := f.addStudent(t, "Isha", "MINI KG")

	var newest int64
	for i := 0; i < 22; i++ {
		newest = f.pay(t, s.ID, 10, "2024-01-01").ID
	}
	rows, err := f.paymentSvc.Recent(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 20)
	assert.Equal(t, newest, rows[0].ID)

	rows, err = f.paymentSvc.Recent(ctx, "Cleared")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeletingStudentOrphansPayments(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	s := f.addStudent(t, "Jaya", "SR KG")
	payment := f.pay(t, s.ID, 4000, "2024-01-08")

	require.NoError(t, f.studentSvc.Delete(ctx, s.ID))
	requireCode(t, f.studentSvc.Delete(ctx, s.ID), appErrors.ErrNotFound.Code)

	orphans, err := f.paymentSvc.ListForStudent(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, payment.ID, orphans[0].ID)

	detail, err := f.paymentSvc.Get(ctx, payment.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.StudentName)

	history, err := f.paymentSvc.History(ctx, HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = f.receiptSvc.Generate(ctx, payment.ID)
	requireCode(t, err, appErrors.ErrNotFound.Code)

	pending, _ := f.totals(t)
	assert.True(t, pending.IsZero())
}

func TestReceiptGenerationNamesArtifactsUniquely(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	s := f.addStudent(t, "K. Asha!", "JR KG")
	first := f.pay(t, s.ID, 10000, "2024-01-10")
	second := f.pay(t, s.ID, 2000, "2024-01-10")

	r1, err := f.receiptSvc.Generate(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "K Asha_JR KG_2024-01-10.pdf", r1.FileName)
	assert.Equal(t, models.FormatReceiptNumber(first.ID), r1.ReceiptNumber)

	r2, err := f.receiptSvc.Generate(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "K Asha_JR KG_2024-01-10_1.pdf", r2.FileName)

	r3, err := f.receiptSvc.GenerateLatest(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, r3.PaymentID)
	assert.Equal(t, "K Asha_JR KG_2024-01-10_2.pdf", r3.FileName)

	stored, err := f.paymentSvc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReceiptPath)
	assert.Equal(t, r2.FileName, *stored.ReceiptPath)

	require.NotEmpty(t, r3.DownloadURL)
	token := extractToken(r3.DownloadURL)
	download, err := f.receiptSvc.ResolveDownload(ctx, token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, r3.FileName, download.Filename)

	_, err = f.receiptSvc.ResolveDownload(ctx, token+"x")
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestReceiptContentReportsBalance(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	s := f.addStudent(t, "Lata", "MINI KG")
	payment := f.pay(t, s.ID, 12500, "2024-04-01")

	detail, err := f.payments.FindDetail(ctx, payment.ID)
	require.NoError(t, err)
	content, err := f.receiptSvc.Content(ctx, detail)
	require.NoError(t, err)
	assert.Equal(t, models.FormatReceiptNumber(payment.ID), content.Number)
	assert.True(t, content.PaidToDate.Equal(decimal.NewFromInt(12500)))
	assert.True(t, content.Remaining.Equal(decimal.NewFromInt(6500)))
	assert.Equal(t, models.PaymentStatusPending, content.Status)
	assert.Equal(t, "Lata", content.Student.Name)
}

func TestOutstandingIsOrderedAndRestartable(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	zara := f.addStudent(t, "Zara", "JR KG")
	f.addStudent(t, "Anil", "SR KG")
	f.addStudent(t, "Bina", "JR KG")
	paid := f.addStudent(t, "Cyrus", "JR KG")
	f.pay(t, paid.ID, 20000, "2024-01-01")
	f.pay(t, zara.ID, 4000, "2024-01-01")

	seq := f.summarySvc.Outstanding(ctx)
	var names []string
	for entry, err := range seq {
		require.NoError(t, err)
		names = append(names, entry.Student.Name)
		if entry.Student.Name == "Zara" {
			assert.True(t, entry.Pending.Equal(decimal.NewFromInt(15000)))
		}
	}
	assert.Equal(t, []string{"Bina", "Zara", "Anil"}, names)

	f.pay(t, zara.ID, 15000, "2024-01-02")
	names = names[:0]
	for entry, err := range seq {
		require.NoError(t, err)
		names = append(names, entry.Student.Name)
	}
	assert.Equal(t, []string{"Bina", "Anil"}, names)

	for entry, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, "Bina", entry.Student.Name)
		break
	}
}

func TestClearedValueCountsOverpaymentInFull(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	over := f.addStudent(t, "Mina", "JR KG")
	part := f.addStudent(t, "Nora", "JR KG")
	f.pay(t, over.ID, 15000, "2024-01-01")
	f.pay(t, over.ID, 6000, "2024-01-02")
	f.pay(t, part.ID, 4000, "2024-01-03")

	pending, cleared := f.totals(t)
	assert.True(t, cleared.Equal(decimal.NewFromInt(21000)), cleared.String())
	assert.True(t, pending.Equal(decimal.NewFromInt(15000)), pending.String())

	summary, cached, err := f.summarySvc.Summary(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, summary.StudentCount)
	assert.Equal(t, 1, summary.ClearedStudents)
	assert.Equal(t, 1, summary.OutstandingStudents)
	assert.True(t, summary.ClearedValue.Equal(cleared))
	assert.True(t, summary.PendingOutstanding.Equal(pending))
}

func TestAttachReceiptPathOverwrites(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	s := f.addStudent(t, "Omar", "SR KG")
	payment := f.pay(t, s.ID, 100, "2024-01-01")

	require.NoError(t, f.paymentSvc.AttachReceiptPath(ctx, payment.ID, "a.pdf"))
	require.NoError(t, f.paymentSvc.AttachReceiptPath(ctx, payment.ID, "b.pdf"))
	stored, err := f.paymentSvc.Get(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", *stored.ReceiptPath)

	requireCode(t, f.paymentSvc.AttachReceiptPath(ctx, payment.ID+99, "c.pdf"), appErrors.ErrNotFound.Code)
	requireCode(t, f.paymentSvc.AttachReceiptPath(ctx, payment.ID, " "), appErrors.ErrValidation.Code)
}
