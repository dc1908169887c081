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

	"github.com/noah-isme/fee-ledger-api/internal/models"
)

var detailRowColumns = []string{
	"id", "student_id", "due_date", "paid_date", "amount", "status", "receipt_path", "payment_mode", "created_at",
	"student_name", "class", "contact", "mother_name", "father_name", "parent_number", "parent_email",
}

func TestPaymentRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	created := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments (student_id, due_date, paid_date, amount, status, receipt_path, payment_mode, created_at)")).
		WithArgs(int64(1), "2024-01-31", "2024-01-10", "8000", models.PaymentStatusPending, nil, models.PaymentModeCash, created).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

	payment := &models.Payment{
		StudentID:   1,
		DueDate:     "2024-01-31",
		PaidDate:    "2024-01-10",
		Amount:      decimal.NewFromInt(8000),
		Status:      models.PaymentStatusPending,
		PaymentMode: models.PaymentModeCash,
		CreatedAt:   created,
	}
	require.NoError(t, repo.Insert(context.Background(), payment))
	assert.Equal(t, int64(12), payment.ID)
	assert.Equal(t, "0012", payment.ReceiptNumber())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListAndsEveryFilter(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	expected := "WHERE 1=1 AND s.class = ? AND p.status = ? AND p.paid_date >= ? AND p.paid_date <= ? ORDER BY p.created_at DESC, p.id DESC"
	mock.ExpectQuery(regexp.QuoteMeta(expected)).
		WithArgs("JR KG", models.PaymentStatusCleared, "2024-01-01", "2024-01-31").
		WillReturnRows(sqlmock.NewRows(detailRowColumns).
			AddRow(3, 1, "2024-01-31", "2024-01-20", "11000", "Cleared", nil, "Online", time.Now(), "Asha", "JR KG", "", "", "", "", ""))

	rows, err := repo.List(context.Background(), models.PaymentFilter{
		Class:    "JR KG",
		Status:   models.PaymentStatusCleared,
		PaidFrom: "2024-01-01",
		PaidTo:   "2024-01-31",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Asha", rows[0].StudentName)
	assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(11000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListWithLimit(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY p.created_at DESC, p.id DESC LIMIT 20")).
		WillReturnRows(sqlmock.NewRows(detailRowColumns))

	rows, err := repo.List(context.Background(), models.PaymentFilter{Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindDetailOrphan(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments p JOIN students s ON s.id = p.student_id WHERE p.id = ?")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(detailRowColumns))

	_, err := repo.FindDetail(context.Background(), 5)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySetStudentStatus(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = ? WHERE student_id = ? AND status <> ?")).
		WithArgs(models.PaymentStatusCleared, int64(1), models.PaymentStatusCleared).
		WillReturnResult(sqlmock.NewResult(0, 2))

	changed, err := repo.SetStudentStatus(context.Background(), 1, models.PaymentStatusCleared)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySumByStudent(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) AS paid, COUNT(*) AS payments FROM payments WHERE student_id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"paid", "payments"}).AddRow("19000.004", 2))

	paid, count, err := repo.SumByStudent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "19000", paid.String())
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryLockStudentSkippedOnSQLite(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	require.NoError(t, repo.LockStudent(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryStatusCounts(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS total FROM payments WHERE student_id = ? GROUP BY status")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "total"}).AddRow("Pending", 2))

	counts, err := repo.StatusCounts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, map[models.PaymentStatus]int{models.PaymentStatusPending: 2}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryAttachReceiptPathMissing(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET receipt_path = ? WHERE id = ?")).
		WithArgs("Asha_JR KG_2024-01-10.pdf", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AttachReceiptPath(context.Background(), 42, "Asha_JR KG_2024-01-10.pdf")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
