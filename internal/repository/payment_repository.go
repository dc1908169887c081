package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/fee-ledger-api/internal/models"
)

const (
	paymentColumns = "p.id, p.student_id, p.due_date, p.paid_date, p.amount, p.status, p.receipt_path, p.payment_mode, p.created_at"
	detailColumns  = paymentColumns + ", s.name AS student_name, s.class, s.contact, s.mother_name, s.father_name, s.parent_number, s.parent_email"
)

// PaymentRepository manages payment rows.
type PaymentRepository struct {
	db sqlx.ExtContext
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return newPaymentRepository(db)
}

func newPaymentRepository(db sqlx.ExtContext) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Insert stores payment and writes the assigned id back.
func (r *PaymentRepository) Insert(ctx context.Context, payment *models.Payment) error {
	const query = `INSERT INTO payments (student_id, due_date, paid_date, amount, status, receipt_path, payment_mode, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := sqlx.GetContext(ctx, r.db, &payment.ID, r.db.Rebind(query),
		payment.StudentID, payment.DueDate, payment.PaidDate, payment.Amount,
		payment.Status, payment.ReceiptPath, payment.PaymentMode, payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// FindByID returns the bare payment row, even when its student is gone.
func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	query := r.db.Rebind("SELECT " + paymentColumns + " FROM payments p WHERE p.id = ?")
	if err := sqlx.GetContext(ctx, r.db, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindDetail returns the payment joined with its student. Orphaned payments
// yield sql.ErrNoRows.
func (r *PaymentRepository) FindDetail(ctx context.Context, id int64) (*models.PaymentDetail, error) {
	var detail models.PaymentDetail
	query := r.db.Rebind("SELECT " + detailColumns + " FROM payments p JOIN students s ON s.id = p.student_id WHERE p.id = ?")
	if err := sqlx.GetContext(ctx, r.db, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// LatestForStudent returns the most recently recorded payment of a student.
func (r *PaymentRepository) LatestForStudent(ctx context.Context, studentID int64) (*models.PaymentDetail, error) {
	var detail models.PaymentDetail
	query := r.db.Rebind("SELECT " + detailColumns + ` FROM payments p JOIN students s ON s.id = p.student_id
WHERE p.student_id = ? ORDER BY p.created_at DESC, p.id DESC LIMIT 1`)
	if err := sqlx.GetContext(ctx, r.db, &detail, query, studentID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByStudent returns every payment referencing studentID, newest first.
// It does not join students, so orphaned payments stay visible.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.Payment, error) {
	payments := []models.Payment{}
	query := r.db.Rebind("SELECT " + paymentColumns + " FROM payments p WHERE p.student_id = ? ORDER BY p.created_at DESC, p.id DESC")
	if err := sqlx.SelectContext(ctx, r.db, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student payments: %w", err)
	}
	return payments, nil
}

// List returns joined rows newest first. Every populated filter field is
// ANDed; a positive Limit bounds the result.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Class != "" {
		conditions = append(conditions, "s.class = ?")
		args = append(args, filter.Class)
	}
	if filter.Status != "" {
		conditions = append(conditions, "p.status = ?")
		args = append(args, filter.Status)
	}
	if filter.PaidFrom != "" {
		conditions = append(conditions, "p.paid_date >= ?")
		args = append(args, filter.PaidFrom)
	}
	if filter.PaidTo != "" {
		conditions = append(conditions, "p.paid_date <= ?")
		args = append(args, filter.PaidTo)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := likePattern(term)
		conditions = append(conditions, `(LOWER(s.name) LIKE ? ESCAPE '\' OR LOWER(s.class) LIKE ? ESCAPE '\' OR LOWER(s.contact) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := fmt.Sprintf("SELECT %s FROM payments p JOIN students s ON s.id = p.student_id WHERE %s ORDER BY p.created_at DESC, p.id DESC",
		detailColumns, strings.Join(conditions, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows := []models.PaymentDetail{}
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return rows, nil
}

// Delete removes a payment row; sql.ErrNoRows when absent.
func (r *PaymentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM payments WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return requireAffected(res, "delete payment")
}

// AttachReceiptPath sets receipt_path, overwriting any earlier value.
func (r *PaymentRepository) AttachReceiptPath(ctx context.Context, id int64, path string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("UPDATE payments SET receipt_path = ? WHERE id = ?"), path, id)
	if err != nil {
		return fmt.Errorf("attach receipt path: %w", err)
	}
	return requireAffected(res, "attach receipt path")
}

// LockStudent serialises ledger writes for one student until the surrounding
// transaction ends. SQLite already allows a single writer, so it is a no-op there.
func (r *PaymentRepository) LockStudent(ctx context.Context, studentID int64) error {
	if !isPostgres(r.db) {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", studentID); err != nil {
		return fmt.Errorf("lock student %d: %w", studentID, err)
	}
	return nil
}

// SumByStudent returns the cumulative amount and the number of payments of a student.
func (r *PaymentRepository) SumByStudent(ctx context.Context, studentID int64) (decimal.Decimal, int, error) {
	var row struct {
		Paid  decimal.Decimal `db:"paid"`
		Count int             `db:"payments"`
	}
	query := r.db.Rebind("SELECT COALESCE(SUM(amount), 0) AS paid, COUNT(*) AS payments FROM payments WHERE student_id = ?")
	if err := sqlx.GetContext(ctx, r.db, &row, query, studentID); err != nil {
		return decimal.Zero, 0, fmt.Errorf("sum student payments: %w", err)
	}
	// Amounts carry at most two places; SQLite sums them as REAL, so rounding
	// only removes float noise.
	return row.Paid.Round(2), row.Count, nil
}

// SetStudentStatus writes status onto every payment of the student whose
// status differs and returns how many rows changed.
func (r *PaymentRepository) SetStudentStatus(ctx context.Context, studentID int64, status models.PaymentStatus) (int64, error) {
	query := r.db.Rebind("UPDATE payments SET status = ? WHERE student_id = ? AND status <> ?")
	res, err := r.db.ExecContext(ctx, query, status, studentID, status)
	if err != nil {
		return 0, fmt.Errorf("set student status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set student status rows affected: %w", err)
	}
	return affected, nil
}

// StatusCounts returns how many payment rows carry each status.
func (r *PaymentRepository) StatusCounts(ctx context.Context, studentID int64) (map[models.PaymentStatus]int, error) {
	var rows []struct {
		Status models.PaymentStatus `db:"status"`
		Count  int                  `db:"total"`
	}
	query := r.db.Rebind("SELECT status, COUNT(*) AS total FROM payments WHERE student_id = ? GROUP BY status")
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("count student statuses: %w", err)
	}
	counts := make(map[models.PaymentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
