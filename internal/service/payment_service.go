package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/fee-ledger-api/internal/models"
	"github.com/noah-isme/fee-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
)

type ledgerStore interface {
	InTx(ctx context.Context, fn func(repository.Ledger) error) error
}

type paymentReader interface {
	FindByID(ctx context.Context, id int64) (*models.Payment, error)
	FindDetail(ctx context.Context, id int64) (*models.PaymentDetail, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error)
	AttachReceiptPath(ctx context.Context, id int64, path string) error
}

// CreatePaymentRequest is the client payload for recording a payment. Status
// is derived and cannot be supplied.
type CreatePaymentRequest struct {
	StudentID   int64              `json:"student_id" validate:"required"`
	DueDate     string             `json:"due_date" validate:"required,datetime=2006-01-02"`
	PaidDate    string             `json:"paid_date" validate:"required,datetime=2006-01-02"`
	Amount      decimal.Decimal    `json:"amount"`
	PaymentMode models.PaymentMode `json:"payment_mode" validate:"required"`
}

// HistoryQuery holds the raw history filters. Empty fields are ignored.
type HistoryQuery struct {
	Class  string
	Status string
	From   string
	To     string
	Search string
}

// PaymentService records and deletes payments and keeps the derived status
// of each student consistent with the sum of their payments.
type PaymentService struct {
	mu         sync.Mutex
	store      ledgerStore
	payments   paymentReader
	reconciler StatusReconciler
	policy     models.FeePolicy
	cache      cacheInvalidator
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewPaymentService constructs the payment service.
func NewPaymentService(store ledgerStore, payments paymentReader, reconciler StatusReconciler, policy models.FeePolicy, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if reconciler == nil {
		reconciler = NewPaymentStatusReconciler(policy)
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		store:      store,
		payments:   payments,
		reconciler: reconciler,
		policy:     policy,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// Create validates and inserts a payment, then reconciles the student's
// status in the same transaction.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	req.DueDate = strings.TrimSpace(req.DueDate)
	req.PaidDate = strings.TrimSpace(req.PaidDate)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Validation("amount", "amount must be greater than zero")
	}
	// Amounts are stored as NUMERIC(12,2); anything finer would be rounded by
	// the store and no longer match the sum the reconciler compares.
	if !req.Amount.Equal(req.Amount.Truncate(2)) {
		return nil, appErrors.Validation("amount", "amount must have at most two decimal places")
	}
	if !req.PaymentMode.Valid() {
		return nil, appErrors.Validation("payment_mode", "payment_mode must be one of [Cash, Online, Cheque, Other]")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payment := &models.Payment{
		StudentID:   req.StudentID,
		DueDate:     req.DueDate,
		PaidDate:    req.PaidDate,
		Amount:      req.Amount,
		Status:      models.PaymentStatusPending,
		PaymentMode: req.PaymentMode,
		CreatedAt:   s.now().UTC(),
	}
	var result Reconciliation
	start := time.Now()
	err := s.store.InTx(ctx, func(l repository.Ledger) error {
		if err := l.Payments.LockStudent(ctx, req.StudentID); err != nil {
			return err
		}
		exists, err := l.Students.Exists(ctx, req.StudentID)
		if err != nil {
			return err
		}
		if !exists {
			return appErrors.Validation("student_id", "student does not exist")
		}
		if err := l.Payments.Insert(ctx, payment); err != nil {
			return err
		}
		result, err = s.reconciler.Reconcile(ctx, l.Payments, req.StudentID)
		return err
	})
	s.metrics.ObserveLedgerTx(OpPaymentCreated, time.Since(start))
	if err != nil {
		return nil, storageError(err, "failed to record payment")
	}
	payment.Status = result.Status

	s.afterMutation(ctx, OpPaymentCreated, result)
	s.logger.Info("payment recorded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("student_id", payment.StudentID),
		zap.String("amount", payment.Amount.String()),
		zap.String("status", string(result.Status)),
	)
	return payment, nil
}

// Delete removes a payment and reconciles its student in the same transaction.
func (s *PaymentService) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Reconciliation
	start := time.Now()
	err := s.store.InTx(ctx, func(l repository.Ledger) error {
		payment, err := l.Payments.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.NotFound("payment")
			}
			return err
		}
		if err := l.Payments.LockStudent(ctx, payment.StudentID); err != nil {
			return err
		}
		if err := l.Payments.Delete(ctx, id); err != nil {
			return err
		}
		result, err = s.reconciler.Reconcile(ctx, l.Payments, payment.StudentID)
		return err
	})
	s.metrics.ObserveLedgerTx(OpPaymentDeleted, time.Since(start))
	if err != nil {
		return storageError(err, "failed to delete payment")
	}

	s.afterMutation(ctx, OpPaymentDeleted, result)
	s.logger.Info("payment deleted",
		zap.Int64("payment_id", id),
		zap.Int64("student_id", result.StudentID),
		zap.String("status", string(result.Status)),
	)
	return nil
}

// AttachReceiptPath records the receipt artifact of a payment, overwriting
// any earlier value.
func (s *PaymentService) AttachReceiptPath(ctx context.Context, id int64, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return appErrors.Validation("receipt_path", "receipt_path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.payments.AttachReceiptPath(ctx, id, path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFound("payment")
		}
		return appErrors.Storage(err, "failed to attach receipt")
	}
	s.metrics.RecordLedgerMutation(OpReceiptAttached)
	return nil
}

// Get returns a payment joined with its student. Orphaned payments are
// returned with empty student fields.
func (s *PaymentService) Get(ctx context.Context, id int64) (*models.PaymentDetail, error) {
	detail, err := s.payments.FindDetail(ctx, id)
	if err == nil {
		return detail, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Storage(err, "failed to load payment")
	}
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("payment")
		}
		return nil, appErrors.Storage(err, "failed to load payment")
	}
	return &models.PaymentDetail{Payment: *payment}, nil
}

// Recent returns the newest payments, bounded by the policy's recent limit.
// statusFilter accepts All, Cleared or Pending.
func (s *PaymentService) Recent(ctx context.Context, statusFilter string) ([]models.PaymentDetail, error) {
	status, err := models.ParseStatusFilter(statusFilter)
	if err != nil {
		return nil, appErrors.Validation("status", "status must be one of [All, Cleared, Pending]")
	}
	rows, err := s.payments.List(ctx, models.PaymentFilter{Status: status, Limit: s.policy.RecentLimit()})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list recent payments")
	}
	return rows, nil
}

// History returns every payment matching all populated filters, newest first.
func (s *PaymentService) History(ctx context.Context, query HistoryQuery) ([]models.PaymentDetail, error) {
	filter, err := s.HistoryFilter(query)
	if err != nil {
		return nil, err
	}
	rows, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list payment history")
	}
	return rows, nil
}

// HistoryFilter validates raw history filters.
func (s *PaymentService) HistoryFilter(query HistoryQuery) (models.PaymentFilter, error) {
	status, err := models.ParseStatusFilter(query.Status)
	if err != nil {
		return models.PaymentFilter{}, appErrors.Validation("status", "status must be one of [All, Cleared, Pending]")
	}
	filter := models.PaymentFilter{
		Class:  strings.TrimSpace(query.Class),
		Status: status,
		Search: strings.TrimSpace(query.Search),
	}
	var from, to time.Time
	if strings.TrimSpace(query.From) != "" {
		if from, err = parseDate("from", query.From); err != nil {
			return models.PaymentFilter{}, err
		}
		filter.PaidFrom = from.Format(models.DateLayout)
	}
	if strings.TrimSpace(query.To) != "" {
		if to, err = parseDate("to", query.To); err != nil {
			return models.PaymentFilter{}, err
		}
		filter.PaidTo = to.Format(models.DateLayout)
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return models.PaymentFilter{}, appErrors.Validation("from", "from must not be after to")
	}
	return filter, nil
}

// ListForStudent returns every payment that references studentID, including
// payments whose student has been deleted.
func (s *PaymentService) ListForStudent(ctx context.Context, studentID int64) ([]models.Payment, error) {
	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list student payments")
	}
	return payments, nil
}

func (s *PaymentService) afterMutation(ctx context.Context, op string, result Reconciliation) {
	s.metrics.RecordLedgerMutation(op)
	s.metrics.RecordStatusChanges(result.Changed)
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, summaryCachePattern)
	}
}
