package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/fee-ledger-api/internal/models"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id int64) error
}

type paymentTotals interface {
	SumByStudent(ctx context.Context, studentID int64) (decimal.Decimal, int, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// StudentRequest holds the mutable student fields for create and update.
type StudentRequest struct {
	Name        string `json:"name" validate:"required"`
	Class       string `json:"class" validate:"required"`
	Contact     string `json:"contact"`
	MotherName  string `json:"mother_name"`
	FatherName  string `json:"father_name"`
	ParentPhone string `json:"parent_phone"`
	ParentEmail string `json:"parent_email"`
}

func (r *StudentRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Class = strings.TrimSpace(r.Class)
	r.Contact = strings.TrimSpace(r.Contact)
	r.MotherName = strings.TrimSpace(r.MotherName)
	r.FatherName = strings.TrimSpace(r.FatherName)
	r.ParentPhone = strings.TrimSpace(r.ParentPhone)
	r.ParentEmail = strings.TrimSpace(r.ParentEmail)
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	payments  paymentTotals
	policy    models.FeePolicy
	cache     cacheInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, payments paymentTotals, policy models.FeePolicy, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      repo,
		payments:  payments,
		policy:    policy,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns students ordered by class then name, optionally paged.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if !filter.Paged() {
		size = total
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("student")
		}
		return nil, appErrors.Storage(err, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	student := &models.Student{CreatedDate: s.now().Format(models.DateLayout)}
	applyStudentRequest(student, req)
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Storage(err, "failed to create student")
	}
	s.afterMutation(ctx, OpStudentCreated)
	s.logger.Info("student created", zap.Int64("student_id", student.ID), zap.String("class", student.Class))
	return student, nil
}

// Update replaces every mutable field of a student.
func (s *StudentService) Update(ctx context.Context, id int64, req StudentRequest) (*models.Student, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyStudentRequest(student, req)
	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("student")
		}
		return nil, appErrors.Storage(err, "failed to update student")
	}
	s.afterMutation(ctx, OpStudentUpdated)
	return student, nil
}

// Delete removes the student row. Their payments stay in place as orphans.
func (s *StudentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFound("student")
		}
		return appErrors.Storage(err, "failed to delete student")
	}
	s.afterMutation(ctx, OpStudentDeleted)
	s.logger.Info("student deleted", zap.Int64("student_id", id))
	return nil
}

// FeeSummary reports the fee position of a student. Status stays empty until
// the first payment exists.
func (s *StudentService) FeeSummary(ctx context.Context, id int64) (*models.FeeSummary, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	paid, count, err := s.payments.SumByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to sum payments")
	}
	remaining := s.policy.Remaining(paid)
	summary := &models.FeeSummary{
		StudentID:    id,
		TotalFee:     s.policy.TotalFee(),
		Paid:         paid,
		Remaining:    remaining,
		PayFullDue:   remaining,
		PaymentCount: count,
	}
	if count > 0 {
		summary.Status = s.policy.StatusFor(paid)
	}
	return summary, nil
}

// Classes lists the accepted grade levels.
func (s *StudentService) Classes() []string {
	return s.policy.Classes()
}

func (s *StudentService) validate(req *StudentRequest) error {
	req.normalize()
	if err := s.validator.Struct(req); err != nil {
		return validationError(err)
	}
	if !s.policy.HasClass(req.Class) {
		return appErrors.Validation("class", "class must be one of ["+strings.Join(s.policy.Classes(), ", ")+"]")
	}
	return nil
}

func (s *StudentService) afterMutation(ctx context.Context, op string) {
	s.metrics.RecordLedgerMutation(op)
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, summaryCachePattern)
	}
}

func applyStudentRequest(student *models.Student, req StudentRequest) {
	student.Name = req.Name
	student.Class = req.Class
	student.Contact = req.Contact
	student.MotherName = req.MotherName
	student.FatherName = req.FatherName
	student.ParentPhone = req.ParentPhone
	student.ParentEmail = req.ParentEmail
}
