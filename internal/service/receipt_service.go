package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/fee-ledger-api/internal/models"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
	"github.com/noah-isme/fee-ledger-api/pkg/export"
	"github.com/noah-isme/fee-ledger-api/pkg/storage"
)

const receiptExt = ".pdf"

type receiptPayments interface {
	FindByID(ctx context.Context, id int64) (*models.Payment, error)
	FindDetail(ctx context.Context, id int64) (*models.PaymentDetail, error)
	LatestForStudent(ctx context.Context, studentID int64) (*models.PaymentDetail, error)
	SumByStudent(ctx context.Context, studentID int64) (decimal.Decimal, int, error)
}

type receiptAttacher interface {
	AttachReceiptPath(ctx context.Context, id int64, path string) error
}

type artifactStore interface {
	CreateUnique(base, ext string, write func(io.Writer) error) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type receiptRenderer interface {
	Write(w io.Writer, r export.Receipt) error
}

// ReceiptConfig tunes receipt generation.
type ReceiptConfig struct {
	APIPrefix string
	School    export.School
}

// Download is an opened artifact ready to stream to a client.
type Download struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ReceiptService numbers, renders and stores payment receipts.
type ReceiptService struct {
	payments receiptPayments
	attacher receiptAttacher
	storage  artifactStore
	renderer receiptRenderer
	signer   *storage.SignedURLSigner
	policy   models.FeePolicy
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      ReceiptConfig
	now      func() time.Time
}

// NewReceiptService constructs a receipt service.
func NewReceiptService(payments receiptPayments, attacher receiptAttacher, store artifactStore, renderer receiptRenderer, signer *storage.SignedURLSigner, policy models.FeePolicy, metrics *MetricsService, logger *zap.Logger, cfg ReceiptConfig) *ReceiptService {
	if renderer == nil {
		renderer = export.NewReceiptRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ReceiptService{
		payments: payments,
		attacher: attacher,
		storage:  store,
		renderer: renderer,
		signer:   signer,
		policy:   policy,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate renders the receipt of a payment under a collision-free name and
// records the name on the payment. A payment whose student was deleted
// cannot be receipted.
func (s *ReceiptService) Generate(ctx context.Context, paymentID int64) (*models.Receipt, error) {
	detail, err := s.payments.FindDetail(ctx, paymentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Storage(err, "failed to load payment")
		}
		if _, findErr := s.payments.FindByID(ctx, paymentID); errors.Is(findErr, sql.ErrNoRows) {
			return nil, appErrors.NotFound("payment")
		}
		return nil, appErrors.NotFound("student of payment")
	}
	return s.generate(ctx, detail)
}

// GenerateLatest receipts the most recently recorded payment of a student.
func (s *ReceiptService) GenerateLatest(ctx context.Context, studentID int64) (*models.Receipt, error) {
	detail, err := s.payments.LatestForStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("payment for student")
		}
		return nil, appErrors.Storage(err, "failed to load latest payment")
	}
	return s.generate(ctx, detail)
}

// Content computes everything printed on the receipt of detail.
func (s *ReceiptService) Content(ctx context.Context, detail *models.PaymentDetail) (models.ReceiptContent, error) {
	paid, _, err := s.payments.SumByStudent(ctx, detail.StudentID)
	if err != nil {
		return models.ReceiptContent{}, appErrors.Storage(err, "failed to sum payments")
	}
	return models.ReceiptContent{
		Number:     detail.ReceiptNumber(),
		IssuedAt:   s.now(),
		Student:    detail.Student(),
		Payment:    detail.Payment,
		TotalFee:   s.policy.TotalFee(),
		PaidToDate: paid,
		Remaining:  s.policy.Remaining(paid),
		Status:     s.policy.StatusFor(paid),
	}, nil
}

func (s *ReceiptService) generate(ctx context.Context, detail *models.PaymentDetail) (*models.Receipt, error) {
	content, err := s.Content(ctx, detail)
	if err != nil {
		return nil, err
	}

	base := ReceiptFileToken(detail.StudentName, detail.Class, detail.PaidDate)
	name, err := s.storage.CreateUnique(base, receiptExt, func(w io.Writer) error {
		return s.renderer.Write(w, s.printable(content))
	})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to write receipt")
	}
	if err := s.attacher.AttachReceiptPath(ctx, detail.ID, name); err != nil {
		if delErr := s.storage.Delete(name); delErr != nil {
			s.logger.Warn("failed to remove unattached receipt", zap.String("file", name), zap.Error(delErr))
		}
		return nil, err
	}

	receipt := &models.Receipt{
		PaymentID:     detail.ID,
		ReceiptNumber: content.Number,
		FileName:      name,
	}
	if s.signer != nil {
		token, expiresAt, err := s.signer.Generate(strconv.FormatInt(detail.ID, 10), name)
		if err != nil {
			s.logger.Warn("failed to sign receipt link", zap.Int64("payment_id", detail.ID), zap.Error(err))
		} else {
			receipt.DownloadURL = fmt.Sprintf("%s/receipts/download/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token)
			receipt.ExpiresAt = expiresAt
		}
	}

	s.metrics.RecordReceipt()
	s.logger.Info("receipt generated",
		zap.Int64("payment_id", detail.ID),
		zap.String("receipt_number", content.Number),
		zap.String("file", name),
	)
	return receipt, nil
}

// ResolveDownload verifies a receipt token and opens the artifact.
func (s *ReceiptService) ResolveDownload(ctx context.Context, token string) (*Download, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "receipt links are disabled")
	}
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.storage.Open(claims.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.NotFound("receipt")
		}
		return nil, appErrors.Storage(err, "failed to open receipt")
	}
	return &Download{
		File:        file,
		Filename:    filepath.Base(claims.Path),
		ContentType: "application/pdf",
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

func (s *ReceiptService) printable(c models.ReceiptContent) export.Receipt {
	return export.Receipt{
		School:      s.cfg.School,
		Number:      c.Number,
		IssuedOn:    c.IssuedAt.Format("02 Jan 2006"),
		StudentName: c.Student.Name,
		Class:       c.Student.Class,
		Contact:     c.Student.Contact,
		MotherName:  c.Student.MotherName,
		FatherName:  c.Student.FatherName,
		ParentEmail: c.Student.ParentEmail,
		PaymentMode: string(c.Payment.PaymentMode),
		DueDate:     c.Payment.DueDate,
		PaidDate:    c.Payment.PaidDate,
		Amount:      c.Payment.Amount.StringFixed(2),
		TotalFee:    c.TotalFee.StringFixed(2),
		PaidToDate:  c.PaidToDate.StringFixed(2),
		Remaining:   c.Remaining.StringFixed(2),
		Status:      string(c.Status),
	}
}

// ReceiptFileToken is the base artifact name of a receipt:
// sanitized name, class and paid date joined by underscores.
func ReceiptFileToken(studentName, class, paidDate string) string {
	return SanitizeName(studentName) + "_" + class + "_" + paidDate
}

// SanitizeName keeps letters, digits, spaces, hyphens and underscores, then
// trims surrounding whitespace.
func SanitizeName(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
