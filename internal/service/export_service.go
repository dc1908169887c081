package service

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fee-ledger-api/internal/models"
	"github.com/noah-isme/fee-ledger-api/pkg/export"
	"github.com/noah-isme/fee-ledger-api/pkg/storage"
)

// HistoryHeaders are the columns of the payment history export.
var HistoryHeaders = []string{"Student Name", "Class", "Contact", "Due Date", "Paid Date", "Amount", "Status", "Created Date", "Payment Mode"}

// OutstandingHeaders are the columns of the outstanding balances export.
var OutstandingHeaders = []string{"Student Name", "Class", "Contact", "Paid", "Pending Amount"}

type historyLister interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, error)
}

type outstandingSource interface {
	Outstanding(ctx context.Context) iter.Seq2[models.OutstandingBalance, error]
}

type fileStorage interface {
	CreateUnique(base, ext string, write func(io.Writer) error) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetWriter interface {
	Write(w io.Writer, data export.Dataset) error
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	payments    historyLister
	outstanding outstandingSource
	storage     fileStorage
	csv         datasetWriter
	pdf         datasetWriter
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(payments historyLister, outstanding outstandingSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetWriter) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		payments:    payments,
		outstanding: outstanding,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Generate builds the dataset of job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, err := s.Dataset(ctx, job.Type, job.Params)
	if err != nil {
		return nil, err
	}

	var writer datasetWriter
	switch job.Params.Format {
	case models.ReportFormatCSV:
		writer = s.csv
	case models.ReportFormatPDF:
		writer = s.pdf
	default:
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}

	base := fmt.Sprintf("%s_%s", job.Type, s.now().UTC().Format("20060102_150405"))
	relPath, err := s.storage.CreateUnique(base, "."+string(job.Params.Format), func(w io.Writer) error {
		return writer.Write(w, dataset)
	})
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// Dataset assembles the rows of a report.
func (s *ExportService) Dataset(ctx context.Context, reportType models.ReportType, params models.ReportJobParams) (export.Dataset, error) {
	switch reportType {
	case models.ReportTypeHistory:
		return s.historyDataset(ctx, params.Filter())
	case models.ReportTypeOutstanding:
		return s.outstandingDataset(ctx)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %s", reportType)
	}
}

func (s *ExportService) historyDataset(ctx context.Context, filter models.PaymentFilter) (export.Dataset, error) {
	rows, err := s.payments.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, err
	}
	dataset := export.Dataset{Title: "Payment History", Headers: HistoryHeaders}
	for _, row := range rows {
		if err := dataset.AddRow(
			row.StudentName,
			row.Class,
			row.Contact,
			row.DueDate,
			row.PaidDate,
			row.Amount.StringFixed(2),
			string(row.Status),
			row.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			string(row.PaymentMode),
		); err != nil {
			return export.Dataset{}, err
		}
	}
	return dataset, nil
}

func (s *ExportService) outstandingDataset(ctx context.Context) (export.Dataset, error) {
	dataset := export.Dataset{Title: "Outstanding Fees", Headers: OutstandingHeaders}
	for entry, err := range s.outstanding.Outstanding(ctx) {
		if err != nil {
			return export.Dataset{}, err
		}
		if err := dataset.AddRow(
			entry.Student.Name,
			entry.Student.Class,
			entry.Student.Contact,
			entry.Paid.StringFixed(2),
			entry.Pending.StringFixed(2),
		); err != nil {
			return export.Dataset{}, err
		}
	}
	return dataset, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.Claims, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}
