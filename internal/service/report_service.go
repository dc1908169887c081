package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fee-ledger-api/internal/dto"
	"github.com/noah-isme/fee-ledger-api/internal/models"
	"github.com/noah-isme/fee-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
	"github.com/noah-isme/fee-ledger-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
	MarkExpired(ctx context.Context, id string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

// ReportService orchestrates report job lifecycle management.
type ReportService struct {
	repo      reportJobStore
	queue     jobDispatcher
	exporter  *ExportService
	filters   *PaymentService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// NewReportService constructs the report service. filters validates history
// options the same way the history view does.
func NewReportService(repo reportJobStore, queue jobDispatcher, exporter *ExportService, filters *PaymentService, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:      repo,
		queue:     queue,
		exporter:  exporter,
		filters:   filters,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob validates request, persists job, and enqueues processing.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest) (*dto.ReportJobResponse, error) {
	params, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}
	job := &models.ReportJob{
		Type:     req.Type,
		Params:   params,
		Status:   models.ReportStatusQueued,
		Progress: 0,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Storage(err, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: string(job.Type)}); err != nil {
		status := models.ReportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	s.logger.Info("report job queued", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients.
func (s *ReportService) GetStatus(ctx context.Context, id string) (*dto.ReportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("report job")
		}
		return nil, appErrors.Storage(err, "failed to load report job")
	}
	resp := &dto.ReportStatusResponse{
		ID:       job.ID,
		Type:     job.Type,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*Download, error) {
	claims, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("report job")
		}
		return nil, appErrors.Storage(err, "failed to load report job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.exporter.Open(claims.Path)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to open export file")
	}
	return &Download{
		File:        file,
		Filename:    filepath.Base(claims.Path),
		ContentType: contentTypeFor(job.Params.Format),
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs (e.g. after process restart).
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued report jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: string(job.Type)}); err != nil {
			s.logger.Warn("failed to requeue pending job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired(ctx)
			}
		}
	}()
}

// CleanupExpired deletes artifacts of jobs finished longer than the result
// TTL ago and clears their links.
func (s *ReportService) CleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
		if err != nil {
			s.logger.Warn("cleanup list failed", zap.Error(err))
			return
		}
		cleared := 0
		for _, job := range expired {
			if job.ResultURL == nil {
				continue
			}
			if token := extractToken(*job.ResultURL); token != "" {
				if claims, err := s.exporter.ParseToken(token, true); err == nil {
					if err := s.exporter.Delete(claims.Path); err != nil {
						s.logger.Warn("cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
					}
				}
			}
			if err := s.repo.MarkExpired(ctx, job.ID); err != nil {
				s.logger.Warn("cleanup mark failed", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			cleared++
		}
		if len(expired) < 100 || cleared == 0 {
			break
		}
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("filesystem cleanup failed", zap.Error(err))
	}
}

func (s *ReportService) validateRequest(req dto.ReportRequest) (models.ReportJobParams, error) {
	req.Type = models.ReportType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	req.Format = models.ReportFormat(strings.ToLower(strings.TrimSpace(string(req.Format))))
	if err := s.validator.Struct(req); err != nil {
		return models.ReportJobParams{}, validationError(err)
	}
	params := models.ReportJobParams{Format: req.Format}
	if req.Type != models.ReportTypeHistory {
		return params, nil
	}
	filter, err := s.filters.HistoryFilter(HistoryQuery{
		Class:  req.Class,
		Status: req.Status,
		From:   req.From,
		To:     req.To,
		Search: req.Search,
	})
	if err != nil {
		return models.ReportJobParams{}, err
	}
	params.Class = filter.Class
	params.Status = filter.Status
	params.PaidFrom = filter.PaidFrom
	params.PaidTo = filter.PaidTo
	params.Search = filter.Search
	return params, nil
}

func contentTypeFor(format models.ReportFormat) string {
	if format == models.ReportFormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ReportWorker bridges queue jobs to ExportService.
type ReportWorker struct {
	repo     reportJobStore
	exporter exportGenerator
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, metrics *MetricsService, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportWorker{
		repo:     repo,
		exporter: exporter,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle processes a queue job. A failed attempt puts the job back to QUEUED
// and returns the error so the queue retries it.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}
	processing := models.ReportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		queued := models.ReportStatusQueued
		reset := 0
		if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &queued,
			Progress:     &reset,
			ErrorMessage: &msg,
		}); updateErr != nil {
			w.logger.Warn("failed to mark job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return err
	}
	finished := models.ReportStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordReportJob(job.Kind, string(finished))
	w.logger.Info("report job finished", zap.String("job_id", job.ID), zap.String("file", result.RelativePath))
	return nil
}

// Fail marks a job whose retries are exhausted as FAILED. It matches
// jobs.ExhaustedHandler.
func (w *ReportWorker) Fail(ctx context.Context, job jobs.Job, cause error) {
	failed := models.ReportStatusFailed
	progress := 100
	now := time.Now().UTC()
	msg := cause.Error()
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	w.metrics.RecordReportJob(job.Kind, string(failed))
}
