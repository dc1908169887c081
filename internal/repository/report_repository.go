package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fee-ledger-api/internal/models"
)

const reportJobColumns = "id, type, params, status, progress, result_url, created_at, finished_at, error_message"

// ReportRepository persists report job metadata.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new job, filling in id, status and creation time when unset.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO report_jobs (id, type, params, status, progress, result_url, created_at, finished_at, error_message)
VALUES (:id, :type, :params, :status, :progress, :result_url, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID returns a job row; sql.ErrNoRows when absent.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	query := r.db.Rebind("SELECT " + reportJobColumns + " FROM report_jobs WHERE id = ?")
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateReportJobParams lists the mutable fields; nil means unchanged.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *ReportRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	add := func(column string, value interface{}) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}
	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.ResultURL != nil {
		add("result_url", *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		add("finished_at", params.FinishedAt.UTC())
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, id)

	query := r.db.Rebind(fmt.Sprintf("UPDATE report_jobs SET %s WHERE id = ?", strings.Join(set, ", ")))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs oldest first, for replay after a restart.
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.db.Rebind("SELECT " + reportJobColumns + " FROM report_jobs WHERE status IN (?, ?) ORDER BY created_at ASC LIMIT ?")
	jobs := []models.ReportJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReportStatusQueued, models.ReportStatusProcessing, limit); err != nil {
		return nil, fmt.Errorf("list queued report jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore returns finished jobs that still hold a result link and
// completed before cutoff.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.Rebind("SELECT " + reportJobColumns + ` FROM report_jobs
WHERE status = ? AND result_url IS NOT NULL AND finished_at IS NOT NULL AND finished_at < ? ORDER BY finished_at ASC LIMIT ?`)
	jobs := []models.ReportJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReportStatusFinished, cutoff.UTC(), limit); err != nil {
		return nil, fmt.Errorf("list finished report jobs: %w", err)
	}
	return jobs, nil
}

// MarkExpired flags a finished job whose artifact has been removed.
func (r *ReportRepository) MarkExpired(ctx context.Context, id string) error {
	query := r.db.Rebind("UPDATE report_jobs SET result_url = NULL, error_message = ? WHERE id = ?")
	if _, err := r.db.ExecContext(ctx, query, "result expired", id); err != nil {
		return fmt.Errorf("expire report job: %w", err)
	}
	return nil
}
