package dto

import "github.com/noah-isme/fee-ledger-api/internal/models"

// ReportRequest captures POST /reports/generate payload. The filter fields
// only apply to history reports.
type ReportRequest struct {
	Type   models.ReportType   `json:"type" validate:"required,oneof=history outstanding"`
	Format models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Class  string              `json:"class,omitempty"`
	Status string              `json:"status,omitempty"`
	From   string              `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To     string              `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Search string              `json:"search,omitempty"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
