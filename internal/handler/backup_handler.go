package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-ledger-api/internal/service"
	"github.com/noah-isme/fee-ledger-api/pkg/response"
)

// BackupHandler triggers database snapshots.
type BackupHandler struct {
	backups *service.BackupService
}

// NewBackupHandler constructs BackupHandler.
func NewBackupHandler(backups *service.BackupService) *BackupHandler {
	return &BackupHandler{backups: backups}
}

// Create godoc
// @Summary Snapshot the embedded database
// @Tags Backups
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /backups [post]
func (h *BackupHandler) Create(c *gin.Context) {
	backup, err := h.backups.Create(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, backup)
}
