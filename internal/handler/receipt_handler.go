package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-ledger-api/internal/service"
	"github.com/noah-isme/fee-ledger-api/pkg/response"
)

// ReceiptHandler exposes receipt generation and download.
type ReceiptHandler struct {
	receipts *service.ReceiptService
}

// NewReceiptHandler constructs ReceiptHandler.
func NewReceiptHandler(receipts *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts}
}

// ForPayment godoc
// @Summary Generate the receipt of a payment
// @Tags Receipts
// @Produce json
// @Param id path int true "Payment ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt [post]
func (h *ReceiptHandler) ForPayment(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	receipt, err := h.receipts.Generate(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// Latest godoc
// @Summary Generate the receipt of a student's latest payment
// @Tags Receipts
// @Produce json
// @Param id path int true "Student ID"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/receipts/latest [post]
func (h *ReceiptHandler) Latest(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	receipt, err := h.receipts.GenerateLatest(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// Download godoc
// @Summary Download a receipt via signed token
// @Tags Receipts
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /receipts/download/{token} [get]
func (h *ReceiptHandler) Download(c *gin.Context) {
	download, err := h.receipts.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()
	response.Attachment(c, download.Filename, download.ContentType, download.ExpiresAt, download.File)
}
