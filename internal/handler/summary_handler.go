package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-ledger-api/internal/middleware"
	"github.com/noah-isme/fee-ledger-api/internal/service"
	"github.com/noah-isme/fee-ledger-api/pkg/response"
)

// SummaryHandler exposes institution-wide totals.
type SummaryHandler struct {
	summary *service.SummaryService
}

// NewSummaryHandler constructs SummaryHandler.
func NewSummaryHandler(summary *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{summary: summary}
}

// Totals godoc
// @Summary Outstanding and cleared totals
// @Tags Summary
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /summary [get]
func (h *SummaryHandler) Totals(c *gin.Context) {
	summary, cached, err := h.summary.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	respondOK(c, summary, nil)
}

// Outstanding godoc
// @Summary Students still owing part of the fee
// @Tags Summary
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /summary/outstanding [get]
func (h *SummaryHandler) Outstanding(c *gin.Context) {
	entries, err := h.summary.OutstandingList(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, entries, nil)
}
