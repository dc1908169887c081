package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-ledger-api/internal/service"
	"github.com/noah-isme/fee-ledger-api/pkg/response"
)

// PaymentHandler exposes payment endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create godoc
// @Summary Record a payment
// @Description Status is derived from the student's total and cannot be supplied.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.CreatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req service.CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.payments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Recent godoc
// @Summary Most recent payments
// @Tags Payments
// @Produce json
// @Param status query string false "All, Cleared or Pending"
// @Success 200 {object} response.Envelope
// @Router /payments/recent [get]
func (h *PaymentHandler) Recent(c *gin.Context) {
	rows, err := h.payments.Recent(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, rows, nil)
}

// History godoc
// @Summary Filtered payment history
// @Description Every populated filter must match. Dates bound the paid date inclusively.
// @Tags Payments
// @Produce json
// @Param class query string false "Class"
// @Param status query string false "All, Cleared or Pending"
// @Param from query string false "Paid on or after (YYYY-MM-DD)"
// @Param to query string false "Paid on or before (YYYY-MM-DD)"
// @Param search query string false "Match on student name, class or contact"
// @Success 200 {object} response.Envelope
// @Router /payments/history [get]
func (h *PaymentHandler) History(c *gin.Context) {
	rows, err := h.payments.History(c.Request.Context(), service.HistoryQuery{
		Class:  c.Query("class"),
		Status: c.Query("status"),
		From:   c.Query("from"),
		To:     c.Query("to"),
		Search: c.Query("search"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, rows, nil)
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	payment, err := h.payments.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, payment, nil)
}

// Delete godoc
// @Summary Delete payment
// @Description The student's status is re-derived in the same transaction.
// @Tags Payments
// @Param id path int true "Payment ID"
// @Success 204
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.payments.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
