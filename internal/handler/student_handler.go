package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-ledger-api/internal/middleware"
	"github.com/noah-isme/fee-ledger-api/internal/models"
	"github.com/noah-isme/fee-ledger-api/internal/service"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
	"github.com/noah-isme/fee-ledger-api/pkg/response"
)

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students *service.StudentService
	payments *service.PaymentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students *service.StudentService, payments *service.PaymentService) *StudentHandler {
	return &StudentHandler{students: students, payments: payments}
}

// List godoc
// @Summary List students
// @Description Ordered by class then name. Paging applies only when page_size is set.
// @Tags Students
// @Produce json
// @Param search query string false "Case-insensitive match on name, class or contact"
// @Param class query string false "Filter by class"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Class:  strings.TrimSpace(c.Query("class")),
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			response.Error(c, appErrors.Validation("page_size", "page_size must be a positive integer"))
			return
		}
		filter.PageSize = size
		filter.Page = 1
		if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && page > 0 {
			filter.Page = page
		}
	}

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "classes", h.students.Classes())
	respondOK(c, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	student, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, student, nil)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.StudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.StudentRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path int true "Student ID"
// @Param payload body service.StudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req service.StudentRequest
	if !bindJSON(c, &req) {
		return
	}
	student, err := h.students.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, student, nil)
}

// Delete godoc
// @Summary Delete student
// @Description Payments of the student are kept.
// @Tags Students
// @Param id path int true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Fees godoc
// @Summary Fee position of a student
// @Tags Students
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/fees [get]
func (h *StudentHandler) Fees(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	summary, err := h.students.FeeSummary(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, summary, nil)
}

// Payments godoc
// @Summary Payments referencing a student
// @Description Includes payments whose student has been deleted.
// @Tags Students
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/payments [get]
func (h *StudentHandler) Payments(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	payments, err := h.payments.ListForStudent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}
