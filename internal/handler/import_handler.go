package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-ledger-api/internal/service"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
	"github.com/noah-isme/fee-ledger-api/pkg/response"
)

const maxImportBytes = 5 << 20

// ImportHandler accepts student CSV uploads.
type ImportHandler struct {
	imports *service.ImportService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports *service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Students godoc
// @Summary Import students from CSV
// @Description Header row names the columns: name, class, contact, mother_name, father_name, parent_number, parent_email.
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Router /students/import [post]
func (h *ImportHandler) Students(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Validation("file", "file is required"))
		return
	}
	if header.Size > maxImportBytes {
		response.Error(c, appErrors.Validation("file", "file exceeds 5MB"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Validation("file", "file could not be read"))
		return
	}
	defer file.Close()

	result, err := h.imports.ImportStudents(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, result, nil)
}
