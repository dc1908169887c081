package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-ledger-api/internal/middleware"
	"github.com/noah-isme/fee-ledger-api/internal/models"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
	"github.com/noah-isme/fee-ledger-api/pkg/response"
)

// int64Param reads a positive numeric path parameter, writing a validation
// error when it is malformed.
func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Validation(name, name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body into dest.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func respondOK(c *gin.Context, data interface{}, pagination *models.Pagination) {
	response.JSON(c, http.StatusOK, data, pagination, middleware.ExtractMeta(c))
}
