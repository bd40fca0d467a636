package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"partsledger/internal/logger"
	"partsledger/internal/services"
)

// Error codes carried in the "code" field of error responses.
const (
	CodeValidation        = "validation"
	CodeInsufficientStock = "insufficient_stock"
	CodeInvalidState      = "invalid_state"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal"
)

// respondError maps a service error onto its HTTP status and JSON body.
func respondError(c *gin.Context, err error) {
	var (
		ve  *services.ValidationError
		ise *services.InsufficientStockError
		st  *services.InvalidStateError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   ve.Error(),
			"code":    CodeValidation,
			"field":   ve.Field,
			"details": ve.Details,
		})
	case errors.As(err, &ise):
		c.JSON(http.StatusConflict, gin.H{
			"error":     ise.Error(),
			"code":      CodeInsufficientStock,
			"item_id":   ise.ItemID,
			"sku":       ise.SKU,
			"available": ise.Available,
			"requested": ise.Requested,
		})
	case errors.As(err, &st):
		c.JSON(http.StatusConflict, gin.H{
			"error":   st.Error(),
			"code":    CodeInvalidState,
			"status":  st.Status,
			"details": st.Action,
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
			"code":  CodeNotFound,
		})
	default:
		logger.Log.Error("❌ request failed",
			zap.String("request_id", logger.RequestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
			"code":  CodeInternal,
		})
	}
}

// badRequest answers a request whose body or parameters could not be parsed.
func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{"error": message, "code": CodeValidation}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
