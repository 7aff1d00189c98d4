package api

import (
	"time"

	"github.com/gin-gonic/gin"
	ierr "github.com/septivank/meter-reading-service/internal/errors"
	"go.uber.org/zap"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler turns the last error attached to the context into a JSON
// response whose status follows the error's kind.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		status := ierr.HTTPStatusFromErr(err)
		display := ierr.Hint(err)
		if display == "" {
			display = "An unexpected error occurred"
		}
		if status >= 500 {
			logger.Error("request failed",
				zap.Error(err),
				zap.String("path", c.FullPath()),
				zap.Int("status", status))
		}

		c.JSON(status, ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Code:    ierr.CodeFromErr(err),
				Message: display,
			},
		})
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
