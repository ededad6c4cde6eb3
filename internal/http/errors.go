package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"story-assistant/internal/domain"
)

// statusFor traduce la taxonomía de errores a un código HTTP.
func statusFor(err error) int {
	if domain.IsValidation(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError responde {error: message} y registra el fallo.
func writeError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err), zap.String("request_id", requestID(c)))
	} else {
		logger.Warn(msg, zap.Error(err), zap.String("request_id", requestID(c)))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
