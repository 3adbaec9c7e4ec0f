package controllers

import (
	"log"
	"net/http"

	"github.com/ccjoness/StellarIQ-API/apperrors"
	"github.com/gin-gonic/gin"
)

// respondError maps an error onto a status code and a generic message.
// Upstream detail is logged, never returned.
func respondError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch apperrors.CodeOf(err) {
	case apperrors.CodeConfiguration:
		status = http.StatusBadRequest
		message = err.Error()
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
		message = "Not found"
	case apperrors.CodeUpstream:
		status = http.StatusBadGateway
		message = "Market data provider unavailable"
	case apperrors.CodeDispatch:
		status = http.StatusBadGateway
		message = "Notification delivery failed"
	case apperrors.CodeCache:
		status = http.StatusServiceUnavailable
		message = "Cache unavailable"
	}

	log.Printf("%s failed: %v", op, err)
	c.JSON(status, gin.H{
		"error":   message,
		"code":    apperrors.CodeOf(err),
		"success": false,
	})
}
