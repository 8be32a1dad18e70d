package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-cuotas/internal/reconciliation"
	"github.com/sjperalta/fintera-cuotas/internal/schedule"
	"github.com/sjperalta/fintera-cuotas/internal/services"
	"github.com/sjperalta/fintera-cuotas/pkg/logger"
)

// respondError maps service and domain errors to HTTP responses
func respondError(c *gin.Context, err error) {
	var rejection *schedule.RejectionError
	if errors.As(err, &rejection) {
		status := http.StatusBadRequest
		if errors.Is(err, schedule.ErrConstraintViolation) {
			status = http.StatusConflict
		}
		body := gin.H{"error": rejection.Reason, "field": rejection.Field}
		if rejection.Index >= 0 {
			body["sequence"] = rejection.Index + 1
		}
		c.JSON(status, body)
		return
	}

	switch {
	case errors.Is(err, services.ErrPlanNotFound), errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrDuplicate),
		errors.Is(err, reconciliation.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": services.ErrUpstream.Error()})
	default:
		_ = c.Error(err)
		logger.Error("Unhandled request error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno del servidor"})
	}
}
