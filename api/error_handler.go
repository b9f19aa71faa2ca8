package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	apperrors "ekadashi.app/errors"
	"ekadashi.app/models"
	"github.com/gin-gonic/gin"
)

// timeNow is swapped in tests to pin the event view to a reference instant
var timeNow = time.Now

// handleError converts application errors to HTTP responses
func (s *Server) handleError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unexpected error", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
		return
	}

	status := statusForType(appErr.Type)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "type", appErr.Type, "error", appErr)
	}
	c.JSON(status, models.ErrorResponse{Error: appErr.Message})
}

func statusForType(errorType apperrors.ErrorType) int {
	switch errorType {
	case apperrors.ValidationError:
		return http.StatusBadRequest
	case apperrors.NotFoundError:
		return http.StatusNotFound
	case apperrors.PermissionDeniedError:
		return http.StatusForbidden
	case apperrors.ServicesDisabledError:
		return http.StatusServiceUnavailable
	case apperrors.TimeoutError:
		return http.StatusGatewayTimeout
	case apperrors.ExternalAPIError, apperrors.GeocodeUnavailableError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
