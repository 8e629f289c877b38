package api

import (
	"net/http"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindTransientConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err by its domain kind. Internal errors are attached to
// the context for the request logger and never echoed to the client.
func writeError(c *gin.Context, err error) {
	de, ok := domain.AsError(err)
	if !ok || de.Kind == domain.KindInternal {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error:   domain.ErrInternal.Code,
			Message: domain.ErrInternal.Message,
		})
		return
	}
	c.AbortWithStatusJSON(statusOf(de.Kind), errorResponse{Error: de.Code, Message: err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: domain.ErrInvalidInput.Code, Message: message})
}
