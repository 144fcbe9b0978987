package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"savrdv/internal/service/scheduling"
	"savrdv/internal/store"
)

// writeError maps the core error taxonomy onto stable, distinguishable HTTP
// outcomes: 400 validation/state, 404 unknown id, 409 conflict. A 409 on
// reserve is routine for callers (someone else just booked the slot).
func writeError(c *gin.Context, log *slog.Logger, err error) {
	var vErr *scheduling.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, store.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": "operation not allowed in the current status"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	default:
		log.Error("request failed", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
