// Package monitors implements HTTP handlers for monitor operations.
package monitors

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pmon/internal/api/types"
	"pmon/internal/storage"
)

// Checker runs on-demand checks.
type Checker interface {
	CheckNow(ctx context.Context, monitorID int64) (*storage.Monitor, error)
}

// Handler manages monitor endpoints.
type Handler struct {
	checker Checker
}

// NewHandler creates a new monitor handler.
func NewHandler(checker Checker) *Handler {
	return &Handler{checker: checker}
}

// Check handles POST /api/v1/monitors/:id/check
//
// Probes the monitor immediately and stores the result. Alert rules are not
// evaluated and the monitor's schedule is left unchanged.
//
// Returns:
//   - 200 OK with the updated monitor state
//   - 400 Bad Request for a malformed id
//   - 404 Not Found if the monitor, its server or its service is missing
//   - 500 Internal Server Error on storage failure
func (h *Handler) Check(c *gin.Context) {
	id, err := types.ParseID(c, "id")
	if err != nil {
		types.AbortWithError(c, types.ValidationError(err.Error()))
		return
	}

	m, err := h.checker.CheckNow(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			types.AbortWithError(c, types.NotFoundError("monitor"))
			return
		}
		types.AbortWithError(c, types.InternalError("failed to check monitor", err))
		return
	}

	c.JSON(http.StatusOK, types.SuccessResponse(toCheckResponse(m)))
}
