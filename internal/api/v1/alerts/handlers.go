// Package alerts implements HTTP handlers for alert history.
package alerts

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pmon/internal/api/types"
	"pmon/internal/storage"
)

// HistoryStore lists alert history rows.
type HistoryStore interface {
	ListAlertHistory(ctx context.Context, tenantID int64, limit int) ([]storage.AlertHistory, error)
}

// Handler manages alert endpoints.
type Handler struct {
	store HistoryStore
}

// NewHandler creates a new alert handler.
func NewHandler(store HistoryStore) *Handler {
	return &Handler{store: store}
}

// History handles GET /api/v1/alert-history
//
// Query parameters:
//   - tenant_id (required)
//   - limit (default: 100, min: 1, max: 1000)
//
// Returns:
//   - 200 OK with history rows, newest first
//   - 400 Bad Request for a missing tenant or an out of range limit
//   - 500 Internal Server Error on storage failure
func (h *Handler) History(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Query("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		types.AbortWithError(c, types.ValidationError("tenant_id must be a positive integer"))
		return
	}

	limit := storage.DefaultHistoryLimit
	if raw, ok := c.GetQuery("limit"); ok {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > storage.MaxHistoryLimit {
			types.AbortWithError(c, types.ValidationError(fmt.Sprintf("limit must be between 1 and %d", storage.MaxHistoryLimit)))
			return
		}
	}

	rows, err := h.store.ListAlertHistory(c.Request.Context(), tenantID, limit)
	if err != nil {
		types.AbortWithError(c, types.InternalError("failed to list alert history", err))
		return
	}
	if rows == nil {
		rows = []storage.AlertHistory{}
	}

	c.JSON(http.StatusOK, types.SuccessResponse(rows))
}
