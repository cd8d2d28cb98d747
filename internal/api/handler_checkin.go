package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-queue-backend/internal/dispatch"
	"campus-queue-backend/internal/mw"
)

// CheckIn handles POST /api/queues/:queue_id/checkin. Any authenticated
// caller may check in; ownership only matters for operator actions.
func (h *Handler) CheckIn(c *gin.Context) {
	queueID, ok := queueIDParam(c)
	if !ok {
		return
	}

	identity, ok := mw.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}

	result, err := h.dispatch.CheckIn(c.Request.Context(), queueID,
		dispatch.Caller{ID: identity.Subject, Email: identity.Email})
	renderResult(c, result, err)
}
