package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"campus-queue-backend/internal/dispatch"
	"campus-queue-backend/internal/gate"
	"campus-queue-backend/internal/mw"
)

// queueIDParam parses the queue id path parameter.
func queueIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("queue_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid queue ID"})
		return 0, false
	}
	return id, true
}

// statusForReason maps a dispatch reason to an HTTP status. An empty queue
// is "nothing to do", not a client mistake.
func statusForReason(r dispatch.Reason) int {
	switch r {
	case dispatch.ReasonNotFound:
		return http.StatusNotFound
	case dispatch.ReasonEmpty:
		return http.StatusOK
	default:
		return http.StatusConflict
	}
}

// renderResult writes the uniform dispatch result.
func renderResult(c *gin.Context, result dispatch.Result, err error) {
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "storage unavailable"})
		return
	}
	if !result.Success {
		c.JSON(statusForReason(result.Reason), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// operatorAction gates the caller against the queue, then runs one dispatch
// call. All six operator endpoints share this shape.
func (h *Handler) operatorAction(c *gin.Context, fn func(ctx context.Context, queueID int64) (dispatch.Result, error)) {
	queueID, ok := queueIDParam(c)
	if !ok {
		return
	}

	identity, _ := mw.IdentityFrom(c)
	decision, err := h.gate.Authorize(c.Request.Context(), queueID, identity)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "storage unavailable"})
		return
	}
	if !decision.Allowed {
		switch decision.Reason {
		case gate.ReasonNotFound:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "queue not found"})
		case gate.ReasonUnauthenticated:
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		default:
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "you are not authorized to access this queue"})
		}
		return
	}

	result, err := fn(c.Request.Context(), queueID)
	renderResult(c, result, err)
}

// ServeNext handles POST /api/operator/queues/:queue_id/next.
func (h *Handler) ServeNext(c *gin.Context) {
	h.operatorAction(c, h.dispatch.ServeNext)
}

// SkipCurrent handles POST /api/operator/queues/:queue_id/skip.
func (h *Handler) SkipCurrent(c *gin.Context) {
	h.operatorAction(c, h.dispatch.SkipCurrent)
}

// RecallCurrent handles POST /api/operator/queues/:queue_id/recall.
func (h *Handler) RecallCurrent(c *gin.Context) {
	h.operatorAction(c, h.dispatch.RecallCurrent)
}

// CompleteCurrent handles POST /api/operator/queues/:queue_id/complete.
func (h *Handler) CompleteCurrent(c *gin.Context) {
	h.operatorAction(c, h.dispatch.CompleteCurrent)
}

// PauseQueue handles POST /api/operator/queues/:queue_id/pause.
func (h *Handler) PauseQueue(c *gin.Context) {
	h.operatorAction(c, h.dispatch.Pause)
}

// ResumeQueue handles POST /api/operator/queues/:queue_id/resume.
func (h *Handler) ResumeQueue(c *gin.Context) {
	h.operatorAction(c, h.dispatch.Resume)
}
