package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-queue-backend/internal/gate"
	"campus-queue-backend/internal/mw"
	"campus-queue-backend/internal/store"
)

// OperatorQueueResponse represents one queue in the operator listing.
type OperatorQueueResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Status   string `json:"status"`
}

// ListOperatorQueues handles GET /api/operator/queues. Admins see every
// queue, operators only the ones they own.
func (h *Handler) ListOperatorQueues(c *gin.Context) {
	identity, ok := mw.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}

	operatorID := identity.Subject
	if identity.Role == gate.RoleAdmin {
		operatorID = ""
	}

	queues, err := h.store.ListQueues(c.Request.Context(), operatorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to list queues"})
		return
	}

	responses := make([]OperatorQueueResponse, 0, len(queues))
	for _, q := range queues {
		responses = append(responses, OperatorQueueResponse{
			ID:       q.ID,
			Name:     q.Name,
			Location: q.Location,
			Status:   q.Status(),
		})
	}
	c.JSON(http.StatusOK, responses)
}

// GetSnapshot handles GET /api/queues/:queue_id/snapshot. It returns the
// same wire shape the websocket pushes, for initial page renders.
func (h *Handler) GetSnapshot(c *gin.Context) {
	queueID, ok := queueIDParam(c)
	if !ok {
		return
	}

	snap, err := h.builder.Build(c.Request.Context(), queueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "queue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build snapshot"})
		}
		return
	}
	c.JSON(http.StatusOK, snap)
}
