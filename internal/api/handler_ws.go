package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"campus-queue-backend/internal/realtime"
	"campus-queue-backend/internal/store"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Kiosks and dashboards are served from other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// QueueSocket handles GET /api/queues/:queue_id/ws. The connection receives
// the current snapshot immediately, then one snapshot per mutation. A client
// that drops simply reconnects and subscribes again; snapshots are full
// state, so there is nothing to replay.
func (h *Handler) QueueSocket(c *gin.Context) {
	queueID, ok := queueIDParam(c)
	if !ok {
		return
	}

	sub, err := h.hub.Subscribe(c.Request.Context(), queueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "queue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		}
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.Unsubscribe(queueID, sub)
		log.Printf("websocket upgrade failed for queue %d: %v", queueID, err)
		return
	}

	go writePump(conn, sub)

	// Read loop exists only to detect the peer going away; incoming
	// messages carry no meaning on this socket.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Unsubscribe(queueID, sub)
	conn.Close()
}

// writePump drains the subscriber channel onto the socket. It exits when the
// hub closes the channel or the peer stops accepting writes.
func writePump(conn *websocket.Conn, sub *realtime.Subscriber) {
	defer conn.Close()
	for payload := range sub.Send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
