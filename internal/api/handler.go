package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"campus-queue-backend/internal/dispatch"
	"campus-queue-backend/internal/gate"
	"campus-queue-backend/internal/realtime"
	"campus-queue-backend/internal/snapshot"
	"campus-queue-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	dispatch *dispatch.Service
	builder  *snapshot.Builder
	hub      *realtime.Hub
	gate     *gate.Gate
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, d *dispatch.Service, b *snapshot.Builder, hub *realtime.Hub, g *gate.Gate, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		dispatch: d,
		builder:  b,
		hub:      hub,
		gate:     g,
		webpush:  webpushOptions,
	}
}
