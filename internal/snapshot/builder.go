package snapshot

import (
	"context"
	"time"

	"campus-queue-backend/internal/model"
	"campus-queue-backend/internal/store"
)

// Snapshot is the full, self-contained rendering of a queue's current state.
// Viewers only ever receive snapshots, never diffs, so a fresh subscriber
// needs no replay log and a reconnect needs no catch-up protocol.
type Snapshot struct {
	QueueID int64        `json:"queueId"`
	Queue   QueueInfo    `json:"queue"`
	Tickets []TicketInfo `json:"tickets"`
	Stats   Stats        `json:"stats"`
}

// QueueInfo carries the queue header fields shown on every display.
type QueueInfo struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	Status       string `json:"status"`
	NextSequence int    `json:"nextSequence"`
}

// TicketInfo is one ticket as rendered on kiosks and consoles.
type TicketInfo struct {
	ID        int64  `json:"id"`
	Seq       int    `json:"seq"`
	Label     string `json:"label"`
	Status    string `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stats aggregates the ticket counts shown on dashboards. Completed counts
// terminal tickets, served and skipped alike.
type Stats struct {
	TotalWaiting   int `json:"totalWaiting"`
	TotalServing   int `json:"totalServing"`
	TotalCompleted int `json:"totalCompleted"`
}

// Builder renders Ticket Store state into wire snapshots. It holds no cache
// and no state of its own; every Build reads the store fresh, so a snapshot
// can never be stale relative to the data it was built from.
type Builder struct {
	store store.Store
}

// NewBuilder creates a snapshot builder over the given store.
func NewBuilder(s store.Store) *Builder {
	return &Builder{store: s}
}

// Build renders the current state of one queue. Tickets are ordered by
// ascending sequence number.
func (b *Builder) Build(ctx context.Context, queueID int64) (*Snapshot, error) {
	queue, err := b.store.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	tickets, err := b.store.TicketsForQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		QueueID: queue.ID,
		Queue: QueueInfo{
			ID:           queue.ID,
			Name:         queue.Name,
			Location:     queue.Location,
			Status:       queue.Status(),
			NextSequence: queue.NextSequence,
		},
		Tickets: make([]TicketInfo, 0, len(tickets)),
	}

	for i := range tickets {
		t := &tickets[i]
		snap.Tickets = append(snap.Tickets, TicketInfo{
			ID:        t.ID,
			Seq:       t.Seq,
			Label:     t.Label(),
			Status:    string(t.Status),
			CreatedAt: t.CreatedAt.UTC(),
		})

		switch t.Status {
		case model.StatusWaiting:
			snap.Stats.TotalWaiting++
		case model.StatusServing:
			snap.Stats.TotalServing++
		case model.StatusServed, model.StatusSkipped:
			snap.Stats.TotalCompleted++
		}
	}

	return snap, nil
}
