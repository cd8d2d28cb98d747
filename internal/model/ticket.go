package model

import (
	"fmt"
	"time"
)

// TicketStatus is the lifecycle state of a ticket within its queue.
type TicketStatus string

const (
	StatusWaiting TicketStatus = "waiting"
	StatusServing TicketStatus = "serving"
	StatusServed  TicketStatus = "served"
	StatusSkipped TicketStatus = "skipped"
)

// Terminal reports whether a ticket in this status has left the line for good.
func (s TicketStatus) Terminal() bool {
	return s == StatusServed || s == StatusSkipped
}

// Ticket represents one person's place in a Queue. Seq is assigned from the
// queue's counter at check-in and is unique per queue for its lifetime.
type Ticket struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	QueueID  int64  `gorm:"not null;uniqueIndex:idx_tickets_queue_seq" json:"queueId"`
	Seq      int    `gorm:"not null;uniqueIndex:idx_tickets_queue_seq" json:"seq"`
	CallerID string `gorm:"size:64;index;not null" json:"-"`
	// CallerEmail is captured at check-in so completion notices can still
	// reach the caller long after the check-in request is gone.
	CallerEmail string       `gorm:"size:256" json:"-"`
	Status      TicketStatus `gorm:"size:16;index;not null" json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"-"`

	// Associations
	Queue Queue `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Label is the display form of the sequence number, e.g. "T-003".
func (t *Ticket) Label() string {
	return fmt.Sprintf("T-%03d", t.Seq)
}
