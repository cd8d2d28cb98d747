package model

import "time"

// Queue represents a single service line with its own ticket sequence.
type Queue struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:128;not null" json:"name"`
	Location     string `gorm:"size:256" json:"location"`
	OperatorID   string `gorm:"size:64;index;not null" json:"-"`
	IsActive     bool   `gorm:"not null;default:true" json:"isActive"`
	NextSequence int    `gorm:"not null;default:1" json:"nextSequence"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Associations
	Tickets []Ticket `gorm:"foreignKey:QueueID" json:"-"`
}

// Status returns the wire representation of the queue's activity flag.
func (q *Queue) Status() string {
	if q.IsActive {
		return "ACTIVE"
	}
	return "PAUSED"
}
