package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"campus-queue-backend/internal/model"
)

// Store defines the interface for all database operations on queues and
// tickets. It is the only component permitted to mutate domain state, and
// every mutation is a single atomic primitive.
type Store interface {
	DB() *gorm.DB

	GetQueue(ctx context.Context, queueID int64) (*model.Queue, error)
	ListQueues(ctx context.Context, operatorID string) ([]model.Queue, error)

	CheckIn(ctx context.Context, queueID int64, callerID, callerEmail string, scope PolicyScope) (*model.Ticket, error)
	CurrentServing(ctx context.Context, queueID int64) (*model.Ticket, error)
	NextWaiting(ctx context.Context, queueID int64) (*model.Ticket, error)
	Transition(ctx context.Context, ticketID int64, from []model.TicketStatus, to model.TicketStatus) (*model.Ticket, error)
	SetActive(ctx context.Context, queueID int64, active bool) (*model.Queue, error)

	TicketsForQueue(ctx context.Context, queueID int64) ([]model.Ticket, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for components that only touch
// auxiliary tables (push subscriptions).
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// GetQueue fetches a queue by id.
func (s *gormStore) GetQueue(ctx context.Context, queueID int64) (*model.Queue, error) {
	var queue model.Queue
	if err := s.db.WithContext(ctx).First(&queue, queueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch queue %d: %w", queueID, err)
	}
	return &queue, nil
}

// ListQueues returns queues owned by the given operator, or all queues when
// operatorID is empty.
func (s *gormStore) ListQueues(ctx context.Context, operatorID string) ([]model.Queue, error) {
	var queues []model.Queue
	q := s.db.WithContext(ctx).Order("id ASC")
	if operatorID != "" {
		q = q.Where("operator_id = ?", operatorID)
	}
	if err := q.Find(&queues).Error; err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}
	return queues, nil
}

// CheckIn creates a new waiting ticket, claiming the queue's next sequence
// number. The counter increment is a conditional UPDATE on the queue row, so
// concurrent check-ins serialize on the row lock and sequence numbers can
// never collide or skip.
func (s *gormStore) CheckIn(ctx context.Context, queueID int64, callerID, callerEmail string, scope PolicyScope) (*model.Ticket, error) {
	var ticket model.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Reject callers that already hold a live ticket.
		held := tx.Model(&model.Ticket{}).
			Where("caller_id = ? AND status IN ?", callerID,
				[]model.TicketStatus{model.StatusWaiting, model.StatusServing})
		if scope != ScopeGlobal {
			held = held.Where("queue_id = ?", queueID)
		}
		var count int64
		if err := held.Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check existing tickets for caller %s: %w", callerID, err)
		}
		if count > 0 {
			return ErrConflict
		}

		// Claim a sequence number. The is_active condition makes check-in on
		// a paused queue fail without a separate read.
		res := tx.Model(&model.Queue{}).
			Where("id = ? AND is_active = ?", queueID, true).
			Update("next_sequence", gorm.Expr("next_sequence + 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to advance sequence for queue %d: %w", queueID, res.Error)
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&model.Queue{}).Where("id = ?", queueID).Count(&n).Error; err != nil {
				return fmt.Errorf("failed to look up queue %d: %w", queueID, err)
			}
			if n == 0 {
				return ErrNotFound
			}
			return ErrConflict // queue is paused
		}

		// Re-read inside the transaction; the row lock taken by the UPDATE
		// above keeps the value stable until commit.
		var queue model.Queue
		if err := tx.First(&queue, queueID).Error; err != nil {
			return fmt.Errorf("failed to re-read queue %d: %w", queueID, err)
		}

		ticket = model.Ticket{
			QueueID:     queueID,
			Seq:         queue.NextSequence - 1,
			CallerID:    callerID,
			CallerEmail: callerEmail,
			Status:      model.StatusWaiting,
		}
		if err := tx.Create(&ticket).Error; err != nil {
			return fmt.Errorf("failed to create ticket for queue %d: %w", queueID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// CurrentServing returns the ticket currently in serving status, or nil when
// the counter is free.
func (s *gormStore) CurrentServing(ctx context.Context, queueID int64) (*model.Ticket, error) {
	var ticket model.Ticket
	err := s.db.WithContext(ctx).
		Where("queue_id = ? AND status = ?", queueID, model.StatusServing).
		First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch serving ticket for queue %d: %w", queueID, err)
	}
	return &ticket, nil
}

// NextWaiting returns the waiting ticket with the smallest sequence number,
// or nil when nobody is waiting. Strict FIFO; no priority.
func (s *gormStore) NextWaiting(ctx context.Context, queueID int64) (*model.Ticket, error) {
	var ticket model.Ticket
	err := s.db.WithContext(ctx).
		Where("queue_id = ? AND status = ?", queueID, model.StatusWaiting).
		Order("seq ASC").
		First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch next waiting ticket for queue %d: %w", queueID, err)
	}
	return &ticket, nil
}

// Transition is the conditional status update all dispatch actions build on.
// It succeeds only if the ticket's current status is one of from; the
// compare-and-swap lives in the WHERE clause, so two racing callers can
// never both win the same ticket.
func (s *gormStore) Transition(ctx context.Context, ticketID int64, from []model.TicketStatus, to model.TicketStatus) (*model.Ticket, error) {
	res := s.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("id = ? AND status IN ?", ticketID, from).
		Update("status", to)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to transition ticket %d to %s: %w", ticketID, to, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&model.Ticket{}).Where("id = ?", ticketID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to look up ticket %d: %w", ticketID, err)
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}

	var ticket model.Ticket
	if err := s.db.WithContext(ctx).First(&ticket, ticketID).Error; err != nil {
		return nil, fmt.Errorf("failed to re-read ticket %d: %w", ticketID, err)
	}
	return &ticket, nil
}

// SetActive flips the queue's accepting-check-ins flag.
func (s *gormStore) SetActive(ctx context.Context, queueID int64, active bool) (*model.Queue, error) {
	res := s.db.WithContext(ctx).Model(&model.Queue{}).
		Where("id = ?", queueID).
		Update("is_active", active)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to set queue %d active=%t: %w", queueID, active, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var queue model.Queue
	if err := s.db.WithContext(ctx).First(&queue, queueID).Error; err != nil {
		return nil, fmt.Errorf("failed to re-read queue %d: %w", queueID, err)
	}
	return &queue, nil
}

// TicketsForQueue returns every ticket of the queue, terminal ones included,
// in ascending sequence order.
func (s *gormStore) TicketsForQueue(ctx context.Context, queueID int64) ([]model.Ticket, error) {
	var tickets []model.Ticket
	if err := s.db.WithContext(ctx).
		Where("queue_id = ?", queueID).
		Order("seq ASC").
		Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickets for queue %d: %w", queueID, err)
	}
	return tickets, nil
}
