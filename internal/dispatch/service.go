package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"

	"campus-queue-backend/internal/model"
	"campus-queue-backend/internal/store"
)

// Publisher pushes a fresh snapshot of a queue to every live subscriber. It
// is called after a mutation has committed; delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, queueID int64)
}

// Notifier receives domain events fire-and-forget.
type Notifier interface {
	Notify(ev Event)
}

// Service implements the per-queue operational state machine. Every action
// takes the queue's mutex, re-checks its precondition against the store, and
// performs exactly one conditional transition, so concurrent operator
// actions and check-ins stay linearizable per queue.
type Service struct {
	store     store.Store
	scope     store.PolicyScope
	locks     *queueLocks
	publisher Publisher
	notifier  Notifier
}

// NewService creates a dispatch service. publisher and notifier may be nil;
// mutations then simply go unannounced.
func NewService(s store.Store, scope store.PolicyScope, publisher Publisher, notifier Notifier) *Service {
	return &Service{
		store:     s,
		scope:     scope,
		locks:     newQueueLocks(),
		publisher: publisher,
		notifier:  notifier,
	}
}

// CheckIn creates a waiting ticket for the caller and announces the new
// queue state.
func (s *Service) CheckIn(ctx context.Context, queueID int64, caller Caller) (Result, error) {
	lock := s.locks.get(queueID)
	lock.Lock()
	defer lock.Unlock()

	queue, err := s.store.GetQueue(ctx, queueID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if !queue.IsActive {
		return Result{Reason: ReasonPaused}, nil
	}

	ticket, err := s.store.CheckIn(ctx, queueID, caller.ID, caller.Email, s.scope)
	if errors.Is(err, store.ErrConflict) {
		return Result{Reason: ReasonAlreadyInQueue}, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return Result{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("check-in on queue %d: %w", queueID, err)
	}

	s.emit(Event{Type: EventCheckedIn, QueueID: queueID, TicketID: ticket.ID, Contact: caller.Email})
	s.publish(ctx, queueID)
	return Result{Success: true, Ticket: ticket}, nil
}

// ServeNext moves the head of the waiting line to serving. A counter handles
// one person at a time, so a ticket already in serving is a conflict; an
// empty line is a normal no-op.
func (s *Service) ServeNext(ctx context.Context, queueID int64) (Result, error) {
	lock := s.locks.get(queueID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.GetQueue(ctx, queueID); errors.Is(err, store.ErrNotFound) {
		return Result{Reason: ReasonNotFound}, nil
	} else if err != nil {
		return Result{}, err
	}

	serving, err := s.store.CurrentServing(ctx, queueID)
	if err != nil {
		return Result{}, err
	}
	if serving != nil {
		return Result{Reason: ReasonAlreadyServing}, nil
	}

	next, err := s.store.NextWaiting(ctx, queueID)
	if err != nil {
		return Result{}, err
	}
	if next == nil {
		return Result{Reason: ReasonEmpty}, nil
	}

	ticket, err := s.store.Transition(ctx, next.ID, []model.TicketStatus{model.StatusWaiting}, model.StatusServing)
	if errors.Is(err, store.ErrConflict) {
		return Result{Reason: ReasonAlreadyServing}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("serve next on queue %d: %w", queueID, err)
	}

	s.publish(ctx, queueID)
	return Result{Success: true, Ticket: ticket}, nil
}

// SkipCurrent marks the serving ticket skipped. Skipped is terminal; the
// ticket does not re-enter the waiting line.
func (s *Service) SkipCurrent(ctx context.Context, queueID int64) (Result, error) {
	return s.finishServing(ctx, queueID, model.StatusSkipped)
}

// CompleteCurrent marks the serving ticket served and emits the completed
// event for the notification module.
func (s *Service) CompleteCurrent(ctx context.Context, queueID int64) (Result, error) {
	return s.finishServing(ctx, queueID, model.StatusServed)
}

// RecallCurrent puts the serving ticket back at the head of the waiting
// line, keeping its sequence number, so the operator can re-announce it.
func (s *Service) RecallCurrent(ctx context.Context, queueID int64) (Result, error) {
	return s.finishServing(ctx, queueID, model.StatusWaiting)
}

// finishServing transitions the ticket currently serving into to. All three
// operator actions on a serving ticket share the same precondition.
func (s *Service) finishServing(ctx context.Context, queueID int64, to model.TicketStatus) (Result, error) {
	lock := s.locks.get(queueID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.GetQueue(ctx, queueID); errors.Is(err, store.ErrNotFound) {
		return Result{Reason: ReasonNotFound}, nil
	} else if err != nil {
		return Result{}, err
	}

	serving, err := s.store.CurrentServing(ctx, queueID)
	if err != nil {
		return Result{}, err
	}
	if serving == nil {
		return Result{Reason: ReasonNoneServing}, nil
	}

	ticket, err := s.store.Transition(ctx, serving.ID, []model.TicketStatus{model.StatusServing}, to)
	if errors.Is(err, store.ErrConflict) {
		return Result{Reason: ReasonNoneServing}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("transition serving ticket on queue %d: %w", queueID, err)
	}

	if to == model.StatusServed {
		// Contact was captured at check-in; the completing operator's request
		// knows nothing about the caller.
		s.emit(Event{Type: EventCompleted, QueueID: queueID, TicketID: ticket.ID, Contact: ticket.CallerEmail})
	}
	s.publish(ctx, queueID)
	return Result{Success: true, Ticket: ticket}, nil
}

// Pause stops the queue from accepting check-ins. Operator actions keep
// working so the counter can drain in-flight tickets.
func (s *Service) Pause(ctx context.Context, queueID int64) (Result, error) {
	return s.setActive(ctx, queueID, false)
}

// Resume re-opens the queue for check-ins.
func (s *Service) Resume(ctx context.Context, queueID int64) (Result, error) {
	return s.setActive(ctx, queueID, true)
}

func (s *Service) setActive(ctx context.Context, queueID int64, active bool) (Result, error) {
	lock := s.locks.get(queueID)
	lock.Lock()
	defer lock.Unlock()

	queue, err := s.store.SetActive(ctx, queueID, active)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Result{}, err
	}

	s.publish(ctx, queueID)
	return Result{Success: true, Queue: queue}, nil
}

func (s *Service) publish(ctx context.Context, queueID int64) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, queueID)
	}
}

func (s *Service) emit(ev Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ev)
	log.Printf("dispatch: emitted %s event for queue %d ticket %d", ev.Type, ev.QueueID, ev.TicketID)
}
