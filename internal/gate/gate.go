// Package gate decides whether a caller may act on a queue.
package gate

import (
	"context"
	"errors"

	"campus-queue-backend/internal/model"
	"campus-queue-backend/internal/store"
)

// RoleAdmin may act on every queue; any other role only on queues it owns.
const RoleAdmin = "admin"

// Identity is the verified caller, passed explicitly into every call rather
// than read from ambient request state.
type Identity struct {
	Subject string
	Role    string
	Email   string
}

// Reason explains a denied authorization.
type Reason string

const (
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNotFound        Reason = "not_found"
	ReasonForbidden       Reason = "forbidden"
)

// Decision is the outcome of an authorization check. When Allowed, Queue
// holds the resolved record so callers need not re-fetch it.
type Decision struct {
	Allowed bool
	Queue   *model.Queue
	Reason  Reason
}

// Gate authorizes callers against queues using the ownership recorded on the
// queue itself.
type Gate struct {
	store store.Store
}

// New creates a gate over the given store.
func New(s store.Store) *Gate {
	return &Gate{store: s}
}

// Authorize resolves the queue and checks that the identity may control it.
// Admins can access all queues; operators only queues they own.
func (g *Gate) Authorize(ctx context.Context, queueID int64, id Identity) (Decision, error) {
	if id.Subject == "" {
		return Decision{Reason: ReasonUnauthenticated}, nil
	}

	queue, err := g.store.GetQueue(ctx, queueID)
	if errors.Is(err, store.ErrNotFound) {
		return Decision{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	if id.Role != RoleAdmin && queue.OperatorID != id.Subject {
		return Decision{Reason: ReasonForbidden}, nil
	}

	return Decision{Allowed: true, Queue: queue}, nil
}
