package dispatch

import "campus-queue-backend/internal/model"

// Reason explains why a dispatch action did not change state. Empty-queue is
// the one expected no-op; the rest are precondition violations the operator
// UI must distinguish from "nothing to do".
type Reason string

const (
	ReasonEmpty          Reason = "empty"
	ReasonAlreadyServing Reason = "already_serving"
	ReasonNoneServing    Reason = "none_serving"
	ReasonPaused         Reason = "paused"
	ReasonAlreadyInQueue Reason = "already_in_queue"
	ReasonNotFound       Reason = "not_found"
)

// Result is the uniform shape every dispatch action returns. Precondition
// failures are resolved into Success=false with a Reason rather than errors;
// only storage failures surface as errors.
type Result struct {
	Success bool          `json:"success"`
	Ticket  *model.Ticket `json:"ticket,omitempty"`
	Queue   *model.Queue  `json:"queue,omitempty"`
	Reason  Reason        `json:"reason,omitempty"`
}

// Caller identifies who is acting, passed explicitly into every call. Email
// is optional contact info forwarded to the notification module.
type Caller struct {
	ID    string
	Email string
}

// EventType enumerates the domain events emitted after a transition commits.
type EventType string

const (
	EventCheckedIn EventType = "checked_in"
	EventCompleted EventType = "completed"
)

// Event is handed to the notification module fire-and-forget; its delivery
// never blocks or rolls back the transition that produced it.
type Event struct {
	Type     EventType
	QueueID  int64
	TicketID int64
	Contact  string
}
