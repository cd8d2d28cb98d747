package store

import "errors"

// Sentinel errors returned by Store implementations. Callers distinguish
// state-machine precondition failures (ErrConflict) from missing records
// (ErrNotFound); anything else is a storage failure.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("conflicting state")
)

// PolicyScope controls how wide the "one active ticket per person" rule
// applies at check-in time.
type PolicyScope string

const (
	// ScopeQueue rejects a check-in only when the caller already holds a
	// non-terminal ticket in the same queue.
	ScopeQueue PolicyScope = "queue"
	// ScopeGlobal rejects a check-in when the caller holds a non-terminal
	// ticket in any queue.
	ScopeGlobal PolicyScope = "global"
)
