package domain

import "fmt"

// Status is the gateway's own delivery-status vocabulary, independent of any
// provider's native codes.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusInvalid   Status = "invalid"
)

// nextStatuses encodes the forward-only lifecycle:
// pending -> sent -> one of the terminal outcomes.
var nextStatuses = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusSent:      {},
		StatusDelivered: {},
		StatusFailed:    {},
		StatusInvalid:   {},
	},
	StatusSent: {
		StatusDelivered: {},
		StatusFailed:    {},
		StatusInvalid:   {},
	},
	StatusDelivered: {},
	StatusFailed:    {},
	StatusInvalid:   {},
}

// Transition validates a status change without touching any message. It is
// the single source of truth for the delivery lifecycle.
func Transition(from, to Status) error {
	allowed, ok := nextStatuses[from]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, from)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}
	return nil
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed || s == StatusInvalid
}

func (s Status) Valid() bool {
	_, ok := nextStatuses[s]
	return ok
}
