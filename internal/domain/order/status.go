package order

import "fmt"

// Status is the order fulfilment state. The machine is
// pending → shipped → delivered, with cancelled reachable from pending and
// shipped. Delivered and cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a wire label against the enumerated set.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), true
	default:
		return "", false
	}
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next. Terminal states permit nothing, including self-transitions.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusShipped || next == StatusCancelled
	case StatusShipped:
		return next == StatusDelivered || next == StatusCancelled
	case StatusDelivered, StatusCancelled:
		return false
	default:
		return false
	}
}

// InvalidTransitionError reports a status change the state machine forbids,
// including unrecognized target labels.
type InvalidTransitionError struct {
	From Status
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %q to %q", e.From, e.To)
}
