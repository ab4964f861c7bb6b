package plan

import "strings"

// Status describes the plan lifecycle label.
type Status string

const (
	StatusUnspecified            Status = ""
	StatusDraft                  Status = "draft"
	StatusCollectingAvailability Status = "collecting_availability"
	StatusScheduled              Status = "scheduled"
	StatusCompleted              Status = "completed"
	StatusCancelled              Status = "cancelled"
)

// ParseStatus canonicalizes a stored status label.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.TrimSpace(strings.ToLower(value))) {
	case StatusDraft:
		return StatusDraft, true
	case StatusCollectingAvailability:
		return StatusCollectingAvailability, true
	case StatusScheduled:
		return StatusScheduled, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusCancelled:
		return StatusCancelled, true
	default:
		return StatusUnspecified, false
	}
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// transitions is the legal-edge table for the plan lifecycle.
// cancelled is reachable from every non-terminal state; finalize is legal
// from draft so initiator-only plans can be scheduled without invitees.
var transitions = map[Status][]Status{
	StatusDraft:                  {StatusCollectingAvailability, StatusScheduled, StatusCancelled},
	StatusCollectingAvailability: {StatusScheduled, StatusCancelled},
	StatusScheduled:              {StatusCompleted, StatusCancelled},
	StatusCompleted:              {},
	StatusCancelled:              {},
}

// IsTransitionAllowed reports whether the lifecycle permits from -> to.
func IsTransitionAllowed(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
