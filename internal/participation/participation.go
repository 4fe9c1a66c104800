// Package participation holds the registration state machine shared by the
// participation repository, the toggle lock and the manager service.
package participation

import (
	"errors"

	"ms-events/internal/models"
)

var (
	ErrAuthenticationRequired    = errors.New("authentication required")
	ErrEventNotFound             = errors.New("event not found")
	ErrRegistrationClosed        = errors.New("registration closed")
	ErrFullyBooked               = errors.New("event is fully booked")
	ErrOrganizerSelfRegistration = errors.New("organizers cannot register for their own event")
	ErrToggleInProgress          = errors.New("participation change already in progress")
	ErrNotOrganizer              = errors.New("only the organizer can list participants")
	ErrOperationFailed           = errors.New("participation operation failed")
)

// State is the caller's participation in one event.
type State string

const (
	NotRegistered State = "not_registered"
	Registered    State = "registered"
)

func (s State) Opposite() State {
	if s == Registered {
		return NotRegistered
	}
	return Registered
}

// StateFromStatus maps a stored participation status to a State. A missing
// or cancelled row means NotRegistered.
func StateFromStatus(status string) State {
	if status == models.ParticipationRegistered {
		return Registered
	}
	return NotRegistered
}

// Outcome is what a committed transition left in the events table.
type Outcome struct {
	// Changed is false for idempotent no-ops.
	Changed             bool
	CurrentParticipants int
	MaxParticipants     *int
}

// IsDomainError reports whether err is one of the participation rule violations
// rather than a storage failure.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrAuthenticationRequired,
		ErrEventNotFound,
		ErrRegistrationClosed,
		ErrFullyBooked,
		ErrOrganizerSelfRegistration,
		ErrToggleInProgress,
		ErrNotOrganizer,
		ErrOperationFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
