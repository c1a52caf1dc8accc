package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Action is an organizer or system command against a registration.
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
	ActionCheckIn Action = "checkin"
)

var (
	ErrInvalidAction     = errors.New("invalid_action")
	ErrInvalidTransition = errors.New("invalid_transition")

	ErrCancelled        = fmt.Errorf("%w: registration_cancelled", ErrInvalidTransition)
	ErrNotConfirmed     = fmt.Errorf("%w: registration_not_confirmed", ErrInvalidTransition)
	ErrAlreadyCheckedIn = fmt.Errorf("%w: already_checked_in", ErrInvalidTransition)
	ErrAlreadyConfirmed = fmt.Errorf("%w: already_confirmed", ErrInvalidTransition)
)

func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionConfirm:
		return ActionConfirm, nil
	case ActionCancel:
		return ActionCancel, nil
	case ActionCheckIn:
		return ActionCheckIn, nil
	}
	return "", ErrInvalidAction
}

// Change is the effect of a permitted transition.
type Change struct {
	Action Action
	From   Status
	To     Status
	// CheckIn flips checkedIn false to true; status stays CONFIRMED.
	CheckIn bool
	// CommitInventory is set when a PENDING paid registration is confirmed
	// outside the webhook, so its seats still need to be added to sold.
	CommitInventory bool
}

// Transition evaluates action against the registration's current state.
// Check-in failures are reported in decision order: cancelled, not confirmed,
// already checked in.
func Transition(r Registration, action Action) (Change, error) {
	switch action {
	case ActionConfirm:
		switch r.Status {
		case StatusPending:
			return Change{
				Action:          action,
				From:            StatusPending,
				To:              StatusConfirmed,
				CommitInventory: r.TicketID != nil,
			}, nil
		case StatusConfirmed:
			return Change{}, ErrAlreadyConfirmed
		case StatusCancelled:
			return Change{}, ErrCancelled
		}
	case ActionCancel:
		switch r.Status {
		case StatusPending:
			return Change{Action: action, From: StatusPending, To: StatusCancelled}, nil
		case StatusConfirmed:
			if r.CheckedIn {
				return Change{}, ErrAlreadyCheckedIn
			}
			return Change{Action: action, From: StatusConfirmed, To: StatusCancelled}, nil
		case StatusCancelled:
			return Change{}, ErrCancelled
		}
	case ActionCheckIn:
		switch r.Status {
		case StatusCancelled:
			return Change{}, ErrCancelled
		case StatusPending:
			return Change{}, ErrNotConfirmed
		case StatusConfirmed:
			if r.CheckedIn {
				return Change{}, ErrAlreadyCheckedIn
			}
			return Change{Action: action, From: StatusConfirmed, To: StatusConfirmed, CheckIn: true}, nil
		}
	default:
		return Change{}, ErrInvalidAction
	}
	return Change{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, r.Status)
}
