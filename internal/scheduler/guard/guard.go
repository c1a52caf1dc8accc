package guard

import (
	"errors"
	"time"

	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
)

var (
	ErrEventNotPublished    = errors.New("event_not_published")
	ErrEventNotEnded        = errors.New("event_not_ended")
	ErrRegistrationSettled  = errors.New("registration_not_pending")
	ErrRegistrationTooFresh = errors.New("registration_within_ttl")
)

// EnsureEventCanComplete allows PUBLISHED -> COMPLETED once the end date has passed.
func EnsureEventCanComplete(status eventdomain.Status, endDate, now time.Time) error {
	if status != eventdomain.StatusPublished {
		return ErrEventNotPublished
	}
	if now.Before(endDate) {
		return ErrEventNotEnded
	}
	return nil
}

// EnsurePendingCanExpire allows PENDING -> CANCELLED once the registration
// has waited longer than ttl for payment.
func EnsurePendingCanExpire(status registrationdomain.Status, createdAt time.Time, ttl time.Duration, now time.Time) error {
	if status != registrationdomain.StatusPending {
		return ErrRegistrationSettled
	}
	if now.Sub(createdAt) < ttl {
		return ErrRegistrationTooFresh
	}
	return nil
}
