package domain

import "errors"

var (
	ErrNotFound         = errors.New("event_not_found")
	ErrInvalidID        = errors.New("invalid_event_id")
	ErrInvalidStatus    = errors.New("invalid_event_status")
	ErrInvalidSchedule  = errors.New("invalid_event_schedule")
	ErrHasRegistrations = errors.New("event_has_registrations")
	ErrSlugExhausted    = errors.New("event_slug_exhausted")
)

var (
	ErrInvalidTitle    = errors.New("invalid_event_title")
	ErrInvalidTicket   = errors.New("invalid_ticket")
	ErrInvalidCapacity = errors.New("invalid_event_capacity")
)
