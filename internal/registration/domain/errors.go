package domain

import "errors"

var (
	ErrNotFound      = errors.New("registration_not_found")
	ErrInvalidFilter = errors.New("invalid_attendee_filter")
)
