package domain

import "errors"

var (
	ErrNotFound         = errors.New("ticket_not_found")
	ErrSoldOut          = errors.New("sold_out")
	ErrAtCapacity       = errors.New("at_capacity")
	ErrDuplicate        = errors.New("duplicate_registration")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrEventUnavailable = errors.New("event_not_available")
)
