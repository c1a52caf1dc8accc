package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

type Registration struct {
	ID              snowflake.ID  `json:"id" gorm:"primaryKey"`
	EventID         snowflake.ID  `json:"eventId" gorm:"column:event_id;not null;index"`
	UserID          snowflake.ID  `json:"userId" gorm:"column:user_id;not null;index"`
	TicketID        *snowflake.ID `json:"ticketId" gorm:"column:ticket_id"`
	Quantity        int           `json:"quantity" gorm:"not null;default:1"`
	Status          Status        `json:"status" gorm:"type:text;not null"`
	CheckedIn       bool          `json:"checkedIn" gorm:"column:checked_in;not null;default:false"`
	CheckedInAt     *time.Time    `json:"checkedInAt" gorm:"column:checked_in_at"`
	QRCode          string        `json:"qrCode" gorm:"column:qr_code;type:text;not null;uniqueIndex"`
	StripePaymentID *string       `json:"stripePaymentId" gorm:"column:stripe_payment_id;type:text"`
	CreatedAt       time.Time     `json:"createdAt" gorm:"not null"`
	UpdatedAt       time.Time     `json:"updatedAt" gorm:"not null"`
}

func (Registration) TableName() string { return "registrations" }

// Attendee is a registration joined with its user and ticket for organizer views.
type Attendee struct {
	Registration
	UserName    string   `json:"userName" gorm:"column:user_name"`
	UserEmail   string   `json:"userEmail" gorm:"column:user_email"`
	TicketName  *string  `json:"ticketName" gorm:"column:ticket_name"`
	TicketPrice *float64 `json:"ticketPrice" gorm:"column:ticket_price"`
}

// Owned is a registration joined with its event and ticket for the attendee's own list.
type Owned struct {
	Registration
	EventTitle     string    `json:"eventTitle" gorm:"column:event_title"`
	EventSlug      string    `json:"eventSlug" gorm:"column:event_slug"`
	EventStartDate time.Time `json:"eventStartDate" gorm:"column:event_start_date"`
	EventLocation  *string   `json:"eventLocation" gorm:"column:event_location"`
	EventIsVirtual bool      `json:"eventIsVirtual" gorm:"column:event_is_virtual"`
	TicketName     *string   `json:"ticketName" gorm:"column:ticket_name"`
	TicketPrice    *float64  `json:"ticketPrice" gorm:"column:ticket_price"`
}

type AttendeeFilter struct {
	Status    Status
	CheckedIn *bool
	Search    string
}

type Stats struct {
	Total     int64 `json:"total"`
	Confirmed int64 `json:"confirmed"`
	Pending   int64 `json:"pending"`
	Cancelled int64 `json:"cancelled"`
	CheckedIn int64 `json:"checkedIn"`
}
