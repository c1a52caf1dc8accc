package domain

import (
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the durable log of verified provider events.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	SessionID       *string        `json:"session_id" gorm:"type:text"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypeCheckoutCompleted = "checkout.session.completed"
	EventTypeCheckoutExpired   = "checkout.session.expired"
)

// CheckoutMetadata is echoed back by the provider so a webhook can be
// reconciled without looking the session up.
type CheckoutMetadata struct {
	EventID  snowflake.ID
	TicketID snowflake.ID
	UserID   snowflake.ID
	Quantity int
}

// Values renders metadata the way it is sent to the provider.
func (m CheckoutMetadata) Values() map[string]string {
	return map[string]string{
		"eventId":  m.EventID.String(),
		"ticketId": m.TicketID.String(),
		"userId":   m.UserID.String(),
		"quantity": strconv.Itoa(m.Quantity),
	}
}

// CheckoutEvent is the canonical checkout event parsed by adapters.
type CheckoutEvent struct {
	Provider        string
	ProviderEventID string
	SessionID       string
	Type            string
	// Metadata is nil when the provider event carried none that parsed.
	Metadata    *CheckoutMetadata
	AmountTotal int64
	Currency    string
	OccurredAt  time.Time
	RawPayload  []byte
}

type CheckoutSessionRequest struct {
	Metadata      CheckoutMetadata
	CustomerEmail string
	ProductName   string
	UnitAmount    int64
	Currency      string
	SuccessURL    string
	CancelURL     string
	// IdempotencyKey is forwarded to the provider when set.
	IdempotencyKey string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// ReconcileResult reports what a reconciled event changed.
type ReconcileResult struct {
	Affected int64
	Oversold bool
}
