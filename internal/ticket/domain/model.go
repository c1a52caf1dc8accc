package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Ticket is one priced tier of an event.
type Ticket struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	EventID     snowflake.ID `json:"eventId" gorm:"column:event_id;not null;index"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Description *string      `json:"description,omitempty" gorm:"type:text"`
	Price       float64      `json:"price" gorm:"type:numeric;not null;default:0"`
	Quantity    *int         `json:"quantity" gorm:"column:quantity"`
	Sold        int          `json:"sold" gorm:"not null;default:0"`
	CreatedAt   time.Time    `json:"createdAt" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updatedAt" gorm:"not null"`
}

func (Ticket) TableName() string { return "tickets" }

func (t Ticket) IsFree() bool {
	return t.UnitAmountMinor() == 0
}

// UnitAmountMinor converts the decimal price to minor currency units.
func (t Ticket) UnitAmountMinor() int64 {
	return int64(math.Round(t.Price * 100))
}

// Remaining is nil for unlimited tiers.
func (t Ticket) Remaining() *int {
	if t.Quantity == nil {
		return nil
	}
	left := *t.Quantity - t.Sold
	if left < 0 {
		left = 0
	}
	return &left
}

// Fits reports whether qty more seats fit the tier.
func (t Ticket) Fits(qty int) bool {
	return t.Quantity == nil || t.Sold+qty <= *t.Quantity
}
