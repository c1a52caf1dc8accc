package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	TypeRegistration Type = "REGISTRATION"
	TypePayment      Type = "PAYMENT"
)

type Notification struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"userId" gorm:"column:user_id;not null;index"`
	Type      Type         `json:"type" gorm:"type:text;not null"`
	Title     string       `json:"title" gorm:"type:text;not null"`
	Message   string       `json:"message" gorm:"type:text;not null"`
	Link      *string      `json:"link" gorm:"type:text"`
	Read      bool         `json:"read" gorm:"not null;default:false"`
	CreatedAt time.Time    `json:"createdAt" gorm:"not null"`
}

func (Notification) TableName() string { return "notifications" }

// Recipient is the addressable identity behind a user id.
type Recipient struct {
	UserID snowflake.ID `gorm:"column:id"`
	Name   string       `gorm:"column:name"`
	Email  string       `gorm:"column:email"`
}

type CreateRequest struct {
	UserID  snowflake.ID
	Type    Type
	Title   string
	Message string
	Link    string
}

// EmailRequest describes a confirmation email sent after the confirming
// transaction commits.
type EmailRequest struct {
	UserID     snowflake.ID
	Template   string
	EventTitle string
	EventSlug  string
	QRCode     string
}

type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int64          `json:"unreadCount"`
}
