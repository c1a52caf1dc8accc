// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an EventFlow account. Organizers and attendees share the same table.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Name         string       `gorm:"column:name;not null"`
	Email        string       `gorm:"column:email;uniqueIndex"`
	PasswordHash string       `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time    `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session represents a persisted login session.
type Session struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	UserID     snowflake.ID `gorm:"column:user_id;not null;index"`
	TokenHash  string       `gorm:"column:token_hash;not null;uniqueIndex"`
	UserAgent  string       `gorm:"column:user_agent"`
	IPAddress  string       `gorm:"column:ip_address"`
	ExpiresAt  time.Time    `gorm:"column:expires_at;not null"`
	RevokedAt  *time.Time   `gorm:"column:revoked_at"`
	LastSeenAt *time.Time   `gorm:"column:last_seen_at"`
	CreatedAt  time.Time    `gorm:"column:created_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
