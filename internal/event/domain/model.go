package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type Event struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrganizerID snowflake.ID `json:"organizerId" gorm:"column:organizer_id;not null;index"`
	Slug        string       `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Title       string       `json:"title" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text;not null"`
	StartDate   time.Time    `json:"startDate" gorm:"column:start_date;not null"`
	EndDate     time.Time    `json:"endDate" gorm:"column:end_date;not null"`
	Timezone    string       `json:"timezone" gorm:"type:text;not null"`
	Location    *string      `json:"location" gorm:"type:text"`
	IsVirtual   bool         `json:"isVirtual" gorm:"column:is_virtual;not null;default:false"`
	MeetingURL  *string      `json:"meetingUrl" gorm:"column:meeting_url;type:text"`
	Capacity    *int         `json:"capacity" gorm:"column:capacity"`
	Status      Status       `json:"status" gorm:"type:text;not null"`
	CreatedAt   time.Time    `json:"createdAt" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updatedAt" gorm:"not null"`
}

func (Event) TableName() string { return "events" }

// AcceptsRegistrations is true only for published events.
func (e Event) AcceptsRegistrations() bool {
	return e.Status == StatusPublished
}

// Analytics is the derived per-event counter row.
type Analytics struct {
	EventID      snowflake.ID `json:"eventId" gorm:"primaryKey;column:event_id"`
	PageViews    int64        `json:"pageViews" gorm:"column:page_views;not null;default:0"`
	TotalRevenue float64      `json:"totalRevenue" gorm:"column:total_revenue;type:numeric;not null;default:0"`
	UpdatedAt    time.Time    `json:"updatedAt" gorm:"not null"`
}

func (Analytics) TableName() string { return "event_analytics" }

type ListFilter struct {
	OrganizerID snowflake.ID
	Status      Status
	Search      string
	Limit       int
	Offset      int
}
