package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventflow/internal/identity"
	ticketdomain "github.com/smallbiznis/eventflow/internal/ticket/domain"
	"github.com/smallbiznis/eventflow/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, principal identity.Principal, req CreateRequest) (*Detail, error)
	List(ctx context.Context, principal identity.Principal, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, id snowflake.ID) (*Detail, error)
	Update(ctx context.Context, principal identity.Principal, id snowflake.ID, req UpdateRequest) (*Detail, error)
	Delete(ctx context.Context, principal identity.Principal, id snowflake.ID) error
	// GetPublic hides drafts and counts a page view on every call.
	GetPublic(ctx context.Context, slug string) (*Detail, error)
}

type TicketInput struct {
	Name        string
	Price       float64
	Quantity    *int
	Description *string
}

type CreateRequest struct {
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Timezone    string
	Location    *string
	IsVirtual   bool
	MeetingURL  *string
	Capacity    *int
	Status      Status
	Tickets     []TicketInput
}

// UpdateRequest leaves nil fields untouched. An empty Location or MeetingURL
// clears it and a zero Capacity makes the event unlimited.
type UpdateRequest struct {
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Timezone    *string
	Location    *string
	IsVirtual   *bool
	MeetingURL  *string
	Capacity    *int
	Status      *Status
}

type ListRequest struct {
	Status Status
	Search string
	pagination.Pagination
}

type Organizer struct {
	ID    snowflake.ID `json:"id" gorm:"column:id"`
	Name  string       `json:"name" gorm:"column:name"`
	Email string       `json:"email" gorm:"column:email"`
}

// Detail is an event with its tickets and registration count.
type Detail struct {
	Event
	Tickets           []ticketdomain.Ticket `json:"tickets"`
	Organizer         *Organizer            `json:"organizer,omitempty"`
	RegistrationCount int64                 `json:"registrationCount"`
}

type ListResponse struct {
	Events     []Detail            `json:"events"`
	Pagination pagination.PageInfo `json:"pagination"`
}
