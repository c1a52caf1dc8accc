package server

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
)

var (
	errInvalidID           = errors.New("must be a valid id")
	errNotPositive         = errors.New("must be no less than 1")
	errIDOrMarkAllRequired = errors.New("id is required unless markAllRead is set")
)

type registerUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *registerUserRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.RuneLength(2, 0)),
		validation.Field(&req.Email, validation.Required, is.Email),
		validation.Field(&req.Password, validation.Required, validation.Length(8, 0)),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req *loginRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Email, validation.Required),
		validation.Field(&req.Password, validation.Required),
	)
}

type ticketRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    *int    `json:"quantity"`
	Description *string `json:"description"`
}

// Validate has a value receiver so []ticketRequest is validated element-wise.
func (req ticketRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required),
		validation.Field(&req.Price, validation.Min(0.0)),
		validation.Field(&req.Quantity, validation.Min(1)),
	)
}

type createEventRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate"`
	Timezone    string          `json:"timezone"`
	Location    *string         `json:"location"`
	IsVirtual   bool            `json:"isVirtual"`
	MeetingURL  *string         `json:"meetingUrl"`
	Capacity    *int            `json:"capacity"`
	Status      string          `json:"status"`
	Tickets     []ticketRequest `json:"tickets"`
}

func (req *createEventRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.Required, validation.RuneLength(3, 0)),
		validation.Field(&req.Description, validation.Required),
		validation.Field(&req.StartDate, validation.Required, validation.Date(time.RFC3339)),
		validation.Field(&req.EndDate, validation.Required, validation.Date(time.RFC3339)),
		validation.Field(&req.Timezone, validation.Required),
		validation.Field(&req.MeetingURL, is.URL),
		validation.Field(&req.Capacity, validation.By(positiveInt)),
		validation.Field(&req.Status, validation.In(string(eventdomain.StatusDraft), string(eventdomain.StatusPublished))),
		validation.Field(&req.Tickets),
	)
}

func (req *createEventRequest) toDomain() eventdomain.CreateRequest {
	out := eventdomain.CreateRequest{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		StartDate:   mustParseRFC3339(req.StartDate),
		EndDate:     mustParseRFC3339(req.EndDate),
		Timezone:    req.Timezone,
		Location:    req.Location,
		IsVirtual:   req.IsVirtual,
		MeetingURL:  emptyToNil(req.MeetingURL),
		Capacity:    req.Capacity,
		Status:      eventdomain.Status(req.Status),
	}
	for _, t := range req.Tickets {
		out.Tickets = append(out.Tickets, eventdomain.TicketInput{
			Name:        strings.TrimSpace(t.Name),
			Price:       t.Price,
			Quantity:    t.Quantity,
			Description: t.Description,
		})
	}
	return out
}

type updateEventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Timezone    *string `json:"timezone"`
	Location    *string `json:"location"`
	IsVirtual   *bool   `json:"isVirtual"`
	MeetingURL  *string `json:"meetingUrl"`
	Capacity    *int    `json:"capacity"`
	Status      *string `json:"status"`
}

func (req *updateEventRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.NilOrNotEmpty, validation.RuneLength(3, 0)),
		validation.Field(&req.Description, validation.NilOrNotEmpty),
		validation.Field(&req.StartDate, validation.NilOrNotEmpty, validation.Date(time.RFC3339)),
		validation.Field(&req.EndDate, validation.NilOrNotEmpty, validation.Date(time.RFC3339)),
		validation.Field(&req.Timezone, validation.NilOrNotEmpty),
		validation.Field(&req.MeetingURL, is.URL),
		validation.Field(&req.Capacity, validation.Min(0)),
		validation.Field(&req.Status, validation.In(
			string(eventdomain.StatusDraft),
			string(eventdomain.StatusPublished),
			string(eventdomain.StatusCancelled),
			string(eventdomain.StatusCompleted),
		)),
	)
}

func (req *updateEventRequest) toDomain() eventdomain.UpdateRequest {
	out := eventdomain.UpdateRequest{
		Title:       req.Title,
		Description: req.Description,
		Timezone:    req.Timezone,
		Location:    req.Location,
		IsVirtual:   req.IsVirtual,
		MeetingURL:  req.MeetingURL,
		Capacity:    req.Capacity,
	}
	if req.StartDate != nil {
		t := mustParseRFC3339(*req.StartDate)
		out.StartDate = &t
	}
	if req.EndDate != nil {
		t := mustParseRFC3339(*req.EndDate)
		out.EndDate = &t
	}
	if req.Status != nil {
		status := eventdomain.Status(*req.Status)
		out.Status = &status
	}
	return out
}

type createRegistrationRequest struct {
	EventID  string `json:"eventId"`
	TicketID string `json:"ticketId"`
	Quantity int    `json:"quantity"`
}

func (req *createRegistrationRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.EventID, validation.Required, validation.By(snowflakeString)),
		validation.Field(&req.TicketID, validation.Required, validation.By(snowflakeString)),
		validation.Field(&req.Quantity, validation.Min(1)),
	)
}

type checkinRequest struct {
	QRCode string `json:"qrCode"`
}

type attendeeActionRequest struct {
	RegistrationID string `json:"registrationId"`
	Action         string `json:"action"`
}

func (req *attendeeActionRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.RegistrationID, validation.Required, validation.By(snowflakeString)),
		validation.Field(&req.Action, validation.Required),
	)
}

type markNotificationsRequest struct {
	ID          string `json:"id"`
	MarkAllRead bool   `json:"markAllRead"`
}

func (req *markNotificationsRequest) Validate() error {
	return validation.ValidateStruct(req,
		validation.Field(&req.ID, validation.By(func(value interface{}) error {
			if !req.MarkAllRead && strings.TrimSpace(req.ID) == "" {
				return errIDOrMarkAllRequired
			}
			return snowflakeString(value)
		})),
	)
}

func snowflakeString(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if id, err := snowflake.ParseString(strings.TrimSpace(s)); err != nil || id <= 0 {
		return errInvalidID
	}
	return nil
}

func positiveInt(value interface{}) error {
	v, ok := value.(*int)
	if !ok || v == nil {
		return nil
	}
	if *v < 1 {
		return errNotPositive
	}
	return nil
}

func mustParseRFC3339(raw string) time.Time {
	t, _ := time.Parse(time.RFC3339, raw)
	return t.UTC()
}

func emptyToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}

func parseID(raw string) snowflake.ID {
	id, _ := snowflake.ParseString(strings.TrimSpace(raw))
	return id
}
