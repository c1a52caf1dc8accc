package pdf

import (
	"context"
	"io"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

// TicketData is everything printed on an admission ticket.
type TicketData struct {
	RegistrationID string
	EventTitle     string
	StartsAt       time.Time
	Location       string
	IsVirtual      bool
	AttendeeName   string
	AttendeeEmail  string
	TicketName     string
	Price          float64
	Currency       string
	Quantity       int
	QRCode         string
}

type Provider interface {
	GenerateTicket(ctx context.Context, data TicketData) (io.Reader, error)
}
