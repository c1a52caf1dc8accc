package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrMissingQRCode = errors.New("qr_code_required")

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateTicket(ctx context.Context, data TicketData) (io.Reader, error) {
	if strings.TrimSpace(data.QRCode) == "" {
		return nil, ErrMissingQRCode
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(12, data.EventTitle, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(30,
		col.New(7).Add(
			text.New("When: "+data.StartsAt.Format("Mon, 02 Jan 2006 15:04 MST"), props.Text{Top: 0}),
			text.New("Where: "+venue(data), props.Text{Top: 6}),
			text.New("Ticket: "+ticketLine(data), props.Text{Top: 12}),
		),
		col.New(5).Add(
			text.New("Attendee", props.Text{Style: fontstyle.Bold}),
			text.New(data.AttendeeName, props.Text{Top: 6}),
			text.New(data.AttendeeEmail, props.Text{Top: 12}),
		),
	)

	m.AddRow(80,
		col.New(3),
		code.NewQrCol(6, data.QRCode, props.Rect{
			Center:  true,
			Percent: 90,
		}),
		col.New(3),
	)

	m.AddRow(10,
		text.NewCol(12, data.QRCode, props.Text{
			Size:  9,
			Align: align.Center,
		}),
	)
	m.AddRow(10,
		text.NewCol(12, "Registration "+data.RegistrationID+". Present this code at the entrance.", props.Text{
			Size:  8,
			Align: align.Center,
			Top:   2,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate ticket pdf: %w", err)
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func venue(data TicketData) string {
	switch {
	case data.Location != "":
		return data.Location
	case data.IsVirtual:
		return "Online"
	default:
		return "TBA"
	}
}

func ticketLine(data TicketData) string {
	name := data.TicketName
	if name == "" {
		name = "General admission"
	}
	qty := data.Quantity
	if qty < 1 {
		qty = 1
	}
	line := fmt.Sprintf("%s x%d", name, qty)
	if data.Price > 0 {
		line += fmt.Sprintf(" (%.2f %s)", data.Price, strings.ToUpper(data.Currency))
	}
	return line
}
