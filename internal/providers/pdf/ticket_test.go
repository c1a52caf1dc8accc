package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestGenerateTicket(t *testing.T) {
	reader, err := New().GenerateTicket(context.Background(), TicketData{
		RegistrationID: "42",
		EventTitle:     "Go Meetup",
		StartsAt:       time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC),
		Location:       "Jakarta",
		AttendeeName:   "Ada Lovelace",
		AttendeeEmail:  "ada@example.com",
		TicketName:     "VIP",
		Price:          25,
		Currency:       "usd",
		Quantity:       2,
		QRCode:         "01J0000000000000000000000",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		t.Fatalf("expected a pdf document, got %q", body[:min(len(body), 16)])
	}
}

func TestGenerateTicketRequiresCode(t *testing.T) {
	_, err := New().GenerateTicket(context.Background(), TicketData{EventTitle: "Go Meetup"})
	if !errors.Is(err, ErrMissingQRCode) {
		t.Fatalf("expected ErrMissingQRCode, got %v", err)
	}
}

func TestTicketLine(t *testing.T) {
	cases := []struct {
		data TicketData
		want string
	}{
		{TicketData{}, "General admission x1"},
		{TicketData{TicketName: "VIP", Quantity: 3, Price: 10, Currency: "usd"}, "VIP x3 (10.00 USD)"},
	}
	for _, tc := range cases {
		if got := ticketLine(tc.data); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
	if got := venue(TicketData{IsVirtual: true}); got != "Online" {
		t.Fatalf("expected Online, got %q", got)
	}
}
