package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
)

func TestRenderRegistrationConfirmed(t *testing.T) {
	body, err := Render(TemplateRegistrationConfirmed, map[string]interface{}{
		"name":        "Ada",
		"event_title": "Go Meetup",
		"qr_code":     "01HQRCODE",
		"link":        "http://localhost:3000/events/go-meetup",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Go Meetup", "Ada", "01HQRCODE", "/events/go-meetup"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q", want)
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := Render("missing", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestSendTemplateUsesDefaultSubject(t *testing.T) {
	var gotTo []string
	var gotMsg string
	p := NewSMTP(Config{Host: "smtp.local", Port: 25, From: "EventFlow <no-reply@eventflow.local>"})
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		if addr != "smtp.local:25" {
			t.Fatalf("unexpected addr %q", addr)
		}
		if a != nil {
			t.Fatalf("expected no auth without username")
		}
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"ada@example.com"}, TemplatePaymentConfirmed, map[string]interface{}{
		"name":        "Ada",
		"event_title": "Go Meetup",
		"qr_code":     "01HQRCODE",
		"link":        "http://localhost:3000/events/go-meetup",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(gotTo) != 1 || gotTo[0] != "ada@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Payment received, you're registered\r\n") {
		t.Fatalf("unexpected subject in message: %s", gotMsg)
	}
}

func TestSendRequiresRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.local", Port: 25})
	if err := p.Send(context.Background(), nil, "hi", "body"); err != ErrNoRecipients {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}
