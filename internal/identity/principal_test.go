package identity

import (
	"context"
	"errors"
	"testing"
)

func TestPrincipalRoundTrip(t *testing.T) {
	p := Principal{UserID: 7, Email: "ada@example.com", Authenticated: true}
	got := FromContext(WithPrincipal(context.Background(), p))
	if got != p {
		t.Fatalf("expected %+v, got %+v", p, got)
	}
	if got.DisplayName() != "ada@example.com" {
		t.Fatalf("expected email display name, got %q", got.DisplayName())
	}
}

func TestRequire(t *testing.T) {
	if err := FromContext(context.Background()).Require(); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if err := (Principal{UserID: 1, Authenticated: true}).Require(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
