package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/smallbiznis/eventflow/internal/authorization"
	"github.com/smallbiznis/eventflow/internal/checkin"
	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	paymentdomain "github.com/smallbiznis/eventflow/internal/payment/domain"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
	ticketdomain "github.com/smallbiznis/eventflow/internal/ticket/domain"
)

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{ticketdomain.ErrEventUnavailable, http.StatusNotFound, "Event not found or not available"},
		{ticketdomain.ErrNotFound, http.StatusNotFound, "Ticket not found"},
		{ticketdomain.ErrSoldOut, http.StatusBadRequest, "Not enough tickets available"},
		{ticketdomain.ErrAtCapacity, http.StatusBadRequest, "Event is at capacity"},
		{fmt.Errorf("reserve: %w", ticketdomain.ErrDuplicate), http.StatusConflict, "Already registered for this event"},
		{registrationdomain.ErrNotConfirmed, http.StatusBadRequest, "Registration is not confirmed (payment may be pending)"},
		{registrationdomain.ErrInvalidTransition, http.StatusBadRequest, "Action not allowed for this registration"},
		{eventdomain.ErrHasRegistrations, http.StatusConflict, "Event has registrations and cannot be deleted"},
		{authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{paymentdomain.ErrCheckoutFailed, http.StatusInternalServerError, "Failed to create checkout session"},
		{ErrRateLimited, http.StatusTooManyRequests, "too many requests"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range cases {
		status, payload := mapError(tc.err)
		if status != tc.status {
			t.Fatalf("%v: expected status %d, got %d", tc.err, tc.status, status)
		}
		if payload.Message != tc.message {
			t.Fatalf("%v: expected message %q, got %q", tc.err, tc.message, payload.Message)
		}
	}
}

func TestMapErrorCheckinRejectionCarriesRegistration(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	attendee := &registrationdomain.Attendee{UserName: "Ada"}
	status, payload := mapError(&checkin.Rejection{
		Err:          registrationdomain.ErrAlreadyCheckedIn,
		Registration: attendee,
		CheckedInAt:  &at,
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if payload.CheckedInAt == nil || !payload.CheckedInAt.Equal(at) {
		t.Fatalf("expected checkedInAt %v, got %v", at, payload.CheckedInAt)
	}
	if payload.Registration != attendee {
		t.Fatalf("expected registration to be attached")
	}
}

func TestMapErrorDomainValidation(t *testing.T) {
	status, payload := mapError(eventdomain.ErrInvalidSchedule)
	if status != http.StatusBadRequest || payload.Type != "validation_error" {
		t.Fatalf("unexpected mapping %d %+v", status, payload)
	}
	if len(payload.Errors) != 1 || payload.Errors[0].Field != "endDate" {
		t.Fatalf("unexpected errors %+v", payload.Errors)
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	cases := []struct {
		err      error
		wantType string
		wantCode string
	}{
		{paymentdomain.ErrInvalidSignature, "validation_error", "invalid_signature"},
		{&checkin.Rejection{Err: registrationdomain.ErrCancelled}, "invalid_request", "registration_cancelled"},
		{ticketdomain.ErrSoldOut, "invalid_request", "sold_out"},
		{fmt.Errorf("db down"), "internal_error", "internal_error"},
	}
	for _, tc := range cases {
		gotType, gotCode := classifyErrorForLog(tc.err)
		if gotType != tc.wantType || gotCode != tc.wantCode {
			t.Fatalf("%v: expected (%s, %s), got (%s, %s)", tc.err, tc.wantType, tc.wantCode, gotType, gotCode)
		}
	}
}
