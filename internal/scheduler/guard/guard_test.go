package guard

import (
	"errors"
	"testing"
	"time"

	eventdomain "github.com/smallbiznis/eventflow/internal/event/domain"
	registrationdomain "github.com/smallbiznis/eventflow/internal/registration/domain"
)

func TestEnsureEventCanComplete(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		status eventdomain.Status
		end    time.Time
		want   error
	}{
		{"ended", eventdomain.StatusPublished, now.Add(-time.Minute), nil},
		{"ends now", eventdomain.StatusPublished, now, nil},
		{"running", eventdomain.StatusPublished, now.Add(time.Minute), ErrEventNotEnded},
		{"draft", eventdomain.StatusDraft, now.Add(-time.Hour), ErrEventNotPublished},
		{"cancelled", eventdomain.StatusCancelled, now.Add(-time.Hour), ErrEventNotPublished},
	}
	for _, tc := range cases {
		if err := EnsureEventCanComplete(tc.status, tc.end, now); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestEnsurePendingCanExpire(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 25 * time.Hour
	if err := EnsurePendingCanExpire(registrationdomain.StatusPending, now.Add(-26*time.Hour), ttl, now); err != nil {
		t.Fatalf("expected stale pending to expire, got %v", err)
	}
	if err := EnsurePendingCanExpire(registrationdomain.StatusPending, now.Add(-time.Hour), ttl, now); !errors.Is(err, ErrRegistrationTooFresh) {
		t.Fatalf("expected too fresh, got %v", err)
	}
	if err := EnsurePendingCanExpire(registrationdomain.StatusConfirmed, now.Add(-48*time.Hour), ttl, now); !errors.Is(err, ErrRegistrationSettled) {
		t.Fatalf("expected settled, got %v", err)
	}
}
