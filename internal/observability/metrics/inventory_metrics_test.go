package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyInventoryError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: InventoryErrorDeadlineExceeded},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: InventoryErrorLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: InventoryErrorSerializationFailure},
		{name: "unique", err: gorm.ErrDuplicatedKey, want: InventoryErrorUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: InventoryErrorUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyInventoryError(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestInventoryMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newInventoryMetrics(registry, Config{ServiceName: "eventflow", Environment: "test"})

	m.IncReservation("free", ReservationOutcomeConfirmed)
	m.IncReservation("free", ReservationOutcomeConfirmed)
	m.AddSeatsSold("paid", 3)
	m.IncOversell()

	if got := testutil.ToFloat64(m.reservations.WithLabelValues("free", ReservationOutcomeConfirmed)); got != 2 {
		t.Fatalf("expected 2 confirmed reservations, got %v", got)
	}
	if got := testutil.ToFloat64(m.seatsSold.WithLabelValues("paid")); got != 3 {
		t.Fatalf("expected 3 seats sold, got %v", got)
	}
	if got := testutil.ToFloat64(m.oversell); got != 1 {
		t.Fatalf("expected oversell 1, got %v", got)
	}
}

func TestSchedulerMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "eventflow", Environment: "test"})

	m.IncJobRun("complete_events")
	m.AddProcessed("complete_events", 4)
	m.AddProcessed("complete_events", 0)
	m.IncJobError("complete_events", context.DeadlineExceeded)
	m.IncJobError("complete_events", errors.New("boom"))

	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("complete_events")); got != 1 {
		t.Fatalf("expected 1 run, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobProcessed.WithLabelValues("complete_events")); got != 4 {
		t.Fatalf("expected 4 processed, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobErrors.WithLabelValues("complete_events", SchedulerJobReasonDeadlineExceeded)); got != 1 {
		t.Fatalf("expected 1 deadline error, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobErrors.WithLabelValues("complete_events", SchedulerJobReasonDB)); got != 1 {
		t.Fatalf("expected 1 db error, got %v", got)
	}
}
