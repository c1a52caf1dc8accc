package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/eventflow/internal/clock"
	obsmetrics "github.com/smallbiznis/eventflow/internal/observability/metrics"
	dbtest "github.com/smallbiznis/eventflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	sched *Scheduler
	fx    *dbtest.Fixtures
	clock *clock.FakeClock
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	conn := dbtest.NewDB(t)
	clk := clock.NewFakeClock(dbtest.Now)
	m := obsmetrics.NewSchedulerMetrics(prometheus.NewRegistry(), obsmetrics.Config{ServiceName: "eventflow", Environment: "test"})

	sched, err := New(Params{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   dbtest.NewNode(t),
		Clock:   clk,
		Config:  cfg,
		Metrics: m,
	})
	require.NoError(t, err)
	return &harness{sched: sched, fx: dbtest.NewFixtures(t, conn), clock: clk}
}

func (h *harness) status(table string, id interface{}) string {
	var status string
	h.sched.db.Raw(`SELECT status FROM `+table+` WHERE id = ?`, id).Scan(&status)
	return status
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCompleteEndedEventsJob(t *testing.T) {
	h := newHarness(t, Config{})
	org := h.fx.User("Org", "org@example.com")

	ended := h.fx.Event(org, dbtest.EventOpts{StartDate: dbtest.Now.Add(-5 * time.Hour)})
	running := h.fx.Event(org, dbtest.EventOpts{StartDate: dbtest.Now.Add(-time.Hour)})
	upcoming := h.fx.Event(org, dbtest.EventOpts{})
	endedDraft := h.fx.Event(org, dbtest.EventOpts{Status: "DRAFT", StartDate: dbtest.Now.Add(-5 * time.Hour)})

	require.NoError(t, h.sched.RunOnce(context.Background()))

	assert.Equal(t, "COMPLETED", h.status("events", ended))
	assert.Equal(t, "PUBLISHED", h.status("events", running))
	assert.Equal(t, "PUBLISHED", h.status("events", upcoming))
	assert.Equal(t, "DRAFT", h.status("events", endedDraft))

	h.clock.Advance(2 * time.Hour)
	require.NoError(t, h.sched.CompleteEndedEventsJob(context.Background()))
	assert.Equal(t, "COMPLETED", h.status("events", running))
}

func TestCompleteEndedEventsJobDrainsBatches(t *testing.T) {
	h := newHarness(t, Config{BatchSize: 2})
	org := h.fx.User("Org", "org@example.com")
	for i := 0; i < 5; i++ {
		h.fx.Event(org, dbtest.EventOpts{StartDate: dbtest.Now.Add(-5 * time.Hour)})
	}

	require.NoError(t, h.sched.RunOnce(context.Background()))

	assert.Equal(t, int64(5), h.fx.Count(`SELECT COUNT(*) FROM events WHERE status = 'COMPLETED'`))
}

func TestExpireStalePendingJob(t *testing.T) {
	h := newHarness(t, Config{PendingTTL: 25 * time.Hour})
	org := h.fx.User("Org", "org@example.com")
	event := h.fx.Event(org, dbtest.EventOpts{})
	session := "cs_test_1"

	stale := h.fx.Registration(event, h.fx.User("A", "a@example.com"), dbtest.RegistrationOpts{
		Status: "PENDING", SessionID: &session, CreatedAt: dbtest.Now.Add(-26 * time.Hour),
	})
	fresh := h.fx.Registration(event, h.fx.User("B", "b@example.com"), dbtest.RegistrationOpts{
		Status: "PENDING", CreatedAt: dbtest.Now.Add(-time.Hour),
	})
	confirmed := h.fx.Registration(event, h.fx.User("C", "c@example.com"), dbtest.RegistrationOpts{
		CreatedAt: dbtest.Now.Add(-72 * time.Hour),
	})

	require.NoError(t, h.sched.ExpireStalePendingJob(context.Background()))

	assert.Equal(t, "CANCELLED", h.status("registrations", stale))
	assert.Equal(t, "PENDING", h.status("registrations", fresh))
	assert.Equal(t, "CONFIRMED", h.status("registrations", confirmed))
}

func TestEnabledJobsFilter(t *testing.T) {
	h := newHarness(t, Config{EnabledJobs: []string{JobExpirePending}})
	org := h.fx.User("Org", "org@example.com")
	ended := h.fx.Event(org, dbtest.EventOpts{StartDate: dbtest.Now.Add(-5 * time.Hour)})

	require.NoError(t, h.sched.RunOnce(context.Background()))
	assert.Equal(t, "PUBLISHED", h.status("events", ended))
}

func TestRunJobTimeoutIsSoft(t *testing.T) {
	h := newHarness(t, Config{})

	err := h.sched.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	err = h.sched.runJob(context.Background(), "failing_job", time.Second, func(context.Context) error {
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing_job: boom")
}
