package metricspush

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/eventflow/internal/config"
	dbtest "github.com/smallbiznis/eventflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPusherSelectsExporter(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.MetricsPushConfig
		want interface{}
	}{
		{"disabled", config.MetricsPushConfig{}, nil},
		{"missing endpoint", config.MetricsPushConfig{Exporter: ExporterRemoteWrite}, nil},
		{"unknown exporter", config.MetricsPushConfig{Exporter: "statsd", Endpoint: "http://x"}, nil},
		{"remote write", config.MetricsPushConfig{Exporter: ExporterRemoteWrite, Endpoint: "http://collector/api/v1/write"}, &RemoteWritePusher{}},
		{"pushgateway", config.MetricsPushConfig{Exporter: ExporterPushgateway, Endpoint: "http://gateway:9091"}, &PushgatewayPusher{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NewPusher(config.Config{AppName: "eventflow", MetricsPush: tc.cfg}, zap.NewNop())
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.IsType(t, tc.want, got)
		})
	}
}

func TestRemoteWritePusherSendsCountersAndGauges(t *testing.T) {
	var (
		body    []byte
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "eventflow_test_total"}, []string{"outcome"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "eventflow_test_gauge"})
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "eventflow_test_seconds"})
	registry.MustRegister(counter, gauge, histogram)
	counter.WithLabelValues("ok").Add(3)
	gauge.Set(7)
	histogram.Observe(0.5)

	pusher := NewRemoteWritePusher(srv.URL, "secret")
	pusher.now = func() time.Time { return dbtest.Now }
	require.NoError(t, pusher.Push(context.Background(), registry))

	assert.Equal(t, "snappy", headers.Get("Content-Encoding"))
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))

	raw, err := snappy.Decode(nil, body)
	require.NoError(t, err)
	var req prompb.WriteRequest
	require.NoError(t, req.Unmarshal(raw))
	require.Len(t, req.Timeseries, 2)

	values := map[string]float64{}
	for _, ts := range req.Timeseries {
		require.Equal(t, "__name__", ts.Labels[0].Name)
		require.Len(t, ts.Samples, 1)
		assert.Equal(t, dbtest.Now.UnixMilli(), ts.Samples[0].Timestamp)
		values[ts.Labels[0].Value] = ts.Samples[0].Value
	}
	assert.Equal(t, 3.0, values["eventflow_test_total"])
	assert.Equal(t, 7.0, values["eventflow_test_gauge"])
}

func TestRemoteWritePusherReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "eventflow_test_gauge"})
	registry.MustRegister(gauge)

	err := NewRemoteWritePusher(srv.URL, "").Push(context.Background(), registry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestPushgatewayPusherUsesJobAndGrouping(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "eventflow_test_gauge"})
	registry.MustRegister(gauge)

	pusher := NewPushgatewayPusher(srv.URL, "eventflow", map[string]string{"environment": "test", "empty": ""})
	require.NoError(t, pusher.Push(context.Background(), registry))
	assert.True(t, strings.HasPrefix(path, "/metrics/job/eventflow"), path)
	assert.Contains(t, path, "/environment/test")
	assert.NotContains(t, path, "empty")
}

type capturePusher struct {
	gatherer prometheus.Gatherer
}

func (p *capturePusher) Push(_ context.Context, gatherer prometheus.Gatherer) error {
	p.gatherer = gatherer
	return nil
}

func TestWorkerRefreshesPlatformGauges(t *testing.T) {
	conn := dbtest.NewDB(t)
	fx := dbtest.NewFixtures(t, conn)
	org := fx.User("Org", "org@example.com")
	event := fx.Event(org, dbtest.EventOpts{})
	fx.Event(org, dbtest.EventOpts{Status: "DRAFT"})
	fx.Registration(event, fx.User("A", "a@example.com"), dbtest.RegistrationOpts{})
	fx.Registration(event, fx.User("B", "b@example.com"), dbtest.RegistrationOpts{Status: "PENDING"})

	registry := prometheus.NewRegistry()
	collector := NewPlatformCollector(conn, registry)
	pusher := &capturePusher{}
	worker := NewWorker(pusher, collector, registry, zap.NewNop())

	require.NoError(t, worker.PushOnce(context.Background()))
	assert.Equal(t, prometheus.Gatherer(registry), pusher.gatherer)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.events.WithLabelValues("PUBLISHED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.events.WithLabelValues("DRAFT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.registrations.WithLabelValues("CONFIRMED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.registrations.WithLabelValues("PENDING")))
}
