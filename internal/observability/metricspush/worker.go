package metricspush

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PlatformCollector refreshes gauges that are read from the database rather
// than counted in-process.
type PlatformCollector struct {
	db            *gorm.DB
	events        *prometheus.GaugeVec
	registrations *prometheus.GaugeVec
}

func NewPlatformCollector(db *gorm.DB, registerer prometheus.Registerer) *PlatformCollector {
	events := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eventflow_events",
		Help: "Events by status.",
	}, []string{"status"})
	registrations := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eventflow_registrations",
		Help: "Registrations by status.",
	}, []string{"status"})
	registerer.MustRegister(events, registrations)

	return &PlatformCollector{db: db, events: events, registrations: registrations}
}

type statusCount struct {
	Status string
	Total  int64
}

func (c *PlatformCollector) Refresh(ctx context.Context) error {
	if c == nil || c.db == nil {
		return nil
	}
	if err := c.refresh(ctx, "events", c.events); err != nil {
		return err
	}
	return c.refresh(ctx, "registrations", c.registrations)
}

func (c *PlatformCollector) refresh(ctx context.Context, table string, gauge *prometheus.GaugeVec) error {
	var rows []statusCount
	err := c.db.WithContext(ctx).
		Table(table).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	gauge.Reset()
	for _, row := range rows {
		gauge.WithLabelValues(row.Status).Set(float64(row.Total))
	}
	return nil
}

type Worker struct {
	pusher    Pusher
	collector *PlatformCollector
	gatherer  prometheus.Gatherer
	log       *zap.Logger
}

func NewWorker(pusher Pusher, collector *PlatformCollector, gatherer prometheus.Gatherer, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		pusher:    pusher,
		collector: collector,
		gatherer:  gatherer,
		log:       log.Named("metrics.push"),
	}
}

// PushOnce refreshes the platform gauges and ships one snapshot. A failed
// refresh still pushes the in-process metrics.
func (w *Worker) PushOnce(ctx context.Context) error {
	if err := w.collector.Refresh(ctx); err != nil {
		w.log.Warn("platform gauges refresh failed", zap.Error(err))
	}
	return w.pusher.Push(ctx, w.gatherer)
}

func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.PushOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Error("metrics push failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.log.Info("stopping metrics push worker")
			return
		case <-ticker.C:
		}
	}
}
