package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Reservation outcomes. Business rejections are expected traffic, not errors.
const (
	ReservationOutcomeConfirmed  = "confirmed"
	ReservationOutcomePending    = "pending"
	ReservationOutcomeSoldOut    = "sold_out"
	ReservationOutcomeAtCapacity = "at_capacity"
	ReservationOutcomeDuplicate  = "duplicate"
	ReservationOutcomeNotFound   = "not_found"
	ReservationOutcomeError      = "error"
)

const (
	InventoryErrorLockTimeout          = "db_lock_timeout"
	InventoryErrorSerializationFailure = "serialization_failure"
	InventoryErrorUniqueViolation      = "unique_violation"
	InventoryErrorDeadlineExceeded     = "deadline_exceeded"
	InventoryErrorUnknown              = "unknown"
)

// InventoryMetrics tracks seat reservations and the accepted paid-path oversell.
type InventoryMetrics struct {
	reservations *prometheus.CounterVec
	seatsSold    *prometheus.CounterVec
	oversell     prometheus.Counter
	txErrors     *prometheus.CounterVec
}

var (
	inventoryMetricsOnce sync.Once
	inventoryMetrics     *InventoryMetrics
)

// Inventory returns the process-wide inventory metrics registered on the default registerer.
func Inventory(cfg Config) *InventoryMetrics {
	inventoryMetricsOnce.Do(func() {
		inventoryMetrics = newInventoryMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return inventoryMetrics
}

// NewInventoryMetrics registers inventory metrics on the given registerer.
func NewInventoryMetrics(registerer prometheus.Registerer, cfg Config) *InventoryMetrics {
	return newInventoryMetrics(registerer, cfg)
}

func newInventoryMetrics(registerer prometheus.Registerer, cfg Config) *InventoryMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "eventflow_inventory_reservations_total",
		Help:        "Ticket reservation attempts by path and outcome.",
		ConstLabels: constLabels,
	}, []string{"path", "outcome"})
	seatsSold := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "eventflow_inventory_seats_sold_total",
		Help:        "Seats added to ticket sold counters.",
		ConstLabels: constLabels,
	}, []string{"path"})
	oversell := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "eventflow_inventory_oversell_total",
		Help:        "Paid confirmations whose sold increment exceeded the ticket quantity.",
		ConstLabels: constLabels,
	})
	txErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "eventflow_inventory_tx_errors_total",
		Help:        "Inventory transaction failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})

	registerer.MustRegister(reservations, seatsSold, oversell, txErrors)

	return &InventoryMetrics{
		reservations: reservations,
		seatsSold:    seatsSold,
		oversell:     oversell,
		txErrors:     txErrors,
	}
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "eventflow"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

// IncReservation records a reservation outcome for the free or paid path.
func (m *InventoryMetrics) IncReservation(path, outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(path, outcome).Inc()
}

// AddSeatsSold records committed seats.
func (m *InventoryMetrics) AddSeatsSold(path string, qty int) {
	if m == nil || qty <= 0 {
		return
	}
	m.seatsSold.WithLabelValues(path).Add(float64(qty))
}

// IncOversell records a paid confirmation that could not be matched by stock.
func (m *InventoryMetrics) IncOversell() {
	if m == nil {
		return
	}
	m.oversell.Inc()
}

// IncTxError records an inventory transaction failure.
func (m *InventoryMetrics) IncTxError(err error) {
	if m == nil || err == nil {
		return
	}
	m.txErrors.WithLabelValues(ClassifyInventoryError(err)).Inc()
}

// ClassifyInventoryError maps transaction failures to low-cardinality reasons.
func ClassifyInventoryError(err error) string {
	if err == nil {
		return InventoryErrorUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return InventoryErrorDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, pgerrcode.UniqueViolation) {
		return InventoryErrorUniqueViolation
	}
	if hasPGCode(err, pgerrcode.LockNotAvailable) {
		return InventoryErrorLockTimeout
	}
	if hasPGCode(err, pgerrcode.SerializationFailure) {
		return InventoryErrorSerializationFailure
	}
	return InventoryErrorUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
