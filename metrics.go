package bloomchain

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordReserve is called after each Reserve.
	RecordReserve(duration time.Duration, err error)

	// RecordAdd is called after each Add/MAdd. count is the number of items
	// attempted, full the number dropped because the chain was saturated.
	RecordAdd(count, full int, duration time.Duration, err error)

	// RecordExists is called after each Exists/MExists.
	RecordExists(count int, duration time.Duration, err error)

	// RecordInfo is called after each Info.
	RecordInfo(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordReserve(time.Duration, error)       {}
func (NoopMetricsCollector) RecordAdd(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordExists(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordInfo(time.Duration, error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ReserveCount  atomic.Int64
	ReserveErrors atomic.Int64
	AddCount      atomic.Int64
	AddItems      atomic.Int64
	AddFull       atomic.Int64
	AddErrors     atomic.Int64
	AddTotalNanos atomic.Int64
	ExistsCount   atomic.Int64
	ExistsItems   atomic.Int64
	ExistsErrors  atomic.Int64
	InfoCount     atomic.Int64
	InfoErrors    atomic.Int64
}

// RecordReserve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReserve(_ time.Duration, err error) {
	b.ReserveCount.Add(1)
	if err != nil {
		b.ReserveErrors.Add(1)
	}
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(count, full int, duration time.Duration, err error) {
	b.AddCount.Add(1)
	b.AddItems.Add(int64(count))
	b.AddFull.Add(int64(full))
	b.AddTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordExists implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExists(count int, _ time.Duration, err error) {
	b.ExistsCount.Add(1)
	b.ExistsItems.Add(int64(count))
	if err != nil {
		b.ExistsErrors.Add(1)
	}
}

// RecordInfo implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInfo(_ time.Duration, err error) {
	b.InfoCount.Add(1)
	if err != nil {
		b.InfoErrors.Add(1)
	}
}
