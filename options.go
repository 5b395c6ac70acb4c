package bloomchain

import "log/slog"

// Defaults used when a chain is auto-created by the first Add/MAdd against a
// missing key.
const (
	DefaultErrorRate    = 0.01
	DefaultInitCapacity = 100
	DefaultExpansion    = 2
)

// ScanOrder controls the direction of the per-item existence check across
// sub-filters.
type ScanOrder int

const (
	// NewestFirst scans from the most recently appended sub-filter backwards.
	// Recently inserted items are assumed more likely to recur.
	NewestFirst ScanOrder = iota

	// OldestFirst scans in append order. Observable results are identical;
	// only latency characteristics differ.
	OldestFirst
)

type options struct {
	logger       *Logger
	metrics      MetricsCollector
	namespace    []byte
	scanOrder    ScanOrder
	errorRate    float64
	initCapacity uint32
	expansion    uint16
}

// Option configures BloomChain constructor behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithNamespace prefixes every user key with the given namespace, isolating
// chains of different tenants sharing one engine.
func WithNamespace(namespace []byte) Option {
	return func(o *options) {
		o.namespace = append([]byte(nil), namespace...)
	}
}

// WithScanOrder sets the sub-filter scan direction for existence checks.
// The default is NewestFirst.
func WithScanOrder(order ScanOrder) Option {
	return func(o *options) {
		o.scanOrder = order
	}
}

// WithCreateDefaults overrides the parameters used when a chain is
// auto-created by Add/MAdd. Invalid values fall back to the package
// defaults.
func WithCreateDefaults(errorRate float64, capacity uint32, expansion uint16) Option {
	return func(o *options) {
		if errorRate > 0 && errorRate < 1 {
			o.errorRate = errorRate
		}
		if capacity > 0 {
			o.initCapacity = capacity
		}
		o.expansion = expansion
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:       NoopLogger(),
		metrics:      NoopMetricsCollector{},
		scanOrder:    NewestFirst,
		errorRate:    DefaultErrorRate,
		initCapacity: DefaultInitCapacity,
		expansion:    DefaultExpansion,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
