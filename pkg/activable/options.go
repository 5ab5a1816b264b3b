package activable

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric"
)

// DefaultBatchSize is the number of rows RemoveAll and RemoveWhere load per query.
const DefaultBatchSize = 100

type options struct {
	now          func() time.Time
	meter        metric.Meter
	logger       zerolog.Logger
	observers    []Observer
	associations []Association
	batchSize    int
}

// Option configures a Repository.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:    log.Logger,
		batchSize: DefaultBatchSize,
	}
}

// WithLogger sets the logger used for removal diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides the source of removal timestamps. The GORM NowFunc is
// used otherwise.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithObservers registers observers at construction.
func WithObservers(observers ...Observer) Option {
	return func(o *options) { o.observers = append(o.observers, observers...) }
}

// WithAssociations declares the model's associations and their cascade policy.
func WithAssociations(associations ...Association) Option {
	return func(o *options) { o.associations = append(o.associations, associations...) }
}

// WithBatchSize sets how many rows are loaded per query by RemoveAll and RemoveWhere.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMeter sets the meter removal counters are created from.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) { o.meter = meter }
}
