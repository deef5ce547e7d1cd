package engine

import (
	"log/slog"
	"time"

	"github.com/evansbry000/SmartPlugApp/internal/clock"
	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// Retention defaults.
const (
	DefaultRetentionWindow = 7 * 24 * time.Hour
	DefaultPageSize        = 500
)

// Option configures engine components. Options a component does not use
// are ignored.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	recorder       Recorder
	alerts         AlertPublisher
	clock          clock.Clock
	fallbackDevice string
	window         time.Duration
	pageSize       int
}

func applyOptions(opts []Option) options {
	o := options{
		logger:         slog.Default(),
		recorder:       nopRecorder{},
		clock:          clock.Real(),
		fallbackDevice: record.DefaultFallbackDeviceID,
		window:         DefaultRetentionWindow,
		pageSize:       DefaultPageSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. Each component adds its own component tag.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithAlerts publishes every recorded emergency event through p.
func WithAlerts(p AlertPublisher) Option {
	return func(o *options) {
		o.alerts = p
	}
}

// WithClock sets the clock used for the retention cutoff.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithFallbackDevice sets the device owning log entries whose id carries
// no device prefix.
//
// Default: "plug1" (record.DefaultFallbackDeviceID)
func WithFallbackDevice(id string) Option {
	return func(o *options) {
		if id != "" {
			o.fallbackDevice = id
		}
	}
}

// WithRetentionWindow sets how long history is kept.
//
// Default: 7 days (DefaultRetentionWindow)
func WithRetentionWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.window = d
		}
	}
}

// WithPageSize sets the maximum number of history records deleted per batch.
//
// Default: 500 (DefaultPageSize)
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}
