package license

import (
	"io"
	"log/slog"
	"time"
)

// Recorder receives outcome counts from the license components. The
// metrics package provides the Prometheus implementation.
type Recorder interface {
	Activation(result string)
	HardwareCheck(active bool)
	CodesGenerated(n int)
}

type nopRecorder struct{}

func (nopRecorder) Activation(string)  {}
func (nopRecorder) HardwareCheck(bool) {}
func (nopRecorder) CodesGenerated(int) {}

// Option configures an Engine, Generator or Gateway.
type Option func(*options)

type options struct {
	now      func() time.Time
	logger   *slog.Logger
	recorder Recorder
}

func buildOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces the wall clock used for expiry computations.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger for rebinds, inconsistencies and deletions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// clock returns the current time in UTC truncated to whole seconds, the
// precision every backend stores.
func (o options) clock() time.Time {
	return o.now().UTC().Truncate(time.Second)
}
