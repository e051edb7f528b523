package errs

import (
	"errors"
	"log/slog"
	"sync"
)

// Sink receives errors nobody else handled.
type Sink interface {
	Report(err error)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(err error)

// Report calls f(err).
func (f SinkFunc) Report(err error) { f(err) }

// LogSink writes errors to a slog.Logger. It is the default sink.
type LogSink struct {
	Logger *slog.Logger
}

// Report logs err at error level with its structured fields.
func (s LogSink) Report(err error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var e *Error
	if !errors.As(err, &e) {
		logger.Error("unhandled store error", "error", err)
		return
	}
	logger.Error("unhandled store error",
		"kind", string(e.Kind),
		"op", e.Op,
		"action", e.ActionType,
		"correlation_id", e.CorrelationID,
		"seq", e.Seq,
		"error", e.Err,
	)
}

// Collector records reported errors. Safe for concurrent use.
type Collector struct {
	mu   sync.Mutex
	errs []error
}

// Report appends err.
func (c *Collector) Report(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

// Errors returns a copy of everything reported so far.
func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Len returns the number of reported errors.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

// Multi fans a report out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(err error) {
		for _, s := range sinks {
			if s != nil {
				s.Report(err)
			}
		}
	})
}
