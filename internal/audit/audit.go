// Package audit fans secret store audit events out to the operator log
// and to Prometheus counters. Every fetch/put against a store produces one
// event; security review of broker activity happens off these records.
package audit

import (
	"github.com/hostops/credbroker/internal/logging"
	"github.com/hostops/credbroker/pkg/secretstore"
)

// LoggerSink writes each event through the operator logger.
type LoggerSink struct {
	logger *logging.Logger
}

// NewLoggerSink creates a sink backed by the given logger.
func NewLoggerSink(logger *logging.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Record implements secretstore.AuditSink.
func (s *LoggerSink) Record(event secretstore.AuditEvent) {
	if event.Outcome == "ok" {
		s.logger.Debug("audit: %s %s server=%s outcome=%s",
			event.Store, event.Op, event.ServerName, event.Outcome)
		return
	}
	s.logger.Warn("audit: %s %s server=%s outcome=%s",
		event.Store, event.Op, event.ServerName, event.Outcome)
}

// Fanout forwards each event to every underlying sink.
type Fanout []secretstore.AuditSink

// Record implements secretstore.AuditSink.
func (f Fanout) Record(event secretstore.AuditEvent) {
	for _, sink := range f {
		sink.Record(event)
	}
}
