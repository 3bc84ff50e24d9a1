package stores

import (
	"context"
	"errors"
	"time"

	"github.com/hostops/credbroker/pkg/secretstore"
)

// Audited wraps a Store so every fetch/put/exists emits an audit event to
// the configured sink. The event carries outcome classification only; no
// secret material crosses the sink boundary.
type Audited struct {
	inner secretstore.Store
	sink  secretstore.AuditSink
}

// WithAudit decorates a store with audit event emission. A nil sink
// returns the store unchanged.
func WithAudit(inner secretstore.Store, sink secretstore.AuditSink) secretstore.Store {
	if sink == nil {
		return inner
	}
	return &Audited{inner: inner, sink: sink}
}

// Name implements secretstore.Store.
func (a *Audited) Name() string { return a.inner.Name() }

func (a *Audited) record(op, serverName string, err error) {
	a.sink.Record(secretstore.AuditEvent{
		Store:      a.inner.Name(),
		Op:         op,
		ServerName: serverName,
		Outcome:    classify(err),
		Time:       time.Now().UTC(),
	})
}

// Fetch implements secretstore.Store.
func (a *Audited) Fetch(ctx context.Context, serverName string) (secretstore.Secret, error) {
	secret, err := a.inner.Fetch(ctx, serverName)
	a.record("fetch", serverName, err)
	return secret, err
}

// Put implements secretstore.Store.
func (a *Audited) Put(ctx context.Context, serverName string, secret secretstore.Secret, overwrite bool) error {
	err := a.inner.Put(ctx, serverName, secret, overwrite)
	a.record("put", serverName, err)
	return err
}

// Exists implements secretstore.Store.
func (a *Audited) Exists(ctx context.Context, serverName string) (bool, error) {
	ok, err := a.inner.Exists(ctx, serverName)
	a.record("exists", serverName, err)
	return ok, err
}

// Validate implements secretstore.Store.
func (a *Audited) Validate(ctx context.Context) error {
	return a.inner.Validate(ctx)
}

func classify(err error) string {
	if err == nil {
		return "ok"
	}
	var notFound secretstore.NotFoundError
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var denied secretstore.AccessDeniedError
	if errors.As(err, &denied) {
		return "access_denied"
	}
	var unavailable secretstore.UnavailableError
	if errors.As(err, &unavailable) {
		return "unavailable"
	}
	var conflict secretstore.ConflictError
	if errors.As(err, &conflict) {
		return "conflict"
	}
	return "error"
}
