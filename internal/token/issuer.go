// Package token mints short-lived sessions from long-lived secrets.
package token

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hostops/credbroker/internal/audit"
	"github.com/hostops/credbroker/internal/logging"
	"github.com/hostops/credbroker/internal/session"
	"github.com/hostops/credbroker/pkg/secretstore"
)

// DefaultMaxDuration caps session lifetime when the config does not.
// Unbounded sessions defeat the point of issuing sessions at all.
const DefaultMaxDuration = 24 * time.Hour

// InvalidDurationError indicates a requested session lifetime outside the
// allowed range.
type InvalidDurationError struct {
	Requested time.Duration
	Max       time.Duration
}

func (e InvalidDurationError) Error() string {
	if e.Requested <= 0 {
		return fmt.Sprintf("invalid session duration %s: must be positive", e.Requested)
	}
	return fmt.Sprintf("invalid session duration %s: exceeds maximum %s", e.Requested, e.Max)
}

// Issuer derives sessions from secrets. The source secret is never
// mutated; its credential fields are snapshotted into the session.
type Issuer struct {
	maxDuration time.Duration
	logger      *logging.Logger

	now      func() time.Time
	newID    func() (string, error)
	fallback atomic.Uint64
}

// NewIssuer creates an issuer. A non-positive maxDuration falls back to
// DefaultMaxDuration.
func NewIssuer(maxDuration time.Duration, logger *logging.Logger) *Issuer {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &Issuer{
		maxDuration: maxDuration,
		logger:      logger,
		now:         time.Now,
		newID: func() (string, error) {
			id, err := uuid.NewRandom()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

// Issue mints a session valid for the requested duration. The session ID
// comes from a collision-resistant random source; if that source fails,
// issuance falls back to a timestamp+counter ID and logs the degraded
// uniqueness guarantee rather than hiding it.
func (i *Issuer) Issue(secret secretstore.Secret, duration time.Duration) (session.Session, error) {
	if duration <= 0 || duration > i.maxDuration {
		return session.Session{}, InvalidDurationError{Requested: duration, Max: i.maxDuration}
	}

	id, err := i.newID()
	if err != nil {
		seq := i.fallback.Add(1)
		id = fmt.Sprintf("fallback-%d-%d", i.now().UnixNano(), seq)
		i.logger.Warn("random source unavailable, using timestamp-based session ID (degraded uniqueness): %v", err)
	}

	issuedAt := i.now()
	s := session.Session{
		ID:         id,
		ServerName: secret.ServerName,
		Username:   secret.Username,
		Password:   secret.Password,
		ServerType: secret.ServerType,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(duration),
		Status:     session.StatusActive,
	}
	audit.RecordSessionIssued()
	return s, nil
}
