package session

import (
	"time"
)

// Validator decides whether a stored session is still usable. Validation
// is a function of the session and the current time, with one side
// effect: a time-expired session has its record transitioned to expired
// so it ages out of ListActive.
type Validator struct {
	store *FileStore
	now   func() time.Time
}

// NewValidator creates a validator over the given store.
func NewValidator(store *FileStore) *Validator {
	return &Validator{store: store, now: time.Now}
}

// Validate returns the remaining lifetime of a usable session, or the
// failure describing why it cannot be used. Expired and revoked are
// expected outcomes forcing re-issuance, not crashes.
func (v *Validator) Validate(s Session) (time.Duration, error) {
	if err := wellFormed(s); err != nil {
		return 0, err
	}

	switch s.Status {
	case StatusRevoked:
		return 0, RevokedError{SessionID: s.ID}
	case StatusExpired:
		return 0, ExpiredError{SessionID: s.ID, ExpiredAt: s.ExpiresAt}
	case StatusActive:
	default:
		return 0, MalformedError{SessionID: s.ID, Reason: "unknown status " + string(s.Status)}
	}

	now := v.now()
	if !now.Before(s.ExpiresAt) {
		if v.store != nil {
			// Best effort: the session is unusable either way.
			_ = v.store.MarkExpired(s)
		}
		return 0, ExpiredError{SessionID: s.ID, ExpiredAt: s.ExpiresAt}
	}
	return s.ExpiresAt.Sub(now), nil
}

func wellFormed(s Session) error {
	if s.ID == "" {
		return MalformedError{SessionID: "(none)", Reason: "missing session_id"}
	}
	if s.Username == "" {
		return MalformedError{SessionID: s.ID, Reason: "missing username"}
	}
	if s.ExpiresAt.IsZero() {
		return MalformedError{SessionID: s.ID, Reason: "missing expires_at"}
	}
	return nil
}
