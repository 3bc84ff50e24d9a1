package session

import (
	"fmt"
	"time"
)

// NotFoundError indicates no active session exists for a server. Expired
// or revoked records may still be on disk; callers must re-issue rather
// than reuse them.
type NotFoundError struct {
	ServerName string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("no active session for server %s", e.ServerName)
}

// PersistenceError indicates the local session storage failed. Transient;
// retryable by the caller.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("session storage %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e PersistenceError) Unwrap() error {
	return e.Err
}

// ExpiredError is the expected outcome of validating a session past its
// expiry. Not a crash; the caller re-issues.
type ExpiredError struct {
	SessionID string
	ExpiredAt time.Time
}

func (e ExpiredError) Error() string {
	return fmt.Sprintf("session %s expired at %s", e.SessionID, e.ExpiredAt.UTC().Format(time.RFC3339))
}

// RevokedError is the expected outcome of validating a session whose
// source secret was rotated.
type RevokedError struct {
	SessionID string
}

func (e RevokedError) Error() string {
	return fmt.Sprintf("session %s was revoked", e.SessionID)
}

// MalformedError covers corrupted persisted state: a session record
// missing required fields.
type MalformedError struct {
	SessionID string
	Reason    string
}

func (e MalformedError) Error() string {
	return fmt.Sprintf("session %s is malformed: %s", e.SessionID, e.Reason)
}
