package secretstore

import "fmt"

// NotFoundError indicates no secret exists under the requested server name.
// Distinct from UnavailableError: the store answered, the key is absent.
type NotFoundError struct {
	Store      string
	ServerName string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("secret not found: %s in %s", e.ServerName, e.Store)
}

// AccessDeniedError indicates the store rejected the caller's identity or
// permissions. Retrying without a credential change will not help.
type AccessDeniedError struct {
	Store   string
	Message string
}

func (e AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied by %s: %s", e.Store, e.Message)
}

// UnavailableError indicates a transient failure reaching the store,
// including a caller deadline being exceeded. Retryable with backoff.
type UnavailableError struct {
	Store string
	Err   error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("secret store %s unavailable: %v", e.Store, e.Err)
}

func (e UnavailableError) Unwrap() error {
	return e.Err
}

// ConflictError indicates the store detected a concurrent modification,
// or a create collided with an existing secret.
type ConflictError struct {
	Store      string
	ServerName string
	Message    string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("conflict writing %s to %s: %s", e.ServerName, e.Store, e.Message)
}
