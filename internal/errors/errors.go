package errors

import (
	"errors"
	"fmt"

	"github.com/hostops/credbroker/internal/session"
	"github.com/hostops/credbroker/pkg/secretstore"
)

// UserError is an error meant to be shown to the operator with enough
// context to act on it.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Details != "" {
		msg += "\n  Details: " + e.Details
	}
	if e.Suggestion != "" {
		msg += "\n  💡 Try: " + e.Suggestion
	}
	return msg
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid or missing configuration value.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// IsRetryable reports whether the caller may usefully retry with backoff.
// Only the transient failure classes qualify, an unreachable store or a
// failed session write; NotFound, AccessDenied and Conflict need a
// different reaction from the caller, not a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var unavailable secretstore.UnavailableError
	if errors.As(err, &unavailable) {
		return true
	}
	var persistence session.PersistenceError
	return errors.As(err, &persistence)
}

// StoreSuggestion maps a secret store failure to operator guidance for the
// backend that produced it.
func StoreSuggestion(err error) string {
	var denied secretstore.AccessDeniedError
	if errors.As(err, &denied) {
		switch denied.Store {
		case "aws.secretsmanager":
			return "Check IAM permissions for secretsmanager:GetSecretValue and secretsmanager:PutSecretValue"
		case "gcp.secretmanager":
			return "Check the service account has roles/secretmanager.secretAccessor and secretVersionAdder"
		case "azure.keyvault":
			return "Check the identity has get/set secret permissions in the Key Vault access policy"
		}
		return "Check the store credentials configured for this backend"
	}

	var unavailable secretstore.UnavailableError
	if errors.As(err, &unavailable) {
		return "The store did not respond in time. Check your network connection and retry"
	}

	var conflict secretstore.ConflictError
	if errors.As(err, &conflict) {
		return "Another writer modified the secret. Re-run the operation to pick up the latest value"
	}

	return ""
}
