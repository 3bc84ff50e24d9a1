// Package secretstore defines the interface and types for remote secret
// store backends in credbroker.
//
// A secret store holds the long-lived credential record for each managed
// server. credbroker never invents its own storage semantics on top of the
// backend: a store is expected to provide atomic get/put keyed by server
// name, and to surface concurrent modification as ConflictError when it
// supports optimistic versioning.
//
// Implementations must distinguish four failure classes, because callers
// react differently to each:
//
//   - NotFoundError: the secret does not exist (caller may create it)
//   - AccessDeniedError: the caller's identity lacks permission (abort)
//   - UnavailableError: the backend is unreachable (retry with backoff)
//   - ConflictError: a concurrent writer won (re-read and retry)
//
// All operations accept a context and must respect its deadline; a timeout
// is reported as UnavailableError, never as a hang.
//
// Implementations must be safe for concurrent use and must never log a
// secret's password material.
package secretstore

import (
	"context"
	"fmt"
	"time"
)

// ServerType classifies the operating system of a managed server.
type ServerType string

const (
	ServerTypeLinux   ServerType = "linux"
	ServerTypeWindows ServerType = "windows"
	ServerTypeOther   ServerType = "other"
)

// ParseServerType maps a payload string to a ServerType, defaulting to
// ServerTypeOther for anything unrecognized.
func ParseServerType(s string) ServerType {
	switch ServerType(s) {
	case ServerTypeLinux, ServerTypeWindows:
		return ServerType(s)
	default:
		return ServerTypeOther
	}
}

// Secret is the long-lived credential record for a server. The server name
// uniquely identifies at most one live secret within a store.
//
// Extra carries payload keys the broker does not interpret. They survive
// rotation merges unchanged so that out-of-band tooling can annotate
// secrets without credbroker erasing the annotations.
type Secret struct {
	ServerName       string
	Username         string
	Password         string
	ServerType       ServerType
	CreatedAt        time.Time
	RotationRequired bool
	Extra            map[string]string
}

// Payload keys used by every backend. The remote payload is a flat string
// mapping; numeric and boolean values are stringified.
const (
	KeyUsername         = "username"
	KeyPassword         = "password"
	KeyServerType       = "server_type"
	KeyCreatedAt        = "created_at"
	KeyRotationRequired = "rotation_required"
)

// Payload flattens the secret into the wire mapping stored by backends.
// Extra keys are merged in; the well-known keys always win.
func (s Secret) Payload() map[string]string {
	payload := make(map[string]string, len(s.Extra)+5)
	for k, v := range s.Extra {
		payload[k] = v
	}
	payload[KeyUsername] = s.Username
	payload[KeyPassword] = s.Password
	payload[KeyServerType] = string(s.ServerType)
	payload[KeyCreatedAt] = s.CreatedAt.UTC().Format(time.RFC3339)
	payload[KeyRotationRequired] = fmt.Sprintf("%t", s.RotationRequired)
	return payload
}

// FromPayload rebuilds a Secret from the wire mapping. Unknown keys are
// preserved in Extra. A missing or unparsable created_at yields a zero
// CreatedAt rather than an error; callers that care validate separately.
func FromPayload(serverName string, payload map[string]string) Secret {
	secret := Secret{
		ServerName: serverName,
		Username:   payload[KeyUsername],
		Password:   payload[KeyPassword],
		ServerType: ParseServerType(payload[KeyServerType]),
	}
	if ts, err := time.Parse(time.RFC3339, payload[KeyCreatedAt]); err == nil {
		secret.CreatedAt = ts
	}
	secret.RotationRequired = payload[KeyRotationRequired] == "true"
	for k, v := range payload {
		switch k {
		case KeyUsername, KeyPassword, KeyServerType, KeyCreatedAt, KeyRotationRequired:
		default:
			if secret.Extra == nil {
				secret.Extra = make(map[string]string)
			}
			secret.Extra[k] = v
		}
	}
	return secret
}

// Store is the interface all secret store backends implement.
type Store interface {
	// Name returns the backend's stable identifier, e.g. "aws.secretsmanager".
	Name() string

	// Fetch retrieves the live secret for a server. Returns NotFoundError
	// if no secret exists under that name; a zero-valued Secret is never
	// returned for a missing key.
	Fetch(ctx context.Context, serverName string) (Secret, error)

	// Put creates or updates the secret for a server as a single idempotent
	// operation. With overwrite false an existing secret causes
	// ConflictError and CreatedAt is taken from the new secret; with
	// overwrite true the old value is fully replaced and the existing
	// CreatedAt is preserved unless the caller supplies a fresh one.
	Put(ctx context.Context, serverName string, secret Secret, overwrite bool) error

	// Exists reports whether a secret exists without retrieving its value.
	Exists(ctx context.Context, serverName string) (bool, error)

	// Validate checks connectivity and permissions before any secret
	// operation. Used by `credbroker doctor`.
	Validate(ctx context.Context) error
}

// AuditEvent records one store operation for later security review.
type AuditEvent struct {
	Store      string    `json:"store"`
	Op         string    `json:"op"` // fetch, put, exists
	ServerName string    `json:"server_name"`
	Outcome    string    `json:"outcome"` // ok, not_found, access_denied, unavailable, conflict, error
	Time       time.Time `json:"time"`
}

// AuditSink receives audit events. Implementations must not block the
// store call path for longer than a local write.
type AuditSink interface {
	Record(event AuditEvent)
}
