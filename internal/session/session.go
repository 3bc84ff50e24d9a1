// Package session implements the broker's session lifecycle: the session
// record itself, durable local persistence with per-server serialization,
// and freshness validation.
package session

import (
	"time"

	"github.com/hostops/credbroker/pkg/secretstore"
)

// Status tracks where a session is in its lifecycle. Expired and revoked
// are terminal; a session is never reactivated.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Session is a short-lived credential handle derived from a Secret. The
// embedded credentials are a snapshot taken at issuance; rotating the
// source secret afterwards revokes the session instead of mutating it.
type Session struct {
	ID         string                 `json:"session_id"`
	ServerName string                 `json:"server_name"`
	Username   string                 `json:"username"`
	Password   string                 `json:"password"`
	ServerType secretstore.ServerType `json:"server_type"`
	IssuedAt   time.Time              `json:"issued_at"`
	ExpiresAt  time.Time              `json:"expires_at"`
	Status     Status                 `json:"status"`
}

// ExportMap is the session artifact consumers receive, rendered by the
// render package. token_expiry is epoch seconds as an integer.
func (s Session) ExportMap() map[string]interface{} {
	return map[string]interface{}{
		"username":      s.Username,
		"password":      s.Password,
		"server_type":   string(s.ServerType),
		"session_token": s.ID,
		"token_expiry":  s.ExpiresAt.Unix(),
		"generated_at":  s.IssuedAt.UTC().Format(time.RFC3339),
	}
}
