// Package rotation replaces a server's long-lived credential material and
// revokes the sessions derived from the old material.
package rotation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hostops/credbroker/internal/audit"
	"github.com/hostops/credbroker/internal/logging"
	"github.com/hostops/credbroker/internal/secure"
	"github.com/hostops/credbroker/internal/session"
	"github.com/hostops/credbroker/pkg/secretstore"
)

// DefaultRecencyWindow is how long a retired password's fingerprint keeps
// blocking re-use.
const DefaultRecencyWindow = 90 * 24 * time.Hour

// fingerprintKey is the secret payload key carrying retired password
// fingerprints. It rides along in Secret.Extra so it survives rotation
// merges like any other unknown key.
const fingerprintKey = "previous_fingerprints"

// PartialFailureError reports a rotation where the store write succeeded
// but session invalidation did not. The secret is rotated; stale sessions
// are still marked usable. The caller retries the invalidation step alone
// via RepairInvalidate, which is idempotent.
type PartialFailureError struct {
	ServerName string
	RotatedAt  time.Time
	Err        error
}

func (e PartialFailureError) Error() string {
	return fmt.Sprintf("rotation of %s partially failed: secret rotated at %s but session invalidation failed: %v",
		e.ServerName, e.RotatedAt.UTC().Format(time.RFC3339), e.Err)
}

func (e PartialFailureError) Unwrap() error {
	return e.Err
}

// RecentValueError rejects a rotation to credential material used within
// the recency window. Rotation never decreases security monotonicity.
type RecentValueError struct {
	ServerName string
}

func (e RecentValueError) Error() string {
	return fmt.Sprintf("rotation of %s rejected: new credential material was used recently", e.ServerName)
}

// Coordinator drives secret rotation against a store and session store.
type Coordinator struct {
	store          secretstore.Store
	sessions       *session.FileStore
	logger         *logging.Logger
	passwordLength int
	recencyWindow  time.Duration

	// Force skips the recent-value guard. Set by operators who know the
	// incoming material is safe to reuse.
	Force bool

	now func() time.Time
}

// NewCoordinator creates a rotation coordinator. Non-positive
// passwordLength and recencyWindow fall back to the defaults.
func NewCoordinator(store secretstore.Store, sessions *session.FileStore, logger *logging.Logger, passwordLength int, recencyWindow time.Duration) *Coordinator {
	if passwordLength <= 0 {
		passwordLength = DefaultPasswordLength
	}
	if recencyWindow <= 0 {
		recencyWindow = DefaultRecencyWindow
	}
	return &Coordinator{
		store:          store,
		sessions:       sessions,
		logger:         logger,
		passwordLength: passwordLength,
		recencyWindow:  recencyWindow,
		now:            time.Now,
	}
}

// Rotate replaces the secret for a server and revokes its outstanding
// sessions. With empty material a new random password is generated. The
// current secret must exist; provisioning a first secret is a Put, not a
// rotation.
//
// Ordering: the store write completes before invalidation begins, so a
// concurrent issuance either snapshots the old secret and gets revoked,
// or snapshots the new one and stays active.
func (c *Coordinator) Rotate(ctx context.Context, serverName string, material []byte) error {
	current, err := c.store.Fetch(ctx, serverName)
	if err != nil {
		audit.RecordRotation("failed")
		return err
	}

	if len(material) == 0 {
		material, err = GeneratePassword(c.passwordLength)
		if err != nil {
			audit.RecordRotation("failed")
			return err
		}
	}

	sealed := secure.NewMaterial(material)
	defer sealed.Wipe()
	for i := range material {
		material[i] = 0
	}

	locked, err := sealed.Open()
	if err != nil {
		audit.RecordRotation("failed")
		return fmt.Errorf("failed to open credential material: %w", err)
	}
	newPassword := string(locked.Bytes())
	locked.Destroy()

	fingerprints := pruneFingerprints(current.Extra[fingerprintKey], c.now().Add(-c.recencyWindow))
	newPrint := fingerprint(newPassword)
	if !c.Force && (newPrint == fingerprint(current.Password) || containsFingerprint(fingerprints, newPrint)) {
		audit.RecordRotation("rejected")
		return RecentValueError{ServerName: serverName}
	}

	updated := current
	updated.Password = newPassword
	updated.RotationRequired = false
	updated.CreatedAt = c.now().UTC()
	updated.Extra = cloneExtra(current.Extra)
	updated.Extra[fingerprintKey] = appendFingerprint(fingerprints, fingerprint(current.Password), c.now())

	if err := c.store.Put(ctx, serverName, updated, true); err != nil {
		audit.RecordRotation("failed")
		return err
	}
	rotatedAt := c.now()
	c.logger.Info("rotated secret for %s", serverName)

	count, err := c.sessions.Invalidate(serverName)
	if err != nil {
		audit.RecordRotation("partial")
		return PartialFailureError{ServerName: serverName, RotatedAt: rotatedAt, Err: err}
	}
	if count > 0 {
		c.logger.Info("revoked %d outstanding session(s) for %s", count, serverName)
	}
	audit.RecordRotation("success")
	audit.RecordSessionsRevoked(count)
	return nil
}

// RepairInvalidate retries the invalidation half of a partially failed
// rotation. Idempotent: sessions already revoked stay revoked.
func (c *Coordinator) RepairInvalidate(serverName string) (int, error) {
	count, err := c.sessions.Invalidate(serverName)
	if err != nil {
		return 0, err
	}
	audit.RecordSessionsRevoked(count)
	return count, nil
}

func fingerprint(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])[:12]
}

// Fingerprint entries are "hash@RFC3339", comma separated.

func pruneFingerprints(raw string, cutoff time.Time) []string {
	if raw == "" {
		return nil
	}
	var kept []string
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(entry, "@", 2)
		if len(parts) != 2 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, parts[1])
		if err != nil || ts.Before(cutoff) {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

func containsFingerprint(entries []string, print string) bool {
	for _, entry := range entries {
		if strings.HasPrefix(entry, print+"@") {
			return true
		}
	}
	return false
}

func appendFingerprint(entries []string, print string, at time.Time) string {
	entries = append(entries, fmt.Sprintf("%s@%s", print, at.UTC().Format(time.RFC3339)))
	return strings.Join(entries, ",")
}

func cloneExtra(extra map[string]string) map[string]string {
	out := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		out[k] = v
	}
	return out
}
