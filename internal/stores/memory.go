package stores

import (
	"context"
	"sync"

	"github.com/hostops/credbroker/pkg/secretstore"
)

// MemoryStore is an in-process secret store used by tests and by the unit
// tests of components that need a Store collaborator. It honours the same
// error contract as the remote backends, including context deadlines.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]secretstore.Secret

	// forced, when non-nil, is returned by every operation. Lets tests
	// simulate an unreachable or misbehaving backend.
	forced error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]secretstore.Secret)}
}

// Name implements secretstore.Store.
func (m *MemoryStore) Name() string { return "memory" }

// ForceError makes every subsequent operation fail with err. Pass nil to
// restore normal behaviour.
func (m *MemoryStore) ForceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = err
}

func (m *MemoryStore) checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return secretstore.UnavailableError{Store: m.Name(), Err: err}
	}
	return nil
}

// Fetch implements secretstore.Store.
func (m *MemoryStore) Fetch(ctx context.Context, serverName string) (secretstore.Secret, error) {
	if err := m.checkCtx(ctx); err != nil {
		return secretstore.Secret{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.forced != nil {
		return secretstore.Secret{}, m.forced
	}
	secret, ok := m.secrets[serverName]
	if !ok {
		return secretstore.Secret{}, secretstore.NotFoundError{Store: m.Name(), ServerName: serverName}
	}
	return secret, nil
}

// Put implements secretstore.Store.
func (m *MemoryStore) Put(ctx context.Context, serverName string, secret secretstore.Secret, overwrite bool) error {
	if err := m.checkCtx(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return m.forced
	}
	existing, exists := m.secrets[serverName]
	if exists && !overwrite {
		return secretstore.ConflictError{
			Store:      m.Name(),
			ServerName: serverName,
			Message:    "secret already exists and overwrite was not requested",
		}
	}
	if exists && overwrite && secret.CreatedAt.IsZero() {
		secret.CreatedAt = existing.CreatedAt
	}
	secret.ServerName = serverName
	m.secrets[serverName] = secret
	return nil
}

// Exists implements secretstore.Store.
func (m *MemoryStore) Exists(ctx context.Context, serverName string) (bool, error) {
	if err := m.checkCtx(ctx); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.forced != nil {
		return false, m.forced
	}
	_, ok := m.secrets[serverName]
	return ok, nil
}

// Validate implements secretstore.Store.
func (m *MemoryStore) Validate(ctx context.Context) error {
	if err := m.checkCtx(ctx); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forced
}
