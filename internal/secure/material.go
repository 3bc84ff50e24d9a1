// Package secure holds freshly generated credential material in a
// memguard enclave while it is in flight between generation and the
// secret store write. The plaintext only exists in locked, guarded memory
// during the store call itself.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Material is credential material protected at rest in memory. The
// enclave encrypts the bytes and attempts to mlock them so they cannot be
// swapped to disk.
type Material struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	wiped   bool
}

// NewMaterial seals the given bytes into a protected enclave. The caller
// should zero its own copy after sealing.
func NewMaterial(data []byte) *Material {
	return &Material{enclave: memguard.NewEnclave(data)}
}

// Open decrypts the material into a locked buffer. The caller must call
// Destroy on the returned buffer as soon as the plaintext has been used.
func (m *Material) Open() (*memguard.LockedBuffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.wiped {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return m.enclave.Open()
}

// Wipe marks the material as unusable. Idempotent. The encrypted enclave
// contents are left to the garbage collector; they are ciphertext without
// the enclave key.
func (m *Material) Wipe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.wiped {
		return
	}
	m.enclave = nil
	m.wiped = true
}
