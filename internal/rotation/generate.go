package rotation

import (
	"crypto/rand"
	"fmt"
)

// DefaultPasswordLength is used when the config does not set one.
const DefaultPasswordLength = 32

const passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GeneratePassword creates cryptographically random credential material
// from the password charset.
func GeneratePassword(length int) ([]byte, error) {
	if length <= 0 {
		length = DefaultPasswordLength
	}

	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	out := make([]byte, length)
	for i := range randomBytes {
		out[i] = passwordCharset[randomBytes[i]%byte(len(passwordCharset))]
	}
	return out, nil
}
