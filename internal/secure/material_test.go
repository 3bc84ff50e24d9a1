package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialOpen(t *testing.T) {
	t.Parallel()

	material := NewMaterial([]byte("generated-password"))

	locked, err := material.Open()
	require.NoError(t, err)
	defer locked.Destroy()

	assert.Equal(t, "generated-password", string(locked.Bytes()))
}

func TestMaterialWipe(t *testing.T) {
	t.Parallel()

	material := NewMaterial([]byte("short-lived"))
	material.Wipe()
	material.Wipe() // idempotent

	locked, err := material.Open()
	require.NoError(t, err)
	defer locked.Destroy()

	assert.Empty(t, locked.Bytes())
}
