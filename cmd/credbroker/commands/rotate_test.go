package commands

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostops/credbroker/internal/render"
	"github.com/hostops/credbroker/internal/session"
)

func TestRotateCommand_RevokesSessions(t *testing.T) {
	cfg, _ := newTestConfig(t, "")

	out, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01"})
	require.NoError(t, err)
	token := render.ParseEnv(out)["SESSION_TOKEN"]
	require.NotEmpty(t, token)

	_, err = captureStdout(t, NewRotateCommand(cfg), []string{"--server", "db-01"})
	require.NoError(t, err)

	// The pre-rotation session is terminal now.
	store := openSessionStore(cfg)
	_, err = store.FindLatest("db-01")
	var notFound session.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRotateCommand_UnknownServer(t *testing.T) {
	cfg, _ := newTestConfig(t, "")

	_, err := captureStdout(t, NewRotateCommand(cfg), []string{"--server", "ghost-server"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No secret exists")
}

func TestRotateCommand_MaterialFromStdin(t *testing.T) {
	cfg, logs := newTestConfig(t, "")

	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString("replacement-material-1\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()

	_, err = captureStdout(t, NewRotateCommand(cfg), []string{"--server", "db-01", "--material-stdin"})
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "replacement-material-1")
}

func TestRotateCommand_EmptyStdinRejected(t *testing.T) {
	cfg, _ := newTestConfig(t, "")

	r, w, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, w.Close())

	oldStdin := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = oldStdin }()

	_, err = captureStdout(t, NewRotateCommand(cfg), []string{"--server", "db-01", "--material-stdin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No credential material")
}

func TestRotateCommand_RepairWithHealthySessions(t *testing.T) {
	cfg, logs := newTestConfig(t, "")

	_, err := captureStdout(t, NewRotateCommand(cfg), []string{"--server", "db-01", "--repair"})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Revoked 0 session(s)")
}
