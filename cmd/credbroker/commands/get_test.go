package commands

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostops/credbroker/internal/render"
)

func TestGetCommand_EnvOutput(t *testing.T) {
	cfg, _ := newTestConfig(t, "")

	out, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01"})
	require.NoError(t, err)

	vars := render.ParseEnv(out)
	assert.Equal(t, "svc-backup", vars["USERNAME"])
	assert.Equal(t, "hunter2-long-value", vars["PASSWORD"])
	assert.Equal(t, "linux", vars["SERVER_TYPE"])
	assert.NotEmpty(t, vars["SESSION_TOKEN"])
	assert.NotEmpty(t, vars["TOKEN_EXPIRY"])
	assert.NotEmpty(t, vars["GENERATED_AT"])
}

func TestGetCommand_JSONOutput(t *testing.T) {
	cfg, _ := newTestConfig(t, "")

	out, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01", "--format", "json"})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "svc-backup", decoded["username"])
	assert.Equal(t, "linux", decoded["server_type"])
	assert.NotEmpty(t, decoded["session_token"])
}

func TestGetCommand_ExportOutput(t *testing.T) {
	cfg, _ := newTestConfig(t, "")

	out, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01", "--format", "export"})
	require.NoError(t, err)

	assert.Contains(t, out, "export USERNAME='svc-backup'\n")
	assert.Contains(t, out, "export PASSWORD='hunter2-long-value'\n")
}

func TestGetCommand_ReusesActiveSession(t *testing.T) {
	cfg, _ := newTestConfig(t, "")

	first, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01"})
	require.NoError(t, err)

	second, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01"})
	require.NoError(t, err)

	firstToken := render.ParseEnv(first)["SESSION_TOKEN"]
	assert.Equal(t, firstToken, render.ParseEnv(second)["SESSION_TOKEN"])

	fresh, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01", "--fresh"})
	require.NoError(t, err)
	assert.NotEqual(t, firstToken, render.ParseEnv(fresh)["SESSION_TOKEN"])
}

func TestGetCommand_DebugLogsRedactSessionID(t *testing.T) {
	cfg, logs := newTestConfig(t, "")

	out, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01"})
	require.NoError(t, err)
	token := render.ParseEnv(out)["SESSION_TOKEN"]
	require.NotEmpty(t, token)

	// Reuse path logs the stored session too.
	_, err = captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01"})
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "[REDACTED]")
	assert.NotContains(t, logs.String(), token)
	assert.NotContains(t, logs.String(), "hunter2-long-value")
}

func TestGetCommand_UnknownServer(t *testing.T) {
	cfg, _ := newTestConfig(t, "")

	_, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "ghost-server"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No secret exists")
}

func TestGetCommand_UnknownFormat(t *testing.T) {
	cfg, _ := newTestConfig(t, "")

	_, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01", "--format", "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown output format")
}

func TestGetCommand_DurationAboveMax(t *testing.T) {
	cfg, _ := newTestConfig(t, "default_duration_seconds: 30\nmax_duration_seconds: 60\n")

	_, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01", "--duration", "120"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration")
}

func TestGetCommand_CustomDuration(t *testing.T) {
	cfg, _ := newTestConfig(t, "")

	out, err := captureStdout(t, NewGetCommand(cfg), []string{"--server", "db-01", "--duration", "120"})
	require.NoError(t, err)

	vars := render.ParseEnv(out)
	require.NotEmpty(t, vars["TOKEN_EXPIRY"])
	generated := vars["GENERATED_AT"]
	assert.True(t, strings.HasSuffix(generated, "Z"))
}
