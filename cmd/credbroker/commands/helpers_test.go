package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/hostops/credbroker/internal/config"
	"github.com/hostops/credbroker/internal/logging"
)

// newTestConfig writes a credbroker.yaml backed by the seeded memory
// store and a throwaway session directory, and returns a loaded-on-demand
// Config whose logger writes into the returned buffer.
func newTestConfig(t *testing.T, extraYAML string) (*config.Config, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	content := fmt.Sprintf(`version: 0
store:
  backend: memory
  seed:
    db-01:
      username: svc-backup
      password: hunter2-long-value
      server_type: linux
session_dir: %s
%s`, filepath.Join(dir, "sessions"), extraYAML)

	path := filepath.Join(dir, "credbroker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	var logs bytes.Buffer
	return &config.Config{
		Path:   path,
		Logger: logging.NewWithWriter(&logs, true, true),
	}, &logs
}

// captureStdout runs the command and returns everything it printed.
func captureStdout(t *testing.T, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	cmd.SetArgs(args)
	execErr := cmd.Execute()

	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String(), execErr
}
