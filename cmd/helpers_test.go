// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pilot-cli/internal/observability"
)

// quietConfig writes a config file that keeps the logger silent and confines
// checkpoint files to a per-test directory. It returns the config path and
// the checkpoint directory so tests can seed checkpoint files.
func quietConfig(t *testing.T) (configPath, checkpointDir string) {
	t.Helper()
	checkpointDir = filepath.Join(t.TempDir(), "checkpoints")
	content := fmt.Sprintf(`
logger:
  level: fatal
  format: console
  log_file: ""
checkpoint:
  dir: %q
`, checkpointDir)
	return createTempConfig(t, content), checkpointDir
}

// createTempConfig writes arbitrary YAML config content for a test.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// executeCommand runs a fresh root command with the given arguments and
// returns the combined output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	observability.ResetForTest()

	rootCmd := NewRootCommand()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
