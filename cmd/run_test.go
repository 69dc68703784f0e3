// File: cmd/run_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Test Cases --

func TestRunDryRunPrintsPlan(t *testing.T) {
	cfgPath, _ := quietConfig(t)

	out, err := executeCommand(t, "run", "--config", cfgPath, "--dry-run",
		"Go to reddit.com. Go to linkedin.com.")
	require.NoError(t, err)

	assert.Contains(t, out, "Parsed 2 goal(s)")
	assert.Contains(t, out, "reddit.com")
	assert.Contains(t, out, "linkedin.com")
	assert.Contains(t, out, "[0]")
	assert.Contains(t, out, "[1]")
}

func TestRunDryRunShowsConditionalBranches(t *testing.T) {
	cfgPath, _ := quietConfig(t)

	out, err := executeCommand(t, "run", "--config", cfgPath, "--dry-run",
		"if logged in then check inbox else login first")
	require.NoError(t, err)

	assert.Contains(t, out, "CONDITIONAL")
	assert.Contains(t, out, "if: logged in")
	assert.Contains(t, out, "else: login first")
}

func TestRunRequiresAnInstruction(t *testing.T) {
	cfgPath, _ := quietConfig(t)

	_, err := executeCommand(t, "run", "--config", cfgPath, "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no instruction given")
}

func TestRunReadsInstructionFromFile(t *testing.T) {
	cfgPath, _ := quietConfig(t)

	promptFile := filepath.Join(t.TempDir(), "task.txt")
	require.NoError(t, os.WriteFile(promptFile, []byte("go to gmail.com\n"), 0o644))

	out, err := executeCommand(t, "run", "--config", cfgPath, "--dry-run", "--file", promptFile)
	require.NoError(t, err)
	assert.Contains(t, out, "gmail.com")
}

func TestRunRejectsEmptyInstructionFile(t *testing.T) {
	cfgPath, _ := quietConfig(t)

	promptFile := filepath.Join(t.TempDir(), "task.txt")
	require.NoError(t, os.WriteFile(promptFile, []byte("  \n"), 0o644))

	_, err := executeCommand(t, "run", "--config", cfgPath, "--dry-run", "--file", promptFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}
