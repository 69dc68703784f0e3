// File: cmd/resume_test.go
package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Test Cases --

func TestResumeRequiresIDOrLatest(t *testing.T) {
	cfgPath, _ := quietConfig(t)

	_, err := executeCommand(t, "resume", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--latest")
}

func TestResumeUnknownSequenceID(t *testing.T) {
	cfgPath, _ := quietConfig(t)

	_, err := executeCommand(t, "resume", "--config", cfgPath, "0123456789abcdef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no checkpoint for sequence")
}

func TestResumeLatestWithNothingSaved(t *testing.T) {
	cfgPath, _ := quietConfig(t)

	_, err := executeCommand(t, "resume", "--config", cfgPath, "--latest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no checkpoints to resume")
}

func TestHistoryRequiresDatabase(t *testing.T) {
	cfgPath, _ := quietConfig(t)

	_, err := executeCommand(t, "history", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}
