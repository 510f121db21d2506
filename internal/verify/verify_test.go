package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SaintPepsi/pai-tools-sub000/internal/config"
	"github.com/stretchr/testify/require"
)

func TestRunEmptyVerifyNoE2E(t *testing.T) {
	result := Run(Options{Verify: nil})
	require.True(t, result.OK)
	require.Empty(t, result.Steps)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	steps := []config.VerifyStep{
		{Name: "lint", Cmd: "true"},
		{Name: "test", Cmd: "exit 1"},
		{Name: "build", Cmd: "true"},
	}
	result := Run(Options{Verify: steps})
	require.False(t, result.OK)
	require.Equal(t, "test", result.FailedStep)
	require.Len(t, result.Steps, 2)
	require.True(t, result.Steps[0].OK)
	require.False(t, result.Steps[1].OK)
}

func TestRunFilterName(t *testing.T) {
	steps := []config.VerifyStep{
		{Name: "lint", Cmd: "exit 1"},
		{Name: "test", Cmd: "true"},
	}
	result := Run(Options{Verify: steps, FilterName: "test"})
	require.True(t, result.OK)
	require.Len(t, result.Steps, 1)
	require.Equal(t, "test", result.Steps[0].Name)
}

// TestRunE2ESnapshotRetry covers the "verify e2e snapshot retry"
// scenario: e2e.run fails once, e2e.update runs, and e2e.run is
// retried and passes. The snapshot commit is not asserted here.
func TestRunE2ESnapshotRetry(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran-update")

	e2e := &config.E2EConfig{
		Run:          "test -f " + marker,
		Update:       "touch " + marker,
		SnapshotGlob: "snapshots/",
	}

	result := Run(Options{
		Verify:      nil,
		E2E:         e2e,
		Cwd:         dir,
		IssueNumber: 42,
	})

	require.True(t, result.OK)
	require.Len(t, result.Steps, 1)
	require.Equal(t, "e2e (after snapshot update)", result.Steps[0].Name)
	require.True(t, result.Steps[0].OK)
	_, err := os.Stat(marker)
	require.NoError(t, err)
}

func TestRunE2EFailsAfterUpdate(t *testing.T) {
	e2e := &config.E2EConfig{
		Run:    "exit 1",
		Update: "true",
	}
	result := Run(Options{E2E: e2e})
	require.False(t, result.OK)
	require.Equal(t, "e2e", result.FailedStep)
}

func TestRunSkipE2E(t *testing.T) {
	e2e := &config.E2EConfig{Run: "exit 1", Update: "true"}
	result := Run(Options{E2E: e2e, SkipE2E: true})
	require.True(t, result.OK)
}

func TestTailBytesTruncatesFromLeft(t *testing.T) {
	s := "0123456789"
	require.Equal(t, "789", tailBytes(s, 3))
	require.Equal(t, "0123456789", tailBytes(s, 100))
}
