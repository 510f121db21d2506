//go:build integration

// Integration tests exercise real git plumbing. Run with:
// go test ./internal/worktree/... -tags=integration
package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SaintPepsi/pai-tools-sub000/internal/config"
	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)

	return string(out)
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "master")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("initial\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial commit")

	return dir
}

func withCwd(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

// TestCreateWorktreeOnDependencyBase covers the "worktree dependency
// base" scenario: creating a worktree for a branch whose only
// dependency is an existing local branch must root the new branch on
// that dependency, and the resulting worktree's history must contain
// the dependency's unique commit.
func TestCreateWorktreeOnDependencyBase(t *testing.T) {
	dir := initRepo(t)
	withCwd(t, dir)

	runGit(t, dir, "checkout", "-b", "feat/dep")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dep.txt"), []byte("dep work\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "dep work")
	runGit(t, dir, "checkout", "master")

	cfg := config.Defaults()
	cfg.RepoRoot = dir
	cfg.WorktreeDir = filepath.Join(dir, "worktrees")

	result := Create("feat/child", []string{"feat/dep"}, &cfg, 1)
	require.True(t, result.OK, "worktree create failed: %v", result.Err)
	require.Equal(t, "feat/dep", result.BaseBranch)

	log := runGit(t, result.WorktreePath, "log", "--oneline", "-n", "5")
	require.Contains(t, log, "dep work")

	Remove(result.WorktreePath, "feat/child", 1, nil)
	_, err := os.Stat(result.WorktreePath)
	require.True(t, os.IsNotExist(err))
}

// TestCreateWorktreeFallsBackToConfiguredBase covers the case where
// no declared dependency branch exists locally.
func TestCreateWorktreeFallsBackToConfiguredBase(t *testing.T) {
	dir := initRepo(t)
	withCwd(t, dir)

	cfg := config.Defaults()
	cfg.RepoRoot = dir
	cfg.BaseBranch = "master"
	cfg.WorktreeDir = filepath.Join(dir, "worktrees")

	result := Create("feat/standalone", nil, &cfg, 2)
	require.True(t, result.OK, "worktree create failed: %v", result.Err)
	require.Equal(t, "master", result.BaseBranch)

	Remove(result.WorktreePath, "feat/standalone", 2, nil)
}
