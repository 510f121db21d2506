//go:build integration

// Integration tests exercise real git plumbing. Run with:
// go test ./internal/git/... -tags=integration
package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command(gitCmd, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)

	return string(out)
}

func withCwd(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

// TestRebaseDetectsConflict covers the "rebase with conflict"
// scenario: rebasing a branch that diverges from main on the same
// file main has since changed must fail with the conflicted path
// named, not abort silently or report a non-conflict failure.
func TestRebaseDetectsConflict(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("initial\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial")

	runGit(t, dir, "checkout", "-b", "feat/conflict")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("feature\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "feature change")

	runGit(t, dir, "checkout", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("main\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "main change")

	withCwd(t, dir)
	require.NoError(t, CheckoutBranch("feat/conflict"))

	result := Rebase("main")
	require.False(t, result.OK)
	require.Equal(t, []string{"README.md"}, result.Conflicts)

	require.NoError(t, RebaseAbort())
}

// TestCheckoutOursKeepsFeatureBranchContentDuringRebase covers the
// "keep ours" resolution path: during a rebase, the branch being
// replayed is git's "theirs" side, so CheckoutOurs must compensate for
// that inversion and leave the feature branch's own content in place.
func TestCheckoutOursKeepsFeatureBranchContentDuringRebase(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	readme := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("initial\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial")

	runGit(t, dir, "checkout", "-b", "feat/conflict")
	require.NoError(t, os.WriteFile(readme, []byte("feature\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "feature change")

	runGit(t, dir, "checkout", "main")
	require.NoError(t, os.WriteFile(readme, []byte("main\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "main change")

	withCwd(t, dir)
	require.NoError(t, CheckoutBranch("feat/conflict"))

	result := Rebase("main")
	require.False(t, result.OK)
	require.Equal(t, []string{"README.md"}, result.Conflicts)

	require.NoError(t, CheckoutOurs("README.md"))
	content, err := os.ReadFile(readme)
	require.NoError(t, err)
	require.Equal(t, "feature\n", string(content))

	require.NoError(t, RebaseAbort())
}

// TestCheckoutTheirsKeepsBaseBranchContentDuringRebase is the
// complementary case: CheckoutTheirs must leave the upstream branch's
// content, the side git itself calls "ours" mid-rebase.
func TestCheckoutTheirsKeepsBaseBranchContentDuringRebase(t *testing.T) {
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	readme := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("initial\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial")

	runGit(t, dir, "checkout", "-b", "feat/conflict")
	require.NoError(t, os.WriteFile(readme, []byte("feature\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "feature change")

	runGit(t, dir, "checkout", "main")
	require.NoError(t, os.WriteFile(readme, []byte("main\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "main change")

	withCwd(t, dir)
	require.NoError(t, CheckoutBranch("feat/conflict"))

	result := Rebase("main")
	require.False(t, result.OK)

	require.NoError(t, CheckoutTheirs("README.md"))
	content, err := os.ReadFile(readme)
	require.NoError(t, err)
	require.Equal(t, "main\n", string(content))

	require.NoError(t, RebaseAbort())
}
