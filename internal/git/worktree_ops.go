package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// WorktreeAdd creates a worktree at path on a new branch rooted at
// base (a local ref, e.g. another local branch or a base branch name).
func WorktreeAdd(path, branch, base string) error {
	cmd := exec.Command(gitCmd, "worktree", "add", "-b", branch, path, base)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf(
			"worktree add: %w\nOutput: %s",
			err,
			strings.TrimSpace(string(output)),
		)
	}

	return nil
}

// WorktreeRemove removes the worktree at path. With force it discards
// uncommitted changes in that worktree.
func WorktreeRemove(path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	cmd := exec.Command(gitCmd, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf(
			"worktree remove: %w\nOutput: %s",
			err,
			strings.TrimSpace(string(output)),
		)
	}

	return nil
}

// WorktreePrune removes stale worktree administrative files left
// behind after a directory was deleted out from under git.
func WorktreePrune() error {
	cmd := exec.Command(gitCmd, "worktree", "prune")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf(
			"worktree prune: %w\nOutput: %s",
			err,
			strings.TrimSpace(string(output)),
		)
	}

	return nil
}

// Merge merges branch into the current checkout with an explicit
// commit message, never fast-forward-only (a merge commit is always
// produced so history shows the stacked dependency).
func Merge(branch, message string) error {
	cmd := exec.Command(gitCmd, "merge", "--no-ff", "-m", message, branch)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf(
			"merge %s: %w\nOutput: %s",
			branch,
			err,
			strings.TrimSpace(string(output)),
		)
	}

	return nil
}

// MergeAbort aborts an in-progress merge. Best-effort: errors are
// returned but callers typically ignore them during cleanup.
func MergeAbort() error {
	cmd := exec.Command(gitCmd, "merge", "--abort")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf(
			"merge --abort: %w\nOutput: %s",
			err,
			strings.TrimSpace(string(output)),
		)
	}

	return nil
}

// DeleteLocalBranch force-deletes a local branch, ignoring the case
// where it does not exist.
func DeleteLocalBranch(name string) error {
	if warnings := deleteBranch(name); len(warnings) > 0 {
		return errors.New(strings.Join(warnings, "; "))
	}

	return nil
}
