package worktree

import (
	"fmt"
	"os/exec"
	"strings"
)

// mergeInto merges branch into the worktree at dir with an explicit
// commit message, never fast-forward-only.
func mergeInto(dir, branch, message string) error {
	cmd := exec.Command("git", "merge", "--no-ff", "-m", message, branch)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}

	return nil
}

// mergeAbort aborts an in-progress merge inside dir.
func mergeAbort(dir string) error {
	cmd := exec.Command("git", "merge", "--abort")
	cmd.Dir = dir

	return cmd.Run()
}
