// Package worktree manages the isolated version-control workspaces
// each task executes in: creating a worktree rooted at a dependency
// branch (or the configured base), merging in further dependency
// branches, and tearing the worktree down with defensive cleanup.
package worktree

import (
	"errors"
	"fmt"
	"os"

	"github.com/SaintPepsi/pai-tools-sub000/internal/config"
	"github.com/SaintPepsi/pai-tools-sub000/internal/git"
	"github.com/SaintPepsi/pai-tools-sub000/internal/task"
)

// ErrWorktreeCreate indicates the initial `git worktree add` failed.
var ErrWorktreeCreate = errors.New("worktree: create failed")

// ErrMergeConflict indicates merging a dependency branch into the
// freshly created worktree failed.
var ErrMergeConflict = errors.New("worktree: merge conflict")

// Logger receives human-readable progress notes. Nil is valid and
// discards all messages.
type Logger interface {
	Infof(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...any) {}

// Result is the outcome of Create.
type Result struct {
	OK           bool
	WorktreePath string
	BaseBranch   string
	Err          error
}

// Create builds an isolated worktree for branchName, rooted at the
// first still-existing branch in depBranches (in declared order), or
// cfg.BaseBranch if none exist. Any further existing dependency
// branches are merged into the new worktree in order.
func Create(
	branchName string,
	depBranches []string,
	cfg *config.Config,
	issueNum int,
) Result {
	worktreePath := cfg.WorktreePath(task.Kebab(branchName, 200))

	// Best-effort cleanup of a stale worktree at the same path.
	_ = git.WorktreeRemove(worktreePath, true)
	if _, err := os.Stat(worktreePath); err == nil {
		_ = os.RemoveAll(worktreePath)
	}

	// Defensive: ensure a fresh branch, in case a prior run left one
	// behind.
	_ = git.DeleteLocalBranch(branchName)

	existingDeps := make([]string, 0, len(depBranches))
	for _, dep := range depBranches {
		if git.LocalBranchExists(dep) {
			existingDeps = append(existingDeps, dep)
		}
	}

	baseBranch := cfg.BaseBranch
	if len(existingDeps) > 0 {
		baseBranch = existingDeps[0]
	}

	if err := git.WorktreeAdd(worktreePath, branchName, baseBranch); err != nil {
		return Result{
			OK:           false,
			WorktreePath: worktreePath,
			BaseBranch:   baseBranch,
			Err:          fmt.Errorf("%w: %v", ErrWorktreeCreate, err), //nolint:errorlint
		}
	}

	if len(existingDeps) > 1 {
		for _, dep := range existingDeps[1:] {
			msg := fmt.Sprintf("merge: bring in dependency branch %s", dep)
			if err := mergeInto(worktreePath, dep, msg); err != nil {
				_ = mergeAbort(worktreePath)
				_ = git.WorktreeRemove(worktreePath, true)

				return Result{
					OK:           false,
					WorktreePath: worktreePath,
					BaseBranch:   baseBranch,
					Err:          fmt.Errorf("%w: branch %s: %v", ErrMergeConflict, dep, err), //nolint:errorlint
				}
			}
		}
	}

	return Result{OK: true, WorktreePath: worktreePath, BaseBranch: baseBranch}
}

// Remove tears down a worktree, best-effort, never returning an error
// the caller must handle: force-remove via git, then fall back to
// deleting the directory and pruning stale registrations.
func Remove(worktreePath, branchName string, issueNum int, logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}

	if err := git.WorktreeRemove(worktreePath, true); err != nil {
		if _, statErr := os.Stat(worktreePath); statErr == nil {
			_ = os.RemoveAll(worktreePath)
		}
		_ = git.WorktreePrune()
	}

	logger.Infof("[#%d] worktreeRemoved %s (%s)", issueNum, worktreePath, branchName)
}
