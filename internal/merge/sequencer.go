package merge

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SaintPepsi/pai-tools-sub000/internal/agent"
	"github.com/SaintPepsi/pai-tools-sub000/internal/changerequest"
	"github.com/SaintPepsi/pai-tools-sub000/internal/config"
	"github.com/SaintPepsi/pai-tools-sub000/internal/git"
	"github.com/SaintPepsi/pai-tools-sub000/internal/state"
	"github.com/SaintPepsi/pai-tools-sub000/internal/verify"
)

// Logger receives per-entry progress notes.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// AutoResolver drives conflict resolution through the coding agent,
// validating its output per §4.8.
type AutoResolver struct {
	Agent agent.Runner
	Model string
	Cwd   string
}

// Resolve asks the agent to merge both sides' intent for file, reading
// the conflicted file's current (marker-laden) content as the diff fed
// to the prompt.
func (r AutoResolver) Resolve(file string) (string, error) {
	diff, err := readFile(r.Cwd, file)
	if err != nil {
		return "", err
	}

	result := r.Agent.Run(agent.Request{
		Prompt:         agent.ConflictResolvePrompt(file, diff),
		Model:          r.Model,
		Cwd:            r.Cwd,
		PermissionMode: agent.PermissionModeAcceptEdits,
	})
	if !result.OK {
		return "", fmt.Errorf("agent conflict resolution failed: %s", result.Output)
	}

	return agent.ValidateResolution(result.Output)
}

// Options configures a merge sequencer run.
type Options struct {
	DryRun      bool
	Single      bool
	NoVerify    bool
	Strategy    string // "squash" | "merge" | "rebase"
	From        *int
	AutoResolve bool
}

// Deps bundles the sequencer's collaborators.
type Deps struct {
	Store   *state.MergeStore
	Config  *config.Config
	Changes changerequest.Client
	Agent   agent.Runner
	Logger  Logger
	// Conflicts resolves one conflicted file when AutoResolve is
	// false: it is responsible for writing and staging the file
	// itself (e.g. via git.CheckoutOurs/CheckoutTheirs or an
	// agent-assisted free-text resolution), returning an error to
	// mark the file unresolved. Required when AutoResolve is false.
	Conflicts func(file, cwd string) error
}

// Run executes the full discover-order-plan-merge sequence and returns
// the number merged and failed.
func Run(st *state.OrchestratorState, opts Options, deps Deps) (merged, failed int, err error) {
	entries, err := discover(st, deps.Changes)
	if err != nil {
		return 0, 0, err
	}

	ordered, err := DetermineMergeOrder(entries)
	if err != nil {
		return 0, 0, err
	}

	startIdx := 0
	if opts.From != nil {
		startIdx = -1
		for i, e := range ordered {
			if e.TaskID == *opts.From {
				startIdx = i

				break
			}
		}
		if startIdx < 0 {
			return 0, 0, fmt.Errorf("--from %d is not among the discovered merge entries", *opts.From)
		}
	}

	printPlan(ordered, startIdx, deps.Logger)

	if opts.DryRun {
		return 0, 0, nil
	}

	if len(ordered) > startIdx {
		_ = git.CheckoutBranch(ordered[startIdx].BaseBranch)
		_ = git.PullFastForward()
	}

	for i := startIdx; i < len(ordered); i++ {
		entry := ordered[i]
		ok := mergeEntry(entry, ordered[i+1:], opts, deps)

		if ok {
			merged++
		} else {
			failed++
		}

		if opts.Single {
			break
		}
	}

	deps.Logger.Infof("merged %d", merged)
	if failed > 0 {
		deps.Logger.Infof("failed %d", failed)
	}

	return merged, failed, nil
}

// discover queries the platform for every completed task's change
// request state concurrently (bounded to a handful in flight at
// once), since each query is an independent subprocess call.
func discover(st *state.OrchestratorState, changes changerequest.Client) ([]Entry, error) {
	candidates := make([]*state.TaskRecord, 0, len(st.Tasks))
	for _, rec := range st.Tasks {
		if rec.Status != state.StatusCompleted || rec.ChangeRequestID == 0 || rec.Branch == "" {
			continue
		}
		candidates = append(candidates, rec)
	}

	states := make([]string, len(candidates))

	g := new(errgroup.Group)
	g.SetLimit(4)

	for i, rec := range candidates {
		i, rec := i, rec
		g.Go(func() error {
			crState, err := changes.State(rec.ChangeRequestID)
			if err != nil {
				return nil //nolint:nilerr // a query failure just excludes the entry, per discovery's best-effort contract
			}
			states[i] = crState

			return nil
		})
	}
	_ = g.Wait()

	entries := make([]Entry, 0, len(candidates))
	for i, rec := range candidates {
		if states[i] != "OPEN" {
			continue
		}

		entries = append(entries, Entry{
			TaskID:          rec.ID,
			ChangeRequestID: rec.ChangeRequestID,
			Branch:          rec.Branch,
			BaseBranch:      rec.BaseBranch,
		})
	}

	return entries, nil
}

func printPlan(ordered []Entry, startIdx int, logger Logger) {
	for i, e := range ordered {
		marker := "  "
		if i == startIdx {
			marker = "->"
		}
		logger.Infof("%s #%d %s -> %s", marker, e.TaskID, e.Branch, e.BaseBranch)
	}
}

// mergeEntry runs one entry through rebase, conflict resolution,
// force-push, dependent retargeting, platform merge, post-merge
// verification, and tracker close. Every outcome is non-fatal to the
// overall loop: failures are recorded and the loop continues.
func mergeEntry(entry Entry, later []Entry, opts Options, deps Deps) bool {
	logger := deps.Logger
	recordPending(deps.Store, entry)

	if err := git.CheckoutBranch(entry.Branch); err != nil {
		recordFailed(deps.Store, entry, err.Error())

		return false
	}

	rebaseResult := git.Rebase(entry.BaseBranch)
	if !rebaseResult.OK {
		if len(rebaseResult.Conflicts) == 0 {
			_ = git.RebaseAbort()
			recordFailed(deps.Store, entry, rebaseResult.Output)

			return false
		}

		if !resolveConflicts(entry, rebaseResult.Conflicts, opts, deps) {
			recordStatus(deps.Store, entry, state.MergeStatusConflict, "unresolved rebase conflicts")

			return false
		}

		if err := git.RebaseContinue(); err != nil {
			_ = git.RebaseAbort()
			recordStatus(deps.Store, entry, state.MergeStatusConflict, err.Error())

			return false
		}
	}

	if err := git.ForcePushWithLease(entry.Branch); err != nil {
		logger.Warnf("[#%d] force-push failed: %v", entry.TaskID, err)
	}

	for i := range later {
		if later[i].BaseBranch == entry.Branch {
			if err := deps.Changes.Retarget(later[i].ChangeRequestID, entry.BaseBranch); err != nil {
				logger.Warnf("[#%d] retarget failed: %v", later[i].TaskID, err)
			}
			later[i].BaseBranch = entry.BaseBranch
		}
	}

	if err := mergeWithRetry(deps.Changes, entry.ChangeRequestID, opts.Strategy); err != nil {
		recordFailed(deps.Store, entry, err.Error())

		return false
	}

	_ = git.CheckoutBranch(entry.BaseBranch)
	_ = git.PullFastForward()

	if !opts.NoVerify {
		result := verify.Run(verify.Options{
			Verify:      deps.Config.Verify,
			E2E:         deps.Config.E2E,
			Cwd:         deps.Config.RepoRoot,
			IssueNumber: entry.TaskID,
		})
		if !result.OK {
			logger.Warnf("[#%d] post-merge verification failed at %s: %s", entry.TaskID, result.FailedStep, result.Error)
		}
	}

	if err := deps.Changes.CloseIssue(entry.TaskID); err != nil {
		logger.Warnf("[#%d] failed to close tracker item: %v", entry.TaskID, err)
	}

	mergedAt := time.Now().UTC()
	_ = deps.Store.Mutate(func(ms *state.MergeState) error {
		rec := mergeRecordFor(ms, entry)
		rec.Status = state.MergeStatusMerged
		rec.Error = ""
		rec.MergedAt = &mergedAt

		return nil
	})

	return true
}

func resolveConflicts(entry Entry, files []string, opts Options, deps Deps) bool {
	for _, file := range files {
		if opts.AutoResolve {
			resolver := AutoResolver{Agent: deps.Agent, Model: deps.Config.Models.Implement, Cwd: deps.Config.RepoRoot}

			content, err := resolver.Resolve(file)
			if err != nil {
				deps.Logger.Warnf("[#%d] conflict resolution failed for %s: %v", entry.TaskID, file, err)

				return false
			}
			if err := writeFile(deps.Config.RepoRoot, file, content); err != nil {
				return false
			}
			if err := git.StageAll(file); err != nil {
				return false
			}

			continue
		}

		if deps.Conflicts == nil {
			return false
		}

		if err := deps.Conflicts(file, deps.Config.RepoRoot); err != nil {
			deps.Logger.Warnf("[#%d] conflict resolution failed for %s: %v", entry.TaskID, file, err)

			return false
		}
	}

	return true
}

func mergeWithRetry(changes changerequest.Client, crID int, strategy string) error {
	err := changes.Merge(crID, strategy)
	if err == nil {
		return nil
	}

	time.Sleep(3 * time.Second)

	return changes.Merge(crID, strategy)
}

func recordPending(store *state.MergeStore, entry Entry) {
	_ = store.Mutate(func(ms *state.MergeState) error {
		mergeRecordFor(ms, entry)

		return nil
	})
}

func recordFailed(store *state.MergeStore, entry Entry, message string) {
	recordStatus(store, entry, state.MergeStatusFailed, message)
}

func recordStatus(store *state.MergeStore, entry Entry, status state.MergeStatus, message string) {
	_ = store.Mutate(func(ms *state.MergeState) error {
		rec := mergeRecordFor(ms, entry)
		rec.Status = status
		rec.Error = message

		return nil
	})
}

func mergeRecordFor(ms *state.MergeState, entry Entry) *state.MergeRecord {
	key := fmt.Sprintf("%d", entry.ChangeRequestID)
	rec, ok := ms.PRs[key]
	if !ok {
		rec = &state.MergeRecord{
			TaskID:          entry.TaskID,
			ChangeRequestID: entry.ChangeRequestID,
			Branch:          entry.Branch,
			BaseBranch:      entry.BaseBranch,
			Status:          state.MergeStatusPending,
		}
		ms.PRs[key] = rec
	}

	return rec
}
