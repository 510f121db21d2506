// Package pipeline runs a single task end to end: dependency and
// split checks, worktree creation, implementation with retries,
// verification with retry-and-repair, change-request creation, and
// teardown. Both schedulers (internal/scheduler) drive one task at a
// time through Run.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/SaintPepsi/pai-tools-sub000/internal/agent"
	"github.com/SaintPepsi/pai-tools-sub000/internal/changerequest"
	"github.com/SaintPepsi/pai-tools-sub000/internal/config"
	"github.com/SaintPepsi/pai-tools-sub000/internal/state"
	"github.com/SaintPepsi/pai-tools-sub000/internal/task"
	"github.com/SaintPepsi/pai-tools-sub000/internal/verify"
	"github.com/SaintPepsi/pai-tools-sub000/internal/worktree"
)

// Logger receives progress notes, conventionally prefixed with the
// task id by the caller (e.g. "[#42] taskStart").
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// Options toggles optional pipeline phases.
type Options struct {
	SkipSplit         bool
	SkipE2E           bool
	NoVerify          bool
	CheckDependencies bool
}

// Deps bundles the pipeline's collaborators. CreateWorktree and
// RemoveWorktree default to worktree.Create and worktree.Remove when
// nil; tests substitute fakes so Run never has to shell out to git.
type Deps struct {
	Store         *state.Store
	Config        *config.Config
	Agent         agent.Runner
	Changes       changerequest.Client
	Logger        Logger
	CreateWorktree func(branchName string, depBranches []string, cfg *config.Config, issueNum int) worktree.Result
	RemoveWorktree func(worktreePath, branchName string, issueNum int, logger worktree.Logger)
}

func (d Deps) createWorktree(branchName string, depBranches []string, issueNum int) worktree.Result {
	if d.CreateWorktree != nil {
		return d.CreateWorktree(branchName, depBranches, d.Config, issueNum)
	}

	return worktree.Create(branchName, depBranches, d.Config, issueNum)
}

func (d Deps) removeWorktree(worktreePath, branchName string, issueNum int, logger worktree.Logger) {
	if d.RemoveWorktree != nil {
		d.RemoveWorktree(worktreePath, branchName, issueNum, logger)

		return
	}

	worktree.Remove(worktreePath, branchName, issueNum, logger)
}

// Reason classifies why Run stopped, for the schedulers to decide
// whether to halt (sequential) or simply move on (parallel).
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonSkipped       Reason = "skipped"
	ReasonSplit         Reason = "split"
	ReasonUnmetDeps     Reason = "unmet-dependencies"
	ReasonWorktree      Reason = "worktree"
	ReasonImplement     Reason = "implement"
	ReasonVerify        Reason = "verify"
	ReasonChangeRequest Reason = "change-request"
	ReasonCompleted     Reason = "completed"
)

// Outcome reports what happened to one task.
type Outcome struct {
	Status Reason
	OK     bool
	// NewTasks holds sub-tasks created by a split, in execution order,
	// for the caller to fold into its task list and rebuild the graph.
	NewTasks []task.Task
	Error    string
}

// Run drives node through the full per-task sequence.
func Run(node *task.Node, g task.Graph, opts Options, deps Deps) Outcome {
	logger := deps.Logger

	var rec *state.TaskRecord
	depStatus := make(map[int]state.Status, len(node.DependsOn))
	if err := deps.Store.Mutate(func(st *state.OrchestratorState) error {
		rec = recordFor(st, node.TaskID)
		for _, dep := range node.DependsOn {
			depStatus[dep] = recordFor(st, dep).Status
		}

		return nil
	}); err != nil {
		return Outcome{Status: ReasonWorktree, OK: false, Error: err.Error()}
	}

	if rec.Status == state.StatusCompleted || rec.Status == state.StatusSplit {
		logger.Infof("[#%d] skip (status=%s)", node.TaskID, rec.Status)

		return Outcome{Status: ReasonSkipped, OK: true}
	}

	if opts.CheckDependencies {
		if unmet := unmetDependencies(node, g, depStatus); len(unmet) > 0 {
			msg := fmt.Sprintf("Unmet dependencies: %s", strings.Join(unmet, ", "))
			failTask(deps.Store, node.TaskID, msg)

			return Outcome{Status: ReasonUnmetDeps, OK: false, Error: msg}
		}
	}

	if !opts.SkipSplit {
		if outcome, handled := runSplitAssessment(node, deps); handled {
			return outcome
		}
	}

	depBranches := make([]string, 0, len(node.DependsOn))
	for _, dep := range node.DependsOn {
		if depNode, ok := g[dep]; ok {
			depBranches = append(depBranches, depNode.BranchName)
		}
	}

	wtResult := deps.createWorktree(node.BranchName, depBranches, node.TaskID)
	if !wtResult.OK {
		failTask(deps.Store, node.TaskID, wtResult.Err.Error())
		deps.removeWorktree(wtResult.WorktreePath, node.BranchName, node.TaskID, logger)

		return Outcome{Status: ReasonWorktree, OK: false, Error: wtResult.Err.Error()}
	}

	startedAt := time.Now().UTC()
	if err := deps.Store.Mutate(func(st *state.OrchestratorState) error {
		r := recordFor(st, node.TaskID)
		r.Status = state.StatusInProgress
		r.Branch = node.BranchName
		r.BaseBranch = wtResult.BaseBranch
		r.StartedAt = &startedAt

		return nil
	}); err != nil {
		logger.Warnf("[#%d] failed to persist in_progress state: %v", node.TaskID, err)
	}
	logger.Infof("[#%d] taskStart branch=%s base=%s", node.TaskID, node.BranchName, wtResult.BaseBranch)

	if ok, lastErr := implementWithRetries(node, wtResult.WorktreePath, deps); !ok {
		failTask(deps.Store, node.TaskID, lastErr)
		deps.removeWorktree(wtResult.WorktreePath, node.BranchName, node.TaskID, logger)

		return Outcome{Status: ReasonImplement, OK: false, Error: lastErr}
	}

	verifyResult, ok := verifyWithRepair(node, wtResult.WorktreePath, opts, deps)
	if !ok {
		msg := fmt.Sprintf("verification failed at %s: %s", verifyResult.FailedStep, verifyResult.Error)
		failTask(deps.Store, node.TaskID, msg)
		deps.removeWorktree(wtResult.WorktreePath, node.BranchName, node.TaskID, logger)

		return Outcome{Status: ReasonVerify, OK: false, Error: msg}
	}

	body := changeRequestBody(node.TaskID, deps.Config, opts.SkipE2E)
	createResult, err := deps.Changes.Create(changerequest.CreateOptions{
		Title:        node.Title,
		Body:         body,
		BaseBranch:   wtResult.BaseBranch,
		BranchName:   node.BranchName,
		WorktreePath: wtResult.WorktreePath,
	})
	if err != nil {
		failTask(deps.Store, node.TaskID, err.Error())
		deps.removeWorktree(wtResult.WorktreePath, node.BranchName, node.TaskID, logger)

		return Outcome{Status: ReasonChangeRequest, OK: false, Error: err.Error()}
	}

	deps.removeWorktree(wtResult.WorktreePath, node.BranchName, node.TaskID, logger)

	completedAt := time.Now().UTC()
	if err := deps.Store.Mutate(func(st *state.OrchestratorState) error {
		r := recordFor(st, node.TaskID)
		r.Status = state.StatusCompleted
		r.Error = ""
		r.ChangeRequestID = createResult.ID
		r.CompletedAt = &completedAt

		return nil
	}); err != nil {
		logger.Warnf("[#%d] failed to persist completed state: %v", node.TaskID, err)
	}

	elapsed := completedAt.Sub(startedAt).Milliseconds()
	logger.Infof("[#%d] taskComplete elapsedMs=%d changeRequest=%d", node.TaskID, elapsed, createResult.ID)

	if err := deps.Changes.CloseIssue(node.TaskID); err != nil {
		logger.Warnf("[#%d] failed to close tracker item: %v", node.TaskID, err)
	}

	return Outcome{Status: ReasonCompleted, OK: true}
}

func recordFor(st *state.OrchestratorState, id int) *state.TaskRecord {
	key := fmt.Sprintf("%d", id)
	r, ok := st.Tasks[key]
	if !ok {
		r = &state.TaskRecord{ID: id, Status: state.StatusPending}
		st.Tasks[key] = r
	}

	return r
}

func failTask(store *state.Store, id int, message string) {
	_ = store.Mutate(func(st *state.OrchestratorState) error {
		r := recordFor(st, id)
		r.Status = state.StatusFailed
		r.Error = message

		return nil
	})
}

// unmetDependencies returns, in declared order, every dependency id
// present in g that is neither completed nor split (a split
// dependency's obligations are considered discharged by its
// sub-tasks). Dependency ids absent from g are treated as met.
func unmetDependencies(node *task.Node, g task.Graph, depStatus map[int]state.Status) []string {
	var unmet []string
	for _, dep := range node.DependsOn {
		if _, inGraph := g[dep]; !inGraph {
			continue
		}

		switch depStatus[dep] {
		case state.StatusCompleted, state.StatusSplit:
			continue
		default:
			unmet = append(unmet, fmt.Sprintf("%d", dep))
		}
	}

	return unmet
}

func implementWithRetries(node *task.Node, worktreePath string, deps Deps) (bool, string) {
	attempts := deps.Config.Retries.Implement + 1
	var lastErr string

	for i := 0; i < attempts; i++ {
		prompt := agent.ImplementPrompt(node.Title, node.Body)
		if i > 0 {
			deps.Logger.Infof("[#%d] retrying implementation (attempt %d/%d)", node.TaskID, i+1, attempts)
			prompt = agent.RepairPrompt(node.Title, "implementation", lastErr)
		}

		result := deps.Agent.Run(agent.Request{
			Prompt:       prompt,
			Model:        deps.Config.Models.Implement,
			Cwd:          worktreePath,
			AllowedTools: deps.Config.AllowedTools,
		})
		if result.OK {
			return true, ""
		}

		lastErr = result.Output
	}

	return false, lastErr
}

func verifyWithRepair(node *task.Node, worktreePath string, opts Options, deps Deps) (verify.Result, bool) {
	if opts.NoVerify {
		return verify.Result{OK: true}, true
	}

	attempts := deps.Config.Retries.Verify + 1
	var result verify.Result

	for i := 0; i < attempts; i++ {
		result = verify.Run(verify.Options{
			Verify:      deps.Config.Verify,
			E2E:         deps.Config.E2E,
			Cwd:         worktreePath,
			SkipE2E:     opts.SkipE2E,
			IssueNumber: node.TaskID,
		})
		if result.OK {
			return result, true
		}

		if result.FailedStep == "" || i == attempts-1 {
			break
		}

		deps.Logger.Infof("[#%d] verification failed at %s, invoking repair", node.TaskID, result.FailedStep)

		steps := make([]string, 0, len(deps.Config.Verify))
		for _, s := range deps.Config.Verify {
			steps = append(steps, s.Cmd)
		}

		repair := deps.Agent.Run(agent.Request{
			Prompt:         agent.VerifyRepairPrompt(result.FailedStep, result.Error, steps),
			Model:          deps.Config.Models.Implement,
			Cwd:            worktreePath,
			PermissionMode: agent.PermissionModeAcceptEdits,
			AllowedTools:   deps.Config.AllowedTools,
		})
		deps.Logger.Infof("[#%d] repair output: %s", node.TaskID, repair.Output)
	}

	return result, false
}

func runSplitAssessment(node *task.Node, deps Deps) (Outcome, bool) {
	result := deps.Agent.Run(agent.Request{
		Prompt: agent.SplitAssessPrompt(node.Title, ""),
		Model:  deps.Config.Models.Assess,
	})
	if !result.OK {
		return Outcome{}, false
	}

	assessment := agent.ParseSplitAssessment(result.Output)
	if !assessment.ShouldSplit || len(assessment.ProposedSplits) == 0 {
		return Outcome{}, false
	}

	newTasks := make([]task.Task, 0, len(assessment.ProposedSplits))
	subTaskIDs := make([]int, 0, len(assessment.ProposedSplits))

	for i, split := range assessment.ProposedSplits {
		body := split.Body
		if i == 0 {
			for _, dep := range node.DependsOn {
				body += fmt.Sprintf("\n\ndepends on #%d", dep)
			}
		} else {
			body += fmt.Sprintf("\n\ndepends on #%d", subTaskIDs[i-1])
		}

		id, err := deps.Changes.CreateIssue(split.Title, body)
		if err != nil {
			deps.Logger.Warnf("[#%d] failed to create sub-task %q: %v", node.TaskID, split.Title, err)

			continue
		}

		subTaskIDs = append(subTaskIDs, id)
		newTasks = append(newTasks, task.Task{ID: id, Title: split.Title, Body: body})
	}

	if len(newTasks) == 0 {
		return Outcome{}, false
	}

	if err := deps.Store.Mutate(func(st *state.OrchestratorState) error {
		r := recordFor(st, node.TaskID)
		r.Status = state.StatusSplit
		r.SubTasks = subTaskIDs

		return nil
	}); err != nil {
		deps.Logger.Warnf("[#%d] failed to persist split state: %v", node.TaskID, err)
	}

	deps.Logger.Infof("[#%d] split into %d sub-tasks: %v", node.TaskID, len(newTasks), subTaskIDs)

	return Outcome{Status: ReasonSplit, OK: true, NewTasks: newTasks}, true
}

// changeRequestBody renders the change-request body template.
func changeRequestBody(taskID int, cfg *config.Config, skipE2E bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Summary\n\nCloses #%d\n\n## Changes\n\nSee issue #%d for full specification.\n\n## Verification\n\n", taskID, taskID)

	for _, step := range cfg.Verify {
		fmt.Fprintf(&b, "- [x] `%s` passes\n", step.Cmd)
	}

	if cfg.E2E != nil {
		if skipE2E {
			b.WriteString("- [ ] E2E (skipped)\n")
		} else {
			fmt.Fprintf(&b, "- [x] `%s` passes\n", cfg.E2E.Run)
		}
	}

	b.WriteString("\n---\nAutomated by pai orchestrate\n")

	return b.String()
}
