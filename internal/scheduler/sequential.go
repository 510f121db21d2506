// Package scheduler drives the per-task pipeline over a task graph,
// either one task at a time in topological order (Sequential) or
// across a fixed number of concurrent slots with dependency-aware
// admission (Parallel).
package scheduler

import (
	"fmt"

	"github.com/SaintPepsi/pai-tools-sub000/internal/pipeline"
	"github.com/SaintPepsi/pai-tools-sub000/internal/state"
	"github.com/SaintPepsi/pai-tools-sub000/internal/task"
)

// Logger receives scheduler-level progress notes.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// Options configures a scheduler run.
type Options struct {
	SingleIssue  *int // --single <id>
	SingleBare   bool // bare --single: take the next pending task
	FromIssue    *int // --from <id>
	PipelineOpts pipeline.Options
}

// Result summarizes a scheduler run (sequential or parallel).
type Result struct {
	ExitCode int
	Executed []int
}

// Sequential walks order, invoking the per-task pipeline for each id
// in turn starting from the resolved start index, halting on the
// first fatal failure.
func Sequential(order []int, g task.Graph, opts Options, deps pipeline.Deps, logger Logger) Result {
	start, err := resolveStartIndex(order, opts, deps.Store)
	if err != nil {
		logger.Warnf("%v", err)

		return Result{ExitCode: 1}
	}

	var executed []int

	for i := start; i < len(order); i++ {
		id := order[i]

		node, ok := g[id]
		if !ok {
			continue
		}

		taskLogger := prefixedLogger{id: id, inner: logger}
		taskDeps := deps
		taskDeps.Logger = taskLogger

		taskOpts := opts.PipelineOpts
		taskOpts.CheckDependencies = true

		outcome := pipeline.Run(node, g, taskOpts, taskDeps)
		executed = append(executed, id)

		if outcome.Status == pipeline.ReasonSplit {
			order, g = foldInSplit(order, g, i, outcome.NewTasks, deps.Config.BranchPrefix)

			continue
		}

		if !outcome.OK && outcome.Status != pipeline.ReasonSkipped {
			logger.Warnf("[#%d] fatal: %s", id, outcome.Error)
			printStatus(order, deps.Store, logger)

			return Result{ExitCode: 1, Executed: executed}
		}

		if opts.SingleIssue != nil || opts.SingleBare {
			if outcome.OK && outcome.Status != pipeline.ReasonSkipped {
				break
			}
		}
	}

	printStatus(order, deps.Store, logger)

	return Result{ExitCode: 0, Executed: executed}
}

// foldInSplit inserts the newly created sub-tasks into order and g
// immediately after the splitting task, rebuilding the graph so their
// declared dependencies are resolved, and returns the new order and
// graph. The first new sub-task sits at splitIndex+1, where the loop
// resumes.
func foldInSplit(order []int, g task.Graph, splitIndex int, newTasks []task.Task, branchPrefix string) ([]int, task.Graph) {
	if len(newTasks) == 0 {
		return order, g
	}

	newIDs := make([]int, 0, len(newTasks))
	for _, t := range newTasks {
		newIDs = append(newIDs, t.ID)
		g[t.ID] = &task.Node{
			TaskID:     t.ID,
			Title:      t.Title,
			Body:       t.Body,
			DependsOn:  task.ParseDependencies(t.Body),
			BranchName: task.BranchName(branchPrefix, t.ID, t.Title),
		}
	}

	rebuilt := make([]int, 0, len(order)+len(newIDs))
	rebuilt = append(rebuilt, order[:splitIndex+1]...)
	rebuilt = append(rebuilt, newIDs...)
	rebuilt = append(rebuilt, order[splitIndex+1:]...)

	return rebuilt, g
}

// resolveStartIndex applies the §4.6a priority rules: --single, then
// --from, then the first non-completed index.
func resolveStartIndex(order []int, opts Options, store *state.Store) (int, error) {
	if opts.SingleIssue != nil {
		idx := indexOf(order, *opts.SingleIssue)
		if idx < 0 {
			return 0, fmt.Errorf("--single %d is not in the execution order", *opts.SingleIssue)
		}

		return idx, nil
	}

	if opts.FromIssue != nil {
		idx := indexOf(order, *opts.FromIssue)
		if idx < 0 {
			return 0, fmt.Errorf("--from %d is not in the execution order", *opts.FromIssue)
		}

		return idx, nil
	}

	st, err := store.Load()
	if err != nil {
		return 0, err
	}
	if st == nil {
		return 0, nil
	}

	for i, id := range order {
		key := fmt.Sprintf("%d", id)
		rec, ok := st.Tasks[key]
		if !ok || rec.Status != state.StatusCompleted {
			return i, nil
		}
	}

	return len(order), nil
}

func indexOf(order []int, id int) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}

	return -1
}

func printStatus(order []int, store *state.Store, logger Logger) {
	st, err := store.Load()
	if err != nil || st == nil {
		logger.Infof("status: no state recorded")

		return
	}

	for _, id := range order {
		key := fmt.Sprintf("%d", id)
		rec, ok := st.Tasks[key]
		status := state.StatusPending
		if ok {
			status = rec.Status
		}
		logger.Infof("[#%d] %s", id, status)
	}
}

type prefixedLogger struct {
	id    int
	inner Logger
}

func (p prefixedLogger) Infof(format string, args ...any) {
	p.inner.Infof("[#%d] "+format, append([]any{p.id}, args...)...)
}

func (p prefixedLogger) Warnf(format string, args ...any) {
	p.inner.Warnf("[#%d] "+format, append([]any{p.id}, args...)...)
}
