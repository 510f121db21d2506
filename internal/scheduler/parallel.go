package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/SaintPepsi/pai-tools-sub000/internal/pipeline"
	"github.com/SaintPepsi/pai-tools-sub000/internal/state"
	"github.com/SaintPepsi/pai-tools-sub000/internal/task"
)

// ParallelOptions configures the admission-based scheduler.
type ParallelOptions struct {
	Slots        int // flags.parallel, N >= 2
	StartIndex   int // preCompleted = ids at index < StartIndex
	PipelineOpts pipeline.Options
}

// Parallel runs order through up to opts.Slots concurrent pipeline
// invocations, admitting a task only once every in-graph dependency
// isMet and none isFailed. Independent failures block dependents but
// never halt the loop; split assessment is not performed here (it
// mutates the execution order in place, which races under concurrent
// admission).
func Parallel(order []int, g task.Graph, opts ParallelOptions, deps pipeline.Deps, logger Logger) Result {
	preCompleted := make(map[int]bool, opts.StartIndex)
	for i := 0; i < opts.StartIndex && i < len(order); i++ {
		preCompleted[order[i]] = true
	}

	pipelineOpts := opts.PipelineOpts
	pipelineOpts.SkipSplit = true
	pipelineOpts.CheckDependencies = false

	sched := &parallelRun{
		order:        order,
		g:            g,
		preCompleted: preCompleted,
		slots:        opts.Slots,
		pipelineOpts: pipelineOpts,
		deps:         deps,
		logger:       logger,
		active:       make(map[int]bool),
		done:         make(chan int, len(order)+1),
	}

	return sched.run()
}

type parallelRun struct {
	order        []int
	g            task.Graph
	preCompleted map[int]bool
	slots        int
	pipelineOpts pipeline.Options
	deps         pipeline.Deps
	logger       Logger

	mu       sync.Mutex
	active   map[int]bool
	done     chan int
	executed []int
}

func (r *parallelRun) run() Result {
	for {
		r.propagateBlocks()

		admitted := r.admit()

		r.mu.Lock()
		nActive := len(r.active)
		r.mu.Unlock()

		if nActive == 0 && admitted == 0 {
			break
		}

		if nActive > 0 {
			<-r.done
		}
	}

	printStatus(r.order, r.deps.Store, r.logger)

	return Result{ExitCode: 0, Executed: r.executed}
}

// propagateBlocks transitions any unfinished, inactive task with a
// failed or blocked dependency to blocked, before admission runs so
// blocked tasks never occupy a slot.
func (r *parallelRun) propagateBlocks() {
	_ = r.deps.Store.Mutate(func(st *state.OrchestratorState) error {
		for _, id := range r.order {
			node, ok := r.g[id]
			if !ok {
				continue
			}

			r.mu.Lock()
			isActive := r.active[id]
			r.mu.Unlock()
			if isActive {
				continue
			}

			rec := recordForID(st, id)
			if isTerminal(rec.Status) {
				continue
			}

			for _, dep := range node.DependsOn {
				if r.isFailed(st, dep) {
					rec.Status = state.StatusBlocked
					rec.Error = fmt.Sprintf("Dependency #%d failed or was blocked", dep)

					break
				}
			}
		}

		return nil
	})
}

// admit starts a new pipeline run for every unfinished, inactive,
// admissible task while slots remain, returning how many it started.
func (r *parallelRun) admit() int {
	admittedCount := 0

	for {
		r.mu.Lock()
		if len(r.active) >= r.slots {
			r.mu.Unlock()

			break
		}
		r.mu.Unlock()

		id, node, ok := r.nextAdmissible()
		if !ok {
			break
		}

		r.mu.Lock()
		r.active[id] = true
		r.executed = append(r.executed, id)
		r.mu.Unlock()

		admittedCount++

		go r.runOne(id, node)
	}

	return admittedCount
}

func (r *parallelRun) nextAdmissible() (int, *task.Node, bool) {
	st, err := r.deps.Store.Load()
	if err != nil || st == nil {
		st = state.NewOrchestratorState(time.Now().UTC())
	}

	for _, id := range r.order {
		node, ok := r.g[id]
		if !ok {
			continue
		}

		r.mu.Lock()
		isActive := r.active[id]
		r.mu.Unlock()
		if isActive {
			continue
		}

		rec := recordForID(st, id)
		if isTerminal(rec.Status) {
			continue
		}

		admissible := true
		for _, dep := range node.DependsOn {
			if !r.isMet(st, dep) || r.isFailed(st, dep) {
				admissible = false

				break
			}
		}

		if admissible {
			return id, node, true
		}
	}

	return 0, nil, false
}

func (r *parallelRun) runOne(id int, node *task.Node) {
	taskDeps := r.deps
	taskDeps.Logger = prefixedLogger{id: id, inner: r.logger}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				_ = r.deps.Store.Mutate(func(st *state.OrchestratorState) error {
					recordForID(st, id).Status = state.StatusFailed
					recordForID(st, id).Error = fmt.Sprintf("panic: %v", rec)

					return nil
				})
			}
		}()

		pipeline.Run(node, r.g, r.pipelineOpts, taskDeps)
	}()

	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()

	r.done <- id
}

// isMet reports whether dep is satisfied for admission purposes: not
// an in-graph node, pre-completed (resumed from an earlier run), or
// recorded as completed.
func (r *parallelRun) isMet(st *state.OrchestratorState, dep int) bool {
	if _, inGraph := r.g[dep]; !inGraph {
		return true
	}
	if r.preCompleted[dep] {
		return true
	}

	return recordForID(st, dep).Status == state.StatusCompleted
}

// isFailed reports whether dep is a blocking failure for admission:
// in-graph, not pre-completed, and recorded failed or blocked.
func (r *parallelRun) isFailed(st *state.OrchestratorState, dep int) bool {
	if _, inGraph := r.g[dep]; !inGraph {
		return false
	}
	if r.preCompleted[dep] {
		return false
	}

	status := recordForID(st, dep).Status

	return status == state.StatusFailed || status == state.StatusBlocked
}

func isTerminal(status state.Status) bool {
	switch status {
	case state.StatusCompleted, state.StatusFailed, state.StatusSplit, state.StatusBlocked:
		return true
	default:
		return false
	}
}

func recordForID(st *state.OrchestratorState, id int) *state.TaskRecord {
	key := fmt.Sprintf("%d", id)
	rec, ok := st.Tasks[key]
	if !ok {
		rec = &state.TaskRecord{ID: id, Status: state.StatusPending}
		st.Tasks[key] = rec
	}

	return rec
}
