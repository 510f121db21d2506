package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/SaintPepsi/pai-tools-sub000/internal/agent"
	"github.com/SaintPepsi/pai-tools-sub000/internal/changerequest"
	"github.com/SaintPepsi/pai-tools-sub000/internal/config"
	"github.com/SaintPepsi/pai-tools-sub000/internal/markdown"
	"github.com/SaintPepsi/pai-tools-sub000/internal/pipeline"
	"github.com/SaintPepsi/pai-tools-sub000/internal/scheduler"
	"github.com/SaintPepsi/pai-tools-sub000/internal/state"
	"github.com/SaintPepsi/pai-tools-sub000/internal/task"
)

// OrchestrateCmd drives tasks through the per-task pipeline, either
// sequentially or across a fixed number of parallel slots.
type OrchestrateCmd struct {
	File      string `help:"Markdown file listing tasks" name:"file" type:"path"`
	DryRun    bool   `help:"Print the execution plan and exit"     name:"dry-run"`
	Reset     bool   `help:"Clear persisted orchestrator state"    name:"reset"`
	Status    bool   `help:"Print current task status and exit"   name:"status"`
	SkipE2E   bool   `help:"Skip the end-to-end verification step" name:"skip-e2e"`
	SkipSplit bool   `help:"Skip split assessment"                 name:"skip-split"`
	NoVerify  bool   `help:"Skip verification entirely"            name:"no-verify"`

	Single   bool `help:"Run a single task then stop"           name:"single"`
	TaskID   *int `arg:"" optional:"" help:"Task id for --single"`
	From     *int `help:"Start at this task id"                 name:"from"`
	Parallel int  `help:"Run up to N tasks concurrently (N>=2)" name:"parallel"`
}

// Run executes the orchestrate command.
func (c *OrchestrateCmd) Run() error {
	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}

	cfg, err := config.Load(repoRoot)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := newConsoleLogger()
	store := state.NewStore(repoRoot, logger)

	if c.Reset {
		return state.Clear(store.Path())
	}

	if c.Status {
		return printOrchestratorStatus(store, logger)
	}

	if c.Parallel != 0 && c.Parallel < 2 {
		fmt.Fprintln(os.Stderr, "--parallel requires a positive integer")
		os.Exit(1)
	}

	tasks, err := c.loadTasks()
	if err != nil {
		return err
	}

	graph := task.BuildGraph(tasks, cfg.BranchPrefix)

	order, err := task.TopologicalSort(graph)
	if err != nil {
		return fmt.Errorf("compute execution order: %w", err)
	}

	if c.DryRun {
		for _, id := range order {
			logger.Infof("#%d %s -> %s", id, graph[id].Title, graph[id].BranchName)
		}

		return nil
	}

	changes, err := changerequest.Detect()
	if err != nil {
		return fmt.Errorf("detect change-request platform: %w", err)
	}

	deps := pipeline.Deps{
		Store:   store,
		Config:  cfg,
		Agent:   agent.NewCLIRunner("claude"),
		Changes: changes,
		Logger:  logger,
	}

	pipelineOpts := pipeline.Options{
		SkipSplit: c.SkipSplit,
		SkipE2E:   c.SkipE2E,
		NoVerify:  c.NoVerify,
	}

	if c.Parallel >= 2 {
		result := scheduler.Parallel(order, graph, scheduler.ParallelOptions{
			Slots:        c.Parallel,
			PipelineOpts: pipelineOpts,
		}, deps, logger)

		if result.ExitCode != 0 {
			os.Exit(result.ExitCode)
		}

		return nil
	}

	opts := scheduler.Options{PipelineOpts: pipelineOpts}
	if c.Single {
		opts.SingleBare = c.TaskID == nil
		opts.SingleIssue = c.TaskID
	}
	if c.From != nil {
		opts.FromIssue = c.From
	}

	result := scheduler.Sequential(order, graph, opts, deps, logger)
	if result.ExitCode != 0 {
		os.Exit(result.ExitCode)
	}

	return nil
}

func (c *OrchestrateCmd) loadTasks() ([]task.Task, error) {
	if c.File == "" {
		return nil, errors.New("orchestrate requires --file pointing at a markdown task list")
	}

	data, err := os.ReadFile(c.File)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.File, err)
	}

	return markdown.Parse(string(data)), nil
}

func printOrchestratorStatus(store *state.Store, logger *consoleLogger) error {
	st, err := store.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if st == nil {
		logger.Infof("no orchestrator state recorded")

		return nil
	}

	for id, rec := range st.Tasks {
		logger.Infof("[#%s] %s", id, rec.Status)
	}

	return nil
}
