package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SaintPepsi/pai-tools-sub000/internal/agent"
	"github.com/SaintPepsi/pai-tools-sub000/internal/changerequest"
	"github.com/SaintPepsi/pai-tools-sub000/internal/config"
	"github.com/SaintPepsi/pai-tools-sub000/internal/state"
	"github.com/SaintPepsi/pai-tools-sub000/internal/task"
	"github.com/SaintPepsi/pai-tools-sub000/internal/worktree"
)

type fakeLogger struct{}

func (fakeLogger) Infof(string, ...any) {}
func (fakeLogger) Warnf(string, ...any) {}

type scriptedAgent struct {
	results []agent.Result
	calls   int
}

func (a *scriptedAgent) Run(agent.Request) agent.Result {
	a.calls++
	if len(a.results) == 0 {
		return agent.Result{OK: true}
	}
	idx := a.calls - 1
	if idx >= len(a.results) {
		idx = len(a.results) - 1
	}

	return a.results[idx]
}

type fakeSplitAgent struct{}

func (fakeSplitAgent) Run(agent.Request) agent.Result {
	return agent.Result{
		OK: true,
		Output: `{"shouldSplit": true, "proposedSplits": ` +
			`[{"title": "Part 1", "body": "b1"}, {"title": "Part 2", "body": "b2"}], "reasoning": "too big"}`,
	}
}

type fakeChanges struct {
	createResult changerequest.CreateResult
	createErr    error
	nextIssueID  int
}

func (f *fakeChanges) Create(changerequest.CreateOptions) (changerequest.CreateResult, error) {
	return f.createResult, f.createErr
}
func (f *fakeChanges) State(int) (string, error)  { return "OPEN", nil }
func (f *fakeChanges) Retarget(int, string) error { return nil }
func (f *fakeChanges) Merge(int, string) error    { return nil }
func (f *fakeChanges) CloseIssue(int) error       { return nil }
func (f *fakeChanges) CreateIssue(string, string) (int, error) {
	f.nextIssueID++

	return f.nextIssueID, nil
}

// fakeWorktree stands in for the real git-backed worktree manager so
// tests never shell out.
func fakeWorktree(t *testing.T) (
	func(string, []string, *config.Config, int) worktree.Result,
	func(string, string, int, worktree.Logger),
) {
	t.Helper()
	dir := t.TempDir()

	create := func(branchName string, _ []string, _ *config.Config, _ int) worktree.Result {
		return worktree.Result{OK: true, WorktreePath: dir, BaseBranch: "master"}
	}
	remove := func(string, string, int, worktree.Logger) {}

	return create, remove
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.RepoRoot = t.TempDir()

	return &cfg
}

func noDepsNode(id int) *task.Node {
	return &task.Node{TaskID: id, Title: "Add widget", BranchName: "feat/1-add-widget"}
}

func TestRunSkipsCompletedTask(t *testing.T) {
	cfg := testConfig(t)
	store := state.NewStore(cfg.RepoRoot, nil)
	require.NoError(t, store.Mutate(func(st *state.OrchestratorState) error {
		st.Tasks["1"] = &state.TaskRecord{ID: 1, Status: state.StatusCompleted}

		return nil
	}))

	outcome := Run(noDepsNode(1), task.Graph{1: noDepsNode(1)}, Options{SkipSplit: true}, Deps{
		Store:   store,
		Config:  cfg,
		Agent:   &scriptedAgent{},
		Changes: &fakeChanges{},
		Logger:  fakeLogger{},
	})

	require.True(t, outcome.OK)
	require.Equal(t, ReasonSkipped, outcome.Status)
}

func TestRunFailsOnUnmetDependencies(t *testing.T) {
	cfg := testConfig(t)
	store := state.NewStore(cfg.RepoRoot, nil)

	node := &task.Node{TaskID: 2, Title: "Add widget", DependsOn: []int{1}, BranchName: "feat/2-add-widget"}
	g := task.Graph{1: noDepsNode(1), 2: node}

	outcome := Run(node, g, Options{SkipSplit: true, CheckDependencies: true}, Deps{
		Store:   store,
		Config:  cfg,
		Agent:   &scriptedAgent{},
		Changes: &fakeChanges{},
		Logger:  fakeLogger{},
	})

	require.False(t, outcome.OK)
	require.Equal(t, ReasonUnmetDeps, outcome.Status)
}

func TestRunSplitCreatesSubTasks(t *testing.T) {
	cfg := testConfig(t)
	store := state.NewStore(cfg.RepoRoot, nil)
	node := noDepsNode(5)

	outcome := Run(node, task.Graph{5: node}, Options{}, Deps{
		Store:   store,
		Config:  cfg,
		Agent:   fakeSplitAgent{},
		Changes: &fakeChanges{},
		Logger:  fakeLogger{},
	})

	require.True(t, outcome.OK)
	require.Equal(t, ReasonSplit, outcome.Status)
	require.Len(t, outcome.NewTasks, 2)

	st, err := store.Load()
	require.NoError(t, err)
	rec := st.Tasks["5"]
	require.Equal(t, state.StatusSplit, rec.Status)
	require.Len(t, rec.SubTasks, 2)
}

func TestRunCompletesHappyPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Verify = nil
	store := state.NewStore(cfg.RepoRoot, nil)
	node := noDepsNode(9)
	create, remove := fakeWorktree(t)

	outcome := Run(node, task.Graph{9: node}, Options{SkipSplit: true, NoVerify: true}, Deps{
		Store:          store,
		Config:         cfg,
		Agent:          &scriptedAgent{results: []agent.Result{{OK: true}}},
		Changes:        &fakeChanges{createResult: changerequest.CreateResult{ID: 42}},
		Logger:         fakeLogger{},
		CreateWorktree: create,
		RemoveWorktree: remove,
	})

	require.True(t, outcome.OK)
	require.Equal(t, ReasonCompleted, outcome.Status)

	st, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, state.StatusCompleted, st.Tasks["9"].Status)
	require.Equal(t, 42, st.Tasks["9"].ChangeRequestID)
}

func TestRunFailsAfterImplementRetriesExhausted(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retries.Implement = 1
	store := state.NewStore(cfg.RepoRoot, nil)
	node := noDepsNode(11)
	create, remove := fakeWorktree(t)

	outcome := Run(node, task.Graph{11: node}, Options{SkipSplit: true, NoVerify: true}, Deps{
		Store:          store,
		Config:         cfg,
		Agent:          &scriptedAgent{results: []agent.Result{{OK: false, Output: "boom"}, {OK: false, Output: "boom again"}}},
		Changes:        &fakeChanges{},
		Logger:         fakeLogger{},
		CreateWorktree: create,
		RemoveWorktree: remove,
	})

	require.False(t, outcome.OK)
	require.Equal(t, ReasonImplement, outcome.Status)

	st, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, state.StatusFailed, st.Tasks["11"].Status)
}

func TestRunFailsOnChangeRequestError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Verify = nil
	store := state.NewStore(cfg.RepoRoot, nil)
	node := noDepsNode(13)
	create, remove := fakeWorktree(t)

	outcome := Run(node, task.Graph{13: node}, Options{SkipSplit: true, NoVerify: true}, Deps{
		Store:          store,
		Config:         cfg,
		Agent:          &scriptedAgent{results: []agent.Result{{OK: true}}},
		Changes:        &fakeChanges{createErr: errors.New("push rejected")},
		Logger:         fakeLogger{},
		CreateWorktree: create,
		RemoveWorktree: remove,
	})

	require.False(t, outcome.OK)
	require.Equal(t, ReasonChangeRequest, outcome.Status)
}
