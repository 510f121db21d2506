package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"

	"github.com/SaintPepsi/pai-tools-sub000/internal/agent"
	"github.com/SaintPepsi/pai-tools-sub000/internal/changerequest"
	"github.com/SaintPepsi/pai-tools-sub000/internal/config"
	"github.com/SaintPepsi/pai-tools-sub000/internal/git"
	"github.com/SaintPepsi/pai-tools-sub000/internal/merge"
	"github.com/SaintPepsi/pai-tools-sub000/internal/state"
)

// FinalizeCmd merges completed change requests in stacking order.
type FinalizeCmd struct {
	DryRun      bool   `help:"Print the merge plan and exit"              name:"dry-run"`
	Single      bool   `help:"Merge one entry then stop"                  name:"single"`
	NoVerify    bool   `help:"Skip post-merge verification"               name:"no-verify"`
	Strategy    string `help:"Merge strategy: squash, merge, or rebase"    name:"strategy" enum:"squash,merge,rebase" default:"squash"`
	From        *int   `help:"Start at this task id"                      name:"from"`
	AutoResolve bool   `help:"Resolve conflicts with the agent instead of prompting" name:"auto-resolve"`
}

// Run executes the finalize command.
func (c *FinalizeCmd) Run() error {
	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}

	cfg, err := config.Load(repoRoot)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := newConsoleLogger()
	orchestratorStore := state.NewStore(repoRoot, logger)

	st, err := orchestratorStore.Load()
	if err != nil {
		return fmt.Errorf("load orchestrator state: %w", err)
	}
	if st == nil {
		fmt.Fprintln(os.Stderr, "no orchestrator state recorded; run orchestrate first")
		os.Exit(1)
	}

	changes, err := changerequest.Detect()
	if err != nil {
		return fmt.Errorf("detect change-request platform: %w", err)
	}

	runner := agent.NewCLIRunner("claude")

	_, failed, err := merge.Run(st, merge.Options{
		DryRun:      c.DryRun,
		Single:      c.Single,
		NoVerify:    c.NoVerify,
		Strategy:    c.Strategy,
		From:        c.From,
		AutoResolve: c.AutoResolve,
	}, merge.Deps{
		Store:   state.NewMergeStore(repoRoot, logger),
		Config:  cfg,
		Changes: changes,
		Agent:   runner,
		Logger:  logger,
		Conflicts: func(file, cwd string) error {
			return resolveConflictInteractively(runner, cfg.Models.Implement, file, cwd)
		},
	})
	if err != nil {
		if errors.Is(err, merge.ErrCycle) {
			return err
		}

		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if failed > 0 {
		os.Exit(1)
	}

	return nil
}

// resolveConflictInteractively asks the operator how to resolve one
// conflicted file: keep our side, keep theirs, or describe the
// intended resolution for the agent to carry out. Defaults to "ours".
func resolveConflictInteractively(runner agent.Runner, model, file, cwd string) error {
	choice := "ours"
	intent := ""

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Resolve conflict in %s", file)).
				Options(
					huh.NewOption("keep ours", "ours"),
					huh.NewOption("keep theirs", "theirs"),
					huh.NewOption("describe resolution", "free"),
				).
				Value(&choice),
		),
	).Run()
	if err != nil {
		return fmt.Errorf("prompt for %s: %w", file, err)
	}

	switch choice {
	case "ours":
		return git.CheckoutOurs(file)
	case "theirs":
		return git.CheckoutTheirs(file)
	default:
		if err := huh.NewForm(
			huh.NewGroup(
				huh.NewText().Title("Describe the intended resolution").Value(&intent),
			),
		).Run(); err != nil {
			return fmt.Errorf("prompt for %s: %w", file, err)
		}

		return resolveWithIntent(runner, model, file, cwd, intent)
	}
}

func resolveWithIntent(runner agent.Runner, model, file, cwd, intent string) error {
	diff, err := os.ReadFile(filepath.Join(cwd, file))
	if err != nil {
		return err
	}

	result := runner.Run(agent.Request{
		Prompt:         agent.IntentResolvePrompt(file, string(diff), intent),
		Model:          model,
		Cwd:            cwd,
		PermissionMode: agent.PermissionModeAcceptEdits,
	})
	if !result.OK {
		return fmt.Errorf("agent conflict resolution failed: %s", result.Output)
	}

	resolved, err := agent.ValidateResolution(result.Output)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(cwd, file), []byte(resolved), 0o644); err != nil {
		return err
	}

	return git.StageAll(file)
}
