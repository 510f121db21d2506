// Package verify runs the configured verification pipeline: an
// ordered list of opaque shell commands, stopping at the first
// failure, plus an optional end-to-end step with a snapshot-update
// retry.
package verify

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/SaintPepsi/pai-tools-sub000/internal/config"
)

// Logger receives per-step progress notes.
type Logger interface {
	Infof(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Infof(string, ...any) {}

// errorTailBytes is how many bytes of combined output are retained on
// a failing step, so errors fit in logs and agent-repair prompts.
const errorTailBytes = 2000

// StepResult is the outcome of one verification command.
type StepResult struct {
	Name       string
	OK         bool
	DurationMs int64
	Error      string
}

// Result is the outcome of a full verification run.
type Result struct {
	OK         bool
	Steps      []StepResult
	FailedStep string
	Error      string
}

// Options configures a verification run.
type Options struct {
	Verify      []config.VerifyStep
	E2E         *config.E2EConfig
	Cwd         string
	SkipE2E     bool
	FilterName  string
	Logger      Logger
	IssueNumber int
}

// Run executes the configured verification steps in order, stopping
// at the first failure. When FilterName is set, only that step runs.
// After all steps pass, the end-to-end step (if configured and not
// skipped) runs with a snapshot-update retry.
func Run(opts Options) Result {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	steps := opts.Verify
	if opts.FilterName != "" {
		steps = filterSteps(steps, opts.FilterName)
	}

	results := make([]StepResult, 0, len(steps)+1)
	for _, step := range steps {
		sr := runStep(opts.Cwd, step.Name, step.Cmd)
		results = append(results, sr)

		if !sr.OK {
			logger.Infof("verify step %q failed", step.Name)

			return Result{
				OK:         false,
				Steps:      results,
				FailedStep: step.Name,
				Error:      sr.Error,
			}
		}
		logger.Infof("verify step %q passed (%dms)", step.Name, sr.DurationMs)
	}

	if opts.E2E == nil || opts.SkipE2E {
		return Result{OK: true, Steps: results}
	}

	return runE2E(opts, results)
}

func runE2E(opts Options, results []StepResult) Result {
	e2e := opts.E2E

	first := runStep(opts.Cwd, "e2e", e2e.Run)
	if first.OK {
		results = append(results, first)

		return Result{OK: true, Steps: results}
	}

	// Best-effort snapshot update; errors are ignored, the point is to
	// try regenerating snapshots before giving the e2e step a second
	// chance.
	_ = runStep(opts.Cwd, "e2e-update", e2e.Update)

	retry := runStep(opts.Cwd, "e2e (after snapshot update)", e2e.Run)
	if !retry.OK {
		results = append(results, retry)

		return Result{
			OK:         false,
			Steps:      results,
			FailedStep: "e2e",
			Error:      retry.Error,
		}
	}

	results = append(results, retry)

	if e2e.SnapshotGlob != "" {
		commitMsg := fmt.Sprintf("test: update E2E snapshots for #%d", opts.IssueNumber)
		_, _ = runShell(opts.Cwd, fmt.Sprintf("git add -A %s", e2e.SnapshotGlob))
		_, _ = runShell(opts.Cwd, fmt.Sprintf("git commit -m %q", commitMsg))
	}

	return Result{OK: true, Steps: results}
}

func filterSteps(steps []config.VerifyStep, name string) []config.VerifyStep {
	for _, s := range steps {
		if s.Name == name {
			return []config.VerifyStep{s}
		}
	}

	return nil
}

func runStep(cwd, name, cmd string) StepResult {
	start := time.Now()
	output, err := runShell(cwd, cmd)
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		return StepResult{
			Name:       name,
			OK:         false,
			DurationMs: durationMs,
			Error:      tailBytes(output, errorTailBytes),
		}
	}

	return StepResult{Name: name, OK: true, DurationMs: durationMs}
}

// runShell invokes cmd through the shell (verify commands are opaque
// shell strings, not argv arrays) with cwd as its working directory,
// returning combined stdout+stderr.
func runShell(cwd, cmd string) (string, error) {
	c := exec.Command("sh", "-c", cmd)
	c.Dir = cwd
	output, err := c.CombinedOutput()

	return string(output), err
}

// tailBytes returns the last n bytes of s, so the most recent (and
// usually most relevant) output survives truncation.
func tailBytes(s string, n int) string {
	if len(s) <= n {
		return strings.TrimSpace(s)
	}

	return strings.TrimSpace(s[len(s)-n:])
}
