// Package agent runs prompts through an external coding-agent CLI
// (invoked as a subprocess) and never returns a Go error for a failed
// run: failure is reported through the OK field of the result, so
// callers can retry or repair without unwinding a call stack.
package agent

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// PermissionMode selects how much the agent CLI may act without
// prompting. AcceptEdits is used for repair and conflict-resolution
// runs, where a human is not present to approve each change.
type PermissionMode string

const (
	PermissionModeDefault     PermissionMode = ""
	PermissionModeAcceptEdits PermissionMode = "acceptEdits"
)

// Request describes one agent invocation.
type Request struct {
	Prompt         string
	Model          string
	Cwd            string
	PermissionMode PermissionMode
	AllowedTools   string
}

// Result is the outcome of an agent invocation. It is always
// populated, never accompanied by an error return.
type Result struct {
	OK     bool
	Output string
}

// Runner executes a Request and returns a Result. Implementations
// must never panic or block forever; CLI failures surface as
// Result.OK == false with Result.Output carrying whatever diagnostic
// text the agent produced.
type Runner interface {
	Run(req Request) Result
}

// CLIRunner invokes a coding-agent CLI binary as a subprocess, one
// run per Run call.
type CLIRunner struct {
	// Binary is the agent executable name or path, e.g. "claude".
	Binary string
}

// NewCLIRunner returns a CLIRunner for the given binary, defaulting
// to "claude" when empty.
func NewCLIRunner(binary string) *CLIRunner {
	if binary == "" {
		binary = "claude"
	}

	return &CLIRunner{Binary: binary}
}

// Run shells out to the agent binary with the prompt on argv (never
// through a shell), capturing combined output. It never returns an
// error; a failed subprocess run yields Result{OK: false}.
func (r *CLIRunner) Run(req Request) Result {
	args := []string{"--print", req.Prompt}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.PermissionMode != PermissionModeDefault {
		args = append(args, "--permission-mode", string(req.PermissionMode))
	}
	if req.AllowedTools != "" {
		args = append(args, "--allowedTools", req.AllowedTools)
	}

	cmd := exec.Command(r.Binary, args...)
	cmd.Dir = req.Cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		combined := strings.TrimSpace(stdout.String() + "\n" + stderr.String())
		if combined == "" {
			combined = err.Error()
		}

		return Result{OK: false, Output: combined}
	}

	return Result{OK: true, Output: strings.TrimSpace(stdout.String())}
}

// ImplementPrompt builds the prompt for a fresh implementation
// attempt against a task's title and body.
func ImplementPrompt(title, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Implement the following task.\n\nTitle: %s\n\n", title)
	if body != "" {
		fmt.Fprintf(&b, "%s\n\n", body)
	}
	b.WriteString("Make the necessary code changes in the current working directory. Do not commit.")

	return b.String()
}

// RepairPrompt builds the prompt for a retried implementation attempt
// after a prior attempt failed, feeding the prior attempt's own output
// back to the agent so it can correct course instead of starting over
// blind.
func RepairPrompt(title, stage, errorOutput string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A previous attempt to implement %q failed at the %q stage:\n\n", title, stage)
	fmt.Fprintf(&b, "%s\n\n", errorOutput)
	b.WriteString("Fix the implementation so this stage passes. Do not commit.")

	return b.String()
}

// VerifyRepairPrompt builds the prompt for the verification-fixer
// agent invoked after an implementation attempt's verification run
// fails.
func VerifyRepairPrompt(failedStep, errorOutput string, verifySteps []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Verification step %q failed with the following output:\n\n%s\n\n", failedStep, errorOutput)
	if len(verifySteps) > 0 {
		b.WriteString("The full verification pipeline, in order, is:\n")
		for _, s := range verifySteps {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	b.WriteString("Fix the code so every verification step passes. Do not commit.")

	return b.String()
}

// IntentResolvePrompt builds the prompt for resolving a merge conflict
// according to operator-stated intent, used by the interactive
// finalize path when neither "ours" nor "theirs" is the right call.
func IntentResolvePrompt(file, diff, intent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resolve the merge conflict in %s.\n\n%s\n\n", file, diff)
	fmt.Fprintf(&b, "The operator's intent: %s\n\n", intent)
	b.WriteString("Remove all conflict markers. Reply with only the resolved file contents, no prose, no code fences.")

	return b.String()
}

// ConflictResolvePrompt builds the prompt for auto-resolving a merge
// conflict in a single file, asking the agent to keep both changes
// where possible and prefer the incoming branch's intent on a true
// collision.
func ConflictResolvePrompt(file, diff string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resolve the merge conflict in %s.\n\n%s\n\n", file, diff)
	b.WriteString("Keep both sides' changes where they do not truly collide. ")
	b.WriteString("Where they do collide, prefer the incoming branch's intent. ")
	b.WriteString("Remove all conflict markers. Reply with only the resolved file contents, no prose, no code fences.")

	return b.String()
}
