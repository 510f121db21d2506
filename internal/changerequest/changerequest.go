// Package changerequest creates, queries, retargets, merges, and
// closes the tracker items backing a task's change request (a GitHub
// PR, GitLab MR, or Gitea PR), dispatching to whichever CLI the
// detected hosting platform provides.
package changerequest

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/SaintPepsi/pai-tools-sub000/internal/git"
)

// ErrUnsupportedPlatform is returned when no CLI tool can perform the
// requested operation (Bitbucket, or an undetected host).
var ErrUnsupportedPlatform = errors.New("changerequest: unsupported platform")

// CreateOptions describes a new change request.
type CreateOptions struct {
	Title        string
	Body         string
	BaseBranch   string
	BranchName   string
	WorktreePath string
	Draft        bool
}

// CreateResult is the outcome of creating a change request.
type CreateResult struct {
	ID        int
	URL       string
	ManualURL string
}

// Client is the contract the per-task pipeline and merge sequencer
// use for all tracker/platform interaction.
type Client interface {
	// Create pushes the branch (`push -u origin`) and opens the
	// change request.
	Create(opts CreateOptions) (CreateResult, error)
	// State returns "OPEN", "CLOSED", or "MERGED" for a change
	// request id.
	State(id int) (string, error)
	// Retarget updates a change request's base branch.
	Retarget(id int, newBase string) error
	// Merge merges a change request with the given strategy,
	// deleting the source branch.
	Merge(id int, strategy string) error
	// CloseIssue closes the tracker issue for a task id, best-effort.
	CloseIssue(id int) error
	// CreateIssue files a new tracker issue (used by split assessment
	// to create sub-tasks) and returns its assigned id.
	CreateIssue(title, body string) (int, error)
}

// CLIClient dispatches to the gh/glab/tea CLI matching the repo's
// detected origin remote.
type CLIClient struct {
	Platform git.PlatformInfo
}

// Detect inspects the origin remote and returns a ready CLIClient.
func Detect() (*CLIClient, error) {
	originURL, err := git.GetOriginURL()
	if err != nil {
		return nil, fmt.Errorf("get origin url: %w", err)
	}

	info, err := git.DetectPlatform(originURL)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}

	return &CLIClient{Platform: info}, nil
}

// Create pushes the branch and opens a change request via the
// platform's CLI, or returns a manual URL for Bitbucket.
func (c *CLIClient) Create(opts CreateOptions) (CreateResult, error) {
	if err := pushBranch(opts.WorktreePath, opts.BranchName); err != nil {
		return CreateResult{}, fmt.Errorf("push branch: %w", err)
	}

	switch c.Platform.Platform {
	case git.PlatformGitHub:
		return c.createGitHub(opts)
	case git.PlatformGitLab:
		return c.createGitLab(opts)
	case git.PlatformGitea:
		return c.createGitea(opts)
	case git.PlatformBitbucket:
		return c.createBitbucket(opts), nil
	default:
		return CreateResult{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, c.Platform.Platform)
	}
}

func pushBranch(worktreePath, branchName string) error {
	cmd := exec.Command("git", "push", "-u", "origin", branchName)
	cmd.Dir = worktreePath
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s", strings.TrimSpace(string(output)))
	}

	return nil
}

func (c *CLIClient) createGitHub(opts CreateOptions) (CreateResult, error) {
	bodyFile, err := writeTempBody(opts.Body)
	if err != nil {
		return CreateResult{}, err
	}
	defer func() { _ = os.Remove(bodyFile) }()

	args := []string{"pr", "create", "--title", opts.Title, "--body-file", bodyFile, "--base", opts.BaseBranch}
	if opts.Draft {
		args = append(args, "--draft")
	}

	output, err := runCLI(opts.WorktreePath, "gh", args...)
	if err != nil {
		return CreateResult{}, fmt.Errorf("gh pr create: %w", err)
	}

	url := extractURL(output)

	id, err := ghPRNumber(opts.WorktreePath, url)
	if err != nil {
		return CreateResult{URL: url}, nil //nolint:nilerr
	}

	return CreateResult{ID: id, URL: url}, nil
}

func (c *CLIClient) createGitLab(opts CreateOptions) (CreateResult, error) {
	args := []string{"mr", "create", "--title", opts.Title, "--description", opts.Body, "--target-branch", opts.BaseBranch}
	if opts.Draft {
		args = append(args, "--draft")
	}

	output, err := runCLI(opts.WorktreePath, "glab", args...)
	if err != nil {
		return CreateResult{}, fmt.Errorf("glab mr create: %w", err)
	}

	url := extractURL(output)

	return CreateResult{ID: idFromURL(url), URL: url}, nil
}

func (c *CLIClient) createGitea(opts CreateOptions) (CreateResult, error) {
	args := []string{"pr", "create", "--title", opts.Title, "--description", opts.Body, "--base", opts.BaseBranch}

	output, err := runCLI(opts.WorktreePath, "tea", args...)
	if err != nil {
		return CreateResult{}, fmt.Errorf("tea pr create: %w", err)
	}

	url := extractURL(output)

	return CreateResult{ID: idFromURL(url), URL: url}, nil
}

func (c *CLIClient) createBitbucket(opts CreateOptions) CreateResult {
	manualURL := fmt.Sprintf("%s/pull-requests/new?source=%s&dest=%s", c.Platform.RepoURL, opts.BranchName, opts.BaseBranch)

	return CreateResult{ManualURL: manualURL}
}

// State returns the change request's open/closed/merged state.
func (c *CLIClient) State(id int) (string, error) {
	switch c.Platform.Platform {
	case git.PlatformGitHub:
		out, err := runCLI("", "gh", "pr", "view", strconv.Itoa(id), "--json", "state", "-q", ".state")
		if err != nil {
			return "", fmt.Errorf("gh pr view: %w", err)
		}

		return strings.ToUpper(strings.TrimSpace(out)), nil
	case git.PlatformGitLab:
		out, err := runCLI("", "glab", "mr", "view", strconv.Itoa(id))
		if err != nil {
			return "", fmt.Errorf("glab mr view: %w", err)
		}

		return parseStateFromText(out), nil
	case git.PlatformGitea:
		out, err := runCLI("", "tea", "pr", "view", strconv.Itoa(id))
		if err != nil {
			return "", fmt.Errorf("tea pr view: %w", err)
		}

		return parseStateFromText(out), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, c.Platform.Platform)
	}
}

func parseStateFromText(out string) string {
	lower := strings.ToLower(out)
	switch {
	case strings.Contains(lower, "merged"):
		return "MERGED"
	case strings.Contains(lower, "closed"):
		return "CLOSED"
	default:
		return "OPEN"
	}
}

// Retarget updates a change request's base branch.
func (c *CLIClient) Retarget(id int, newBase string) error {
	switch c.Platform.Platform {
	case git.PlatformGitHub:
		_, err := runCLI("", "gh", "pr", "edit", strconv.Itoa(id), "--base", newBase)

		return err
	case git.PlatformGitLab:
		_, err := runCLI("", "glab", "mr", "update", strconv.Itoa(id), "--target-branch", newBase)

		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, c.Platform.Platform)
	}
}

// Merge merges a change request. On GitHub and GitLab it passes the
// strategy flag and deletes the source branch; on Gitea it runs a plain
// `tea pr merge`, which passes no strategy flag and does not delete the
// source branch.
func (c *CLIClient) Merge(id int, strategy string) error {
	switch c.Platform.Platform {
	case git.PlatformGitHub:
		args := []string{"pr", "merge", strconv.Itoa(id), strategyFlagGitHub(strategy), "--delete-branch"}
		_, err := runCLI("", "gh", args...)

		return err
	case git.PlatformGitLab:
		args := []string{"mr", "merge", strconv.Itoa(id), strategyFlagGitLab(strategy), "--remove-source-branch"}
		_, err := runCLI("", "glab", args...)

		return err
	case git.PlatformGitea:
		args := []string{"pr", "merge", strconv.Itoa(id)}
		_, err := runCLI("", "tea", args...)

		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, c.Platform.Platform)
	}
}

func strategyFlagGitHub(strategy string) string {
	switch strategy {
	case "merge":
		return "--merge"
	case "rebase":
		return "--rebase"
	default:
		return "--squash"
	}
}

func strategyFlagGitLab(strategy string) string {
	switch strategy {
	case "merge", "rebase":
		return "--merge"
	default:
		return "--squash"
	}
}

// CloseIssue closes the tracker issue, best-effort.
func (c *CLIClient) CloseIssue(id int) error {
	switch c.Platform.Platform {
	case git.PlatformGitHub:
		_, err := runCLI("", "gh", "issue", "close", strconv.Itoa(id))

		return err
	case git.PlatformGitLab:
		_, err := runCLI("", "glab", "issue", "close", strconv.Itoa(id))

		return err
	case git.PlatformGitea:
		_, err := runCLI("", "tea", "issue", "close", strconv.Itoa(id))

		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, c.Platform.Platform)
	}
}

// CreateIssue files a new tracker issue and returns its assigned id.
func (c *CLIClient) CreateIssue(title, body string) (int, error) {
	bodyFile, err := writeTempBody(body)
	if err != nil {
		return 0, err
	}
	defer func() { _ = os.Remove(bodyFile) }()

	switch c.Platform.Platform {
	case git.PlatformGitHub:
		out, err := runCLI("", "gh", "issue", "create", "--title", title, "--body-file", bodyFile)
		if err != nil {
			return 0, fmt.Errorf("gh issue create: %w", err)
		}

		return idFromURL(extractURL(out)), nil
	case git.PlatformGitLab:
		out, err := runCLI("", "glab", "issue", "create", "--title", title, "--description", body)
		if err != nil {
			return 0, fmt.Errorf("glab issue create: %w", err)
		}

		return idFromURL(extractURL(out)), nil
	case git.PlatformGitea:
		out, err := runCLI("", "tea", "issue", "create", "--title", title, "--description", body)
		if err != nil {
			return 0, fmt.Errorf("tea issue create: %w", err)
		}

		return idFromURL(extractURL(out)), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, c.Platform.Platform)
	}
}

func runCLI(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s", strings.TrimSpace(string(output)))
	}

	return string(output), nil
}

func writeTempBody(body string) (string, error) {
	f, err := os.CreateTemp("", "pait-cr-body-*.md")
	if err != nil {
		return "", fmt.Errorf("create temp file for change request body: %w", err)
	}

	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())

		return "", fmt.Errorf("write change request body: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())

		return "", fmt.Errorf("close change request body file: %w", err)
	}

	return f.Name(), nil
}

func extractURL(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line
		}
	}

	return strings.TrimSpace(output)
}

func idFromURL(url string) int {
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	if len(parts) == 0 {
		return 0
	}

	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}

	return id
}

func ghPRNumber(worktreePath, url string) (int, error) {
	if id := idFromURL(url); id != 0 {
		return id, nil
	}

	out, err := runCLI(worktreePath, "gh", "pr", "view", "--json", "number", "-q", ".number")
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(strings.TrimSpace(out))
}
