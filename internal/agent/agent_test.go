package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCLIRunnerSuccess(t *testing.T) {
	r := &CLIRunner{Binary: "true"}
	result := r.Run(Request{Prompt: "anything"})
	require.True(t, result.OK)
}

func TestCLIRunnerFailureNeverErrors(t *testing.T) {
	r := &CLIRunner{Binary: "false"}
	result := r.Run(Request{Prompt: "anything"})
	require.False(t, result.OK)
}

func TestCLIRunnerMissingBinaryNeverPanics(t *testing.T) {
	r := &CLIRunner{Binary: "pai-tools-sub000-definitely-not-a-real-binary"}
	require.NotPanics(t, func() {
		result := r.Run(Request{Prompt: "anything"})
		require.False(t, result.OK)
		require.NotEmpty(t, result.Output)
	})
}

func TestNewCLIRunnerDefaultsToBinaryClaude(t *testing.T) {
	r := NewCLIRunner("")
	require.Equal(t, "claude", r.Binary)
}

func TestImplementPromptIncludesTitleAndBody(t *testing.T) {
	p := ImplementPrompt("Add foo", "acceptance: bar")
	require.Contains(t, p, "Add foo")
	require.Contains(t, p, "acceptance: bar")
}

func TestRepairPromptIncludesFailedStepAndOutput(t *testing.T) {
	p := RepairPrompt("Add foo", "test", "panic: nil pointer")
	require.Contains(t, p, "test")
	require.Contains(t, p, "panic: nil pointer")
}

func TestSplitAssessPromptAsksForJSON(t *testing.T) {
	p := SplitAssessPrompt("Big task", "a lot of work")
	require.Contains(t, p, "shouldSplit")
	require.Contains(t, p, "Big task")
}

func TestParseSplitAssessmentParsesJSON(t *testing.T) {
	out := `{"shouldSplit": true, "proposedSplits": [{"title": "Part 1", "body": "b1"}], "reasoning": "too big"}`
	result := ParseSplitAssessment(out)
	require.True(t, result.ShouldSplit)
	require.Len(t, result.ProposedSplits, 1)
	require.Equal(t, "Part 1", result.ProposedSplits[0].Title)
}

func TestParseSplitAssessmentStripsCodeFence(t *testing.T) {
	out := "```json\n{\"shouldSplit\": false, \"proposedSplits\": [], \"reasoning\": \"fine\"}\n```"
	result := ParseSplitAssessment(out)
	require.False(t, result.ShouldSplit)
}

func TestParseSplitAssessmentMalformedYieldsNoSplit(t *testing.T) {
	result := ParseSplitAssessment("not json at all")
	require.False(t, result.ShouldSplit)
	require.Empty(t, result.ProposedSplits)
}

func TestVerifyRepairPromptListsAllSteps(t *testing.T) {
	p := VerifyRepairPrompt("build", "compile error", []string{"lint", "build", "test"})
	require.Contains(t, p, "lint")
	require.Contains(t, p, "build")
	require.Contains(t, p, "test")
	require.Contains(t, p, "compile error")
}

func TestConflictResolvePromptNamesFile(t *testing.T) {
	p := ConflictResolvePrompt("README.md", "<<<<<<< HEAD\n...")
	require.Contains(t, p, "README.md")
}
