package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SplitTask is one proposed sub-task from a split assessment.
type SplitTask struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// SplitAssessment is the structured answer to a split-size judgment.
type SplitAssessment struct {
	ShouldSplit    bool        `json:"shouldSplit"`
	ProposedSplits []SplitTask `json:"proposedSplits"`
	Reasoning      string      `json:"reasoning"`
}

// SplitAssessPrompt builds the prompt asking the assess model whether
// a task is too large for a single implementation pass, requesting a
// JSON reply matching SplitAssessment's field names exactly.
func SplitAssessPrompt(title, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n%s\n\n", title, body)
	b.WriteString("Decide whether this task is small enough to implement in one focused change, ")
	b.WriteString("or should be split into smaller sub-tasks.\n\n")
	b.WriteString("Reply with only a JSON object of the form:\n")
	b.WriteString(`{"shouldSplit": <bool>, "proposedSplits": [{"title": <string>, "body": <string>}], "reasoning": <string>}`)
	b.WriteString("\n\nIf the task should not be split, shouldSplit is false and proposedSplits is empty.")

	return b.String()
}

// ParseSplitAssessment parses an agent's raw output as a
// SplitAssessment, stripping a surrounding code fence if present. A
// malformed reply is treated as a decision not to split, so a flaky
// agent response never wedges the pipeline.
func ParseSplitAssessment(output string) SplitAssessment {
	trimmed := strings.TrimSpace(output)
	trimmed = strings.TrimSpace(codeFence.ReplaceAllString(trimmed, ""))

	var result SplitAssessment
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		return SplitAssessment{}
	}

	return result
}
