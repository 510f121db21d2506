package agent

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidResolution indicates an agent's proposed conflict
// resolution failed validation and must not be written to disk.
var ErrInvalidResolution = errors.New("agent: invalid conflict resolution")

var conflictMarker = regexp.MustCompile(`(?m)^(<{7}|={7}|>{7})`)

// proseOpeners catches the common ways an agent narrates its answer
// instead of returning raw file contents ("Here is the resolved
// file...", "I resolved the conflict by...").
var proseOpeners = regexp.MustCompile(`^(The |Here |I |This )`)

var codeFence = regexp.MustCompile("^```[a-zA-Z0-9]*\n|\n```$")

// ValidateResolution checks a proposed conflict resolution for the
// telltale signs of a bad agent response: an empty reply, leftover
// conflict markers, or prose instead of file contents. It strips a
// single pair of surrounding code fences before checking, since
// agents commonly wrap file contents in one even when asked not to.
func ValidateResolution(output string) (string, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "", ErrInvalidResolution
	}

	stripped := codeFence.ReplaceAllString(trimmed, "")
	stripped = strings.TrimSpace(stripped)

	if conflictMarker.MatchString(stripped) {
		return "", ErrInvalidResolution
	}

	if proseOpeners.MatchString(stripped) {
		return "", ErrInvalidResolution
	}

	return stripped, nil
}
