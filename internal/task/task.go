// Package task builds the dependency graph of change tasks: parsing
// "depends on" declarations out of task bodies, deriving deterministic
// branch names, topologically sorting the graph, and grouping tasks
// into parallel execution tiers.
package task

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrCycle is returned by TopologicalSort when the in-graph dependency
// set contains a true cycle.
var ErrCycle = errors.New("task graph: cycle detected among in-graph dependencies")

// Task is an externally supplied unit of work.
type Task struct {
	ID     int
	Title  string
	Body   string
	Labels []string
}

// Node is a task as it appears in the dependency graph: its declared
// dependencies (in source order) and its derived branch name.
type Node struct {
	TaskID     int
	Title      string
	Body       string
	DependsOn  []int
	BranchName string
}

// Graph maps task id to its node.
type Graph map[int]*Node

var (
	dependsOnLine = regexp.MustCompile(`(?i)depends on`)
	hashID        = regexp.MustCompile(`#(\d+)`)
)

// ParseDependencies finds the first "depends on" line in body (case
// insensitive) and returns every #N id referenced on it, in order. If
// no such line exists the result is empty.
func ParseDependencies(body string) []int {
	for _, line := range strings.Split(body, "\n") {
		if !dependsOnLine.MatchString(line) {
			continue
		}

		matches := hashID.FindAllStringSubmatch(line, -1)
		ids := make([]int, 0, len(matches))
		for _, m := range matches {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			ids = append(ids, n)
		}

		return ids
	}

	return []int{}
}

// BuildGraph derives a Node for every task, preserving declared
// dependency order. Construction is pure: it performs no I/O.
func BuildGraph(tasks []Task, branchPrefix string) Graph {
	g := make(Graph, len(tasks))
	for _, t := range tasks {
		g[t.ID] = &Node{
			TaskID:     t.ID,
			Title:      t.Title,
			Body:       t.Body,
			DependsOn:  ParseDependencies(t.Body),
			BranchName: BranchName(branchPrefix, t.ID, t.Title),
		}
	}

	return g
}

// BranchName derives the deterministic branch name for a task:
// <branchPrefix><id>-<kebab(title, 50)>.
func BranchName(branchPrefix string, id int, title string) string {
	return branchPrefix + strconv.Itoa(id) + "-" + Kebab(title, 50)
}

var (
	leadingBracket = regexp.MustCompile(`^\[\d+\]\s*`)
	nonAlnumRun    = regexp.MustCompile(`[^a-z0-9]+`)
)

// Kebab converts a title into a lowercase, hyphen-separated slug:
// strip a leading "[N]" bracket prefix, lowercase, collapse runs of
// non-alphanumeric characters into a single hyphen, trim leading and
// trailing hyphens, then truncate to max characters. Pure function.
func Kebab(title string, max int) string {
	s := leadingBracket.ReplaceAllString(title, "")
	s = strings.ToLower(s)
	s = nonAlnumRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > max {
		s = strings.TrimRight(s[:max], "-")
	}

	return s
}

// sortedIDs returns the graph's keys in ascending order, for
// deterministic iteration regardless of map ordering.
func sortedIDs(g Graph) []int {
	ids := make([]int, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	return ids
}
