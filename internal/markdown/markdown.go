// Package markdown parses a checklist file into task records, for
// the orchestrator's --file task source.
package markdown

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SaintPepsi/pai-tools-sub000/internal/task"
)

var (
	headingRe    = regexp.MustCompile(`^##\s+(.+)$`)
	subheadingRe = regexp.MustCompile(`^###\s+(.+)$`)
	topItemRe    = regexp.MustCompile(`^- \[( |x|X)\]\s*(.+)$`)
	indentItemRe = regexp.MustCompile(`^(\s{2,})- \[( |x|X)\]\s*(.+)$`)
)

// Frontmatter holds document-level metadata declared in an optional
// leading "---" YAML block, applied to every task the document yields.
type Frontmatter struct {
	Labels []string `yaml:"labels"`
}

// splitFrontmatter extracts a leading "---\n...\n---" YAML block, if
// present, returning the parsed frontmatter and the remaining body.
func splitFrontmatter(doc string) (Frontmatter, string) {
	var fm Frontmatter

	if !strings.HasPrefix(doc, "---\n") {
		return fm, doc
	}

	rest := doc[4:]

	end := strings.Index(rest, "\n---")
	if end < 0 {
		return fm, doc
	}

	block := rest[:end]

	body := rest[end+4:]
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return Frontmatter{}, doc
	}

	return fm, body
}

// Parse reads a checklist document and returns its open (unchecked)
// tasks, numbered positionally including checked items, so that
// "depends on #N" references can target any item regardless of
// whether it was already checked off. An optional leading YAML
// frontmatter block contributes labels applied to every task.
func Parse(doc string) []task.Task {
	fm, doc := splitFrontmatter(doc)
	lines := strings.Split(doc, "\n")

	var tasks []task.Task
	var section, subsection string
	var current *task.Task
	var acceptance []string
	id := 0

	flush := func() {
		if current == nil {
			return
		}
		if len(acceptance) > 0 {
			current.Body = current.Body + "\n\nAcceptance criteria:\n" + strings.Join(acceptance, "\n")
		}
		tasks = append(tasks, *current)
		current = nil
		acceptance = nil
	}

	for _, line := range lines {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			section = strings.TrimSpace(m[1])
			subsection = ""

			continue
		}
		if m := subheadingRe.FindStringSubmatch(line); m != nil {
			flush()
			subsection = strings.TrimSpace(m[1])

			continue
		}
		if m := indentItemRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				acceptance = append(acceptance, "- "+strings.TrimSpace(m[3]))
			}

			continue
		}
		if m := topItemRe.FindStringSubmatch(line); m != nil {
			flush()
			id++

			checked := strings.EqualFold(m[1], "x")
			text := strings.TrimSpace(m[2])

			if checked {
				continue
			}

			labels := append([]string{}, fm.Labels...)
			if section != "" {
				labels = append(labels, section)
			}
			if subsection != "" {
				labels = append(labels, subsection)
			}

			current = &task.Task{ID: id, Title: text, Body: text, Labels: labels}

			continue
		}
	}
	flush()

	return tasks
}
