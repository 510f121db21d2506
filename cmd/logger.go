// Package cmd wires the orchestrate, verify, and finalize subcommands
// to their underlying internal packages.
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// consoleLogger prints to stderr, styling output when attached to a
// terminal. It satisfies every internal package's narrow Logger
// interface (Infof/Warnf).
type consoleLogger struct {
	color bool
}

func newConsoleLogger() *consoleLogger {
	return &consoleLogger{color: isatty.IsTerminal(os.Stderr.Fd())}
}

func (l *consoleLogger) Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.color {
		msg = infoStyle.Render(msg)
	}
	fmt.Fprintln(os.Stderr, msg)
}

func (l *consoleLogger) Warnf(format string, args ...any) {
	msg := "warn: " + fmt.Sprintf(format, args...)
	if l.color {
		msg = warnStyle.Render(msg)
	}
	fmt.Fprintln(os.Stderr, msg)
}
