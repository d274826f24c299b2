// Package logging provides the structured and CLI-facing loggers used
// throughout klauss, replacing the teacher's grove-core logging wrapper
// (an unfetchable private dependency) with the same two-logger shape built
// directly on logrus and fatih/color.
package logging

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

func init() {
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// NewLogger returns a structured logger scoped to component, writing
// logfmt-style output (readable in a terminal, greppable in a log file).
func NewLogger(component string) *logrus.Entry {
	base := logrus.New()
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level := os.Getenv("KLAUSS_LOG_LEVEL"); level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			base.SetLevel(lvl)
		}
	}
	return base.WithField("component", component)
}

// PrettyLogger prints short, colored status lines straight to the
// terminal for CLI commands — distinct from the structured component
// logger, which is meant for worker/coordinator log files.
type PrettyLogger struct{}

// NewPrettyLogger returns a PrettyLogger.
func NewPrettyLogger() *PrettyLogger { return &PrettyLogger{} }

// InfoPretty prints a green status line to stdout.
func (p *PrettyLogger) InfoPretty(msg string) {
	color.New(color.FgGreen).Fprintln(os.Stdout, msg)
}

// WarnPretty prints a yellow status line to stderr.
func (p *PrettyLogger) WarnPretty(msg string) {
	color.New(color.FgYellow).Fprintln(os.Stderr, msg)
}

// ErrorPretty prints a red status line to stderr.
func (p *PrettyLogger) ErrorPretty(msg string) {
	color.New(color.FgRed).Fprintln(os.Stderr, msg)
}
