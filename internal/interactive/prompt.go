// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes  Response = iota // Proceed
	ResponseNo                   // Do not proceed
	ResponseQuit                 // Abort without further questions
)

// Prompter asks yes/no questions before destructive commands.
type Prompter struct {
	out     io.Writer
	scanner *bufio.Scanner
}

// NewPrompter creates a prompter with stdin/stderr, so prompts do not mix
// with machine-readable output on stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stderr)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt displays a question and reads the response. End of input counts
// as quit.
func (p *Prompter) prompt(format string, args ...any) Response {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/N] ")

	if !p.scanner.Scan() {
		return ResponseQuit
	}

	switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
	case "y", "yes":
		return ResponseYes
	case "q", "quit":
		return ResponseQuit
	default:
		return ResponseNo
	}
}

// Confirm asks a yes/no question. Anything but an explicit yes declines.
func (p *Prompter) Confirm(format string, args ...any) bool {
	return p.prompt(format, args...) == ResponseYes
}

// ConfirmRemoval lists what a command is about to delete under dir and
// asks for confirmation.
func (p *Prompter) ConfirmRemoval(action, dir string, entries []string) bool {
	_, _ = fmt.Fprintf(p.out, "%s will remove from %s:\n", action, dir)
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(p.out, "  (nothing)")
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(p.out, "  %s %s\n", removeSymbol, e)
	}

	if p.prompt("Proceed?") != ResponseYes {
		_, _ = fmt.Fprintln(p.out, "Aborted.")
		return false
	}
	return true
}

const removeSymbol = "-"
