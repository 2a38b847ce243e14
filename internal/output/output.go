// Package output handles formatting output in different formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Styles for text output.
var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	LabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).Italic(true)
)

// Writer handles output in the specified format.
type Writer struct {
	format Format
	w      io.Writer
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{format: format, w: w}
}

// Format returns the configured format.
func (w *Writer) Format() Format { return w.format }

// Write outputs the given value in the configured format. Text output uses
// the value's String method when it has one.
func (w *Writer) Write(v any) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		if s, ok := v.(fmt.Stringer); ok {
			_, err := fmt.Fprintln(w.w, s.String())
			return err
		}
		_, err := fmt.Fprintf(w.w, "%+v\n", v)
		return err
	}
}

// ParseFormat parses a format string into a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

// Field is one labelled line of a text report.
type Field struct {
	Label string
	Value string
}

// Report renders a title followed by aligned label/value lines. Empty
// values are shown as "none".
func Report(title string, fields ...Field) string {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Label))
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(title))
	for _, f := range fields {
		b.WriteString("\n  ")
		b.WriteString(LabelStyle.Render(f.Label + ":" + strings.Repeat(" ", width-len(f.Label))))
		b.WriteString(" ")
		if f.Value == "" {
			b.WriteString(MutedStyle.Render("none"))
		} else {
			b.WriteString(ValueStyle.Render(f.Value))
		}
	}
	return b.String()
}

// Success renders a confirmation line.
func Success(format string, args ...any) string {
	return SuccessStyle.Render("✓") + " " + fmt.Sprintf(format, args...)
}

// Warning renders a warning line.
func Warning(format string, args ...any) string {
	return WarningStyle.Render("!") + " " + fmt.Sprintf(format, args...)
}
