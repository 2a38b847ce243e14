package interactive

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrompt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Response
	}{
		{"yes", "y\n", ResponseYes},
		{"yes word", "YES\n", ResponseYes},
		{"no", "n\n", ResponseNo},
		{"empty defaults to no", "\n", ResponseNo},
		{"invalid defaults to no", "maybe\n", ResponseNo},
		{"quit", "q\n", ResponseQuit},
		{"eof", "", ResponseQuit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			p := NewPrompterWithIO(strings.NewReader(tt.input), output)

			if got := p.prompt("Remove %s?", "x"); got != tt.want {
				t.Errorf("prompt() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(output.String(), "Remove x? [y/N]") {
				t.Errorf("prompt output = %q", output.String())
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	p := NewPrompterWithIO(strings.NewReader("y\nn\n"), &bytes.Buffer{})
	if !p.Confirm("first?") {
		t.Error("Confirm() should accept y")
	}
	if p.Confirm("second?") {
		t.Error("Confirm() should decline n")
	}
	if p.Confirm("third?") {
		t.Error("Confirm() should decline at end of input")
	}
}

func TestConfirmRemoval(t *testing.T) {
	output := &bytes.Buffer{}
	p := NewPrompterWithIO(strings.NewReader("y\n"), output)

	if !p.ConfirmRemoval("unlink", "/data/notes", []string{"current", "2.0.0"}) {
		t.Fatal("ConfirmRemoval() should accept y")
	}
	out := output.String()
	for _, want := range []string{"unlink will remove from /data/notes:", "  - current", "  - 2.0.0", "Proceed?"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	output.Reset()
	p = NewPrompterWithIO(strings.NewReader("n\n"), output)
	if p.ConfirmRemoval("prune", "/data/notes", nil) {
		t.Error("ConfirmRemoval() should decline n")
	}
	if !strings.Contains(output.String(), "(nothing)") || !strings.Contains(output.String(), "Aborted.") {
		t.Errorf("output = %q", output.String())
	}
}
