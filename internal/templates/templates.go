// Package templates provides embedded Hoistfile templates for hoist init.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
)

//go:embed *.yaml
var templatesFS embed.FS

// Template represents a Hoistfile template with metadata.
type Template struct {
	Name        string
	Description string
	Content     []byte
}

// Values fills template placeholders. Keys are the placeholder names, for
// example APP_NAME or GITHUB_OWNER.
type Values map[string]string

var templateDescriptions = map[string]string{
	"minimal": "Static release URL, no verification",
	"github":  "GitHub releases with SHA256SUMS",
	"full":    "Every option, launcher and shortcuts",
}

// List returns all available template names sorted alphabetically.
func List() []string {
	entries, err := templatesFS.ReadDir(".")
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}

	sort.Strings(names)
	return names
}

// Get returns a template by name with its placeholders intact.
func Get(name string) (*Template, error) {
	content, err := templatesFS.ReadFile(name + ".yaml")
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("template '%s' not found: %w", name, pathErr)
		}
		return nil, fmt.Errorf("failed to read template '%s': %w", name, err)
	}

	return &Template{
		Name:        name,
		Description: GetDescription(name),
		Content:     content,
	}, nil
}

// GetDescription returns the description for a template.
func GetDescription(name string) string {
	if desc, ok := templateDescriptions[name]; ok {
		return desc
	}
	return "Custom template"
}

// placeholderPattern matches ${NAME} and ${NAME:-default}.
var placeholderPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Expand replaces ${NAME} and ${NAME:-default} placeholders. A value comes
// from values first, then from the environment, then from the default.
func Expand(content []byte, values Values) []byte {
	return placeholderPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		parts := placeholderPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := string(parts[1])
		value := values[name]
		if value == "" {
			value = os.Getenv(name)
		}
		if value == "" && len(parts) >= 3 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// Render returns a template with its placeholders expanded.
func Render(name string, values Values) (*Template, error) {
	tmpl, err := Get(name)
	if err != nil {
		return nil, err
	}

	tmpl.Content = Expand(tmpl.Content, values)
	return tmpl, nil
}
