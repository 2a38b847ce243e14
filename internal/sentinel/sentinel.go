// Package sentinel reads and writes the marker file that proves a directory
// holds a complete, trusted install of one version.
//
// The file is named ".sentinel" and contains newline separated key=value
// pairs. The only required key is "version". Unknown keys are ignored so
// newer writers can add fields without breaking older readers.
package sentinel

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adamancini/hoist/internal/version"
)

// Filename is the name of the sentinel file inside a version directory.
const Filename = ".sentinel"

const versionKey = "version"

// Path returns the sentinel path for dir.
func Path(dir string) string {
	return filepath.Join(dir, Filename)
}

// Read returns the version recorded in dir's sentinel.
// A missing, unreadable or malformed sentinel reports false.
func Read(dir string) (version.Number, bool) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return version.Number{}, false
	}
	values := parse(data)
	raw, ok := values[versionKey]
	if !ok {
		return version.Number{}, false
	}
	v, err := version.Parse(raw)
	if err != nil {
		return version.Number{}, false
	}
	return v, true
}

// Matches reports whether dir has a valid sentinel equal to v.
func Matches(dir string, v version.Number) bool {
	got, ok := Read(dir)
	return ok && got.Equal(v)
}

// Write records v in dir's sentinel, replacing any existing one.
// The file is written to a temporary name and renamed into place.
func Write(dir string, v version.Number) error {
	if v.IsZero() {
		return fmt.Errorf("refusing to write empty version to sentinel in %s", dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to write sentinel: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("failed to write sentinel: %s is not a directory", dir)
	}

	var buf bytes.Buffer
	if err := writeEntry(&buf, versionKey, v.String()); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, Filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create sentinel: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write sentinel: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync sentinel: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close sentinel: %w", err)
	}
	if err := os.Rename(tmpName, Path(dir)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename sentinel: %w", err)
	}
	return nil
}

// No escaping is defined for the format.
func writeEntry(buf *bytes.Buffer, key, value string) error {
	if strings.ContainsAny(key, "=\r\n") || strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("sentinel entry %q contains a reserved character", key)
	}
	fmt.Fprintf(buf, "%s=%s\n", key, value)
	return nil
}

func parse(data []byte) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, seen := values[key]; seen {
			continue
		}
		values[key] = strings.TrimSpace(value)
	}
	return values
}
