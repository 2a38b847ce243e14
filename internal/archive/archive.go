// Package archive extracts release artifacts into a directory.
//
// Zip and gzip-compressed tar archives are supported. Every entry is
// checked against path traversal and the total extracted size is capped.
// Extraction targets must be empty directories; on failure the caller is
// expected to discard the whole directory.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adamancini/hoist/internal/types"
)

// MaxExtractedSize caps the total number of bytes written by one extraction (4 GB).
const MaxExtractedSize int64 = 4 << 30

var (
	// ErrExtract is wrapped by every ExtractError.
	ErrExtract = errors.New("extraction failed")

	// ErrUnsupported is returned for archive formats without a backend.
	ErrUnsupported = errors.New("unsupported archive format")
)

type (
	// Extractor unpacks one archive file into a directory.
	Extractor interface {
		Extract(archivePath, dest string) error
	}

	// ExtractError reports a failure while unpacking an archive.
	ExtractError struct {
		Archive string
		Entry   string
		Err     error
	}

	// Func adapts a function to the Extractor interface.
	Func func(archivePath, dest string) error
)

func (e *ExtractError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("failed to extract %s (entry %q): %v", filepath.Base(e.Archive), e.Entry, e.Err)
	}
	return fmt.Sprintf("failed to extract %s: %v", filepath.Base(e.Archive), e.Err)
}

// Unwrap returns both ErrExtract and the underlying cause.
func (e *ExtractError) Unwrap() []error { return []error{ErrExtract, e.Err} }

// Extract calls f.
func (f Func) Extract(archivePath, dest string) error { return f(archivePath, dest) }

// ForType returns the extractor for t. ArchiveAuto detects the format from
// the archive's file name at extraction time.
func ForType(t types.ArchiveType) (Extractor, error) {
	switch t.Default() {
	case types.ArchiveAuto:
		return Auto{}, nil
	case types.ArchiveZip:
		return Zip{}, nil
	case types.ArchiveTarGz:
		return TarGz{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
}

// Detect returns the archive type implied by filename's extension.
func Detect(filename string) (types.ArchiveType, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return types.ArchiveZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return types.ArchiveTarGz, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(filename))
	}
}

// Auto picks Zip or TarGz from the archive's file extension.
type Auto struct{}

// Extract detects the format and delegates to its backend.
func (Auto) Extract(archivePath, dest string) error {
	t, err := Detect(archivePath)
	if err != nil {
		return err
	}
	ex, err := ForType(t)
	if err != nil {
		return err
	}
	return ex.Extract(archivePath, dest)
}

// safeJoin resolves name below dest, rejecting absolute paths and any
// entry that would escape dest.
func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("absolute path in archive")
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes destination")
	}
	return filepath.Join(dest, clean), nil
}

func ensureEmptyDir(dest string) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dest, 0o755)
		}
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("destination %s is not empty", dest)
	}
	return nil
}

// budget tracks bytes written against MaxExtractedSize.
type budget struct {
	remaining int64
}

func (b *budget) take(n int64) error {
	if n > b.remaining {
		return fmt.Errorf("archive exceeds %d bytes when extracted", MaxExtractedSize)
	}
	b.remaining -= n
	return nil
}
