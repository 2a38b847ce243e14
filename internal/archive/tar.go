package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TarGz extracts gzip-compressed tar archives.
type TarGz struct{}

// Extract unpacks archivePath into dest, which must be empty or absent.
func (TarGz) Extract(archivePath, dest string) error {
	if err := ensureEmptyDir(dest); err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}
	defer gz.Close()

	b := &budget{remaining: MaxExtractedSize}
	tr := tar.NewReader(gz)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &ExtractError{Archive: archivePath, Err: err}
		}
		if err := extractTarEntry(tr, h, dest, b); err != nil {
			return &ExtractError{Archive: archivePath, Entry: h.Name, Err: err}
		}
	}
}

func extractTarEntry(tr *tar.Reader, h *tar.Header, dest string, b *budget) error {
	target, err := safeJoin(dest, h.Name)
	if err != nil {
		return err
	}

	switch h.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0o755)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return writeFile(target, tr, os.FileMode(h.Mode).Perm(), b)
	case tar.TypeXGlobalHeader:
		return nil
	default:
		return fmt.Errorf("unsupported entry type %q", h.Typeflag)
	}
}
