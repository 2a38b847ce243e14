package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Zip extracts .zip archives.
type Zip struct{}

// Extract unpacks archivePath into dest, which must be empty or absent.
func (Zip) Extract(archivePath, dest string) error {
	if err := ensureEmptyDir(dest); err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ExtractError{Archive: archivePath, Err: err}
	}
	defer r.Close()

	b := &budget{remaining: MaxExtractedSize}
	for _, f := range r.File {
		if err := extractZipEntry(f, dest, b); err != nil {
			return &ExtractError{Archive: archivePath, Entry: f.Name, Err: err}
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, dest string, b *budget) error {
	target, err := safeJoin(dest, f.Name)
	if err != nil {
		return err
	}

	mode := f.Mode()
	switch {
	case mode.IsDir():
		return os.MkdirAll(target, 0o755)
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("symbolic links are not supported")
	case !mode.IsRegular():
		return fmt.Errorf("unsupported entry type %s", mode.Type())
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	return writeFile(target, rc, mode.Perm(), b)
}

func writeFile(target string, r io.Reader, perm os.FileMode, b *budget) error {
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm|0o200)
	if err != nil {
		return err
	}
	// Read one byte past the remaining budget so oversize entries fail.
	n, copyErr := io.Copy(out, io.LimitReader(r, b.remaining+1))
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return closeErr
	}
	return b.take(n)
}
