package verify

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const sha256HexLen = sha256.Size * 2

type (
	// ChecksumEntry is one line of a SHA256 manifest.
	ChecksumEntry struct {
		Hash string // lower-case hex digest
		Path string // slash separated, relative to the manifest's directory
	}

	// SHA256Sums verifies the artifact against a sha256sum style manifest
	// downloaded from the same release.
	SHA256Sums struct {
		manifest string
	}
)

// NewSHA256Sums returns a verifier reading the manifest named manifest.
// manifest may contain a directory part relative to the artifact, e.g.
// "checksums/SHA256SUMS".
func NewSHA256Sums(manifest string) *SHA256Sums {
	return &SHA256Sums{manifest: manifest}
}

// RequiredFiles returns the manifest name.
func (s *SHA256Sums) RequiredFiles() []string {
	return []string{s.manifest}
}

// Verify hashes primary and compares it with the manifest entry for the
// artifact's filename, resolved relative to the manifest's own directory.
func (s *SHA256Sums) Verify(primary string, files Files) error {
	manifestPath, err := files.Lookup("sha256", s.manifest)
	if err != nil {
		return err
	}
	f, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to open checksum manifest: %w", err)
	}
	defer f.Close()

	entries, err := ParseChecksums(f)
	if err != nil {
		return &VerificationError{Verifier: "sha256", File: s.manifest, Reason: err.Error()}
	}

	want, err := s.expected(entries, filepath.Base(primary))
	if err != nil {
		return err
	}
	got, err := HashFile(primary)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", primary, err)
	}
	if got != want {
		return &VerificationError{
			Verifier: "sha256",
			File:     filepath.Base(primary),
			Reason:   fmt.Sprintf("checksum mismatch: expected %s, got %s", want, got),
		}
	}
	return nil
}

func (s *SHA256Sums) expected(entries []ChecksumEntry, filename string) (string, error) {
	manifestDir := path.Dir(filepath.ToSlash(s.manifest))
	for _, e := range entries {
		resolved := path.Clean(path.Join(manifestDir, e.Path))
		if resolved == filename {
			return e.Hash, nil
		}
	}
	return "", &VerificationError{
		Verifier: "sha256",
		File:     filename,
		Reason:   fmt.Sprintf("no entry in %s", s.manifest),
	}
}

// ParseChecksums parses sha256sum output. Each line is
// "{hex}  {path}" (text mode) or "{hex} *{path}" (binary mode).
// Blank lines are skipped; any other malformed line is an error.
func ParseChecksums(r io.Reader) ([]ChecksumEntry, error) {
	var entries []ChecksumEntry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		hash, rest, ok := strings.Cut(line, " ")
		if !ok || !isValidHexHash(hash) || len(rest) < 2 {
			return nil, fmt.Errorf("malformed checksum line %d", lineNo)
		}
		if rest[0] != ' ' && rest[0] != '*' {
			return nil, fmt.Errorf("malformed checksum line %d", lineNo)
		}
		p := strings.TrimPrefix(filepath.ToSlash(rest[1:]), "./")
		if p == "" {
			return nil, fmt.Errorf("malformed checksum line %d: empty path", lineNo)
		}
		entries = append(entries, ChecksumEntry{Hash: strings.ToLower(hash), Path: p})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no checksum entries found")
	}
	return entries, nil
}

// HashFile returns the lower-case hex SHA256 digest of the file at path.
func HashFile(name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isValidHexHash(s string) bool {
	if len(s) != sha256HexLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
