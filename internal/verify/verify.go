// Package verify checks the integrity and authenticity of downloaded
// release artifacts before they are extracted.
//
// A Verifier declares the additional files it needs (a checksum manifest, a
// detached signature) so the downloader can fetch them next to the primary
// artifact. Verification failures are reported as *VerificationError, which
// wraps ErrVerificationFailed.
package verify

import (
	"errors"
	"fmt"
)

// ErrVerificationFailed is wrapped by every VerificationError.
var ErrVerificationFailed = errors.New("verification failed")

type (
	// Files maps an additional file's name to its local path.
	Files map[string]string

	// Verifier checks a downloaded artifact.
	Verifier interface {
		// RequiredFiles lists the additional file names that must be
		// downloaded from the artifact's release before Verify runs.
		RequiredFiles() []string
		// Verify checks the artifact at primary. files holds the local
		// paths of every name returned by RequiredFiles.
		Verify(primary string, files Files) error
	}

	// VerificationError describes why an artifact was rejected.
	VerificationError struct {
		Verifier string
		File     string
		Reason   string
	}
)

func (e *VerificationError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s verification of %s failed: %s", e.Verifier, e.File, e.Reason)
	}
	return fmt.Sprintf("%s verification failed: %s", e.Verifier, e.Reason)
}

// Unwrap returns ErrVerificationFailed so callers can use errors.Is.
func (e *VerificationError) Unwrap() error { return ErrVerificationFailed }

// Lookup returns the local path of name, or a VerificationError naming
// the verifier if it was not downloaded.
func (f Files) Lookup(verifier, name string) (string, error) {
	path, ok := f[name]
	if !ok || path == "" {
		return "", &VerificationError{Verifier: verifier, File: name, Reason: "required file was not downloaded"}
	}
	return path, nil
}

// RequiredFiles returns the union of the files the verifiers need, in
// first-seen order.
func RequiredFiles(verifiers ...Verifier) []string {
	seen := make(map[string]bool)
	var names []string
	for _, v := range verifiers {
		for _, name := range v.RequiredFiles() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// All runs every verifier in order and stops at the first failure.
func All(primary string, files Files, verifiers ...Verifier) error {
	for _, v := range verifiers {
		if err := v.Verify(primary, files); err != nil {
			return err
		}
	}
	return nil
}
