package update

import (
	"errors"
	"fmt"
)

var (
	// ErrLocked is returned when another manager holds the working directory.
	ErrLocked = errors.New("working directory is locked by another process")

	// ErrNotLocked is returned by operations that need the lock after it
	// was released.
	ErrNotLocked = errors.New("manager does not hold the update lock")

	// ErrProcessesRunning is returned when a directory to be replaced is in
	// use and killing processes was not allowed.
	ErrProcessesRunning = errors.New("processes are running from the directory")

	// ErrRunningFromTarget is returned when the calling process itself runs
	// out of a directory that would be deleted or renamed.
	ErrRunningFromTarget = errors.New("the running executable is inside the directory to replace")

	// ErrNoLauncher is returned by LaunchLatest without a configured launcher.
	ErrNoLauncher = errors.New("no launcher configured")

	// ErrNotInstalled is returned by StartLatest when nothing is installed
	// in the latest directory.
	ErrNotInstalled = errors.New("no version is installed in the latest directory")

	// ErrTargetExists is returned when the version directory appeared while
	// the update was being prepared.
	ErrTargetExists = errors.New("version directory already exists")

	// ErrUpdateInProgress is returned when Update is called concurrently on
	// one Updater.
	ErrUpdateInProgress = errors.New("an update is already in progress")

	// ErrNoSource is returned when the Updater has no release retriever.
	ErrNoSource = errors.New("no update source configured")

	// ErrNoFilenamePattern is returned when the Updater has no filename pattern.
	ErrNoFilenamePattern = errors.New("no download filename pattern configured")

	// ErrURLNotTrusted is returned for download URLs outside the trusted
	// URL pattern.
	ErrURLNotTrusted = errors.New("download url does not match the trusted url pattern")

	// ErrFilenamePattern is returned when the download filename does not
	// match the filename pattern.
	ErrFilenamePattern = errors.New("download filename does not match the filename pattern")

	// ErrFilenameVersionMismatch is returned when the download filename does
	// not contain the version the release claims to be.
	ErrFilenameVersionMismatch = errors.New("download filename does not contain the release version")

	// ErrUpToDate is returned by UpdateLatest when the running version is
	// the newest release.
	ErrUpToDate = errors.New("the application is up to date")

	// ErrLatestIsOlder is returned by UpdateLatest when the newest release
	// is older than the running version.
	ErrLatestIsOlder = errors.New("the latest release is older than the running version")

	// ErrAlreadyInstalled is returned when the newest release has already
	// been downloaded into the working directory.
	ErrAlreadyInstalled = errors.New("the latest release is already installed")
)

// Stage names where in the pipeline an operation failed.
type Stage string

const (
	StageContent    Stage = "content"
	StagePostUpdate Stage = "post-update"
)

// OperationError reports a failed content or post-update operation.
type OperationError struct {
	Stage Stage
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s operation failed: %v", e.Stage, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
