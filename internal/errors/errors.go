// Package errors provides sentinel errors for colab operations.
package errors

import "errors"

// Repository errors
var (
	// ErrRepository indicates git failed to read or write repository objects, refs or the index.
	ErrRepository = errors.New("repository error")

	// ErrNotCloned indicates the shared repository has not been cloned yet.
	ErrNotCloned = errors.New("repository is not cloned")

	// ErrRepoExists indicates a repository already exists at the destination.
	ErrRepoExists = errors.New("a repository already exists")

	// ErrRepoNotEmpty indicates the clone destination is a non-empty directory.
	ErrRepoNotEmpty = errors.New("destination is not empty")

	// ErrRepoLocked indicates another operation holds the repository lock.
	ErrRepoLocked = errors.New("repository is locked by another operation")
)

// Sync errors
var (
	// ErrRefNotFound indicates no local ref, revision or remote-tracking ref matched the target.
	ErrRefNotFound = errors.New("ref not found")

	// ErrNoUpstream indicates the current branch has no upstream configured.
	ErrNoUpstream = errors.New("branch has no upstream")

	// ErrCheckoutConflict indicates a checkout would overwrite uncommitted changes.
	ErrCheckoutConflict = errors.New("checkout would overwrite local changes")

	// ErrBranchExists indicates a local branch of the target's name holds
	// commits the remote branch does not.
	ErrBranchExists = errors.New("local branch exists and is not behind the remote branch")

	// ErrMergeRequired indicates the branch diverged from its upstream.
	ErrMergeRequired = errors.New("branches diverged, manual resolution needed")

	// ErrNotOnBranch indicates HEAD is detached.
	ErrNotOnBranch = errors.New("HEAD is not on a branch")

	// ErrTransport indicates network or remote access failed.
	ErrTransport = errors.New("transport failure")

	// ErrCloneFailed indicates the git clone operation failed.
	ErrCloneFailed = errors.New("git clone failed")

	// ErrFetchFailed indicates the git fetch operation failed.
	ErrFetchFailed = errors.New("git fetch failed")

	// ErrHookFailed indicates a configured hook command exited unsuccessfully.
	ErrHookFailed = errors.New("hook command failed")
)

// Session errors
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionActive indicates another session already holds the checkout.
	ErrSessionActive = errors.New("a session is already active")

	// ErrSessionNotRunning indicates the session was already finished or failed.
	ErrSessionNotRunning = errors.New("session is not running")

	// ErrNoActiveSession indicates there is no running session.
	ErrNoActiveSession = errors.New("no active session")
)

// Input errors
var (
	// ErrInvalidTarget indicates a checkout target string is malformed.
	ErrInvalidTarget = errors.New("invalid checkout target")

	// ErrInvalidRepoURL indicates the repository URL is malformed.
	ErrInvalidRepoURL = errors.New("invalid repository URL")

	// ErrInvalidConfig indicates settings failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)
