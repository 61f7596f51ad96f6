package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/jayteealao/colab/internal/hook"
)

// CloneOptions configures Clone.
type CloneOptions struct {
	URL    string
	Branch string

	// PostCloneCmd runs with the new checkout as working directory. Empty is a no-op.
	PostCloneCmd string

	// Hooks runs PostCloneCmd. Nil uses an ignore-policy runner.
	Hooks *hook.Runner
}

// CloneResult describes a fresh checkout.
type CloneResult struct {
	Branch string
	Head   string
}

// transportMarkers are stderr fragments git prints when the remote is unreachable.
var transportMarkers = []string{
	"Could not resolve host",
	"unable to access",
	"Connection refused",
	"Connection timed out",
	"Could not read from remote repository",
	"does not appear to be a git repository",
	"does not exist",
	"Repository not found",
	"Authentication failed",
	"Permission denied",
	"could not read Username",
}

func isTransportFailure(stderr string) bool {
	for _, marker := range transportMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// Clone clones URL into the repository path with Branch checked out, then runs
// the post-clone hook. The clone lands in a temp sibling directory and is renamed
// into place, so a failed clone never leaves a partial repository behind.
//
// If the hook fails under the abort policy the repository stays cloned and the
// result is returned together with the error.
func (m *Manager) Clone(ctx context.Context, opts CloneOptions) (*CloneResult, error) {
	if m.IsCloned() {
		return nil, fmt.Errorf("%w: %w at %s", apperrors.ErrCloneFailed, apperrors.ErrRepoExists, m.repoPath)
	}
	entries, err := os.ReadDir(m.repoPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: failed to inspect destination: %w", apperrors.ErrCloneFailed, err)
	}
	if len(entries) > 0 {
		return nil, fmt.Errorf("%w: %w: %s", apperrors.ErrCloneFailed, apperrors.ErrRepoNotEmpty, m.repoPath)
	}

	parentDir := filepath.Dir(m.repoPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}

	tempDir, err := os.MkdirTemp(parentDir, ".clone-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	success := false
	defer func() {
		if !success {
			os.RemoveAll(tempDir)
		}
	}()

	args := []string{"clone"}
	if opts.Branch != "" {
		args = append(args, "--branch", opts.Branch)
	}
	args = append(args, "--", opts.URL, tempDir)

	m.logger.Info("cloning repository", "url", opts.URL, "branch", opts.Branch)

	if _, err := m.runIn(ctx, "", args...); err != nil {
		if isTransportFailure(stderrOf(err)) {
			return nil, fmt.Errorf("%w: %w: %w", apperrors.ErrCloneFailed, apperrors.ErrTransport, err)
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCloneFailed, err)
	}

	// An empty destination directory is replaced by the rename.
	if err := os.Rename(tempDir, m.repoPath); err != nil {
		return nil, fmt.Errorf("failed to move cloned repo to final path: %w", err)
	}
	success = true

	head, err := m.Head(ctx)
	if err != nil {
		return nil, err
	}

	branch, err := m.CurrentBranch(ctx)
	if err != nil {
		// --branch may name a tag, which leaves HEAD detached.
		branch = opts.Branch
	}

	result := &CloneResult{Branch: branch, Head: head}
	m.logger.Info("cloned repository", "branch", branch, "head", ShortSHA(head))

	runner := opts.Hooks
	if runner == nil {
		runner = hook.NewRunner(hook.PolicyIgnore, m.stderr, m.logger)
	}
	if err := runner.Run(ctx, hook.Hook{Name: "post-clone", Command: opts.PostCloneCmd, Dir: m.repoPath}); err != nil {
		return result, err
	}

	return result, nil
}

// CheckAuth performs a pre-flight access check for the given URL.
func CheckAuth(ctx context.Context, url string) error {
	m := NewManager("")
	_, err := m.runIn(ctx, "", "ls-remote", "--exit-code", url, "HEAD")
	if err == nil {
		return nil
	}
	if isTransportFailure(stderrOf(err)) {
		return fmt.Errorf("%w: %w", apperrors.ErrTransport, err)
	}
	return fmt.Errorf("failed to access repository: %w", err)
}
