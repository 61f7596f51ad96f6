// Package git provides the repository synchronization engine on top of the git CLI.
//
// A Manager is an explicit handle for the single shared repository. Every
// operation spawns fresh git processes, so state is always re-read from disk
// and external changes made between calls are observed. The Manager does no
// locking of its own; callers serialize mutating calls through internal/lock.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	apperrors "github.com/jayteealao/colab/internal/errors"
	"github.com/jayteealao/colab/internal/logging"
)

// Manager handles git operations for the shared repository.
type Manager struct {
	repoPath   string
	stderr     io.Writer
	logger     *slog.Logger
	strategies []Strategy
}

// Option configures a Manager.
type Option func(*Manager)

// WithStderr sets the stream git diagnostics are copied to. Defaults to os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(m *Manager) {
		if w != nil {
			m.stderr = w
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithStrategies replaces the ref resolution chain.
func WithStrategies(s ...Strategy) Option {
	return func(m *Manager) {
		m.strategies = s
	}
}

// NewManager creates a new git manager for the repository at repoPath.
func NewManager(repoPath string, opts ...Option) *Manager {
	m := &Manager{
		repoPath:   repoPath,
		stderr:     os.Stderr,
		logger:     logging.Discard(),
		strategies: DefaultStrategies(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RepoPath returns the repository path.
func (m *Manager) RepoPath() string {
	return m.repoPath
}

// IsCloned reports whether the repository's control directory exists.
func (m *Manager) IsCloned() bool {
	_, err := os.Stat(filepath.Join(m.repoPath, ".git"))
	return err == nil
}

func (m *Manager) requireCloned() error {
	if !m.IsCloned() {
		return fmt.Errorf("%w: %s", apperrors.ErrNotCloned, m.repoPath)
	}
	return nil
}

// Head returns the commit HEAD points at.
func (m *Manager) Head(ctx context.Context) (string, error) {
	if err := m.requireCloned(); err != nil {
		return "", err
	}
	out, err := m.output(ctx, "rev-parse", "--verify", "HEAD^{commit}")
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	return out, nil
}

// CurrentBranch returns the short name of the branch HEAD points at.
func (m *Manager) CurrentBranch(ctx context.Context) (string, error) {
	ref, err := m.currentBranchRef(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(ref, "refs/heads/"), nil
}

// currentBranchRef returns the full refname of the checked out branch.
func (m *Manager) currentBranchRef(ctx context.Context) (string, error) {
	if err := m.requireCloned(); err != nil {
		return "", err
	}
	ref, err := m.output(ctx, "symbolic-ref", "--quiet", "HEAD")
	if err != nil {
		if exitCode(err) == 1 {
			return "", apperrors.ErrNotOnBranch
		}
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	return ref, nil
}

// Remotes returns the configured remote names in git's listing order.
func (m *Manager) Remotes(ctx context.Context) ([]string, error) {
	if err := m.requireCloned(); err != nil {
		return nil, err
	}
	out, err := m.output(ctx, "remote")
	if err != nil {
		return nil, fmt.Errorf("failed to list remotes: %w", err)
	}
	return splitLines(out), nil
}

// RemoteURL returns the fetch URL of the named remote.
func (m *Manager) RemoteURL(ctx context.Context, remote string) (string, error) {
	out, err := m.output(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("failed to get remote URL: %w", err)
	}
	return out, nil
}

// Branches lists local branches, or remote-tracking branches when remote is true.
func (m *Manager) Branches(ctx context.Context, remote bool) ([]string, error) {
	if err := m.requireCloned(); err != nil {
		return nil, err
	}
	namespace := "refs/heads"
	if remote {
		namespace = "refs/remotes"
	}
	out, err := m.output(ctx, "for-each-ref", "--format=%(refname:short) %(symref)", namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	var branches []string
	for _, line := range splitLines(out) {
		name, symref, _ := strings.Cut(line, " ")
		if symref != "" {
			// origin/HEAD style aliases
			continue
		}
		branches = append(branches, name)
	}
	return branches, nil
}

// ShortSHA returns the 7-character short SHA.
func ShortSHA(fullSHA string) string {
	if len(fullSHA) < 7 {
		return fullSHA
	}
	return fullSHA[:7]
}

// GitError describes a failed git invocation.
type GitError struct {
	Args     []string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *GitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// Is makes every git failure match the generic repository error.
func (e *GitError) Is(target error) bool {
	return target == apperrors.ErrRepository
}

// command builds a git command. An empty dir runs git without -C.
func (m *Manager) command(ctx context.Context, dir string, args ...string) *exec.Cmd {
	full := args
	if dir != "" {
		full = append([]string{"-C", dir}, args...)
	}
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_TERMINAL_PROMPT=0")
	return cmd
}

// run executes git in the repository, copying stderr to the caller's stream.
func (m *Manager) run(ctx context.Context, args ...string) ([]byte, error) {
	return m.runIn(ctx, m.repoPath, args...)
}

func (m *Manager) runIn(ctx context.Context, dir string, args ...string) ([]byte, error) {
	return m.exec(ctx, dir, m.stderr, args...)
}

// exec runs git with stderr captured and copied to errOut.
func (m *Manager) exec(ctx context.Context, dir string, errOut io.Writer, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := m.command(ctx, dir, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, errOut)

	m.logger.Debug("git", "args", args)

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &GitError{
			Args:     args,
			Stderr:   stderr.String(),
			ExitCode: exitCode(err),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// output runs git and returns trimmed stdout.
func (m *Manager) output(ctx context.Context, args ...string) (string, error) {
	out, err := m.run(ctx, args...)
	return strings.TrimSpace(string(out)), err
}

// exitCode extracts the process exit code, or -1 when git never ran.
func exitCode(err error) int {
	var gitErr *GitError
	if errors.As(err, &gitErr) {
		return gitErr.ExitCode
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// stderrOf returns the captured stderr of a git failure.
func stderrOf(err error) string {
	var gitErr *GitError
	if errors.As(err, &gitErr) {
		return gitErr.Stderr
	}
	return ""
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
